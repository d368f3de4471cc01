package types

import (
	"time"
)

type UserStatus string

const (
	StatusOnline  UserStatus = "ONLINE"
	StatusOffline UserStatus = "OFFLINE"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteRejected InviteStatus = "REJECTED"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "PENDING"
	FriendshipAccepted FriendshipStatus = "ACCEPTED"
	FriendshipRejected FriendshipStatus = "REJECTED"
)

type ChannelKind string

const (
	ChannelText  ChannelKind = "TEXT"
	ChannelVoice ChannelKind = "VOICE"
)

type User struct {
	Id       int        `json:"id"`
	Username string     `json:"username"`
	Status   UserStatus `json:"status,omitempty"`
}

type Server struct {
	Id         int       `json:"id"`
	ExternalId string    `json:"external_id"`
	Name       string    `json:"name"`
	OwnerId    int       `json:"owner_id"`
	Members    []Member  `json:"members,omitempty"`
	Channels   []Channel `json:"channels,omitempty"`
	Roles      []Role    `json:"roles,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type Channel struct {
	Id         int         `json:"id"`
	ExternalId string      `json:"external_id"`
	ServerId   int         `json:"server_id"`
	Name       string      `json:"name"`
	Kind       ChannelKind `json:"kind"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
}

type Role struct {
	Id          int      `json:"id"`
	ServerId    int      `json:"server_id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	IsDefault   bool     `json:"is_default"`
}

type Member struct {
	Id       int       `json:"id"`
	ServerId int       `json:"server_id"`
	RoleId   int       `json:"role_id,omitempty"`
	User     User      `json:"user"`
	JoinedAt time.Time `json:"joined_at,omitempty"`
}

type ServerInvite struct {
	Id         int          `json:"id"`
	SenderId   int          `json:"sender_id"`
	ReceiverId int          `json:"receiver_id"`
	ServerId   int          `json:"server_id"`
	ServerName string       `json:"server_name,omitempty"`
	Status     InviteStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at,omitempty"`
}

type Friendship struct {
	Id         int              `json:"id"`
	SenderId   int              `json:"sender_id"`
	ReceiverId int              `json:"receiver_id"`
	Status     FriendshipStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	ChannelId string    `json:"channel_id"`
	UserId    int       `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
