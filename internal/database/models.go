package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id        int
	Username  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Server struct {
	Id         int
	ExternalId string
	Name       string
	OwnerId    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Members    []Member
}

type Role struct {
	Id          int
	ServerId    int
	Name        string
	Permissions []string
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Channel struct {
	Id         int
	ExternalId string
	ServerId   int
	Name       string
	Kind       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Member struct {
	Id        int
	UserId    int
	ServerId  int
	RoleId    sql.NullInt64
	Username  string
	Status    string
	CreatedAt time.Time
}

type ServerInvite struct {
	Id         int
	SenderId   int
	ReceiverId int
	ServerId   int
	ServerName string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Friendship struct {
	Id         int
	SenderId   int
	ReceiverId int
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Message struct {
	Id        int
	ChannelId int
	UserId    int
	Content   string
	CreatedAt time.Time
}

type CreateUserParams struct {
	Username string
}

type CreateServerParams struct {
	Name              string
	ExternalId        string
	OwnerId           int
	ChannelName       string
	ChannelExternalId string
	AdminRoleName     string
	AdminPermissions  []string
	DefaultRoleName   string
}

type CreateRoleParams struct {
	ServerId    int
	Name        string
	Permissions []string
}

type UpdateRoleParams struct {
	RoleId      int
	Name        string
	Permissions []string
}

type CreateChannelParams struct {
	ServerId   int
	ExternalId string
	Name       string
	Kind       string
}
