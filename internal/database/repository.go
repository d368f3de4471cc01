package database

type GuildRepository interface {
	Ping() error

	CreateUser(params CreateUserParams) (User, error)
	GetUserById(id int) (User, error)
	UpdateUserStatus(id int, status string) error

	CreateServer(params CreateServerParams) (Server, error)
	GetServerById(id int) (Server, error)
	GetServerByExternalId(externalId string) (Server, error)
	GetServerWithMembers(id int) (*Server, error)
	ListServersForUser(userId int) ([]Server, error)
	UpdateServerName(id int, name string) (Server, error)
	DeleteServer(id int) error

	CreateMember(userId, serverId int, roleId *int) (Member, error)
	GetMember(serverId, userId int) (Member, error)
	GetMemberById(id int) (Member, error)
	MemberExists(serverId, userId int) (bool, error)
	DeleteMember(id int) error

	GetRoleById(id int) (Role, error)
	GetDefaultRole(serverId int) (Role, error)
	ListRoles(serverId int) ([]Role, error)
	CreateRole(params CreateRoleParams) (Role, error)
	UpdateRole(params UpdateRoleParams) (Role, error)
	DeleteRole(id int) error

	CreateChannel(params CreateChannelParams) (Channel, error)
	GetChannelByExternalId(externalId string) (Channel, error)
	ListChannels(serverId int) ([]Channel, error)
	UpdateChannelName(id int, name string) (Channel, error)
	DeleteChannel(id int) error
	CountChannels(serverId int) (int, error)

	CreateInvite(senderId, receiverId, serverId int) (ServerInvite, error)
	GetInviteById(id int) (ServerInvite, error)
	HasPendingInvite(senderId, receiverId, serverId int) (bool, error)
	AcceptInvite(inviteId int) (Member, error)
	UpdateInviteStatus(id int, status string) (ServerInvite, error)
	DeleteInvite(id int) error
	ListInvitesForReceiver(receiverId int) ([]ServerInvite, error)
	ListInvitesForSender(senderId int) ([]ServerInvite, error)

	CreateFriendship(senderId, receiverId int) (Friendship, error)
	GetFriendshipById(id int) (Friendship, error)
	GetFriendshipBetween(a, b int) (Friendship, error)
	UpdateFriendshipStatus(id int, status string) (Friendship, error)
	DeleteFriendship(id int) error
	ListFriends(userId int) ([]User, error)

	CreateMessage(msg Message) (Message, error)
	GetMessages(channelId, since, before, limit int) ([]Message, error)
}
