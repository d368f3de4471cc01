package database

import (
	"github.com/stretchr/testify/mock"
)

type MockGuildRepository struct {
	mock.Mock
}

func (m *MockGuildRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGuildRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGuildRepository) GetUserById(id int) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGuildRepository) UpdateUserStatus(id int, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}
func (m *MockGuildRepository) CreateServer(params CreateServerParams) (Server, error) {
	args := m.Called(params)
	return args.Get(0).(Server), args.Error(1)
}
func (m *MockGuildRepository) GetServerById(id int) (Server, error) {
	args := m.Called(id)
	return args.Get(0).(Server), args.Error(1)
}
func (m *MockGuildRepository) GetServerByExternalId(externalId string) (Server, error) {
	args := m.Called(externalId)
	return args.Get(0).(Server), args.Error(1)
}
func (m *MockGuildRepository) GetServerWithMembers(id int) (*Server, error) {
	args := m.Called(id)
	if server, ok := args.Get(0).(*Server); ok {
		return server, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGuildRepository) ListServersForUser(userId int) ([]Server, error) {
	args := m.Called(userId)
	return args.Get(0).([]Server), args.Error(1)
}
func (m *MockGuildRepository) UpdateServerName(id int, name string) (Server, error) {
	args := m.Called(id, name)
	return args.Get(0).(Server), args.Error(1)
}
func (m *MockGuildRepository) DeleteServer(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGuildRepository) CreateMember(userId, serverId int, roleId *int) (Member, error) {
	args := m.Called(userId, serverId, roleId)
	return args.Get(0).(Member), args.Error(1)
}
func (m *MockGuildRepository) GetMember(serverId, userId int) (Member, error) {
	args := m.Called(serverId, userId)
	return args.Get(0).(Member), args.Error(1)
}
func (m *MockGuildRepository) GetMemberById(id int) (Member, error) {
	args := m.Called(id)
	return args.Get(0).(Member), args.Error(1)
}
func (m *MockGuildRepository) MemberExists(serverId, userId int) (bool, error) {
	args := m.Called(serverId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockGuildRepository) DeleteMember(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGuildRepository) GetRoleById(id int) (Role, error) {
	args := m.Called(id)
	return args.Get(0).(Role), args.Error(1)
}
func (m *MockGuildRepository) GetDefaultRole(serverId int) (Role, error) {
	args := m.Called(serverId)
	return args.Get(0).(Role), args.Error(1)
}
func (m *MockGuildRepository) ListRoles(serverId int) ([]Role, error) {
	args := m.Called(serverId)
	return args.Get(0).([]Role), args.Error(1)
}
func (m *MockGuildRepository) CreateRole(params CreateRoleParams) (Role, error) {
	args := m.Called(params)
	return args.Get(0).(Role), args.Error(1)
}
func (m *MockGuildRepository) UpdateRole(params UpdateRoleParams) (Role, error) {
	args := m.Called(params)
	return args.Get(0).(Role), args.Error(1)
}
func (m *MockGuildRepository) DeleteRole(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGuildRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	args := m.Called(params)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockGuildRepository) GetChannelByExternalId(externalId string) (Channel, error) {
	args := m.Called(externalId)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockGuildRepository) ListChannels(serverId int) ([]Channel, error) {
	args := m.Called(serverId)
	return args.Get(0).([]Channel), args.Error(1)
}
func (m *MockGuildRepository) UpdateChannelName(id int, name string) (Channel, error) {
	args := m.Called(id, name)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockGuildRepository) DeleteChannel(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGuildRepository) CountChannels(serverId int) (int, error) {
	args := m.Called(serverId)
	return args.Int(0), args.Error(1)
}
func (m *MockGuildRepository) CreateInvite(senderId, receiverId, serverId int) (ServerInvite, error) {
	args := m.Called(senderId, receiverId, serverId)
	return args.Get(0).(ServerInvite), args.Error(1)
}
func (m *MockGuildRepository) GetInviteById(id int) (ServerInvite, error) {
	args := m.Called(id)
	return args.Get(0).(ServerInvite), args.Error(1)
}
func (m *MockGuildRepository) HasPendingInvite(senderId, receiverId, serverId int) (bool, error) {
	args := m.Called(senderId, receiverId, serverId)
	return args.Bool(0), args.Error(1)
}
func (m *MockGuildRepository) AcceptInvite(inviteId int) (Member, error) {
	args := m.Called(inviteId)
	return args.Get(0).(Member), args.Error(1)
}
func (m *MockGuildRepository) UpdateInviteStatus(id int, status string) (ServerInvite, error) {
	args := m.Called(id, status)
	return args.Get(0).(ServerInvite), args.Error(1)
}
func (m *MockGuildRepository) DeleteInvite(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGuildRepository) ListInvitesForReceiver(receiverId int) ([]ServerInvite, error) {
	args := m.Called(receiverId)
	return args.Get(0).([]ServerInvite), args.Error(1)
}
func (m *MockGuildRepository) ListInvitesForSender(senderId int) ([]ServerInvite, error) {
	args := m.Called(senderId)
	return args.Get(0).([]ServerInvite), args.Error(1)
}
func (m *MockGuildRepository) CreateFriendship(senderId, receiverId int) (Friendship, error) {
	args := m.Called(senderId, receiverId)
	return args.Get(0).(Friendship), args.Error(1)
}
func (m *MockGuildRepository) GetFriendshipById(id int) (Friendship, error) {
	args := m.Called(id)
	return args.Get(0).(Friendship), args.Error(1)
}
func (m *MockGuildRepository) GetFriendshipBetween(a, b int) (Friendship, error) {
	args := m.Called(a, b)
	return args.Get(0).(Friendship), args.Error(1)
}
func (m *MockGuildRepository) UpdateFriendshipStatus(id int, status string) (Friendship, error) {
	args := m.Called(id, status)
	return args.Get(0).(Friendship), args.Error(1)
}
func (m *MockGuildRepository) DeleteFriendship(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGuildRepository) ListFriends(userId int) ([]User, error) {
	args := m.Called(userId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockGuildRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockGuildRepository) GetMessages(channelId, since, before, limit int) ([]Message, error) {
	args := m.Called(channelId, since, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
