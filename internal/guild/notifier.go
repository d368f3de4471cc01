package guild

import (
	"github.com/stretchr/testify/mock"
)

// Server-originated event names carried over the gateway.
const (
	EventMessage = "message"

	EventUserStatus = "user:status"

	EventServerUpdated = "server:updated"
	EventServerDeleted = "server:deleted"

	EventChannelCreated = "channel:created"
	EventChannelUpdated = "channel:updated"
	EventChannelDeleted = "channel:deleted"

	EventMemberJoined  = "member:joined"
	EventMemberLeft    = "member:left"
	EventMemberRemoved = "member:removed"

	EventInviteReceived  = "serverInvite:received"
	EventInviteAccepted  = "serverInvite:accepted"
	EventInviteRejected  = "serverInvite:rejected"
	EventInviteCancelled = "serverInvite:cancelled"

	EventFriendRequestReceived  = "friendRequest:received"
	EventFriendRequestResponded = "friendRequest:responded"
	EventFriendRequestCancelled = "friendRequest:cancelled"
	EventFriendshipRemoved      = "friendship:removed"
)

// Notifier is the broadcaster handle the services use to fan state
// changes out to connected clients and to revoke live channel
// subscriptions when access ends. The gateway implements it; it is
// constructed once at startup and passed by reference, never reached
// through a global.
type Notifier interface {
	EmitToUser(userId int, event string, payload any)
	EmitToChannel(channelId string, event string, payload any)
	BroadcastAll(event string, payload any)
	EvictUserFromChannelRooms(userId int, channelIds []string)
	DropChannelRoom(channelId string)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) EmitToUser(userId int, event string, payload any) {
	m.Called(userId, event, payload)
}

func (m *MockNotifier) EmitToChannel(channelId string, event string, payload any) {
	m.Called(channelId, event, payload)
}

func (m *MockNotifier) BroadcastAll(event string, payload any) {
	m.Called(event, payload)
}

func (m *MockNotifier) EvictUserFromChannelRooms(userId int, channelIds []string) {
	m.Called(userId, channelIds)
}

func (m *MockNotifier) DropChannelRoom(channelId string) {
	m.Called(channelId)
}
