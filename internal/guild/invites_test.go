package guild

import (
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/acrowley/go-guild/internal/database"
	"github.com/acrowley/go-guild/internal/testutil"
)

func newTestInviteService(t *testing.T, db database.GuildRepository, n Notifier) *InviteService {
	return NewInviteService(testutil.TestLogger(t), db, n)
}

func TestSendInvite(t *testing.T) {
	server := database.Server{Id: 1, OwnerId: 7}
	invite := database.ServerInvite{Id: 20, SenderId: 7, ReceiverId: 2, ServerId: 1, Status: "PENDING"}

	t.Run("sends invite and notifies receiver", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 7).Return(true, nil).Once()
		db.On("GetUserById", 2).Return(database.User{Id: 2}, nil).Once()
		db.On("MemberExists", 1, 2).Return(false, nil).Once()
		db.On("HasPendingInvite", 7, 2, 1).Return(false, nil).Once()
		db.On("CreateInvite", 7, 2, 1).Return(invite, nil).Once()
		n.On("EmitToUser", 2, EventInviteReceived, invite).Once()

		svc := newTestInviteService(t, db, n)
		got, err := svc.Send(7, 2, 1)
		assert.NoError(t, err)
		assert.Equal(t, invite, got)
	})

	t.Run("cannot invite yourself", func(t *testing.T) {
		svc := newTestInviteService(t, &database.MockGuildRepository{}, &MockNotifier{})
		_, err := svc.Send(7, 7, 1)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})

	t.Run("fails when sender is not a member", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 7).Return(false, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Send(7, 2, 1)
		assert.Equal(t, KindForbidden, KindOf(err))
	})

	t.Run("fails when receiver does not exist", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 7).Return(true, nil).Once()
		db.On("GetUserById", 2).Return(database.User{}, sql.ErrNoRows).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Send(7, 2, 1)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("fails when receiver is already a member", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 7).Return(true, nil).Once()
		db.On("GetUserById", 2).Return(database.User{Id: 2}, nil).Once()
		db.On("MemberExists", 1, 2).Return(true, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Send(7, 2, 1)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("fails when an invite is already pending", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 7).Return(true, nil).Once()
		db.On("GetUserById", 2).Return(database.User{Id: 2}, nil).Once()
		db.On("MemberExists", 1, 2).Return(false, nil).Once()
		db.On("HasPendingInvite", 7, 2, 1).Return(true, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Send(7, 2, 1)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("maps a pending-invite race to conflict", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 7).Return(true, nil).Once()
		db.On("GetUserById", 2).Return(database.User{Id: 2}, nil).Once()
		db.On("MemberExists", 1, 2).Return(false, nil).Once()
		db.On("HasPendingInvite", 7, 2, 1).Return(false, nil).Once()
		db.On("CreateInvite", 7, 2, 1).Return(database.ServerInvite{}, &pq.Error{Code: "23505"}).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Send(7, 2, 1)
		assert.Equal(t, KindConflict, KindOf(err))
	})
}

func TestAcceptInvite(t *testing.T) {
	invite := database.ServerInvite{Id: 20, SenderId: 7, ReceiverId: 2, ServerId: 1, Status: "PENDING"}
	member := database.Member{Id: 10, UserId: 2, ServerId: 1}

	t.Run("accepts and notifies", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		server := &database.Server{Id: 1, Members: []database.Member{{UserId: 7}, member}}

		// the sender sees the invite in its post-transition state
		accepted := invite
		accepted.Status = "ACCEPTED"

		db.On("GetInviteById", 20).Return(invite, nil).Once()
		db.On("AcceptInvite", 20).Return(member, nil).Once()
		db.On("GetServerWithMembers", 1).Return(server, nil).Once()
		n.On("EmitToUser", 7, EventInviteAccepted, accepted).Once()
		// the new member is not told about their own join
		n.On("EmitToUser", 7, EventMemberJoined, member).Once()

		svc := newTestInviteService(t, db, n)
		got, err := svc.Accept(20, 2)
		assert.NoError(t, err)
		assert.Equal(t, server, got)
	})

	t.Run("only the receiver can accept", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetInviteById", 20).Return(invite, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Accept(20, 7)
		assert.Equal(t, KindForbidden, KindOf(err))
	})

	t.Run("second accept fails", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		accepted := invite
		accepted.Status = "ACCEPTED"
		db.On("GetInviteById", 20).Return(accepted, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Accept(20, 2)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})

	t.Run("concurrent accept loses the race", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetInviteById", 20).Return(invite, nil).Once()
		db.On("AcceptInvite", 20).Return(database.Member{}, database.ErrNotPending).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Accept(20, 2)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})

	t.Run("fails when invite does not exist", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetInviteById", 20).Return(database.ServerInvite{}, sql.ErrNoRows).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Accept(20, 2)
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestRejectInvite(t *testing.T) {
	invite := database.ServerInvite{Id: 20, SenderId: 7, ReceiverId: 2, ServerId: 1, Status: "PENDING"}

	t.Run("rejects and notifies sender", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		rejected := invite
		rejected.Status = "REJECTED"
		db.On("GetInviteById", 20).Return(invite, nil).Once()
		db.On("UpdateInviteStatus", 20, "REJECTED").Return(rejected, nil).Once()
		n.On("EmitToUser", 7, EventInviteRejected, rejected).Once()

		svc := newTestInviteService(t, db, n)
		got, err := svc.Reject(20, 2)
		assert.NoError(t, err)
		assert.Equal(t, rejected, got)
	})

	t.Run("only the receiver can reject", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetInviteById", 20).Return(invite, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		_, err := svc.Reject(20, 7)
		assert.Equal(t, KindForbidden, KindOf(err))
	})
}

func TestCancelInvite(t *testing.T) {
	invite := database.ServerInvite{Id: 20, SenderId: 7, ReceiverId: 2, ServerId: 1, Status: "PENDING"}

	t.Run("cancels and notifies receiver", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		db.On("GetInviteById", 20).Return(invite, nil).Once()
		db.On("DeleteInvite", 20).Return(nil).Once()
		n.On("EmitToUser", 2, EventInviteCancelled, invite).Once()

		svc := newTestInviteService(t, db, n)
		assert.NoError(t, svc.Cancel(20, 7))
	})

	t.Run("only the sender can cancel", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetInviteById", 20).Return(invite, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		err := svc.Cancel(20, 2)
		assert.Equal(t, KindForbidden, KindOf(err))
	})

	t.Run("cannot cancel a decided invite", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		rejected := invite
		rejected.Status = "REJECTED"
		db.On("GetInviteById", 20).Return(rejected, nil).Once()

		svc := newTestInviteService(t, db, &MockNotifier{})
		err := svc.Cancel(20, 7)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})
}
