package guild

import (
	"database/sql"
	"errors"
	"log"

	"github.com/acrowley/go-guild/internal/database"
)

// InviteService drives the server-invite state machine:
// PENDING -> ACCEPTED | REJECTED, or deleted via cancellation while
// still PENDING. Terminal rows are retained and never transition
// again.
type InviteService struct {
	db       database.GuildRepository
	notifier Notifier
	log      *log.Logger
}

func NewInviteService(logger *log.Logger, db database.GuildRepository, n Notifier) *InviteService {
	return &InviteService{
		db:       db,
		notifier: n,
		log:      logger,
	}
}

func (s *InviteService) Send(senderId, receiverId, serverId int) (database.ServerInvite, error) {
	if senderId == receiverId {
		return database.ServerInvite{}, BadRequest("cannot invite yourself")
	}

	if _, err := s.db.GetServerById(serverId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ServerInvite{}, NotFound("server not found")
		}
		return database.ServerInvite{}, Internal(err)
	}

	senderMember, err := s.db.MemberExists(serverId, senderId)
	if err != nil {
		return database.ServerInvite{}, Internal(err)
	}
	if !senderMember {
		return database.ServerInvite{}, Forbidden("only members can send invites")
	}

	if _, err := s.db.GetUserById(receiverId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ServerInvite{}, NotFound("user not found")
		}
		return database.ServerInvite{}, Internal(err)
	}

	receiverMember, err := s.db.MemberExists(serverId, receiverId)
	if err != nil {
		return database.ServerInvite{}, Internal(err)
	}
	if receiverMember {
		return database.ServerInvite{}, Conflict("user is already a member of this server")
	}

	pending, err := s.db.HasPendingInvite(senderId, receiverId, serverId)
	if err != nil {
		return database.ServerInvite{}, Internal(err)
	}
	if pending {
		return database.ServerInvite{}, Conflict("an invite is already pending")
	}

	invite, err := s.db.CreateInvite(senderId, receiverId, serverId)
	if err != nil {
		// the partial unique index catches the race between the
		// pending pre-check and the insert
		if database.IsUniqueViolation(err) {
			return database.ServerInvite{}, Conflict("an invite is already pending")
		}
		return database.ServerInvite{}, Internal(err)
	}

	s.notifier.EmitToUser(receiverId, EventInviteReceived, invite)

	return invite, nil
}

// Accept transitions the invite to ACCEPTED and creates the member row
// in one store transaction; a second accept of the same invite fails
// with BadRequest.
func (s *InviteService) Accept(inviteId, userId int) (*database.Server, error) {
	invite, err := s.db.GetInviteById(inviteId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("invite not found")
	}
	if err != nil {
		return nil, Internal(err)
	}

	if invite.ReceiverId != userId {
		return nil, Forbidden("only the receiver can accept an invite")
	}

	if invite.Status != "PENDING" {
		return nil, BadRequest("invite is no longer pending")
	}

	member, err := s.db.AcceptInvite(inviteId)
	if errors.Is(err, database.ErrNotPending) {
		return nil, BadRequest("invite is no longer pending")
	}
	if database.IsUniqueViolation(err) {
		return nil, Conflict("already a member of this server")
	}
	if err != nil {
		return nil, Internal(err)
	}

	invite.Status = "ACCEPTED"
	s.notifier.EmitToUser(invite.SenderId, EventInviteAccepted, invite)

	server, err := s.db.GetServerWithMembers(invite.ServerId)
	if err != nil {
		return nil, Internal(err)
	}

	for _, m := range server.Members {
		if m.UserId == member.UserId {
			continue
		}
		s.notifier.EmitToUser(m.UserId, EventMemberJoined, member)
	}

	return server, nil
}

func (s *InviteService) Reject(inviteId, userId int) (database.ServerInvite, error) {
	invite, err := s.db.GetInviteById(inviteId)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ServerInvite{}, NotFound("invite not found")
	}
	if err != nil {
		return database.ServerInvite{}, Internal(err)
	}

	if invite.ReceiverId != userId {
		return database.ServerInvite{}, Forbidden("only the receiver can reject an invite")
	}

	if invite.Status != "PENDING" {
		return database.ServerInvite{}, BadRequest("invite is no longer pending")
	}

	updated, err := s.db.UpdateInviteStatus(inviteId, "REJECTED")
	if errors.Is(err, database.ErrNotPending) {
		return database.ServerInvite{}, BadRequest("invite is no longer pending")
	}
	if err != nil {
		return database.ServerInvite{}, Internal(err)
	}

	s.notifier.EmitToUser(invite.SenderId, EventInviteRejected, updated)

	return updated, nil
}

func (s *InviteService) Cancel(inviteId, userId int) error {
	invite, err := s.db.GetInviteById(inviteId)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("invite not found")
	}
	if err != nil {
		return Internal(err)
	}

	if invite.SenderId != userId {
		return Forbidden("only the sender can cancel an invite")
	}

	if invite.Status != "PENDING" {
		return BadRequest("invite is no longer pending")
	}

	if err := s.db.DeleteInvite(inviteId); err != nil {
		return Internal(err)
	}

	s.notifier.EmitToUser(invite.ReceiverId, EventInviteCancelled, invite)

	return nil
}

func (s *InviteService) ListPendingForReceiver(receiverId int) ([]database.ServerInvite, error) {
	invites, err := s.db.ListInvitesForReceiver(receiverId)
	if err != nil {
		return nil, Internal(err)
	}

	return invites, nil
}

func (s *InviteService) ListPendingForSender(senderId int) ([]database.ServerInvite, error) {
	invites, err := s.db.ListInvitesForSender(senderId)
	if err != nil {
		return nil, Internal(err)
	}

	return invites, nil
}
