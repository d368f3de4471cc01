package guild

import (
	"database/sql"
	"errors"
	"log"

	"github.com/acrowley/go-guild/internal/database"
)

// FriendshipService drives the peer-to-peer relationship state
// machine. One row exists per unordered pair regardless of direction;
// a prior REJECTED row blocks re-sending.
type FriendshipService struct {
	db       database.GuildRepository
	notifier Notifier
	log      *log.Logger
}

func NewFriendshipService(logger *log.Logger, db database.GuildRepository, n Notifier) *FriendshipService {
	return &FriendshipService{
		db:       db,
		notifier: n,
		log:      logger,
	}
}

func (s *FriendshipService) SendRequest(senderId, receiverId int) (database.Friendship, error) {
	if senderId == receiverId {
		return database.Friendship{}, BadRequest("cannot send a friend request to yourself")
	}

	if _, err := s.db.GetUserById(receiverId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Friendship{}, NotFound("user not found")
		}
		return database.Friendship{}, Internal(err)
	}

	existing, err := s.db.GetFriendshipBetween(senderId, receiverId)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return database.Friendship{}, Internal(err)
	}
	if err == nil {
		switch existing.Status {
		case "PENDING":
			return database.Friendship{}, Conflict("a friend request is already pending")
		case "ACCEPTED":
			return database.Friendship{}, Conflict("already friends")
		default:
			return database.Friendship{}, Forbidden("a previous request was rejected")
		}
	}

	friendship, err := s.db.CreateFriendship(senderId, receiverId)
	if err != nil {
		// the unordered-pair unique index catches two users sending
		// requests to each other at the same time
		if database.IsUniqueViolation(err) {
			return database.Friendship{}, Conflict("a friend request is already pending")
		}
		return database.Friendship{}, Internal(err)
	}

	s.notifier.EmitToUser(receiverId, EventFriendRequestReceived, friendship)

	return friendship, nil
}

// Respond transitions a PENDING request to ACCEPTED or REJECTED. Only
// the receiver may respond.
func (s *FriendshipService) Respond(id, userId int, status string) (database.Friendship, error) {
	if status != "ACCEPTED" && status != "REJECTED" {
		return database.Friendship{}, BadRequest("status must be ACCEPTED or REJECTED")
	}

	friendship, err := s.db.GetFriendshipById(id)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Friendship{}, NotFound("friend request not found")
	}
	if err != nil {
		return database.Friendship{}, Internal(err)
	}

	if friendship.ReceiverId != userId {
		return database.Friendship{}, Forbidden("only the receiver can respond to a friend request")
	}

	if friendship.Status != "PENDING" {
		return database.Friendship{}, BadRequest("friend request is no longer pending")
	}

	updated, err := s.db.UpdateFriendshipStatus(id, status)
	if errors.Is(err, database.ErrNotPending) {
		return database.Friendship{}, BadRequest("friend request is no longer pending")
	}
	if err != nil {
		return database.Friendship{}, Internal(err)
	}

	s.notifier.EmitToUser(friendship.SenderId, EventFriendRequestResponded, updated)

	return updated, nil
}

// Remove deletes an ACCEPTED relationship; either party may do it.
func (s *FriendshipService) Remove(id, userId int) error {
	friendship, err := s.db.GetFriendshipById(id)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("friendship not found")
	}
	if err != nil {
		return Internal(err)
	}

	if friendship.SenderId != userId && friendship.ReceiverId != userId {
		return Forbidden("not a party to this friendship")
	}

	if friendship.Status != "ACCEPTED" {
		return BadRequest("friendship is not accepted")
	}

	if err := s.db.DeleteFriendship(id); err != nil {
		return Internal(err)
	}

	other := friendship.SenderId
	if other == userId {
		other = friendship.ReceiverId
	}
	s.notifier.EmitToUser(other, EventFriendshipRemoved, friendship)

	return nil
}

// Cancel deletes a PENDING request; only the original sender may do
// it.
func (s *FriendshipService) Cancel(id, userId int) error {
	friendship, err := s.db.GetFriendshipById(id)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("friend request not found")
	}
	if err != nil {
		return Internal(err)
	}

	if friendship.SenderId != userId {
		return Forbidden("only the sender can cancel a friend request")
	}

	if friendship.Status != "PENDING" {
		return BadRequest("friend request is no longer pending")
	}

	if err := s.db.DeleteFriendship(id); err != nil {
		return Internal(err)
	}

	s.notifier.EmitToUser(friendship.ReceiverId, EventFriendRequestCancelled, friendship)

	return nil
}

// ListFriends returns the counterpart of every ACCEPTED relationship
// involving userId.
func (s *FriendshipService) ListFriends(userId int) ([]database.User, error) {
	friends, err := s.db.ListFriends(userId)
	if err != nil {
		return nil, Internal(err)
	}

	return friends, nil
}
