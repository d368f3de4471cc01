package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/acrowley/go-guild/internal/types"
)

type SendFriendRequestRequest struct {
	ReceiverId int `json:"receiver_id"`
}

type RespondFriendRequestRequest struct {
	Status string `json:"status"`
}

func (s *GuildApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendFriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	friendship, err := s.friendships.SendRequest(userId, req.ReceiverId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, friendshipResponse(friendship))
}

func (s *GuildApp) listFriends(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbFriends, err := s.friendships.ListFriends(userId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var friends []types.User
	for _, friend := range dbFriends {
		friends = append(friends, types.User{
			Id:       friend.Id,
			Username: friend.Username,
			Status:   types.UserStatus(friend.Status),
		})
	}

	s.writeJson(w, http.StatusOK, friends)
}

func (s *GuildApp) respondFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RespondFriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	friendship, err := s.friendships.Respond(id, userId, req.Status)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, friendshipResponse(friendship))
}

// deleteFriendship removes an accepted friendship, or with ?cancel=true
// withdraws a pending request the caller sent.
func (s *GuildApp) deleteFriendship(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if r.URL.Query().Get("cancel") == "true" {
		err = s.friendships.Cancel(id, userId)
	} else {
		err = s.friendships.Remove(id, userId)
	}

	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}
