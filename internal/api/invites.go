package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/acrowley/go-guild/internal/database"
	"github.com/acrowley/go-guild/internal/types"
)

type SendInviteRequest struct {
	ReceiverId int `json:"receiver_id"`
	ServerId   int `json:"server_id"`
}

func (s *GuildApp) sendInvite(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverId == 0 || req.ServerId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invite, err := s.invites.Send(userId, req.ReceiverId, req.ServerId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, inviteResponse(invite))
}

func (s *GuildApp) listInvites(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var dbInvites []database.ServerInvite
	var err error

	switch direction := r.URL.Query().Get("direction"); direction {
	case "", "received":
		dbInvites, err = s.invites.ListPendingForReceiver(userId)
	case "sent":
		dbInvites, err = s.invites.ListPendingForSender(userId)
	default:
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var invites []types.ServerInvite
	for _, inv := range dbInvites {
		invites = append(invites, inviteResponse(inv))
	}

	s.writeJson(w, http.StatusOK, invites)
}

func (s *GuildApp) acceptInvite(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inviteId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, err := s.invites.Accept(inviteId, userId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, serverResponse(*srv))
}

func (s *GuildApp) rejectInvite(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inviteId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invite, err := s.invites.Reject(inviteId, userId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, inviteResponse(invite))
}

func (s *GuildApp) cancelInvite(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inviteId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.invites.Cancel(inviteId, userId); err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}
