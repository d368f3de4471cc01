package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/acrowley/go-guild/internal/database"
	"github.com/acrowley/go-guild/internal/permissions"
	"github.com/acrowley/go-guild/internal/types"
)

type CreateServerRequest struct {
	Name string `json:"name"`
}

type RenameServerRequest struct {
	Name string `json:"name"`
}

type CreateChannelRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type UpdateChannelRequest struct {
	Name string `json:"name"`
}

type RoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (s *GuildApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func serverResponse(srv database.Server) types.Server {
	resp := types.Server{
		Id:         srv.Id,
		ExternalId: srv.ExternalId,
		Name:       srv.Name,
		OwnerId:    srv.OwnerId,
		CreatedAt:  srv.CreatedAt,
		UpdatedAt:  srv.UpdatedAt,
	}

	for _, m := range srv.Members {
		resp.Members = append(resp.Members, memberResponse(m))
	}

	return resp
}

func memberResponse(m database.Member) types.Member {
	member := types.Member{
		Id:       m.Id,
		ServerId: m.ServerId,
		User: types.User{
			Id:       m.UserId,
			Username: m.Username,
			Status:   types.UserStatus(m.Status),
		},
		JoinedAt: m.CreatedAt,
	}

	if m.RoleId.Valid {
		member.RoleId = int(m.RoleId.Int64)
	}

	return member
}

func channelResponse(ch database.Channel) types.Channel {
	return types.Channel{
		Id:         ch.Id,
		ExternalId: ch.ExternalId,
		ServerId:   ch.ServerId,
		Name:       ch.Name,
		Kind:       types.ChannelKind(ch.Kind),
		CreatedAt:  ch.CreatedAt,
	}
}

func roleResponse(role database.Role) types.Role {
	return types.Role{
		Id:          role.Id,
		ServerId:    role.ServerId,
		Name:        role.Name,
		Permissions: role.Permissions,
		IsDefault:   role.IsDefault,
	}
}

func inviteResponse(inv database.ServerInvite) types.ServerInvite {
	return types.ServerInvite{
		Id:         inv.Id,
		SenderId:   inv.SenderId,
		ReceiverId: inv.ReceiverId,
		ServerId:   inv.ServerId,
		ServerName: inv.ServerName,
		Status:     types.InviteStatus(inv.Status),
		CreatedAt:  inv.CreatedAt,
	}
}

func friendshipResponse(f database.Friendship) types.Friendship {
	return types.Friendship{
		Id:         f.Id,
		SenderId:   f.SenderId,
		ReceiverId: f.ReceiverId,
		Status:     types.FriendshipStatus(f.Status),
		CreatedAt:  f.CreatedAt,
	}
}

// serverFromPath resolves the {id} path segment, which carries the
// server's external id.
func (s *GuildApp) serverFromPath(r *http.Request) (database.Server, *ApiError) {
	srv, err := s.membership.GetServer(r.PathValue("id"))
	if err != nil {
		return database.Server{}, fromServiceError(err)
	}

	return srv, nil
}

// requirePermission resolves the requester's effective permission set
// and answers Forbidden when the named permission is missing.
func (s *GuildApp) requirePermission(srv database.Server, userId int, perm permissions.Permission) *ApiError {
	ok, err := s.evaluator.HasPermission(srv, userId, perm)
	if err != nil {
		return NewInternalServerError(err)
	}

	if !ok {
		return NewForbiddenError()
	}

	return nil
}

func (s *GuildApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.log.Printf("write health response: %v", err)
	}
}

func (s *GuildApp) createServer(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	serverId, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channelId, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, err := s.membership.CreateServer(userId, req.Name, serverId, channelId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, serverResponse(srv))
}

func (s *GuildApp) listServers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbServers, err := s.membership.ListServers(userId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var servers []types.Server
	for _, srv := range dbServers {
		servers = append(servers, serverResponse(srv))
	}

	s.writeJson(w, http.StatusOK, servers)
}

func (s *GuildApp) getServer(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	isMember, err := s.db.MemberExists(srv.Id, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !isMember {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	full, err := s.membership.GetServerWithMembers(srv.Id)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := serverResponse(*full)

	channels, err := s.membership.ListChannels(srv.Id)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	for _, ch := range channels {
		resp.Channels = append(resp.Channels, channelResponse(ch))
	}

	roles, err := s.membership.ListRoles(srv.Id)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	for _, role := range roles {
		resp.Roles = append(resp.Roles, roleResponse(role))
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *GuildApp) renameServer(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.RenameServer); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RenameServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.membership.RenameServer(srv.Id, req.Name)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, serverResponse(updated))
}

func (s *GuildApp) deleteServer(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.DeleteServer); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.membership.DeleteServer(srv); err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *GuildApp) joinServer(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	member, err := s.membership.JoinServer(srv.Id, userId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, memberResponse(member))
}

func (s *GuildApp) leaveServer(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.membership.LeaveServer(srv.Id, userId); err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *GuildApp) removeMember(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	memberId, err := strconv.Atoi(r.PathValue("memberId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.RemoveMember); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.membership.RemoveMember(srv.Id, memberId, userId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, serverResponse(*updated))
}

func (s *GuildApp) createChannel(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.CreateChannel); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channel, err := s.membership.CreateChannel(srv.Id, sid, req.Name, req.Kind)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, channelResponse(channel))
}

func (s *GuildApp) listChannels(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	isMember, err := s.db.MemberExists(srv.Id, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !isMember {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbChannels, err := s.membership.ListChannels(srv.Id)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var channels []types.Channel
	for _, ch := range dbChannels {
		channels = append(channels, channelResponse(ch))
	}

	s.writeJson(w, http.StatusOK, channels)
}

// channelFromPath resolves {channelId} and verifies the channel belongs
// to the server from the route.
func (s *GuildApp) channelFromPath(r *http.Request, srv database.Server) (database.Channel, *ApiError) {
	channel, err := s.membership.GetChannel(r.PathValue("channelId"))
	if err != nil {
		return database.Channel{}, fromServiceError(err)
	}

	if channel.ServerId != srv.Id {
		return database.Channel{}, NewNotFoundError()
	}

	return channel, nil
}

func (s *GuildApp) updateChannel(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.CreateChannel); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channel, errResp := s.channelFromPath(r, srv)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.membership.UpdateChannel(channel, req.Name)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, channelResponse(updated))
}

func (s *GuildApp) deleteChannel(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.DeleteChannel); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channel, errResp := s.channelFromPath(r, srv)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.membership.DeleteChannel(channel); err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *GuildApp) listRoles(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	isMember, err := s.db.MemberExists(srv.Id, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !isMember {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRoles, err := s.membership.ListRoles(srv.Id)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var roles []types.Role
	for _, role := range dbRoles {
		roles = append(roles, roleResponse(role))
	}

	s.writeJson(w, http.StatusOK, roles)
}

func (s *GuildApp) createRole(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.ManageRoles); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	role, err := s.membership.CreateRole(srv.Id, req.Name, req.Permissions)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, roleResponse(role))
}

func (s *GuildApp) updateRole(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.ManageRoles); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roleId, err := strconv.Atoi(r.PathValue("roleId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	role, err := s.membership.UpdateRole(srv.Id, roleId, req.Name, req.Permissions)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roleResponse(role))
}

func (s *GuildApp) deleteRole(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	srv, errResp := s.serverFromPath(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if errResp := s.requirePermission(srv, userId, permissions.ManageRoles); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roleId, err := strconv.Atoi(r.PathValue("roleId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.membership.DeleteRole(srv.Id, roleId); err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *GuildApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("channel_id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channel, err := s.membership.GetChannel(externalId)
	if err != nil {
		errResp := fromServiceError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	isMember, err := s.db.MemberExists(channel.ServerId, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !isMember {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var before, after, limit int

	beforeStr := r.URL.Query().Get("before")
	if beforeStr != "" {
		before, err = strconv.Atoi(beforeStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	afterStr := r.URL.Query().Get("after")
	if afterStr != "" {
		after, err = strconv.Atoi(afterStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	messages, err := s.db.GetMessages(channel.Id, after, before, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var channelMessages []types.Message
	for _, msg := range messages {
		channelMessages = append(channelMessages, types.Message{
			Id:        msg.Id,
			ChannelId: channel.ExternalId,
			UserId:    msg.UserId,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, channelMessages)
}

// serveWs upgrades the connection and hands it to the gateway. The
// handshake token is optional here: an unauthenticated socket stays
// open and every event it sends is refused until it reconnects with a
// valid token.
func (s *GuildApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	s.gw.HandleConnection(conn, handshakeToken(r))
}
