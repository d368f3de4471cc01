package guild

import (
	"database/sql"
	"errors"
	"log"

	"github.com/acrowley/go-guild/internal/database"
	"github.com/acrowley/go-guild/internal/permissions"
)

const (
	defaultChannelName = "general"
	adminRoleName      = "Admin"
	defaultRoleName    = "Member"
)

// MembershipService owns the server/member/role/channel relations.
// Permission gating happens at the transport layer via the evaluator;
// this service enforces the structural invariants (owner membership,
// member uniqueness, last-channel rule).
type MembershipService struct {
	db       database.GuildRepository
	notifier Notifier
	log      *log.Logger
}

func NewMembershipService(logger *log.Logger, db database.GuildRepository, n Notifier) *MembershipService {
	return &MembershipService{
		db:       db,
		notifier: n,
		log:      logger,
	}
}

// notifyMembers emits an event to the private user room of every
// current member of serverId.
func (s *MembershipService) notifyMembers(serverId int, event string, payload any) {
	server, err := s.db.GetServerWithMembers(serverId)
	if err != nil {
		s.log.Printf("notifyMembers: fetch members for server %d: %v", serverId, err)
		return
	}

	for _, m := range server.Members {
		s.notifier.EmitToUser(m.UserId, event, payload)
	}
}

// evictFromChannels revokes the user's live channel subscriptions on
// the server once their membership ends.
func (s *MembershipService) evictFromChannels(serverId, userId int) {
	channels, err := s.db.ListChannels(serverId)
	if err != nil {
		s.log.Printf("evictFromChannels: list channels for server %d: %v", serverId, err)
		return
	}

	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.ExternalId)
	}

	s.notifier.EvictUserFromChannelRooms(userId, ids)
}

// CreateServer creates the server with its "general" channel, Admin
// and Member roles and the owner's member row, all-or-nothing.
func (s *MembershipService) CreateServer(ownerId int, name, externalId, channelExternalId string) (database.Server, error) {
	if name == "" {
		return database.Server{}, BadRequest("server name cannot be empty")
	}

	server, err := s.db.CreateServer(database.CreateServerParams{
		Name:              name,
		ExternalId:        externalId,
		OwnerId:           ownerId,
		ChannelName:       defaultChannelName,
		ChannelExternalId: channelExternalId,
		AdminRoleName:     adminRoleName,
		AdminPermissions:  permissions.AllStrings(),
		DefaultRoleName:   defaultRoleName,
	})
	if err != nil {
		return database.Server{}, Internal(err)
	}

	return server, nil
}

func (s *MembershipService) GetServer(externalId string) (database.Server, error) {
	server, err := s.db.GetServerByExternalId(externalId)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Server{}, NotFound("server not found")
	}
	if err != nil {
		return database.Server{}, Internal(err)
	}

	return server, nil
}

func (s *MembershipService) GetServerWithMembers(serverId int) (*database.Server, error) {
	server, err := s.db.GetServerWithMembers(serverId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("server not found")
	}
	if err != nil {
		return nil, Internal(err)
	}

	return server, nil
}

func (s *MembershipService) ListServers(userId int) ([]database.Server, error) {
	servers, err := s.db.ListServersForUser(userId)
	if err != nil {
		return nil, Internal(err)
	}

	return servers, nil
}

// JoinServer adds userId as a member holding the server's default
// role. The unique index on (user_id, server_id) backstops the
// existence pre-check under concurrent joins.
func (s *MembershipService) JoinServer(serverId, userId int) (database.Member, error) {
	if _, err := s.db.GetServerById(serverId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Member{}, NotFound("server not found")
		}
		return database.Member{}, Internal(err)
	}

	exists, err := s.db.MemberExists(serverId, userId)
	if err != nil {
		return database.Member{}, Internal(err)
	}
	if exists {
		return database.Member{}, Conflict("already a member of this server")
	}

	member, err := s.db.CreateMember(userId, serverId, nil)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return database.Member{}, Conflict("already a member of this server")
		}
		return database.Member{}, Internal(err)
	}

	s.notifyMembers(serverId, EventMemberJoined, member)

	return member, nil
}

func (s *MembershipService) LeaveServer(serverId, userId int) error {
	server, err := s.db.GetServerById(serverId)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("server not found")
	}
	if err != nil {
		return Internal(err)
	}

	if server.OwnerId == userId {
		return BadRequest("owner cannot leave the server")
	}

	member, err := s.db.GetMember(serverId, userId)
	if errors.Is(err, sql.ErrNoRows) {
		return BadRequest("not a member of this server")
	}
	if err != nil {
		return Internal(err)
	}

	if err := s.db.DeleteMember(member.Id); err != nil {
		return Internal(err)
	}

	s.evictFromChannels(serverId, userId)
	s.notifyMembers(serverId, EventMemberLeft, member)

	return nil
}

// RemoveMember removes memberId from serverId on behalf of
// requesterId. Self-removal goes through LeaveServer instead. The
// REMOVE_MEMBER permission is checked by the caller.
func (s *MembershipService) RemoveMember(serverId, memberId, requesterId int) (*database.Server, error) {
	member, err := s.db.GetMemberById(memberId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("member not found")
	}
	if err != nil {
		return nil, Internal(err)
	}

	if member.ServerId != serverId {
		return nil, NotFound("member not found")
	}

	if member.UserId == requesterId {
		return nil, BadRequest("cannot remove yourself, leave the server instead")
	}

	server, err := s.db.GetServerById(serverId)
	if err != nil {
		return nil, Internal(err)
	}

	if member.UserId == server.OwnerId {
		return nil, BadRequest("cannot remove the server owner")
	}

	if err := s.db.DeleteMember(member.Id); err != nil {
		return nil, Internal(err)
	}

	s.evictFromChannels(serverId, member.UserId)
	s.notifier.EmitToUser(member.UserId, EventMemberRemoved, member)
	s.notifyMembers(serverId, EventMemberLeft, member)

	return s.GetServerWithMembers(serverId)
}

func (s *MembershipService) RenameServer(serverId int, name string) (database.Server, error) {
	if name == "" {
		return database.Server{}, BadRequest("server name cannot be empty")
	}

	server, err := s.db.UpdateServerName(serverId, name)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Server{}, NotFound("server not found")
	}
	if err != nil {
		return database.Server{}, Internal(err)
	}

	s.notifyMembers(serverId, EventServerUpdated, server)

	return server, nil
}

// DeleteServer cascades to members, channels, roles and invites.
// Irreversible. Member notifications are collected before the rows go
// away.
func (s *MembershipService) DeleteServer(server database.Server) error {
	detail, err := s.db.GetServerWithMembers(server.Id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Internal(err)
	}

	// the channel list is needed after the cascade wipes it
	channels, err := s.db.ListChannels(server.Id)
	if err != nil {
		return Internal(err)
	}

	if err := s.db.DeleteServer(server.Id); err != nil {
		return Internal(err)
	}

	for _, ch := range channels {
		s.notifier.DropChannelRoom(ch.ExternalId)
	}

	if detail != nil {
		for _, m := range detail.Members {
			s.notifier.EmitToUser(m.UserId, EventServerDeleted, server)
		}
	}

	return nil
}

func (s *MembershipService) CreateChannel(serverId int, externalId, name, kind string) (database.Channel, error) {
	if name == "" {
		return database.Channel{}, BadRequest("channel name cannot be empty")
	}

	if kind != "TEXT" && kind != "VOICE" {
		return database.Channel{}, BadRequest("channel kind must be TEXT or VOICE")
	}

	channel, err := s.db.CreateChannel(database.CreateChannelParams{
		ServerId:   serverId,
		ExternalId: externalId,
		Name:       name,
		Kind:       kind,
	})
	if err != nil {
		return database.Channel{}, Internal(err)
	}

	s.notifyMembers(serverId, EventChannelCreated, channel)

	return channel, nil
}

func (s *MembershipService) GetChannel(externalId string) (database.Channel, error) {
	channel, err := s.db.GetChannelByExternalId(externalId)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Channel{}, NotFound("channel not found")
	}
	if err != nil {
		return database.Channel{}, Internal(err)
	}

	return channel, nil
}

func (s *MembershipService) ListChannels(serverId int) ([]database.Channel, error) {
	channels, err := s.db.ListChannels(serverId)
	if err != nil {
		return nil, Internal(err)
	}

	return channels, nil
}

func (s *MembershipService) UpdateChannel(channel database.Channel, name string) (database.Channel, error) {
	if name == "" {
		return database.Channel{}, BadRequest("channel name cannot be empty")
	}

	updated, err := s.db.UpdateChannelName(channel.Id, name)
	if err != nil {
		return database.Channel{}, Internal(err)
	}

	s.notifyMembers(channel.ServerId, EventChannelUpdated, updated)

	return updated, nil
}

// DeleteChannel rejects deleting the server's last remaining channel;
// a server must retain at least one channel at all times.
func (s *MembershipService) DeleteChannel(channel database.Channel) error {
	count, err := s.db.CountChannels(channel.ServerId)
	if err != nil {
		return Internal(err)
	}

	if count <= 1 {
		return BadRequest("cannot delete the last channel of a server")
	}

	if err := s.db.DeleteChannel(channel.Id); err != nil {
		return Internal(err)
	}

	s.notifier.DropChannelRoom(channel.ExternalId)
	s.notifyMembers(channel.ServerId, EventChannelDeleted, channel)

	return nil
}

func (s *MembershipService) ListRoles(serverId int) ([]database.Role, error) {
	roles, err := s.db.ListRoles(serverId)
	if err != nil {
		return nil, Internal(err)
	}

	return roles, nil
}

func (s *MembershipService) CreateRole(serverId int, name string, perms []string) (database.Role, error) {
	if name == "" {
		return database.Role{}, BadRequest("role name cannot be empty")
	}

	for _, p := range perms {
		if !permissions.Valid(permissions.Permission(p)) {
			return database.Role{}, BadRequest("unknown permission: " + p)
		}
	}

	role, err := s.db.CreateRole(database.CreateRoleParams{
		ServerId:    serverId,
		Name:        name,
		Permissions: perms,
	})
	if err != nil {
		return database.Role{}, Internal(err)
	}

	return role, nil
}

func (s *MembershipService) UpdateRole(serverId, roleId int, name string, perms []string) (database.Role, error) {
	role, err := s.db.GetRoleById(roleId)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Role{}, NotFound("role not found")
	}
	if err != nil {
		return database.Role{}, Internal(err)
	}

	if role.ServerId != serverId {
		return database.Role{}, NotFound("role not found")
	}

	for _, p := range perms {
		if !permissions.Valid(permissions.Permission(p)) {
			return database.Role{}, BadRequest("unknown permission: " + p)
		}
	}

	updated, err := s.db.UpdateRole(database.UpdateRoleParams{
		RoleId:      roleId,
		Name:        name,
		Permissions: perms,
	})
	if err != nil {
		return database.Role{}, Internal(err)
	}

	return updated, nil
}

// DeleteRole refuses to delete the server's flagged default role.
// Members holding the deleted role fall back to the default role at
// evaluation time.
func (s *MembershipService) DeleteRole(serverId, roleId int) error {
	role, err := s.db.GetRoleById(roleId)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("role not found")
	}
	if err != nil {
		return Internal(err)
	}

	if role.ServerId != serverId {
		return NotFound("role not found")
	}

	if role.IsDefault {
		return BadRequest("cannot delete the default role")
	}

	if err := s.db.DeleteRole(roleId); err != nil {
		return Internal(err)
	}

	return nil
}
