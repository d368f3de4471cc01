package guild

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/acrowley/go-guild/internal/database"
	"github.com/acrowley/go-guild/internal/testutil"
)

func newTestMembershipService(t *testing.T, db database.GuildRepository, n Notifier) *MembershipService {
	return NewMembershipService(testutil.TestLogger(t), db, n)
}

func TestCreateServer(t *testing.T) {
	t.Run("creates server with default channel and roles", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		expected := database.Server{Id: 1, ExternalId: "srv-ext", Name: "gophers", OwnerId: 7}
		db.On("CreateServer", mock.MatchedBy(func(p database.CreateServerParams) bool {
			return p.Name == "gophers" &&
				p.OwnerId == 7 &&
				p.ChannelName == "general" &&
				p.AdminRoleName == "Admin" &&
				p.DefaultRoleName == "Member" &&
				len(p.AdminPermissions) > 0
		})).Return(expected, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		server, err := svc.CreateServer(7, "gophers", "srv-ext", "chan-ext")
		assert.NoError(t, err)
		assert.Equal(t, expected, server)
	})

	t.Run("fails with empty name", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.CreateServer(7, "", "srv-ext", "chan-ext")
		assert.Equal(t, KindBadRequest, KindOf(err))
	})
}

func TestJoinServer(t *testing.T) {
	server := database.Server{Id: 1, ExternalId: "srv-ext", Name: "gophers", OwnerId: 7}
	member := database.Member{Id: 10, UserId: 2, ServerId: 1}

	t.Run("joins and notifies members", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 2).Return(false, nil).Once()
		db.On("CreateMember", 2, 1, (*int)(nil)).Return(member, nil).Once()
		db.On("GetServerWithMembers", 1).Return(&database.Server{
			Id:      1,
			Members: []database.Member{{UserId: 7}, member},
		}, nil).Once()
		n.On("EmitToUser", 7, EventMemberJoined, member).Once()
		n.On("EmitToUser", 2, EventMemberJoined, member).Once()

		svc := newTestMembershipService(t, db, n)
		got, err := svc.JoinServer(1, 2)
		assert.NoError(t, err)
		assert.Equal(t, member, got)
	})

	t.Run("fails when server does not exist", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(database.Server{}, sql.ErrNoRows).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.JoinServer(1, 2)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("fails when already a member", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 2).Return(true, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.JoinServer(1, 2)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("maps a unique violation race to conflict", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 2).Return(false, nil).Once()
		db.On("CreateMember", 2, 1, (*int)(nil)).
			Return(database.Member{}, &pq.Error{Code: "23505"}).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.JoinServer(1, 2)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("surfaces a membership lookup failure", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("MemberExists", 1, 2).Return(false, errors.New("connection timed out")).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.JoinServer(1, 2)
		assert.Equal(t, KindInternal, KindOf(err))
	})
}

func TestLeaveServer(t *testing.T) {
	server := database.Server{Id: 1, OwnerId: 7}
	member := database.Member{Id: 10, UserId: 2, ServerId: 1}

	t.Run("leaves and notifies remaining members", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("GetMember", 1, 2).Return(member, nil).Once()
		db.On("DeleteMember", 10).Return(nil).Once()
		db.On("ListChannels", 1).Return([]database.Channel{
			{Id: 3, ExternalId: "chan-ext", ServerId: 1},
		}, nil).Once()
		db.On("GetServerWithMembers", 1).Return(&database.Server{
			Id:      1,
			Members: []database.Member{{UserId: 7}},
		}, nil).Once()
		n.On("EvictUserFromChannelRooms", 2, []string{"chan-ext"}).Once()
		n.On("EmitToUser", 7, EventMemberLeft, member).Once()

		svc := newTestMembershipService(t, db, n)
		assert.NoError(t, svc.LeaveServer(1, 2))
	})

	t.Run("owner cannot leave", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		err := svc.LeaveServer(1, 7)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})

	t.Run("fails when not a member", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("GetMember", 1, 2).Return(database.Member{}, sql.ErrNoRows).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		err := svc.LeaveServer(1, 2)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})
}

func TestRemoveMember(t *testing.T) {
	server := database.Server{Id: 1, OwnerId: 7}
	member := database.Member{Id: 10, UserId: 2, ServerId: 1}

	t.Run("removes member and notifies", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		remaining := &database.Server{Id: 1, Members: []database.Member{{UserId: 7}}}

		db.On("GetMemberById", 10).Return(member, nil).Once()
		db.On("GetServerById", 1).Return(server, nil).Once()
		db.On("DeleteMember", 10).Return(nil).Once()
		db.On("ListChannels", 1).Return([]database.Channel{
			{Id: 3, ExternalId: "chan-ext", ServerId: 1},
		}, nil).Once()
		// once to notify remaining members, once for the return value
		db.On("GetServerWithMembers", 1).Return(remaining, nil).Twice()
		n.On("EvictUserFromChannelRooms", 2, []string{"chan-ext"}).Once()
		n.On("EmitToUser", 2, EventMemberRemoved, member).Once()
		n.On("EmitToUser", 7, EventMemberLeft, member).Once()

		svc := newTestMembershipService(t, db, n)
		got, err := svc.RemoveMember(1, 10, 7)
		assert.NoError(t, err)
		assert.Equal(t, remaining, got)
	})

	t.Run("fails when member does not exist", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMemberById", 10).Return(database.Member{}, sql.ErrNoRows).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.RemoveMember(1, 10, 7)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("fails when member belongs to another server", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMemberById", 10).Return(database.Member{Id: 10, UserId: 2, ServerId: 99}, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.RemoveMember(1, 10, 7)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("cannot remove yourself", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetMemberById", 10).Return(member, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.RemoveMember(1, 10, 2)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})

	t.Run("cannot remove the owner", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		ownerMember := database.Member{Id: 11, UserId: 7, ServerId: 1}
		db.On("GetMemberById", 11).Return(ownerMember, nil).Once()
		db.On("GetServerById", 1).Return(server, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		_, err := svc.RemoveMember(1, 11, 2)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})
}

func TestRenameServer(t *testing.T) {
	t.Run("renames and notifies members", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		renamed := database.Server{Id: 1, Name: "renamed", OwnerId: 7}
		db.On("UpdateServerName", 1, "renamed").Return(renamed, nil).Once()
		db.On("GetServerWithMembers", 1).Return(&database.Server{
			Id:      1,
			Members: []database.Member{{UserId: 7}},
		}, nil).Once()
		n.On("EmitToUser", 7, EventServerUpdated, renamed).Once()

		svc := newTestMembershipService(t, db, n)
		got, err := svc.RenameServer(1, "renamed")
		assert.NoError(t, err)
		assert.Equal(t, renamed, got)
	})

	t.Run("fails with empty name", func(t *testing.T) {
		svc := newTestMembershipService(t, &database.MockGuildRepository{}, &MockNotifier{})
		_, err := svc.RenameServer(1, "")
		assert.Equal(t, KindBadRequest, KindOf(err))
	})
}

func TestDeleteServer(t *testing.T) {
	server := database.Server{Id: 1, Name: "gophers", OwnerId: 7}

	t.Run("deletes and notifies former members", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		db.On("GetServerWithMembers", 1).Return(&database.Server{
			Id:      1,
			Members: []database.Member{{UserId: 7}, {UserId: 2}},
		}, nil).Once()
		db.On("ListChannels", 1).Return([]database.Channel{
			{Id: 3, ExternalId: "chan-ext", ServerId: 1},
		}, nil).Once()
		db.On("DeleteServer", 1).Return(nil).Once()
		n.On("DropChannelRoom", "chan-ext").Once()
		n.On("EmitToUser", 7, EventServerDeleted, server).Once()
		n.On("EmitToUser", 2, EventServerDeleted, server).Once()

		svc := newTestMembershipService(t, db, n)
		assert.NoError(t, svc.DeleteServer(server))
	})

	t.Run("fails when delete fails", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetServerWithMembers", 1).Return(&database.Server{Id: 1}, nil).Once()
		db.On("ListChannels", 1).Return([]database.Channel{}, nil).Once()
		db.On("DeleteServer", 1).Return(errors.New("db error")).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		err := svc.DeleteServer(server)
		assert.Equal(t, KindInternal, KindOf(err))
	})
}

func TestCreateChannel(t *testing.T) {
	tcases := []struct {
		name         string
		channelName  string
		kind         string
		expectedKind Kind
	}{
		{
			name:        "creates a text channel",
			channelName: "random",
			kind:        "TEXT",
		},
		{
			name:        "creates a voice channel",
			channelName: "voice-lobby",
			kind:        "VOICE",
		},
		{
			name:         "fails with empty name",
			channelName:  "",
			kind:         "TEXT",
			expectedKind: KindBadRequest,
		},
		{
			name:         "fails with unknown kind",
			channelName:  "random",
			kind:         "VIDEO",
			expectedKind: KindBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockGuildRepository{}
			defer db.AssertExpectations(t)
			n := &MockNotifier{}
			defer n.AssertExpectations(t)

			channel := database.Channel{Id: 3, ServerId: 1, Name: tc.channelName, Kind: tc.kind}
			if tc.expectedKind == 0 {
				db.On("CreateChannel", database.CreateChannelParams{
					ServerId:   1,
					ExternalId: "chan-ext",
					Name:       tc.channelName,
					Kind:       tc.kind,
				}).Return(channel, nil).Once()
				db.On("GetServerWithMembers", 1).Return(&database.Server{
					Id:      1,
					Members: []database.Member{{UserId: 7}},
				}, nil).Once()
				n.On("EmitToUser", 7, EventChannelCreated, channel).Once()
			}

			svc := newTestMembershipService(t, db, n)
			got, err := svc.CreateChannel(1, "chan-ext", tc.channelName, tc.kind)
			if tc.expectedKind != 0 {
				assert.Equal(t, tc.expectedKind, KindOf(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, channel, got)
		})
	}
}

func TestDeleteChannel(t *testing.T) {
	channel := database.Channel{Id: 3, ExternalId: "chan-ext", ServerId: 1, Name: "random"}

	t.Run("deletes when another channel remains", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)
		n := &MockNotifier{}
		defer n.AssertExpectations(t)

		db.On("CountChannels", 1).Return(2, nil).Once()
		db.On("DeleteChannel", 3).Return(nil).Once()
		db.On("GetServerWithMembers", 1).Return(&database.Server{
			Id:      1,
			Members: []database.Member{{UserId: 7}},
		}, nil).Once()
		n.On("DropChannelRoom", "chan-ext").Once()
		n.On("EmitToUser", 7, EventChannelDeleted, channel).Once()

		svc := newTestMembershipService(t, db, n)
		assert.NoError(t, svc.DeleteChannel(channel))
	})

	t.Run("refuses to delete the last channel", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("CountChannels", 1).Return(1, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		err := svc.DeleteChannel(channel)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})
}

func TestCreateRole(t *testing.T) {
	t.Run("creates role with valid permissions", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		role := database.Role{Id: 5, ServerId: 1, Name: "Moderator", Permissions: []string{"REMOVE_MEMBER"}}
		db.On("CreateRole", database.CreateRoleParams{
			ServerId:    1,
			Name:        "Moderator",
			Permissions: []string{"REMOVE_MEMBER"},
		}).Return(role, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		got, err := svc.CreateRole(1, "Moderator", []string{"REMOVE_MEMBER"})
		assert.NoError(t, err)
		assert.Equal(t, role, got)
	})

	t.Run("rejects unknown permission", func(t *testing.T) {
		svc := newTestMembershipService(t, &database.MockGuildRepository{}, &MockNotifier{})
		_, err := svc.CreateRole(1, "Moderator", []string{"LAUNCH_MISSILES"})
		assert.Equal(t, KindBadRequest, KindOf(err))
	})
}

func TestDeleteRole(t *testing.T) {
	t.Run("deletes a non-default role", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoleById", 5).Return(database.Role{Id: 5, ServerId: 1}, nil).Once()
		db.On("DeleteRole", 5).Return(nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		assert.NoError(t, svc.DeleteRole(1, 5))
	})

	t.Run("refuses to delete the default role", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoleById", 5).Return(database.Role{Id: 5, ServerId: 1, IsDefault: true}, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		err := svc.DeleteRole(1, 5)
		assert.Equal(t, KindBadRequest, KindOf(err))
	})

	t.Run("fails when role belongs to another server", func(t *testing.T) {
		db := &database.MockGuildRepository{}
		defer db.AssertExpectations(t)

		db.On("GetRoleById", 5).Return(database.Role{Id: 5, ServerId: 99}, nil).Once()

		svc := newTestMembershipService(t, db, &MockNotifier{})
		err := svc.DeleteRole(1, 5)
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}
