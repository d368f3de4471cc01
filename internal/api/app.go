package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/acrowley/go-guild/internal/config"
	"github.com/acrowley/go-guild/internal/database"
	"github.com/acrowley/go-guild/internal/gateway"
	"github.com/acrowley/go-guild/internal/guild"
	"github.com/acrowley/go-guild/internal/permissions"
)

type GuildApp struct {
	log         *log.Logger
	db          database.GuildRepository
	gw          *gateway.GatewayServer
	verifier    *TokenVerifier
	membership  *guild.MembershipService
	invites     *guild.InviteService
	friendships *guild.FriendshipService
	evaluator   *permissions.Evaluator
	mux         *http.Server

	generateShortId func() (string, error)
	allowedOrigins  []string
}

func NewGuildApp(mux *http.ServeMux, logger *log.Logger, gw *gateway.GatewayServer, db database.GuildRepository, cfg *config.Config) *GuildApp {
	s := &GuildApp{
		log:             logger,
		db:              db,
		gw:              gw,
		verifier:        NewTokenVerifier(cfg.SigningKey),
		membership:      guild.NewMembershipService(logger, db, gw),
		invites:         guild.NewInviteService(logger, db, gw),
		friendships:     guild.NewFriendshipService(logger, db, gw),
		evaluator:       permissions.NewEvaluator(db),
		generateShortId: shortid.Generate,
		allowedOrigins:  cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.Handle("POST /api/servers", s.authMiddleware(s.createServer))
	mux.Handle("GET /api/servers", s.authMiddleware(s.listServers))
	mux.Handle("GET /api/servers/{id}", s.authMiddleware(s.getServer))
	mux.Handle("PATCH /api/servers/{id}", s.authMiddleware(s.renameServer))
	mux.Handle("DELETE /api/servers/{id}", s.authMiddleware(s.deleteServer))
	mux.Handle("POST /api/servers/{id}/join", s.authMiddleware(s.joinServer))
	mux.Handle("POST /api/servers/{id}/leave", s.authMiddleware(s.leaveServer))
	mux.Handle("DELETE /api/servers/{id}/members/{memberId}", s.authMiddleware(s.removeMember))
	mux.Handle("POST /api/servers/{id}/channels", s.authMiddleware(s.createChannel))
	mux.Handle("GET /api/servers/{id}/channels", s.authMiddleware(s.listChannels))
	mux.Handle("PATCH /api/servers/{id}/channels/{channelId}", s.authMiddleware(s.updateChannel))
	mux.Handle("DELETE /api/servers/{id}/channels/{channelId}", s.authMiddleware(s.deleteChannel))
	mux.Handle("GET /api/servers/{id}/roles", s.authMiddleware(s.listRoles))
	mux.Handle("POST /api/servers/{id}/roles", s.authMiddleware(s.createRole))
	mux.Handle("PATCH /api/servers/{id}/roles/{roleId}", s.authMiddleware(s.updateRole))
	mux.Handle("DELETE /api/servers/{id}/roles/{roleId}", s.authMiddleware(s.deleteRole))
	mux.Handle("POST /api/server-invites", s.authMiddleware(s.sendInvite))
	mux.Handle("GET /api/server-invites", s.authMiddleware(s.listInvites))
	mux.Handle("POST /api/server-invites/{id}/accept", s.authMiddleware(s.acceptInvite))
	mux.Handle("POST /api/server-invites/{id}/reject", s.authMiddleware(s.rejectInvite))
	mux.Handle("DELETE /api/server-invites/{id}", s.authMiddleware(s.cancelInvite))
	mux.Handle("POST /api/friendships", s.authMiddleware(s.sendFriendRequest))
	mux.Handle("GET /api/friendships", s.authMiddleware(s.listFriends))
	mux.Handle("PATCH /api/friendships/{id}", s.authMiddleware(s.respondFriendRequest))
	mux.Handle("DELETE /api/friendships/{id}", s.authMiddleware(s.deleteFriendship))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *GuildApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GuildApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
