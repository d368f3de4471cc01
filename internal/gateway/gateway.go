// Package gateway implements the connection registry and event
// broadcaster: it authenticates websocket handshakes, tracks which
// connections sit in which rooms, and fans state-change events out to
// exactly the connections entitled to them.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/acrowley/go-guild/internal/database"
	"github.com/acrowley/go-guild/internal/guild"
	"github.com/acrowley/go-guild/internal/stats"
	"github.com/acrowley/go-guild/internal/types"
)

// TokenVerifier is the identity-provider contract: it checks the
// signature and expiry of a handshake token and extracts the user id.
type TokenVerifier interface {
	VerifyToken(tokenString string) (int, error)
}

// TokenVerifierFunc adapts a function to the TokenVerifier interface.
type TokenVerifierFunc func(tokenString string) (int, error)

func (f TokenVerifierFunc) VerifyToken(tokenString string) (int, error) {
	return f(tokenString)
}

type stopReq struct {
	done chan struct{}
}

type GatewayServer struct {
	log      *log.Logger
	db       database.GuildRepository
	verifier TokenVerifier
	stats    stats.StatsProvider

	clients     map[*Client]struct{}
	userClients map[int]map[*Client]struct{}
	clientsLock sync.Mutex

	rooms     map[string]*Room
	roomsLock sync.RWMutex

	joinChan  chan *ClientMessage
	leaveChan chan *ClientMessage
	stop      chan stopReq
	done      chan struct{}
}

func NewGatewayServer(logger *log.Logger, db database.GuildRepository, verifier TokenVerifier, su stats.StatsProvider) (*GatewayServer, error) {
	gw := &GatewayServer{
		log:         logger,
		db:          db,
		verifier:    verifier,
		stats:       su,
		clients:     make(map[*Client]struct{}),
		userClients: make(map[int]map[*Client]struct{}),
		rooms:       make(map[string]*Room),
		joinChan:    make(chan *ClientMessage, 256),
		leaveChan:   make(chan *ClientMessage, 256),
		stop:        make(chan stopReq),
		done:        make(chan struct{}),
	}

	su.RegisterMetric("NumConnections")
	su.RegisterMetric("NumAuthenticated")
	su.RegisterMetric("NumRooms")
	su.RegisterMetric("NumEventsSent")

	return gw, nil
}

// Run serializes channel-room joins and leaves. Registration and
// disconnect cleanup run synchronously on the connection's own
// goroutine so a closed connection never lingers in a room.
func (gw *GatewayServer) Run() {
	for {
		select {
		case msg := <-gw.joinChan:
			gw.handleJoin(msg)
		case msg := <-gw.leaveChan:
			gw.handleLeave(msg)
		case req := <-gw.stop:
			gw.log.Println("stopping all connections")
			gw.clientsLock.Lock()
			for c := range gw.clients {
				c.stopClient()
			}
			gw.clientsLock.Unlock()

			close(gw.done)
			if req.done != nil {
				close(req.done)
			}
			return
		}
	}
}

func (gw *GatewayServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case gw.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleConnection performs the handshake for an upgraded socket. A
// missing or invalid token leaves the connection unauthenticated but
// open; an authenticated connection is bound to its user and joined to
// the user's private room.
func (gw *GatewayServer) HandleConnection(conn *websocket.Conn, token string) *Client {
	c := newClient(conn, gw, gw.log)

	if token != "" {
		userId, err := gw.verifier.VerifyToken(token)
		if err != nil {
			gw.log.Printf("handshake token rejected for connection %q: %v", c.id, err)
		} else {
			c.authenticate(userId)
		}
	}

	gw.register(c)

	go c.Write()
	go c.Read()

	return c
}

func (gw *GatewayServer) register(c *Client) {
	var firstForUser bool

	gw.clientsLock.Lock()
	gw.clients[c] = struct{}{}
	if c.authenticated() {
		if gw.userClients[c.userId] == nil {
			gw.userClients[c.userId] = make(map[*Client]struct{})
			firstForUser = true
		}
		gw.userClients[c.userId][c] = struct{}{}
	}
	gw.clientsLock.Unlock()

	gw.stats.Incr("NumConnections")

	if !c.authenticated() {
		gw.log.Printf("registered unauthenticated connection %q", c.id)
		return
	}

	gw.stats.Incr("NumAuthenticated")
	gw.getOrCreateRoom(userRoom(c.userId)).addClient(c)
	gw.log.Printf("registered connection %q for user %d", c.id, c.userId)

	if firstForUser {
		gw.setUserStatus(c.userId, types.StatusOnline)
	}
}

// deregister synchronously releases every room the connection holds.
func (gw *GatewayServer) deregister(c *Client) {
	for _, r := range c.heldRooms() {
		if r.removeClient(c) {
			gw.dropRoomIfEmpty(r.name)
		}
	}

	var lastForUser bool

	gw.clientsLock.Lock()
	if _, ok := gw.clients[c]; !ok {
		gw.clientsLock.Unlock()
		return
	}
	delete(gw.clients, c)
	if c.authenticated() {
		if userClients, ok := gw.userClients[c.userId]; ok {
			delete(userClients, c)
			if len(userClients) == 0 {
				delete(gw.userClients, c.userId)
				lastForUser = true
			}
		}
	}
	gw.clientsLock.Unlock()

	gw.stats.Decr("NumConnections")

	if c.authenticated() {
		gw.stats.Decr("NumAuthenticated")
		if lastForUser {
			gw.setUserStatus(c.userId, types.StatusOffline)
		}
	}

	gw.log.Printf("deregistered connection %q", c.id)
}

func (gw *GatewayServer) setUserStatus(userId int, status types.UserStatus) {
	if err := gw.db.UpdateUserStatus(userId, string(status)); err != nil {
		gw.log.Printf("update status for user %d: %v", userId, err)
	}

	gw.BroadcastAll(guild.EventUserStatus, types.User{Id: userId, Status: status})
}

// handleJoin authorizes the join against the membership store before
// touching the room table; the room join itself is a dumb transport
// operation.
func (gw *GatewayServer) handleJoin(msg *ClientMessage) {
	c := msg.client

	channel, err := gw.db.GetChannelByExternalId(msg.Join.ChannelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(ErrChannelNotFound(msg.Id))
		} else {
			gw.log.Println("GetChannelByExternalId:", err)
			c.queueMessage(ErrInternalError(msg.Id))
		}
		return
	}

	isMember, err := gw.db.MemberExists(channel.ServerId, msg.UserId)
	if err != nil {
		gw.log.Println("MemberExists:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}
	if !isMember {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	gw.JoinChannelRoom(c, channel.ExternalId)

	c.queueMessage(NoErrOK(msg.Id, types.Channel{
		Id:         channel.Id,
		ExternalId: channel.ExternalId,
		ServerId:   channel.ServerId,
		Name:       channel.Name,
		Kind:       types.ChannelKind(channel.Kind),
		CreatedAt:  channel.CreatedAt,
	}))
}

func (gw *GatewayServer) handleLeave(msg *ClientMessage) {
	if !gw.LeaveChannelRoom(msg.client, msg.Leave.ChannelId) {
		msg.client.queueMessage(ErrChannelNotFound(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id, nil))
}

// handlePublish appends the message to the log and broadcasts the
// canonical persisted record to the channel room. The sender must
// already hold the room.
func (gw *GatewayServer) handlePublish(msg *ClientMessage) {
	c := msg.client

	room := c.getRoom(channelRoom(msg.Publish.ChannelId))
	if room == nil {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	channel, err := gw.db.GetChannelByExternalId(msg.Publish.ChannelId)
	if err != nil {
		gw.log.Println("GetChannelByExternalId:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	saved, err := gw.db.CreateMessage(database.Message{
		ChannelId: channel.Id,
		UserId:    msg.UserId,
		Content:   msg.Publish.Content,
		CreatedAt: msg.Timestamp,
	})
	if err != nil {
		gw.log.Println("error saving message:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id))

	gw.EmitToChannel(msg.Publish.ChannelId, guild.EventMessage, types.Message{
		Id:        saved.Id,
		ChannelId: channel.ExternalId,
		UserId:    saved.UserId,
		Content:   saved.Content,
		Timestamp: saved.CreatedAt,
	})
}

// JoinChannelRoom joins the connection to the channel's room. It does
// not verify channel membership; callers must have authorized the join
// via the membership store.
func (gw *GatewayServer) JoinChannelRoom(c *Client, channelId string) {
	gw.getOrCreateRoom(channelRoom(channelId)).addClient(c)

	c.stateLock.Lock()
	c.lastChannel = channelId
	c.stateLock.Unlock()
}

// LeaveChannelRoom leaves the given channel room, or the connection's
// most recently joined one if channelId is empty. Returns false when
// no such room is held.
func (gw *GatewayServer) LeaveChannelRoom(c *Client, channelId string) bool {
	if channelId == "" {
		c.stateLock.Lock()
		channelId = c.lastChannel
		c.stateLock.Unlock()

		if channelId == "" {
			return false
		}
	}

	room := c.getRoom(channelRoom(channelId))
	if room == nil {
		return false
	}

	if room.removeClient(c) {
		gw.dropRoomIfEmpty(room.name)
	}

	c.stateLock.Lock()
	if c.lastChannel == channelId {
		c.lastChannel = ""
	}
	c.stateLock.Unlock()

	return true
}

// EvictUserFromChannelRooms forcibly removes every connection of the
// user from the given channel rooms. The membership layer calls this
// when a change revokes the user's channel access, so a live
// subscription never outlasts the membership row behind it.
func (gw *GatewayServer) EvictUserFromChannelRooms(userId int, channelIds []string) {
	gw.clientsLock.Lock()
	clients := make([]*Client, 0, len(gw.userClients[userId]))
	for c := range gw.userClients[userId] {
		clients = append(clients, c)
	}
	gw.clientsLock.Unlock()

	for _, c := range clients {
		for _, channelId := range channelIds {
			gw.LeaveChannelRoom(c, channelId)
		}
	}
}

// DropChannelRoom dissolves the channel's room, removing it from every
// connection that holds it. Invoked when the channel itself goes away.
func (gw *GatewayServer) DropChannelRoom(channelId string) {
	name := channelRoom(channelId)

	gw.roomsLock.Lock()
	room, ok := gw.rooms[name]
	if ok {
		delete(gw.rooms, name)
		gw.stats.Decr("NumRooms")
	}
	gw.roomsLock.Unlock()

	if !ok {
		return
	}

	for _, c := range room.members() {
		room.removeClient(c)

		c.stateLock.Lock()
		if c.lastChannel == channelId {
			c.lastChannel = ""
		}
		c.stateLock.Unlock()
	}
}

// EmitToUser broadcasts to every connection in the user's private
// room, one event per connected device.
func (gw *GatewayServer) EmitToUser(userId int, event string, payload any) {
	gw.emitToRoom(userRoom(userId), event, payload)
}

// EmitToChannel broadcasts to all connections currently in the
// channel's room.
func (gw *GatewayServer) EmitToChannel(channelId string, event string, payload any) {
	gw.emitToRoom(channelRoom(channelId), event, payload)
}

func (gw *GatewayServer) emitToRoom(name, event string, payload any) {
	gw.roomsLock.RLock()
	room, ok := gw.rooms[name]
	gw.roomsLock.RUnlock()

	if !ok {
		return
	}

	room.broadcast(eventMessage(event, payload))
	gw.stats.Incr("NumEventsSent")
}

// BroadcastAll fans an event out to every connected client. Used
// sparingly, for presence-style status changes.
func (gw *GatewayServer) BroadcastAll(event string, payload any) {
	msg := eventMessage(event, payload)

	gw.clientsLock.Lock()
	clients := make([]*Client, 0, len(gw.clients))
	for c := range gw.clients {
		clients = append(clients, c)
	}
	gw.clientsLock.Unlock()

	for _, c := range clients {
		c.queueMessage(msg)
	}

	gw.stats.Incr("NumEventsSent")
}

func (gw *GatewayServer) getOrCreateRoom(name string) *Room {
	gw.roomsLock.Lock()
	defer gw.roomsLock.Unlock()

	room, ok := gw.rooms[name]
	if !ok {
		room = newRoom(name)
		gw.rooms[name] = room
		gw.stats.Incr("NumRooms")
	}

	return room
}

func (gw *GatewayServer) dropRoomIfEmpty(name string) {
	gw.roomsLock.Lock()
	defer gw.roomsLock.Unlock()

	if room, ok := gw.rooms[name]; ok && room.size() == 0 {
		delete(gw.rooms, name)
		gw.stats.Decr("NumRooms")
	}
}

func eventMessage(name string, payload any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: &Event{
			Name:    name,
			Payload: payload,
		},
	}
}
