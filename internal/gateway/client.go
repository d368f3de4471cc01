package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// connState tracks the connection lifecycle:
// Connecting -> Authenticated -> Closed. A connection that fails the
// handshake stays in Connecting; it is never forcibly closed, but
// every client event it sends is refused.
type connState int

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateClosed
)

type Client struct {
	id        string
	conn      *websocket.Conn
	gateway   *GatewayServer
	log       *log.Logger
	userId    int
	state     connState
	stateLock sync.Mutex
	send      chan *ServerMessage
	rooms     map[string]*Room
	roomsLock sync.RWMutex
	// lastChannel is the channel room most recently joined, used when
	// a leave carries no channel id.
	lastChannel string
	stop        chan struct{}
	stopOnce    sync.Once
}

func newClient(conn *websocket.Conn, gw *GatewayServer, l *log.Logger) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		gateway: gw,
		log:     l,
		state:   stateConnecting,
		send:    make(chan *ServerMessage, 256),
		rooms:   make(map[string]*Room),
		stop:    make(chan struct{}),
	}
}

func (c *Client) authenticate(userId int) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.userId = userId
	c.state = stateAuthenticated
}

func (c *Client) authenticated() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.state == stateAuthenticated
}

func (c *Client) Write() {
	ticker := time.NewTicker(time.Duration(pingInterval))
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for connection %q", c.id)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for connection %q", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		if !c.authenticated() {
			c.queueMessage(ErrUnauthorized(msg.Id))
			continue
		}

		msg.client = c
		msg.UserId = c.userId
		msg.Timestamp = Now()

		switch {
		case msg.Join != nil:
			c.forward(c.gateway.joinChan, &msg)
		case msg.Leave != nil:
			c.forward(c.gateway.leaveChan, &msg)
		case msg.Publish != nil:
			c.gateway.handlePublish(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

func (c *Client) forward(ch chan *ClientMessage, msg *ClientMessage) {
	select {
	case ch <- msg:
	default:
		c.log.Printf("gateway channel full, dropping message from %q", c.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for connection %q", c.id)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		c.stateLock.Lock()
		c.state = stateClosed
		c.stateLock.Unlock()
		close(c.stop)
	})
}

// cleanup releases every room the connection holds before the pumps
// exit; no subscription survives a disconnect.
func (c *Client) cleanup() {
	c.gateway.deregister(c)
	c.stopClient()
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[r.name] = r
}

func (c *Client) delRoom(name string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, name)
}

func (c *Client) getRoom(name string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	if room, ok := c.rooms[name]; ok {
		return room
	}

	return nil
}

// heldRooms snapshots the rooms the connection currently holds.
func (c *Client) heldRooms() []*Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	rooms := make([]*Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}

	return rooms
}
