package gateway

import (
	"strconv"
	"sync"
)

// Room name prefixes. Every authenticated connection sits in its
// user's private room; channel rooms hold the connections currently
// viewing that channel.
const (
	userRoomPrefix    = "user:"
	channelRoomPrefix = "channel:"
)

func userRoom(userId int) string {
	return userRoomPrefix + strconv.Itoa(userId)
}

func channelRoom(channelId string) string {
	return channelRoomPrefix + channelId
}

// Room is a concurrent set of connections sharing a fan-out target.
// Rooms carry no state beyond their member set; authorization happens
// before a connection is joined, never here.
type Room struct {
	name       string
	clients    map[*Client]struct{}
	clientLock sync.RWMutex
}

func newRoom(name string) *Room {
	return &Room{
		name:    name,
		clients: make(map[*Client]struct{}),
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	c.addRoom(r)
}

// removeClient reports whether the room is empty afterwards so the
// registry can drop it from the table.
func (r *Room) removeClient(c *Client) bool {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return len(r.clients) == 0
	}

	delete(r.clients, c)
	c.delRoom(r.name)

	return len(r.clients) == 0
}

func (r *Room) hasClient(c *Client) bool {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	_, ok := r.clients[c]
	return ok
}

// members snapshots the connections currently in the room.
func (r *Room) members() []*Client {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}

	return clients
}

func (r *Room) size() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return len(r.clients)
}

func (r *Room) broadcast(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
