// Duet pairing hub
//
// Matches one visitor of strangestloop.io with one visitor of ulyssepence.com
// into a two-person room and relays chat, typing signals, and opaque game
// events between them.
//
// - A room holds at most two members, always one per site
// - First compatible waiting room wins, scanned in creation order
// - Chat and game payloads are forwarded to the peer only, never echoed
// - The server keeps no game state; convergence lives in the game package
// - A room is deleted the moment its last member leaves

package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ulyssepence/duet/game"
)

const (
	SiteStrangestloop = game.SiteStrangestloop
	SiteUlyssepence   = game.SiteUlyssepence
)

func validSite(site string) bool {
	return site == SiteStrangestloop || site == SiteUlyssepence
}

// Client is one live browser connection. conn is nil for in-process
// clients (tests); only the pumps in ws.go touch it.
type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
	site string
}

// Room pairs at most two clients, one per site. members keeps join order.
type Room struct {
	id      string
	members []*Client
}

func (r *Room) peer(c *Client) *Client {
	for _, m := range r.members {
		if m.id != c.id {
			return m
		}
	}
	return nil
}

// Hub owns the room table and the connection registry. Every mutation of
// either runs under mu; the matcher's scan-and-append in particular must
// not interleave with other joins or disconnects.
type Hub struct {
	cfg *Config

	mu       sync.Mutex
	clients  map[string]*Client // registered connections
	rooms    map[string]*Room
	order    []string          // room ids in creation order, the matcher's scan order
	index    map[string]string // connection id -> room id
	nextRoom int
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:     cfg,
		clients: make(map[string]*Client),
		rooms:   make(map[string]*Room),
		index:   make(map[string]string),
	}
}

// Register adds a connection to the registry without binding it to a room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

// JoinRoom binds the connection to the first waiting room holding exactly
// one member of the opposite site, or opens a new room with the requester
// as sole member. Repeat joins return the existing binding unchanged.
func (h *Hub) JoinRoom(c *Client, site string) (string, error) {
	if !validSite(site) {
		return "", fmt.Errorf("unknown site: %q", site)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return "", fmt.Errorf("connection %s not registered", c.id)
	}

	if roomID, ok := h.index[c.id]; ok {
		return roomID, nil
	}

	c.site = site

	var room *Room
	for _, id := range h.order {
		candidate := h.rooms[id]
		if len(candidate.members) == 1 && candidate.members[0].site != site {
			room = candidate
			break
		}
	}

	if room == nil {
		h.nextRoom++
		room = &Room{id: fmt.Sprintf("room-%d", h.nextRoom)}
		h.rooms[room.id] = room
		h.order = append(h.order, room.id)
	}

	room.members = append(room.members, c)
	h.index[c.id] = room.id

	logf(h.cfg, "ROOMS: %s user joined %s (%d/2)", site, room.id, len(room.members))

	for _, m := range room.members {
		h.deliver(m, UserJoinedMessage{
			Type:        "user-joined",
			Site:        site,
			UsersInRoom: len(room.members),
		})
	}

	if len(room.members) == 2 {
		for _, m := range room.members {
			h.deliver(m, PairedMessage{
				Type:    "paired",
				Message: "You are now connected with your partner!",
			})
		}
	}

	return room.id, nil
}

// RelayMessage forwards a chat message to the sender's peer, tagged with
// the sender's site and the server clock. No-op for unbound connections
// or rooms still waiting for a partner.
func (h *Hub) RelayMessage(c *Client, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peer := h.peerOf(c)
	if peer == nil {
		return
	}

	h.deliver(peer, ReceiveMessage{
		Type:      "receive-message",
		Message:   text,
		From:      c.site,
		Timestamp: time.Now().UnixMilli(),
	})
}

// RelayTyping forwards a stateless typing signal to the peer.
func (h *Hub) RelayTyping(c *Client, stopped bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peer := h.peerOf(c)
	if peer == nil {
		return
	}

	kind := "partner-typing"
	if stopped {
		kind = "partner-stopped-typing"
	}
	h.deliver(peer, SignalMessage{Type: kind})
}

// RelayGameUpdate forwards an opaque game payload to the peer verbatim.
func (h *Hub) RelayGameUpdate(c *Client, update json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peer := h.peerOf(c)
	if peer == nil {
		return
	}

	h.deliver(peer, GameStateUpdateMessage{
		Type:   "game-state-update",
		Update: update,
	})
}

// Disconnect removes the connection from its room and the registry. An
// emptied room is deleted on the spot; a surviving member is notified
// exactly once and keeps its room.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)

	roomID, ok := h.index[c.id]
	if ok {
		delete(h.index, c.id)

		room := h.rooms[roomID]
		dst := room.members[:0]
		for _, m := range room.members {
			if m.id != c.id {
				dst = append(dst, m)
			}
		}
		room.members = dst

		if len(room.members) == 0 {
			delete(h.rooms, roomID)
			for i, id := range h.order {
				if id == roomID {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
			logf(h.cfg, "ROOMS: Deleted empty %s", roomID)
		} else {
			h.deliver(room.members[0], SignalMessage{Type: "partner-disconnected"})
			logf(h.cfg, "ROOMS: %s user left %s, notified partner", c.site, roomID)
		}
	}

	close(c.send)
}

// Stats reports the current room table: total rooms, rooms still waiting
// for a partner, and registered connections.
func (h *Hub) Stats() (rooms, waiting, clients int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms = len(h.rooms)
	for _, r := range h.rooms {
		if len(r.members) == 1 {
			waiting++
		}
	}
	clients = len(h.clients)
	return rooms, waiting, clients
}

// peerOf assumes h.mu is already held.
func (h *Hub) peerOf(c *Client) *Client {
	roomID, ok := h.index[c.id]
	if !ok {
		return nil
	}
	return h.rooms[roomID].peer(c)
}

// deliver assumes h.mu is already held. A full send buffer means the
// transport is not draining; the message is dropped rather than blocking
// the room table.
func (h *Hub) deliver(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		logf(h.cfg, "RELAY: Dropped message to %s (buffer full)", c.id)
	}
}
