package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return newHub(&Config{})
}

func newTestClient(id string) *Client {
	return &Client{
		send: make(chan any, 64),
		id:   id,
	}
}

// received drains everything currently buffered for the client.
func received(c *Client) []any {
	var msgs []any
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func pair(t *testing.T, h *Hub) (*Client, *Client) {
	t.Helper()

	a := newTestClient("a")
	b := newTestClient("b")
	h.Register(a)
	h.Register(b)

	roomA, err := h.JoinRoom(a, SiteStrangestloop)
	require.NoError(t, err)
	roomB, err := h.JoinRoom(b, SiteUlyssepence)
	require.NoError(t, err)
	require.Equal(t, roomA, roomB)

	received(a)
	received(b)
	return a, b
}

func TestJoinRoom_PairsOppositeSites(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")
	b := newTestClient("b")
	h.Register(a)
	h.Register(b)

	roomA, err := h.JoinRoom(a, SiteStrangestloop)
	require.NoError(t, err)
	roomB, err := h.JoinRoom(b, SiteUlyssepence)
	require.NoError(t, err)

	assert.Equal(t, roomA, roomB)

	msgsA := received(a)
	require.Len(t, msgsA, 3)
	assert.Equal(t, UserJoinedMessage{Type: "user-joined", Site: SiteStrangestloop, UsersInRoom: 1}, msgsA[0])
	assert.Equal(t, UserJoinedMessage{Type: "user-joined", Site: SiteUlyssepence, UsersInRoom: 2}, msgsA[1])
	assert.IsType(t, PairedMessage{}, msgsA[2])

	msgsB := received(b)
	require.Len(t, msgsB, 2)
	assert.Equal(t, UserJoinedMessage{Type: "user-joined", Site: SiteUlyssepence, UsersInRoom: 2}, msgsB[0])
	assert.IsType(t, PairedMessage{}, msgsB[1])
}

func TestJoinRoom_SameSiteWaitsSeparately(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")
	b := newTestClient("b")
	h.Register(a)
	h.Register(b)

	roomA, err := h.JoinRoom(a, SiteStrangestloop)
	require.NoError(t, err)
	roomB, err := h.JoinRoom(b, SiteStrangestloop)
	require.NoError(t, err)

	assert.NotEqual(t, roomA, roomB)

	for _, msg := range append(received(a), received(b)...) {
		assert.NotEqual(t, PairedMessage{}, msg)
	}

	rooms, waiting, clients := h.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 2, waiting)
	assert.Equal(t, 2, clients)
}

func TestJoinRoom_FirstWaitingRoomWins(t *testing.T) {
	h := newTestHub()

	first := newTestClient("first")
	second := newTestClient("second")
	joiner := newTestClient("joiner")
	for _, c := range []*Client{first, second, joiner} {
		h.Register(c)
	}

	roomFirst, err := h.JoinRoom(first, SiteUlyssepence)
	require.NoError(t, err)
	_, err = h.JoinRoom(second, SiteUlyssepence)
	require.NoError(t, err)

	roomJoiner, err := h.JoinRoom(joiner, SiteStrangestloop)
	require.NoError(t, err)

	assert.Equal(t, roomFirst, roomJoiner, "matcher must scan rooms in creation order")
}

func TestJoinRoom_UnknownSite(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c")
	h.Register(c)

	_, err := h.JoinRoom(c, "somewhere-else")
	assert.Error(t, err)

	rooms, _, _ := h.Stats()
	assert.Zero(t, rooms)
}

func TestJoinRoom_RepeatIsIdempotent(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c")
	h.Register(c)

	roomID, err := h.JoinRoom(c, SiteStrangestloop)
	require.NoError(t, err)
	again, err := h.JoinRoom(c, SiteStrangestloop)
	require.NoError(t, err)

	assert.Equal(t, roomID, again)

	rooms, _, _ := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Len(t, received(c), 1, "repeat join must not re-emit notifications")
}

func TestRelayMessage_ExcludesSender(t *testing.T) {
	h := newTestHub()
	a, b := pair(t, h)

	h.RelayMessage(a, "hello from the loop")

	msgsB := received(b)
	require.Len(t, msgsB, 1)
	relayed, ok := msgsB[0].(ReceiveMessage)
	require.True(t, ok)
	assert.Equal(t, "hello from the loop", relayed.Message)
	assert.Equal(t, SiteStrangestloop, relayed.From)
	assert.Positive(t, relayed.Timestamp)

	assert.Empty(t, received(a), "sender must never see its own message echoed")
}

func TestRelayMessage_UnboundIsNoop(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c")
	h.Register(c)

	h.RelayMessage(c, "anyone there?")
	h.RelayTyping(c, false)
	h.RelayGameUpdate(c, json.RawMessage(`{"type":"start-game"}`))

	assert.Empty(t, received(c))
}

func TestRelayMessage_WaitingRoomIsNoop(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c")
	h.Register(c)
	_, err := h.JoinRoom(c, SiteUlyssepence)
	require.NoError(t, err)
	received(c)

	h.RelayMessage(c, "hello?")

	assert.Empty(t, received(c))
}

func TestRelayMessage_OrderPreserved(t *testing.T) {
	h := newTestHub()
	a, b := pair(t, h)

	const count = 20
	for i := 0; i < count; i++ {
		h.RelayMessage(a, fmt.Sprintf("message %d", i))
	}

	msgs := received(b)
	require.Len(t, msgs, count)
	for i, msg := range msgs {
		relayed, ok := msg.(ReceiveMessage)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("message %d", i), relayed.Message)
	}
}

func TestRelayTyping(t *testing.T) {
	h := newTestHub()
	a, b := pair(t, h)

	h.RelayTyping(a, false)
	h.RelayTyping(a, true)

	msgs := received(b)
	require.Len(t, msgs, 2)
	assert.Equal(t, SignalMessage{Type: "partner-typing"}, msgs[0])
	assert.Equal(t, SignalMessage{Type: "partner-stopped-typing"}, msgs[1])
	assert.Empty(t, received(a))
}

func TestRelayGameUpdate_Verbatim(t *testing.T) {
	h := newTestHub()
	a, b := pair(t, h)

	// Deliberately not a shape the server knows anything about.
	payload := json.RawMessage(`{"type":"next-level","level":3,"swapClues":true,"custom":[1,2]}`)
	h.RelayGameUpdate(b, payload)

	msgs := received(a)
	require.Len(t, msgs, 1)
	update, ok := msgs[0].(GameStateUpdateMessage)
	require.True(t, ok)
	assert.Equal(t, "game-state-update", update.Type)
	assert.Equal(t, payload, update.Update)
	assert.Empty(t, received(b))
}

func TestDisconnect_NotifiesSurvivorOnce(t *testing.T) {
	h := newTestHub()
	a, b := pair(t, h)

	h.Disconnect(a)

	msgs := received(b)
	require.Len(t, msgs, 1)
	assert.Equal(t, SignalMessage{Type: "partner-disconnected"}, msgs[0])

	rooms, waiting, clients := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, waiting)
	assert.Equal(t, 1, clients)

	// Repeated disconnects for the same connection must be no-ops.
	h.Disconnect(a)
	assert.Empty(t, received(b))
}

func TestDisconnect_LastMemberDeletesRoom(t *testing.T) {
	h := newTestHub()
	a, b := pair(t, h)

	h.Disconnect(a)
	h.Disconnect(b)

	rooms, waiting, clients := h.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, waiting)
	assert.Zero(t, clients)
	assert.Empty(t, h.order)
	assert.Empty(t, h.index)
}

func TestDisconnect_BeforeJoin(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c")
	h.Register(c)

	h.Disconnect(c)

	rooms, _, clients := h.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, clients)
}

// assertInvariants checks the room-table invariants that must hold after
// every join and disconnect: sizes in {1,2}, no same-site pair, and a
// consistent connection index.
func assertInvariants(t *testing.T, h *Hub) {
	t.Helper()

	for id, room := range h.rooms {
		require.GreaterOrEqual(t, len(room.members), 1, "empty room %s left in table", id)
		require.LessOrEqual(t, len(room.members), 2, "room %s exceeds capacity", id)

		if len(room.members) == 2 {
			require.NotEqual(t, room.members[0].site, room.members[1].site,
				"room %s pairs two %s users", id, room.members[0].site)
		}

		for _, m := range room.members {
			require.Equal(t, id, h.index[m.id])
		}
	}

	for connID, roomID := range h.index {
		room, ok := h.rooms[roomID]
		require.True(t, ok, "index points %s at missing room %s", connID, roomID)
		found := false
		for _, m := range room.members {
			if m.id == connID {
				found = true
			}
		}
		require.True(t, found)
	}
}

func TestJoinOnly_NoOppositeWaitingRoomsCoexist(t *testing.T) {
	h := newTestHub()
	rng := rand.New(rand.NewPCG(1, 0))
	sites := []string{SiteStrangestloop, SiteUlyssepence}

	for i := 0; i < 50; i++ {
		c := newTestClient(fmt.Sprintf("conn-%d", i))
		h.Register(c)
		_, err := h.JoinRoom(c, sites[rng.IntN(2)])
		require.NoError(t, err)

		assertInvariants(t, h)

		waitingBySite := make(map[string]int)
		for _, room := range h.rooms {
			if len(room.members) == 1 {
				waitingBySite[room.members[0].site]++
			}
		}
		require.False(t, waitingBySite[SiteStrangestloop] > 0 && waitingBySite[SiteUlyssepence] > 0,
			"opposite-site waiting rooms coexist after settlement")
	}
}

func TestRandomizedJoinsAndDisconnects(t *testing.T) {
	h := newTestHub()
	rng := rand.New(rand.NewPCG(2, 0))
	sites := []string{SiteStrangestloop, SiteUlyssepence}

	var active []*Client
	next := 0

	for step := 0; step < 300; step++ {
		if len(active) == 0 || rng.IntN(3) > 0 {
			c := newTestClient(fmt.Sprintf("conn-%d", next))
			next++
			h.Register(c)
			_, err := h.JoinRoom(c, sites[rng.IntN(2)])
			require.NoError(t, err)
			active = append(active, c)
		} else {
			i := rng.IntN(len(active))
			h.Disconnect(active[i])
			active = append(active[:i], active[i+1:]...)
		}

		assertInvariants(t, h)
	}

	for _, c := range active {
		h.Disconnect(c)
	}
	rooms, _, clients := h.Stats()
	assert.Zero(t, rooms, "room table must be empty once every connection is gone")
	assert.Zero(t, clients)
}
