package main

import "encoding/json"

// ClientMessage is the envelope for everything a browser sends over its socket.
type ClientMessage struct {
	Type    string          `json:"type"`              // "join-room", "send-message", "typing", "stop-typing", "send-game-update"
	Site    string          `json:"site,omitempty"`    // join-room
	Message string          `json:"message,omitempty"` // send-message
	Update  json.RawMessage `json:"update,omitempty"`  // send-game-update, relayed verbatim
}

// UserJoinedMessage is sent to every room member whenever someone joins.
type UserJoinedMessage struct {
	Type        string `json:"type"` // "user-joined"
	Site        string `json:"site"`
	UsersInRoom int    `json:"usersInRoom"`
}

// PairedMessage tells both members their room is full; it is the signal
// that unlocks the chat input client-side.
type PairedMessage struct {
	Type    string `json:"type"` // "paired"
	Message string `json:"message"`
}

// ReceiveMessage carries a relayed chat message to the peer only.
type ReceiveMessage struct {
	Type      string `json:"type"` // "receive-message"
	Message   string `json:"message"`
	From      string `json:"from"`
	Timestamp int64  `json:"timestamp"`
}

// SignalMessage is for payload-free notifications:
// "partner-typing", "partner-stopped-typing", "partner-disconnected".
type SignalMessage struct {
	Type string `json:"type"`
}

// GameStateUpdateMessage forwards an opaque game event to the peer.
// The server never inspects the payload.
type GameStateUpdateMessage struct {
	Type   string          `json:"type"` // "game-state-update"
	Update json.RawMessage `json:"update"`
}
