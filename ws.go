package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096
	sendBuffer   = 32
)

var siteURLs = map[string]string{
	SiteStrangestloop: "https://strangestloop.io",
	SiteUlyssepence:   "https://ulyssepence.com",
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.origin == "" {
				return true
			}
			return r.Header.Get("Origin") == cfg.origin
		},
	}
}

func serveWS(cfg *Config, hub *Hub) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, sendBuffer),
			id:   uuid.New().String(),
		}

		hub.Register(client)

		go client.writePump()
		client.readPump(cfg, hub)
	}
}

func (c *Client) readPump(cfg *Config, h *Hub) {
	defer func() {
		h.Disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join-room":
			if _, err := h.JoinRoom(c, msg.Site); err != nil {
				logf(cfg, "ROOMS: Rejected join from %s: %v", c.id, err)
				return
			}
		case "send-message":
			h.RelayMessage(c, msg.Message)
		case "typing":
			h.RelayTyping(c, false)
		case "stop-typing":
			h.RelayTyping(c, true)
		case "send-game-update":
			h.RelayGameUpdate(c, msg.Update)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// qrHandler serves a PNG QR code linking a phone to one of the two site
// pages, so a visitor can recruit a partner in person.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		url, ok := siteURLs[ps.ByName("site")]
		if !ok {
			http.Error(w, "unknown site", http.StatusNotFound)
			return
		}

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)

		logf(cfg, "SERVE: QR code (%s) to %s", humanReadableSize(int64(len(png))), realIP(r))
	}
}

// registerPairing sets up routes so that:
//   - $prefix/ws          → websocket transport for pairing, chat, and game relay
//   - $prefix/qr/:site    → PNG QR code for the named site's page
func registerPairing(cfg *Config, hub *Hub, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub))
	mux.GET(cfg.prefix+"/qr/:site", qrHandler(cfg))
}
