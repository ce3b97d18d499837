package ws

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/armada-loadtest/coordinator/internal/registry"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Result payloads carry a
	// status code histogram, so this is larger than a plain command.
	maxMessageSize = 64 * 1024
)

// Router receives the lifecycle and the inbound envelopes of every connection.
type Router interface {
	Connect(conn registry.Conn) string
	HandleMessage(sessionID string, data []byte)
	Disconnect(sessionID string)
}

// Handler handles WebSocket connections for coordination sessions.
type Handler struct {
	router     Router
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAllowedOrigins restricts upgrades to the given browser origins.
// "*" allows every origin. Requests without an Origin header are always allowed.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = checkOrigin(origins)
	}
}

// WithSendBuffer sets the per-client send queue capacity.
func WithSendBuffer(n int) HandlerOption {
	return func(h *Handler) {
		h.sendBuffer = n
	}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(router Router, hub *Hub, opts ...HandlerOption) *Handler {
	h := &Handler{
		router: router,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin([]string{"*"}),
		},
		sendBuffer: DefaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hub returns the hub tracking this handler's clients.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// HandleConnection upgrades the HTTP connection to WebSocket and registers
// the new session with the router.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, h.sendBuffer)
	h.hub.Register(client)

	// The connected greeting is queued before the write pump starts.
	client.setSessionID(h.router.Connect(client))

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// readPump pumps envelopes from the WebSocket connection to the router.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.router.Disconnect(client.SessionID())
		h.hub.Unregister(client)
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.router.HandleMessage(client.SessionID(), message)
	}
}

// writePump pumps queued envelopes to the WebSocket connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The send queue was closed
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One envelope per frame
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queued, ok := <-client.SendChan()
				if !ok {
					client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.Conn().WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}
