package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"osintdeck/internal/logger"
	"osintdeck/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// newUpgrader validates Origin against allowedOrigins; an empty list accepts any origin.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			return allowed[origin]
		},
	}
}

// UserChannel carries one user's notifications.
func UserChannel(userID uint) string { return fmt.Sprintf("user:%d", userID) }

// GraphChannel carries entity graph updates of one login session.
func GraphChannel(sessionID string) string { return "graph:" + sessionID }

type WSClient struct {
	hub       *WSHub
	conn      *websocket.Conn
	send      chan []byte
	userID    uint
	sessionID string
	channels  map[string]bool
	mu        sync.RWMutex
}

// mayJoin keeps private channels to their owner.
func (c *WSClient) mayJoin(ch string) bool {
	switch {
	case strings.HasPrefix(ch, "user:"):
		return ch == UserChannel(c.userID)
	case strings.HasPrefix(ch, "graph:"):
		return ch == GraphChannel(c.sessionID)
	}
	return ch != ""
}

func (c *WSClient) subscribed(ch string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ch == "" || c.channels[ch]
}

type WSHub struct {
	clients        map[*WSClient]bool
	broadcast      chan WSMessage
	register       chan *WSClient
	unregister     chan *WSClient
	done           chan struct{}
	mu             sync.RWMutex
	allowedOrigins []string
}

type WSMessage struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data"`
}

func NewWSHub(allowedOrigins []string) *WSHub {
	return &WSHub{
		clients:        make(map[*WSClient]bool),
		broadcast:      make(chan WSMessage, 256),
		register:       make(chan *WSClient),
		unregister:     make(chan *WSClient),
		done:           make(chan struct{}),
		allowedOrigins: allowedOrigins,
	}
}

// Run dispatches messages until ctx is cancelled, then closes every client.
func (h *WSHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			metrics.WSConnections.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.Set(float64(n))
			logger.WS.Debug().Int("clients", n).Uint("user_id", client.userID).Msg("client connected")

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			h.dispatch(msg)
		}
	}
}

func (h *WSHub) dispatch(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WS.Warn().Err(err).Str("type", msg.Type).Msg("unencodable message dropped")
		return
	}
	var stale []*WSClient
	h.mu.RLock()
	for client := range h.clients {
		if !client.subscribed(msg.Channel) {
			continue
		}
		select {
		case client.send <- data:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()
	for _, c := range stale {
		h.drop(c)
	}
}

func (h *WSHub) drop(c *WSClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logger.WS.Debug().Int("clients", n).Msg("client disconnected")
}

// Broadcast queues a message for subscribers of channel; an empty channel
// reaches everyone. A full queue drops the message.
func (h *WSHub) Broadcast(channel string, msgType string, data interface{}) {
	msg := WSMessage{ID: uuid.NewString(), Type: msgType, Channel: channel, Data: data}
	select {
	case h.broadcast <- msg:
	default:
		logger.WS.Warn().Str("channel", channel).Str("type", msgType).Msg("broadcast queue full, message dropped")
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS authenticates with a bearer header, ?token= or the session cookie.
// Clients start subscribed to their own notification and graph channels.
func (h *WSHub) HandleWS(jwtSecret string) http.HandlerFunc {
	wsUpgrader := newUpgrader(h.allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			tokenStr = TokenFromRequest(r)
		}
		if tokenStr == "" {
			FailErr(w, r, ErrUnauthorized)
			return
		}
		claims, err := ValidateJWT(tokenStr, jwtSecret)
		if err != nil {
			FailErr(w, r, ErrTokenExpired)
			return
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WS.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		client := &WSClient{
			hub:       h,
			conn:      conn,
			send:      make(chan []byte, 256),
			userID:    claims.UserID,
			sessionID: claims.SessionID(),
			channels: map[string]bool{
				UserChannel(claims.UserID):       true,
				GraphChannel(claims.SessionID()): true,
			},
		}
		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

type clientCommand struct {
	Action   string   `json:"action"`
	Channel  string   `json:"channel"`
	Channels []string `json:"channels"`
}

func (c *WSClient) handle(cmd clientCommand) {
	chans := cmd.Channels
	if cmd.Channel != "" {
		chans = append(chans, cmd.Channel)
	}
	switch cmd.Action {
	case "subscribe":
		c.mu.Lock()
		for _, ch := range chans {
			if c.mayJoin(ch) {
				c.channels[ch] = true
			} else {
				logger.WS.Warn().Uint("user_id", c.userID).Str("channel", ch).Msg("subscription refused")
			}
		}
		c.mu.Unlock()
	case "unsubscribe":
		c.mu.Lock()
		for _, ch := range chans {
			delete(c.channels, ch)
		}
		c.mu.Unlock()
	case "ping":
		resp, _ := json.Marshal(map[string]string{"action": "pong"})
		select {
		case c.send <- resp:
		default:
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var cmd clientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}
		c.handle(cmd)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
