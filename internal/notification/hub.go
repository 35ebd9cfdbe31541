package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/pkg/idgen"
	"github.com/verustcode/stagereport/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

// Hub keeps the live websocket connections of every user on this instance
type Hub struct {
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[uint]map[string]*client
	closed bool
}

type client struct {
	id     string
	userID uint
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewHub creates a hub; an empty origin list accepts any origin
func NewHub(cfg config.WebSocketConfig) *Hub {
	h := &Hub{conns: make(map[uint]map[string]*client)}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeWS upgrades the request and registers the connection for userID.
// It returns once the connection is registered; pumps run in the background.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:     idgen.NewConnectionID(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	if !h.register(c) {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return ws.Close()
	}

	logger.Debug("Websocket connected",
		zap.Uint(logger.FieldUserID, userID),
		zap.String("connection_id", c.id),
	)

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// Publish delivers msg to the user's connections on this instance
func (h *Hub) Publish(_ context.Context, userID uint, msg *PushMessage) error {
	h.Deliver(userID, msg)
	return nil
}

// Deliver queues msg on every connection of userID and returns how many received it.
// A connection whose buffer is full is dropped.
func (h *Hub) Deliver(userID uint, msg *PushMessage) int {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal push message", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[userID]))
	for _, c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		select {
		case c.send <- data:
			delivered++
		default:
			logger.Warn("Websocket send buffer full, dropping connection",
				zap.Uint(logger.FieldUserID, userID),
				zap.String("connection_id", c.id),
			)
			h.unregister(c)
		}
	}
	return delivered
}

// ConnectionCount returns the number of live connections of userID
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.conns {
		for _, c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[string]*client)
		h.conns[c.userID] = set
	}
	set[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.conns[c.userID]; ok {
			delete(set, c.id)
			if len(set) == 0 {
				delete(h.conns, c.userID)
			}
		}
		h.mu.Unlock()
		close(c.done)
	})
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readPump only drains control frames; clients do not send data
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("Websocket closed unexpectedly",
					zap.Uint(logger.FieldUserID, c.userID),
					zap.Error(err),
				)
			}
			return
		}
	}
}
