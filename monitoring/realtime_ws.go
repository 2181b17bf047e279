package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cropadvisor/explore"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 64 << 10
)

// MessageType tags frames sent to exploration clients.
type MessageType string

const (
	ViewMessage    MessageType = "view"
	WarningMessage MessageType = "warning"
	ErrorMessage   MessageType = "error"
)

// Message is one server-to-client frame.
type Message struct {
	Type      MessageType   `json:"type"`
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	View      *explore.View `json:"view,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// ExploreFunc answers one exploration state.
type ExploreFunc func(ctx context.Context, s explore.State) (*explore.View, error)

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// ExploreHub streams views back to websocket clients as they change their
// selection. Each client gets a reply per State it sends.
type ExploreHub struct {
	query    ExploreFunc
	logger   *zap.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewExploreHub(query ExploreFunc, allowedOrigins []string, logger *zap.Logger, metrics *Metrics) *ExploreHub {
	h := &ExploreHub{
		query:   query,
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects or the hub is closed.
func (h *ExploreHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16), id: uuid.NewString()}
	if !h.register(c) {
		conn.Close()
		return
	}

	go c.writePump(h.logger)
	h.readPump(r.Context(), c)
}

func (h *ExploreHub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.ClientConnected()
	h.logger.Debug("explore client connected", zap.String("client_id", c.id), zap.Int("total", len(h.clients)))
	return true
}

func (h *ExploreHub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.ClientDisconnected()
	h.logger.Debug("explore client disconnected", zap.String("client_id", c.id), zap.Int("total", len(h.clients)))
}

// Clients returns the number of connected clients.
func (h *ExploreHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *ExploreHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.ClientDisconnected()
	}
}

func (h *ExploreHub) readPump(ctx context.Context, c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		reply := h.handle(ctx, data)
		out, err := json.Marshal(reply)
		if err != nil {
			h.logger.Error("marshal explore reply", zap.Error(err))
			continue
		}
		if !h.enqueue(c, out) {
			return
		}
	}
}

func (h *ExploreHub) handle(ctx context.Context, data []byte) Message {
	msg := Message{ID: uuid.NewString(), Timestamp: time.Now().UTC()}

	var state explore.State
	if err := json.Unmarshal(data, &state); err != nil {
		h.metrics.RecordExplore("websocket", "invalid")
		msg.Type = ErrorMessage
		msg.Message = "invalid state: " + err.Error()
		return msg
	}

	view, err := h.query(ctx, state)
	switch {
	case errors.Is(err, explore.ErrNoSelection):
		h.metrics.RecordExplore("websocket", "empty")
		msg.Type = WarningMessage
		msg.Message = explore.NoSelectionWarning
	case err != nil:
		h.metrics.RecordExplore("websocket", "invalid")
		msg.Type = ErrorMessage
		msg.Message = err.Error()
	default:
		h.metrics.RecordExplore("websocket", "ok")
		msg.Type = ViewMessage
		msg.View = view
	}
	return msg
}

// enqueue drops the client when its buffer is full.
func (h *ExploreHub) enqueue(c *client, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		h.logger.Warn("explore client too slow, disconnecting", zap.String("client_id", c.id))
		delete(h.clients, c)
		close(c.send)
		h.metrics.ClientDisconnected()
		return false
	}
}

func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write error", zap.String("client_id", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
