// Package monitoring streams scan events to websocket subscribers and
// exposes prometheus metrics.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type MessageType string

const (
	ScanResult   MessageType = "scan_result"
	ScanRejected MessageType = "scan_rejected"
	ModelStatus  MessageType = "model_status"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// ScanEvent describes one handled scan request. Outcome is "ok" or the
// error kind that rejected it.
type ScanEvent struct {
	RequestID         string  `json:"request_id,omitempty"`
	Outcome           string  `json:"outcome"`
	Fruit             string  `json:"fruit,omitempty"`
	OrganicStatus     string  `json:"organic_status,omitempty"`
	FruitConfidence   float64 `json:"fruit_confidence,omitempty"`
	OrganicConfidence float64 `json:"organic_confidence,omitempty"`
	OutOfRange        []int   `json:"out_of_range,omitempty"`
	Error             string  `json:"error,omitempty"`
	LatencyMillis     float64 `json:"latency_ms"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// ScanHub fans scan events out to every connected websocket client. Slow
// clients whose buffer fills up are dropped rather than blocking scans.
type ScanHub struct {
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	clients    map[*client]bool
	mu         sync.RWMutex
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

func NewScanHub(logger *zap.Logger, allowedOrigins []string) *ScanHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanHub{
		logger:  logger.Named("ws"),
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *ScanHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", zap.String("client", c.id), zap.Int("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", zap.String("client", c.id), zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("dropping slow client", zap.String("client", c.id))
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *ScanHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *ScanHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), id: uuid.NewString()}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump(h.logger)
	go c.readPump(h)
}

// PublishScan broadcasts a scan event. It never blocks; when the queue is
// full the event is dropped.
func (h *ScanHub) PublishScan(event ScanEvent) error {
	typ := ScanResult
	if event.Outcome != "ok" {
		typ = ScanRejected
	}
	return h.publish(typ, event)
}

// PublishModelStatus broadcasts whether the models are loaded.
func (h *ScanHub) PublishModelStatus(loaded bool) error {
	return h.publish(ModelStatus, map[string]bool{"models_loaded": loaded})
}

func (h *ScanHub) publish(typ MessageType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	message, err := json.Marshal(Message{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
		ID:        uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast queue full, dropping message", zap.String("type", string(typ)))
	}
	return nil
}

func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
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
				logger.Debug("websocket write failed", zap.String("client", c.id), zap.Error(err))
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

// readPump discards client input; it only exists to notice disconnects.
func (c *client) readPump(h *ScanHub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket closed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}
