// Package live streams finished analyses to websocket viewers.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
	broadcastQueue  = 64
	viewerQueue     = 16
	maxMessageSize  = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// viewer is one websocket connection. Only the hub closes send.
type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	clients    map[*viewer]bool
	broadcast  chan []byte
	register   chan *viewer
	unregister chan *viewer
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *zap.SugaredLogger

	pongWait   time.Duration
	pingPeriod time.Duration
}

type Option func(*Hub)

// WithPongWait sets how long a viewer may stay silent before it is dropped.
// Pings go out at nine tenths of that interval.
func WithPongWait(d time.Duration) Option {
	return func(h *Hub) {
		h.pongWait = d
	}
}

func NewHub(logger *zap.SugaredLogger, opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*viewer]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *viewer),
		unregister: make(chan *viewer),
		done:       make(chan struct{}),
		logger:     logger,
		pongWait:   defaultPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.pingPeriod = h.pongWait * 9 / 10
	return h
}

// Run owns the client set until ctx is cancelled, then closes every viewer.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Infof("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Infof("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("Viewer too slow, disconnecting")
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) join(client *viewer) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *viewer) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PublishAnalysis queues an analysis for every viewer. When the queue is
// full the message is dropped rather than stalling the caller.
func (h *Hub) PublishAnalysis(analysis *models.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	select {
	case h.broadcast <- data:
		return nil
	default:
		h.logger.Warnw("Live queue full, dropping analysis", "analysis_id", analysis.ID)
		return nil
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades a viewer connection and holds it open until the peer leaves.
// Viewers never send anything meaningful; reads only track liveness.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	client := &viewer{conn: conn, send: make(chan []byte, viewerQueue)}
	if !h.join(client) {
		conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(client *viewer) {
	defer func() {
		h.leave(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (h *Hub) writePump(client *viewer) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warnf("Error sending to viewer: %v", err)
				return
			}

		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
