package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// Event messaggio inviato ai client websocket
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Hub tiene le connessioni websocket e trasmette gli eventi a tutte
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub crea un hub; check decide quali origini possono collegarsi
func NewHub(check func(r *http.Request) bool, logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: newUpgrader(check),
		logger:   logger,
		clients:  make(map[*websocket.Conn]bool),
	}
}

// Serve aggiorna la richiesta a websocket e la tiene aperta finché il client
// non si disconnette
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	wsClientsGauge.Inc()
	h.logger.Info("🔌 WebSocket client connected", zap.Int("total", total))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if !h.clients[conn] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, conn)
	total := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	wsClientsGauge.Dec()
	h.logger.Info("🔌 WebSocket client disconnected", zap.Int("total", total))
}

// Broadcast invia l'evento a tutti i client; quelli che falliscono vengono chiusi
func (h *Hub) Broadcast(eventType string, data any) {
	ev := Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}

	h.mu.Lock()
	var failed []*websocket.Conn
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Warn("WebSocket send failed", zap.Error(err))
			failed = append(failed, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range failed {
		h.remove(conn)
	}
}

// Clients numero di client collegati
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close chiude tutte le connessioni
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.remove(conn)
	}
}

// handleWebSocket gestisce connessioni WebSocket
func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request)
}
