// Package bridge exposes a running session to browser clients over WebSocket.
// Clients receive a snapshot after every change and send UI commands back.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionDriver is the session surface the bridge drives.
type SessionDriver interface {
	Start(ctx context.Context, pitch models.PitchData, verification *models.Verification) error
	Verify(ctx context.Context, kind models.VerificationType, subject string) (*models.Verification, error)
	SearchDeFi(ctx context.Context, query string) ([]models.Protocol, error)
	EndPitch() error
	SendMessage(text string) error
	RespondToOffer(offerID string, action models.OfferAction, terms *models.CounterTerms) error
	CycleStatus(participantID string) error
	Reset() error
	Snapshot() (models.Session, error)
	Subscribe() (<-chan models.Session, func())
}

// Hub manages browser connections for one session
type Hub struct {
	driver SessionDriver

	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan outbound
}

// outbound is a pre-encoded message for every connection except skip.
type outbound struct {
	data []byte
	skip *Connection
}

// Connection is one attached browser client
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	ConnectedAt time.Time
	// LastPing is the time of the last pong; guarded by Hub.mu.
	LastPing time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CommandTimeout  time.Duration
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CommandTimeout:  30 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewHub(driver SessionDriver, config ConnectionConfig) *Hub {
	return &Hub{
		driver:      driver,
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan outbound, 64),
	}
}

// Run forwards session snapshots to every connection until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	updates, cancel := h.driver.Subscribe()
	defer cancel()

	log.Info().Msg("bridge hub started")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info().Msg("bridge hub shutting down")
			return
		case s := <-updates:
			data, err := encode(TypeSnapshot, s)
			if err != nil {
				log.Error().Err(err).Msg("failed to marshal snapshot")
				continue
			}
			h.broadcast(data, nil)
		case out := <-h.broadcastCh:
			h.broadcast(out.data, out.skip)
		}
	}
}

// ServeWS upgrades the request and attaches the client to the session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 32),
		Hub:         h,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	h.register(connection)

	if s, err := h.driver.Snapshot(); err == nil {
		if data, err := encode(TypeSnapshot, s); err == nil {
			connection.enqueue(data)
		}
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
}

// broadcastExcept queues a pre-encoded message for every connection but skip.
func (h *Hub) broadcastExcept(data []byte, skip *Connection) {
	select {
	case h.broadcastCh <- outbound{data: data, skip: skip}:
	default:
		log.Warn().Msg("broadcast channel full, dropping message")
	}
}

func (h *Hub) register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(h.connections)).
		Msg("connection registered")
}

func (h *Hub) unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[conn]; exists {
		delete(h.connections, conn)
		close(conn.Send)

		log.Info().
			Str("connection_id", conn.ID).
			Msg("connection unregistered")
	}
}

func (h *Hub) broadcast(data []byte, skip *Connection) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections))
	for conn := range h.connections {
		if conn != skip {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if !conn.enqueue(data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			h.unregister(conn)
			conn.Conn.Close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections))
	for conn := range h.connections {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		h.unregister(conn)
	}
}

// enqueue hands data to the write pump. It reports false when the client is
// too slow to keep up. Sending on a connection that was just unregistered is
// a no-op.
func (c *Connection) enqueue(data []byte) (ok bool) {
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if !c.Hub.connections[c] {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Hub.mu.Lock()
		c.LastPing = time.Now()
		c.Hub.mu.Unlock()
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		reply := c.Hub.handleCommand(message)
		if data, err := encode(reply.Type, reply.Data); err == nil {
			if !c.enqueue(data) {
				log.Warn().Str("connection_id", c.ID).Msg("dropping command reply")
			}
		}
		if ack, ok := reply.Data.(AckPayload); ok && reply.Type == TypeAck {
			c.announce(ack.Command)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
	}
}

// announce tells the other clients which command this connection ran.
func (c *Connection) announce(command string) {
	data, err := encode(TypeActivity, ActivityPayload{ConnectionID: c.ID, Command: command})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal activity")
		return
	}
	c.Hub.broadcastExcept(data, c)
}

// Stats describes the attached clients.
func (h *Hub) Stats() []ConnectionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := make([]ConnectionStats, 0, len(h.connections))
	for conn := range h.connections {
		stats = append(stats, ConnectionStats{
			ID:          conn.ID,
			ConnectedAt: conn.ConnectedAt,
			LastPing:    conn.LastPing,
		})
	}
	return stats
}

type ConnectionStats struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	LastPing    time.Time `json:"last_ping"`
}

func encode(kind string, data any) ([]byte, error) {
	b, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	return b, nil
}
