package stream

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/soilsim/internal/models"
)

const writeWait = 10 * time.Second

// Broadcaster serves a WebSocket endpoint that pushes every published
// reading to all attached clients, so scopes and loggers can follow a
// running simulation live. It only forwards data; rendering is the
// client's business.
type Broadcaster struct {
	upgrader       websocket.Upgrader
	authToken      string
	allowedOrigins []string
	logger         zerolog.Logger

	mutex   sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

// NewBroadcaster creates a new WebSocket broadcaster
func NewBroadcaster(authToken string, logger zerolog.Logger, allowedOrigins ...string) *Broadcaster {
	b := &Broadcaster{
		authToken:      authToken,
		allowedOrigins: allowedOrigins,
		logger:         logger,
		clients:        make(map[*websocket.Conn]struct{}),
	}

	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     b.checkOrigin,
	}

	return b
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (b *Broadcaster) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	for _, allowed := range b.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	b.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

// ServeHTTP handles WebSocket attachment requests
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !b.validateToken(r.Header.Get("Authorization")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	b.mutex.Lock()
	b.clients[conn] = struct{}{}
	count := len(b.clients)
	b.mutex.Unlock()
	b.logger.Info().Str("remote", conn.RemoteAddr().String()).Int("clients", count).Msg("Stream client attached")

	// Clients only listen; the read loop exists to notice the close
	go b.readLoop(conn)
}

// validateToken checks the "Bearer <token>" Authorization header
func (b *Broadcaster) validateToken(authHeader string) bool {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	return strings.TrimPrefix(authHeader, "Bearer ") == b.authToken
}

// readLoop discards inbound frames until the client disconnects
func (b *Broadcaster) readLoop(conn *websocket.Conn) {
	defer b.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// remove detaches and closes a client connection
func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mutex.Lock()
	delete(b.clients, conn)
	count := len(b.clients)
	b.mutex.Unlock()
	conn.Close()
	b.logger.Info().Int("clients", count).Msg("Stream client detached")
}

// ClientCount returns the number of attached clients
func (b *Broadcaster) ClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// Broadcast pushes one reading to every attached client. Clients that
// fail the write are detached; a slow scope must not stall the run.
func (b *Broadcaster) Broadcast(reading *models.Reading) error {
	msg, err := models.NewMessage(models.MessageTypeReading, reading)
	if err != nil {
		return err
	}

	b.mutex.RLock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mutex.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			b.logger.Warn().Err(err).Msg("Dropping stream client after write error")
			b.remove(conn)
		}
	}
	return nil
}

// Close detaches all clients
func (b *Broadcaster) Close() {
	b.mutex.Lock()
	for conn := range b.clients {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
		delete(b.clients, conn)
	}
	b.mutex.Unlock()
	b.logger.Info().Msg("Broadcaster closed")
}
