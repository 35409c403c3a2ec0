package webui

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rawdevelop/logging"
	"rawdevelop/orchestrator"
)

// StateSource publishes orchestrator snapshots. The channel always holds the
// latest state and is closed by the returned func or when the source closes.
type StateSource interface {
	Subscribe() (<-chan orchestrator.State, func())
}

// StreamConfig tunes websocket keep-alive.
type StreamConfig struct {
	// PingInterval is how often the server pings each client.
	PingInterval time.Duration

	// PongWait is how long a client may stay silent before it is dropped.
	PongWait time.Duration

	// WriteWait bounds a single message write.
	WriteWait time.Duration

	// MaxMessageSize limits what a client may send.
	MaxMessageSize int64
}

// DefaultStreamConfig returns the default keep-alive settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 512,
	}
}

// StateStream pushes every state change to connected websocket clients.
// Each client has its own subscription, so a slow client only ever skips
// intermediate states and never delays the others.
type StateStream struct {
	source   StateSource
	config   StreamConfig
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]string
	done    chan struct{}
	once    sync.Once
}

// NewStateStream returns a stream over source.
func NewStateStream(source StateSource, config StreamConfig, logger *logging.Logger) *StateStream {
	if logger == nil {
		logger = logging.NewNop()
	}
	def := DefaultStreamConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = def.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = def.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	return &StateStream{
		source:  source,
		config:  config,
		logger:  logger.Named("ws"),
		clients: make(map[*websocket.Conn]string),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleConnection upgrades the request and starts streaming. The first
// message is the current state.
func (s *StateStream) HandleConnection(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	})

	s.addClient(conn)
	states, unsubscribe := s.source.Subscribe()
	readDone := make(chan struct{})
	go s.readPump(conn, readDone)
	go s.writePump(conn, states, unsubscribe, readDone)
}

// ClientCount returns the number of connected clients.
func (s *StateStream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close sends a close frame to every client and refuses new connections.
func (s *StateStream) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *StateStream) addClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remote := conn.RemoteAddr().String()
	s.clients[conn] = remote
	s.logger.Debug("client connected", zap.String("remote", remote), zap.Int("clients", len(s.clients)))
}

func (s *StateStream) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if remote, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		s.logger.Debug("client disconnected", zap.String("remote", remote), zap.Int("clients", len(s.clients)))
	}
}

// readPump consumes pongs and the client's close frame. Client messages are
// otherwise ignored.
func (s *StateStream) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("unexpected close", zap.Error(err))
			}
			return
		}
	}
}

func (s *StateStream) writePump(conn *websocket.Conn, states <-chan orchestrator.State, unsubscribe func(), readDone <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		unsubscribe()
		s.removeClient(conn)
		conn.Close()
	}()

	for {
		select {
		case state, ok := <-states:
			if !ok {
				s.writeClose(conn)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := conn.WriteJSON(NewStateMessage(state)); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.done:
			s.writeClose(conn)
			return
		}
	}
}

func (s *StateStream) writeClose(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
}
