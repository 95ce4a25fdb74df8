package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dbehnke/bts-codec/pkg/config"
	"github.com/dbehnke/bts-codec/pkg/database"
	"github.com/dbehnke/bts-codec/pkg/engine"
	"github.com/dbehnke/bts-codec/pkg/logger"
	"github.com/dbehnke/bts-codec/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	clientSend = 64
)

// HistoryReader is the read side of the decode history.
type HistoryReader interface {
	GetRecent(channel string, limit int) ([]database.DecodeRecord, error)
	Summary(since time.Time) ([]database.SchemeSummary, error)
}

// Server serves the codec API, the live decode stream and the metrics.
type Server struct {
	config       *config.Config
	logger       *logger.Logger
	httpServer   *http.Server
	engine       *engine.Engine
	metrics      *metrics.Metrics
	history      HistoryReader
	websocketHub *WebSocketHub
	startTime    time.Time
	version      string
	buildTime    string
	mu           sync.RWMutex
	running      bool
}

// WebSocketHub fans messages out to the connected stream clients.
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	logger     *logger.Logger
	count      int
	countMu    sync.RWMutex
}

// wsClient is one stream connection. Only its write pump writes to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// NewServer creates a new web server. m and history may be nil.
func NewServer(cfg *config.Config, log *logger.Logger, eng *engine.Engine, m *metrics.Metrics, history HistoryReader, version, buildTime string) *Server {
	hub := &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		logger:     log.WithComponent("web.hub"),
	}

	return &Server{
		config:       cfg,
		logger:       log.WithComponent("web"),
		engine:       eng,
		metrics:      m,
		history:      history,
		websocketHub: hub,
		startTime:    time.Now(),
		version:      version,
		buildTime:    buildTime,
	}
}

// Start starts the web server and blocks until ctx is done or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Web.Enabled {
		s.logger.Info("Web server disabled")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("web server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.run(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Web.Host, s.config.Web.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting web server", logger.String("address", addr))

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down web server")
		return s.Stop()
	}
}

// run starts the hub and the engine event pump.
func (s *Server) run(ctx context.Context) {
	events, cancel := s.engine.Subscribe()
	go s.websocketHub.run(ctx)
	go s.processEvents(ctx, events, cancel)
}

// Stop stops the web server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.corsMiddleware)
	api.Use(s.jsonMiddleware)

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/system/info", s.handleSystemInfo).Methods("GET")
	api.HandleFunc("/schemes", s.handleSchemes).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Codec endpoints
	api.HandleFunc("/encode", s.handleEncode).Methods("POST", "OPTIONS")
	api.HandleFunc("/decode", s.handleDecode).Methods("POST", "OPTIONS")
	api.HandleFunc("/selftest", s.handleSelfTest).Methods("POST", "OPTIONS")

	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/history/summary", s.handleHistorySummary).Methods("GET")

	// WebSocket endpoint
	router.HandleFunc("/ws", s.handleWebSocket)

	if s.metrics != nil && s.config.Metrics.Enabled && s.config.Metrics.Prometheus.Enabled {
		router.Handle(s.config.Metrics.Prometheus.Path, s.metrics.Handler()).Methods("GET")
	}

	return router
}

// processEvents forwards engine decode events to the stream clients.
func (s *Server) processEvents(ctx context.Context, events <-chan engine.DecodeEvent, cancel func()) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.broadcastWebSocketMessage("decode", decodeEventResponse{
				Result:    toDecodeResponse(&ev.Result),
				Timestamp: ev.Timestamp,
			})
		}
	}
}

// WebSocket hub run loop
func (hub *WebSocketHub) run(ctx context.Context) {
	defer close(hub.done)
	for {
		select {
		case <-ctx.Done():
			for c := range hub.clients {
				hub.drop(c)
			}
			return

		case c := <-hub.register:
			hub.clients[c] = true
			hub.setCount(len(hub.clients))

		case c := <-hub.unregister:
			if hub.clients[c] {
				hub.drop(c)
			}

		case message := <-hub.broadcast:
			for c := range hub.clients {
				select {
				case c.send <- message:
				default:
					hub.logger.Warn("WebSocket client too slow, dropping connection")
					hub.drop(c)
				}
			}
		}
	}
}

// drop closes the client send queue; the write pump then closes the socket.
func (hub *WebSocketHub) drop(c *wsClient) {
	delete(hub.clients, c)
	close(c.send)
	hub.setCount(len(hub.clients))
}

func (hub *WebSocketHub) setCount(n int) {
	hub.countMu.Lock()
	hub.count = n
	hub.countMu.Unlock()
}

// Clients returns the number of connected stream clients.
func (hub *WebSocketHub) Clients() int {
	hub.countMu.RLock()
	defer hub.countMu.RUnlock()
	return hub.count
}

// broadcastWebSocketMessage broadcasts a message to all WebSocket clients
func (s *Server) broadcastWebSocketMessage(messageType string, data interface{}) {
	jsonData, err := json.Marshal(WebSocketMessage{Type: messageType, Data: data})
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket message", logger.Error(err))
		return
	}

	select {
	case s.websocketHub.broadcast <- jsonData:
	default:
		// Don't block if broadcast channel is full
		s.logger.Warn("WebSocket broadcast channel full, dropping message",
			logger.String("message_type", messageType))
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", logger.Error(err))
		return
	}

	s.logger.Debug("New WebSocket connection", logger.String("remote", r.RemoteAddr))

	c := &wsClient{conn: conn, send: make(chan []byte, clientSend)}

	// Queue the current totals before registering so they arrive first.
	if initial, err := json.Marshal(WebSocketMessage{Type: "stats", Data: s.stats()}); err == nil {
		c.send <- initial
	}
	select {
	case s.websocketHub.register <- c:
	case <-s.websocketHub.done:
		_ = conn.Close()
		return
	}
	go c.writePump(s.logger)

	conn.SetReadLimit(512)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Debug("WebSocket set read deadline failed", logger.Error(err))
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket error", logger.Error(err))
			}
			break
		}
	}

	select {
	case s.websocketHub.unregister <- c:
	case <-s.websocketHub.done:
	}
}

func (c *wsClient) writePump(log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.Debug("failed to close websocket client", logger.Error(err))
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
