package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/warpvideo/signaling-relay/internal/config"
	"github.com/warpvideo/signaling-relay/internal/metrics"
	"github.com/warpvideo/signaling-relay/internal/ratelimit"
	"github.com/warpvideo/signaling-relay/internal/relaycore"
)

// Server terminates signaling WebSockets and bridges them into the dispatch
// loop. No credential is required to open the channel; identity is asserted
// later via the authenticate envelope and trusted as given.
type Server struct {
	cfg    config.Config
	log    *slog.Logger
	router *relaycore.Router
	loop   *Loop

	upgrader websocket.Upgrader
}

func NewServer(cfg config.Config, logger *slog.Logger, router *relaycore.Router, loop *Loop) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		log:    logger,
		router: router,
		loop:   loop,
		upgrader: websocket.Upgrader{
			// Origin checks belong to the deployment's edge; the relay
			// accepts any origin, matching its no-credential channel policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// ServeHTTP provides minimal routing for tests and simple deployments.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cl := newClient(conn, s.cfg.SendQueueLength, s.cfg.WSPingInterval)
	go cl.writePump()

	// Registration happens on the loop so the greeting and every later
	// push observe consistent state.
	idCh := make(chan string, 1)
	posted := s.loop.Post(func() {
		c, err := s.router.Connected(cl)
		if err != nil {
			idCh <- ""
			return
		}
		idCh <- c.ID()
	})
	if !posted {
		cl.closeWith(websocket.CloseGoingAway, "server shutting down")
		conn.Close()
		return
	}
	connID := <-idCh
	if connID == "" {
		cl.closeWith(websocket.CloseInternalServerErr, "registration failed")
		conn.Close()
		return
	}

	s.readLoop(conn, cl, connID)

	// The disconnect cascade also runs on the loop; the connection may
	// already be gone if the loop is stopping, which Disconnected tolerates.
	s.loop.Post(func() { s.router.Disconnected(connID) })
	cl.close()
}

// readLoop pumps inbound frames until the transport dies or the connection
// violates the message-rate policy. Malformed frames are logged and
// discarded; the channel stays open.
func (s *Server) readLoop(conn *websocket.Conn, cl *client, connID string) {
	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	})

	limiter := ratelimit.NewTokenBucket(nil,
		int64(s.cfg.MaxMessagesPerSecond), int64(s.cfg.MaxMessagesPerSecond))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))

		// The limit is applied after reading so the frame's bytes are
		// consumed; closing with unread data can turn into an abortive
		// close and hide the close code from the client.
		if !limiter.Allow(1) {
			metrics.RateLimitedTotal.Inc()
			cl.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		if msgType != websocket.TextMessage {
			metrics.MalformedEnvelopesTotal.Inc()
			s.log.Debug("discarding non-text frame", "conn_id", connID)
			continue
		}

		env, err := relaycore.ParseEnvelope(data)
		if err != nil {
			metrics.MalformedEnvelopesTotal.Inc()
			s.log.Debug("discarding malformed envelope", "conn_id", connID, "err", err)
			continue
		}

		if !s.loop.Post(func() { s.router.Dispatch(connID, env) }) {
			cl.closeWith(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}
