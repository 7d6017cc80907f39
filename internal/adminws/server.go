// Package adminws implements the admin WebSocket server (C6): a
// password-gated channel for a single operator UI to observe registry state
// and invoke actions. One TCP listener per daemon instance, bound to
// 4200+channel (spec §6.1).
package adminws

import (
	"context"
	"crypto/sha256"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neopult/neopult/internal/loop"
	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/metrics"
	"github.com/neopult/neopult/internal/registry"
)

const (
	authTimeout      = 5 * time.Second
	heartbeatInterval = 5 * time.Second
	clientTimeout    = 10 * time.Second
)

// Server owns the HTTP listener, the set of authenticated sessions, and the
// registry subscription that fans notifications out to them.
type Server struct {
	logger       *logging.Logger
	metrics      *metrics.Metrics
	reg          *registry.Registry
	lp           *loop.Loop
	passwordHash [sha256.Size]byte

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// New builds a Server bound to addr (e.g. ":4200"). password is the
// channel's current websocket_password, as configured by init.js.
func New(addr, password string, logger *logging.Logger, m *metrics.Metrics, reg *registry.Registry, lp *loop.Loop) *Server {
	s := &Server{
		logger:       logger,
		metrics:      m,
		reg:          reg,
		lp:           lp,
		passwordHash: sha256.Sum256([]byte(password)),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}

	reg.Subscribe(registry.ObserverFunc(s.broadcast))

	return s
}

// ListenAndServe blocks serving the admin HTTP mux until it fails or Close
// is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("admin websocket server listening on " + s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down, closing all live sessions.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("admin websocket upgrade failed: " + err.Error())
		return
	}
	sess := newSession(s, conn)
	s.addSession(sess)
	go sess.run()
}

func (s *Server) addSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) removeSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
	s.metrics.AdminClients.Set(float64(len(s.sessions)))
}

// broadcast forwards a registry change notification to every authenticated
// session (spec §4.6 Live updates). It is called synchronously from the
// event-loop thread, matching the ordering guarantee registry mutations
// already provide; sessions themselves buffer via their own send channel so
// this never blocks on a slow client.
func (s *Server) broadcast(n registry.Notification) {
	msg := notificationMessage(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		if !sess.authenticated() {
			continue
		}
		sess.enqueue(msg)
		s.metrics.NotificationsOut.Inc()
	}
}
