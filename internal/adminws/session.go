package adminws

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neopult/neopult/internal/registry"
)

// Close codes for the auth handshake. The source uses bare 1/2, which fall
// in the range reserved for the WebSocket protocol itself; RFC 6455
// requires application codes to start at 3000, so these are shifted into
// the private-use range.
const (
	closeCodeAuthFailed  = 4001
	closeCodeAuthTimeout = 4002
)

// session is one authenticated (or authenticating) admin connection.
type session struct {
	server *Server
	conn   *websocket.Conn

	send chan interface{}
	done chan struct{}

	closeOnce sync.Once
	authOK    int32 // atomic bool, set once auth succeeds
}

func newSession(s *Server, conn *websocket.Conn) *session {
	return &session{
		server: s,
		conn:   conn,
		send:   make(chan interface{}, 32),
		done:   make(chan struct{}),
	}
}

func (s *session) authenticated() bool {
	return atomic.LoadInt32(&s.authOK) == 1
}

func (s *session) enqueue(msg interface{}) {
	select {
	case s.send <- msg:
	default:
		// A client this far behind has already missed a delta with no way
		// to resync; terminate rather than let it keep running on stale
		// state.
		s.terminate()
	}
}

// terminate unblocks writePump and forces the connection closed so
// readPump stops promptly too. Safe to call from any goroutine, any
// number of times.
func (s *session) terminate() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// run drives one connection's full lifecycle: the plaintext password
// handshake, then the JSON message loop with heartbeat.
func (s *session) run() {
	defer s.close()

	if !s.authenticate() {
		return
	}

	// Mark authenticated, snapshot the registry, and enqueue system_info
	// all inside one closure run on the event-loop thread: Snapshot reads
	// registry state that only that thread may touch (spec §5), and doing
	// the enqueue there too guarantees it lands on s.send strictly before
	// any notification from a mutation the loop processes afterward (spec
	// §4.6 "on successful auth ... sends a single system_info" before live
	// updates).
	s.server.lp.Post(func() {
		atomic.StoreInt32(&s.authOK, 1)
		s.server.metrics.AdminClients.Inc()
		s.enqueue(systemInfoMessage(s.server.reg.Snapshot()))
	})

	go s.writePump()
	s.readPump()
}

// authenticate implements the handshake: the client's first frame must be
// the plaintext "Password <secret>" within authTimeout, compared against
// the configured hash in constant time. Anything else closes the
// connection with a reason identifying which side of the contract failed.
func (s *session) authenticate() bool {
	_ = s.conn.SetReadDeadline(time.Now().Add(authTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.closeWith(closeCodeAuthTimeout, "auth_timeout")
		return false
	}

	const prefix = "Password "
	text := string(data)
	if !strings.HasPrefix(text, prefix) {
		s.closeWith(closeCodeAuthFailed, "auth")
		return false
	}

	given := sha256.Sum256([]byte(strings.TrimPrefix(text, prefix)))
	if subtle.ConstantTimeCompare(given[:], s.server.passwordHash[:]) != 1 {
		s.closeWith(closeCodeAuthFailed, "auth")
		return false
	}

	_ = s.conn.SetReadDeadline(time.Time{})
	return true
}

func (s *session) closeWith(code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// readPump reads client frames until the connection errors or times out.
// Every received frame — including application-level pong — resets the
// client timeout deadline, matching the source's combined heartbeat select.
// Frames are read as raw bytes rather than through ReadJSON because the
// client vocabulary mixes bare JSON strings ("ping"/"pong") with a
// {"request":...} object (spec §6.3), which have no common Go type.
func (s *session) readPump() {
	_ = s.conn.SetReadDeadline(time.Now().Add(clientTimeout))
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(clientTimeout))
		s.handleClientFrame(data)
	}
}

func (s *session) handleClientFrame(data []byte) {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		switch text {
		case "ping":
			s.enqueue(pongFrame())
		case "pong":
			// Deadline already refreshed by readPump; nothing else to do.
		}
		return
	}

	var req clientRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Request == nil {
		return
	}
	if call := req.Request.Body.CallAction; call != nil {
		s.dispatchAction(*call)
	}
}

// dispatchAction resolves the action on the loop thread and invokes its
// callback there, matching the invariant that action callbacks run
// exclusively on the event-loop thread. No response frame is sent back to
// the client for this call (spec §4.6 "No response frame is defined").
func (s *session) dispatchAction(msg callActionBody) {
	id := registry.ActionIdentifier{PluginInstance: msg.PluginInstance, Module: msg.Module, Action: msg.Action}
	m := s.server
	m.lp.Post(func() {
		action, err := m.reg.Action(id)
		if err != nil {
			m.metrics.ActionsInvoked.WithLabelValues("not_found").Inc()
			m.logger.Warn("call_action for unknown action " + id.String())
			return
		}
		if err := action.Callback(); err != nil {
			m.metrics.ActionsInvoked.WithLabelValues("script_error").Inc()
			m.metrics.ScriptErrors.Inc()
			m.logger.Scoped(id.PluginInstance, id.Module).Error("action " + id.Action + " failed: " + err.Error())
			return
		}
		m.metrics.ActionsInvoked.WithLabelValues("ok").Inc()
	})
}

// writePump owns the connection's write side exclusively, serializing JSON
// frames and periodic heartbeat pings sent from the heartbeatInterval
// ticker below.
func (s *session) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.terminate()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteJSON(pingFrame()); err != nil {
				s.terminate()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) close() {
	s.terminate()
	s.server.removeSession(s)
}
