package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/statuswatch/statuswatch/internal/dispatch"
	"github.com/statuswatch/statuswatch/internal/pkg/logger"
)

// State describes the lifecycle position of a connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseOrgRejected is the application-level close code the server sends
// when org_id is missing or invalid.
const CloseOrgRejected = 4001

const closeWriteTimeout = 2 * time.Second

// conn is one logical socket bound to an organization. Closed is terminal;
// a fresh Subscribe builds a fresh conn.
type conn struct {
	orgID   string
	ws      *websocket.Conn
	onEvent EventHandler
	log     *logger.Logger

	st           atomic.Int32
	clientClosed atomic.Bool // set on intentional close, quiets the read loop exit
	closeOnce    sync.Once
}

func newConn(orgID string, ws *websocket.Conn, onEvent EventHandler, log *logger.Logger) *conn {
	c := &conn{
		orgID:   orgID,
		ws:      ws,
		onEvent: onEvent,
		log:     log,
	}
	c.st.Store(int32(StateOpen))
	return c
}

func (c *conn) state() State {
	return State(c.st.Load())
}

func (c *conn) alive() bool {
	s := c.state()
	return s == StateOpen || s == StateConnecting
}

// close performs an intentional close with the given code and reason.
// Idempotent, and safe after the remote end already went away.
func (c *conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.clientClosed.Store(true)
		c.st.Store(int32(StateClosed))

		msg := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(closeWriteTimeout)
		// Best effort: the peer may already be gone.
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.ws.Close()
	})
}

// readLoop forwards parsed events to the handler until the socket dies.
// Malformed frames are dropped and logged, never surfaced as events.
func (c *conn) readLoop(onClosed func(*conn)) {
	defer func() {
		c.st.Store(int32(StateClosed))
		_ = c.ws.Close()
		onClosed(c)
	}()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			c.logClose(err)
			return
		}

		env, err := dispatch.ParseEnvelope(frame)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed frame")
			continue
		}

		c.onEvent(env)
	}
}

// logClose differentiates close causes for logging only. Reconnection is
// left to the caller either way.
func (c *conn) logClose(err error) {
	if c.clientClosed.Load() {
		c.log.Debug("read loop exiting after client close")
		return
	}

	switch {
	case websocket.IsCloseError(err, CloseOrgRejected):
		c.log.WithError(err).Warn("server rejected connection: organization id missing or invalid")
	case websocket.IsCloseError(err, websocket.CloseInternalServerErr):
		c.log.WithError(err).Warn("server closed connection: internal server error")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Info("server closed connection")
	default:
		c.log.WithError(err).Warn("connection lost")
	}
}
