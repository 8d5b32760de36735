package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/statuswatch/statuswatch/internal/dispatch"
	"github.com/statuswatch/statuswatch/internal/pkg/logger"
)

// fakeBackend is an HTTP server exposing the probe endpoint and the
// websocket endpoint, with hooks to push frames and observe lifecycle.
type fakeBackend struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	probeDelay time.Duration

	mu    sync.Mutex
	conns []*backendConn
}

type backendConn struct {
	ws     *websocket.Conn
	orgID  string
	closed chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{t: t}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		if b.probeDelay > 0 {
			time.Sleep(b.probeDelay)
		}
		w.WriteHeader(http.StatusOK)
	case "/ws":
		ws, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		bc := &backendConn{
			ws:     ws,
			orgID:  r.URL.Query().Get("org_id"),
			closed: make(chan struct{}),
		}
		b.mu.Lock()
		b.conns = append(b.conns, bc)
		b.mu.Unlock()

		// Drain the connection so close frames are processed.
		go func() {
			defer close(bc.closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) config() Config {
	return Config{
		SocketURL:        "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws",
		ProbeURL:         b.srv.URL + "/healthz",
		ProbeTimeout:     time.Second,
		HandshakeTimeout: time.Second,
	}
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *fakeBackend) conn(i int) *backendConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.conns) {
		b.t.Fatalf("no backend connection %d (have %d)", i, len(b.conns))
	}
	return b.conns[i]
}

// waitForConns blocks until n sockets were accepted.
func (b *fakeBackend) waitForConns(n int) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.openCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	b.t.Fatalf("timed out waiting for %d connections (have %d)", n, b.openCount())
}

func (bc *backendConn) push(t *testing.T, frame string) {
	t.Helper()
	if err := bc.ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("pushing frame: %v", err)
	}
}

func (bc *backendConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-bc.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection close")
	}
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(testWriter{}, "error", "text")
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func collectEvents() (EventHandler, <-chan dispatch.Envelope) {
	ch := make(chan dispatch.Envelope, 16)
	return func(env dispatch.Envelope) { ch <- env }, ch
}

func waitEvent(t *testing.T, ch <-chan dispatch.Envelope) dispatch.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return dispatch.Envelope{}
	}
}

func TestSubscribe_EmptyOrgIsNoop(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	onEvent, _ := collectEvents()
	unsubscribe := m.Subscribe(context.Background(), "", onEvent)

	if backend.openCount() != 0 {
		t.Errorf("expected no socket for empty org id, got %d", backend.openCount())
	}

	// The no-op unsubscribe must be callable.
	unsubscribe()
	unsubscribe()
}

func TestSubscribe_DeliversEventsInOrder(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	onEvent, events := collectEvents()
	unsubscribe := m.Subscribe(context.Background(), "org-a", onEvent)
	defer unsubscribe()

	backend.waitForConns(1)
	bc := backend.conn(0)
	if bc.orgID != "org-a" {
		t.Errorf("org_id = %q, want org-a", bc.orgID)
	}

	bc.push(t, `{"type": "new_incident", "entity_id": "1"}`)
	bc.push(t, `{"type": "incident_updated", "entity_id": "1"}`)

	if env := waitEvent(t, events); env.Type != dispatch.EventNewIncident {
		t.Errorf("first event = %s, want new_incident", env.Type)
	}
	if env := waitEvent(t, events); env.Type != dispatch.EventIncidentUpdated {
		t.Errorf("second event = %s, want incident_updated", env.Type)
	}
}

func TestSubscribe_ReusesLiveConnection(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	onEvent, _ := collectEvents()
	unsub1 := m.Subscribe(context.Background(), "org-a", onEvent)
	backend.waitForConns(1)

	unsub2 := m.Subscribe(context.Background(), "org-a", onEvent)

	// The socket-open side effect must have happened exactly once.
	time.Sleep(50 * time.Millisecond)
	if got := backend.openCount(); got != 1 {
		t.Errorf("open count = %d, want 1", got)
	}

	unsub1()
	unsub2()
}

func TestSubscribe_OrgSwitchClosesPrevious(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	onEventA, _ := collectEvents()
	m.Subscribe(context.Background(), "org-a", onEventA)
	backend.waitForConns(1)

	onEventB, _ := collectEvents()
	unsubB := m.Subscribe(context.Background(), "org-b", onEventB)
	defer unsubB()

	// The old connection closes before (or as) the new one opens; by the
	// time the switch completes there is exactly one live socket.
	backend.conn(0).waitClosed(t)
	backend.waitForConns(2)

	orgID, state := m.Current()
	if orgID != "org-b" || state != StateOpen {
		t.Errorf("current = (%s, %s), want (org-b, open)", orgID, state)
	}
}

func TestSubscribe_OrgSwitchDoesNotLeakEventsToOldHandler(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	onEventA, eventsA := collectEvents()
	m.Subscribe(context.Background(), "org-a", onEventA)
	backend.waitForConns(1)

	onEventB, eventsB := collectEvents()
	unsubB := m.Subscribe(context.Background(), "org-b", onEventB)
	defer unsubB()
	backend.waitForConns(2)

	backend.conn(1).push(t, `{"type": "new_incident", "entity_id": "b-1"}`)

	if env := waitEvent(t, eventsB); env.EntityID != "b-1" {
		t.Errorf("handler B got entity %q, want b-1", env.EntityID)
	}

	select {
	case env := <-eventsA:
		t.Errorf("handler A received event %+v after org switch", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	onEvent, _ := collectEvents()
	unsubscribe := m.Subscribe(context.Background(), "org-a", onEvent)
	backend.waitForConns(1)

	unsubscribe()
	unsubscribe() // must not panic or disturb anything

	backend.conn(0).waitClosed(t)

	// A fresh subscribe opens a fresh socket unaffected by the stale
	// unsubscribe.
	onEvent2, events2 := collectEvents()
	unsub2 := m.Subscribe(context.Background(), "org-a", onEvent2)
	defer unsub2()
	backend.waitForConns(2)

	unsubscribe() // stale release must not close the new connection

	backend.conn(1).push(t, `{"type": "new_incident"}`)
	waitEvent(t, events2)
}

func TestSubscribe_ProbeTimeoutFailsClosed(t *testing.T) {
	backend := newFakeBackend(t)
	backend.probeDelay = 300 * time.Millisecond

	cfg := backend.config()
	cfg.ProbeTimeout = 50 * time.Millisecond

	m := NewManager(cfg, testLogger())
	defer m.Close()

	onEvent, _ := collectEvents()
	unsubscribe := m.Subscribe(context.Background(), "org-a", onEvent)
	unsubscribe()

	if got := backend.openCount(); got != 0 {
		t.Errorf("open count = %d, want 0 after probe timeout", got)
	}

	// A later subscribe succeeds once the backend responds in time.
	backend.probeDelay = 0
	unsub2 := m.Subscribe(context.Background(), "org-a", onEvent)
	defer unsub2()
	backend.waitForConns(1)
}

func TestSubscribe_ProbeUnreachableFailsClosed(t *testing.T) {
	backend := newFakeBackend(t)

	cfg := backend.config()
	cfg.ProbeURL = "http://127.0.0.1:1/healthz" // nothing listens here

	m := NewManager(cfg, testLogger())
	defer m.Close()

	onEvent, _ := collectEvents()
	unsubscribe := m.Subscribe(context.Background(), "org-a", onEvent)
	unsubscribe()

	if got := backend.openCount(); got != 0 {
		t.Errorf("open count = %d, want 0 when backend unreachable", got)
	}
}

func TestReadLoop_DropsMalformedFrames(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	onEvent, events := collectEvents()
	unsubscribe := m.Subscribe(context.Background(), "org-a", onEvent)
	defer unsubscribe()
	backend.waitForConns(1)

	bc := backend.conn(0)
	bc.push(t, `not json at all`)
	bc.push(t, `{"data": {"no": "type"}}`)
	bc.push(t, `{"type": "new_incident", "entity_id": "1"}`)

	env := waitEvent(t, events)
	if env.Type != dispatch.EventNewIncident {
		t.Errorf("event = %s, want new_incident (malformed frames should be dropped)", env.Type)
	}

	select {
	case env := <-events:
		t.Errorf("unexpected extra event %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_CurrentLifecycle(t *testing.T) {
	backend := newFakeBackend(t)
	m := NewManager(backend.config(), testLogger())
	defer m.Close()

	if orgID, state := m.Current(); orgID != "" || state != StateIdle {
		t.Errorf("initial current = (%q, %s), want (\"\", idle)", orgID, state)
	}

	onEvent, _ := collectEvents()
	unsubscribe := m.Subscribe(context.Background(), "org-a", onEvent)
	backend.waitForConns(1)

	if orgID, state := m.Current(); orgID != "org-a" || state != StateOpen {
		t.Errorf("current = (%q, %s), want (org-a, open)", orgID, state)
	}

	unsubscribe()

	if orgID, state := m.Current(); orgID != "" || state != StateIdle {
		t.Errorf("current after unsubscribe = (%q, %s), want (\"\", idle)", orgID, state)
	}
}
