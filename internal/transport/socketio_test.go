package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/connmon/internal/logger"
)

// fakeUpgrader accepts any Origin; the client always sends the browser
// origin it impersonates, which never matches the test server's host.
var fakeUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fakeSocketIO is a minimal Socket.IO server for client tests.
type fakeSocketIO struct {
	t *testing.T
	// rejectWith, when set, answers the connect packet with a 44 error.
	rejectWith string
	// afterConnect runs on the server conn once the session is established.
	afterConnect func(conn *websocket.Conn)

	mu       sync.Mutex
	headers  []http.Header
	auth     []string
	received []string
	pongs    int
	conns    []*websocket.Conn
}

func (s *fakeSocketIO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := fakeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.auth = append(s.auth, string(msg))
	s.mu.Unlock()

	if s.rejectWith != "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`44{"message":"`+s.rejectWith+`"}`))
		conn.Close()
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"ns-1"}`))

	if s.afterConnect != nil {
		s.afterConnect(conn)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		if string(msg) == eioPong {
			s.pongs++
		} else {
			s.received = append(s.received, string(msg))
		}
		s.mu.Unlock()
	}
}

func (s *fakeSocketIO) snapshot() (auth, received []string, pongs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...), append([]string(nil), s.received...), s.pongs
}

func (s *fakeSocketIO) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + socketIOPath
}

func testSocketIOConfig(urls ...string) SocketIOConfig {
	cfg := DefaultSocketIOConfig()
	cfg.URLs = urls
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.ReconnectAttempts = 3
	return cfg
}

func TestSocketIOClient_ConnectAndProbe(t *testing.T) {
	fs := &fakeSocketIO{t: t}
	fs.afterConnect = func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`42["balance",{"balance":250.5,"currency":"USD"}]`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(eioPing))
	}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	c := NewSocketIOClient(NewSession("my-ssid", RegionDemo), testSocketIOConfig(wsURL(srv)), logger.Noop())

	var mu sync.Mutex
	var kinds []EventKind
	for _, k := range EventKinds {
		c.AddEventCallback(k, func(_ context.Context, ev Event) error {
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
			return nil
		})
	}

	ok, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.IsConnected())
	assert.Equal(t, wsURL(srv), c.URL())

	require.Eventually(t, func() bool {
		bal, _ := c.GetBalance(context.Background())
		return bal != nil
	}, time.Second, 5*time.Millisecond)

	bal, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250.5, bal["balance"])
	assert.Equal(t, "USD", bal["currency"])

	sent, err := c.SendMessage(context.Background(), `42["ps"]`)
	require.NoError(t, err)
	assert.True(t, sent)

	require.Eventually(t, func() bool {
		_, received, pongs := fs.snapshot()
		return pongs == 1 && len(received) == 1
	}, time.Second, 5*time.Millisecond)

	auth, received, _ := fs.snapshot()
	assert.Equal(t, []string{`40{"token":"my-ssid"}`}, auth)
	assert.Equal(t, []string{`42["ps"]`}, received)

	fs.mu.Lock()
	hdr := fs.headers[0]
	fs.mu.Unlock()
	assert.Equal(t, "https://pocketoption.com", hdr.Get("Origin"))
	assert.Contains(t, hdr.Get("User-Agent"), "Mozilla/5.0")

	c.Disconnect(context.Background())
	assert.False(t, c.IsConnected())

	sent, err = c.SendMessage(context.Background(), `42["ps"]`)
	assert.NoError(t, err)
	assert.False(t, sent)

	mu.Lock()
	assert.Equal(t, []EventKind{EventConnected, EventDisconnected}, kinds)
	mu.Unlock()
}

func TestSocketIOClient_SendsConfiguredOrigin(t *testing.T) {
	fs := &fakeSocketIO{t: t}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	cfg := testSocketIOConfig(wsURL(srv))
	cfg.Origin = "https://example.test"
	c := NewSocketIOClient(NewSession("s", RegionDemo), cfg, logger.Noop())
	ok, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer c.Disconnect(context.Background())

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.headers, 1)
	assert.Equal(t, "https://example.test", fs.headers[0].Get("Origin"))
}

func TestSocketIOClient_NoBalanceYet(t *testing.T) {
	srv := httptest.NewServer(&fakeSocketIO{t: t})
	defer srv.Close()

	c := NewSocketIOClient(NewSession("s", RegionDemo), testSocketIOConfig(wsURL(srv)), logger.Noop())
	ok, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer c.Disconnect(context.Background())

	bal, err := c.GetBalance(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, bal)
}

func TestSocketIOClient_FallsThroughEndpoints(t *testing.T) {
	srv := httptest.NewServer(&fakeSocketIO{t: t})
	defer srv.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := wsURL(dead)
	dead.Close()

	c := NewSocketIOClient(NewSession("s", RegionDemo), testSocketIOConfig(deadURL, wsURL(srv)), logger.Noop())
	ok, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer c.Disconnect(context.Background())

	assert.Equal(t, wsURL(srv), c.URL())
}

func TestSocketIOClient_AllEndpointsFail(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := wsURL(dead)
	dead.Close()

	c := NewSocketIOClient(NewSession("s", RegionDemo), testSocketIOConfig(deadURL), logger.Noop())
	ok, err := c.Connect(context.Background())
	assert.NoError(t, err, "a refused connect is a clean false")
	assert.False(t, ok)
	assert.False(t, c.IsConnected())
}

func TestSocketIOClient_AuthRejected(t *testing.T) {
	srv := httptest.NewServer(&fakeSocketIO{t: t, rejectWith: "invalid session"})
	defer srv.Close()

	c := NewSocketIOClient(NewSession("bad", RegionDemo), testSocketIOConfig(wsURL(srv)), logger.Noop())

	var reasons []string
	c.AddEventCallback(EventAuthError, func(_ context.Context, ev Event) error {
		reasons = append(reasons, ev.Detail)
		return nil
	})

	ok, err := c.Connect(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"invalid session"}, reasons)
}

func TestSocketIOClient_ReconnectsWhenPersistent(t *testing.T) {
	fs := &fakeSocketIO{t: t}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	session := NewSession("s", RegionDemo)
	session.Persistent = true
	c := NewSocketIOClient(session, testSocketIOConfig(wsURL(srv)), logger.Noop())

	events := make(chan EventKind, 8)
	for _, k := range EventKinds {
		c.AddEventCallback(k, func(_ context.Context, ev Event) error {
			events <- ev.Kind
			return nil
		})
	}

	ok, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer c.Disconnect(context.Background())
	assert.Equal(t, EventConnected, <-events)

	fs.dropAll()

	select {
	case k := <-events:
		assert.Equal(t, EventDisconnected, k)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnected event")
	}
	select {
	case k := <-events:
		assert.Equal(t, EventReconnected, k)
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnected event")
	}
	assert.True(t, c.IsConnected())
}

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Record
	}{
		{"object payload", `["balance",{"balance":10}]`, Record{"balance": 10.0}},
		{"numeric payload", `["balance",42.5]`, Record{"balance": 42.5}},
		{"other event ignored", `["tick",{"p":1}]`, nil},
		{"malformed ignored", `not json`, nil},
		{"missing data ignored", `["balance"]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSocketIOClient(NewSession("s", RegionDemo), testSocketIOConfig("ws://unused"), logger.Noop())
			c.handleEvent(tt.body)
			assert.Equal(t, tt.want, c.balance)
		})
	}
}

func TestConnectErrorReason(t *testing.T) {
	assert.Equal(t, "nope", connectErrorReason(`{"message":"nope"}`))
	assert.Equal(t, "connect rejected", connectErrorReason(""))
	assert.Equal(t, "raw", connectErrorReason("raw"))
}
