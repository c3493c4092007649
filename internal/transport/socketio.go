package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/connmon/internal/events"
	"github.com/rileyhilliard/connmon/internal/logger"
)

// Engine.IO v4 / Socket.IO v5 packet prefixes used on the wire.
const (
	eioOpen    = "0"
	eioClose   = "1"
	eioPing    = "2"
	eioPong    = "3"
	sioConnect = "40"
	sioDisconn = "41"
	sioEvent   = "42"
	sioConnErr = "44"
)

// SocketIOConfig tunes the Socket.IO client.
type SocketIOConfig struct {
	URLs              []string
	Origin            string
	UserAgent         string
	HandshakeTimeout  time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	// PingInterval and PingTimeout are used until the server's open packet
	// says otherwise.
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// DefaultSocketIOConfig returns browser-like headers and the reconnect
// policy the remote service expects.
func DefaultSocketIOConfig() SocketIOConfig {
	return SocketIOConfig{
		Origin:            "https://pocketoption.com",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		HandshakeTimeout:  10 * time.Second,
		ReconnectAttempts: 5,
		ReconnectDelay:    5 * time.Second,
		PingInterval:      20 * time.Second,
		PingTimeout:       10 * time.Second,
	}
}

// AuthError is returned when the server rejects the connect packet.
type AuthError struct {
	URL    string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected by %s: %s", e.URL, e.Reason)
}

// SocketIOClient speaks just enough Socket.IO over a raw WebSocket to
// authenticate, stay alive, and observe balance pushes. It never places
// orders or subscribes to anything.
type SocketIOClient struct {
	session   Session
	cfg       SocketIOConfig
	log       logger.Logger
	dialer    *websocket.Dialer
	callbacks *events.Dispatcher[EventKind, Event]

	connected atomic.Bool
	closing   atomic.Bool

	mu       sync.Mutex
	conn     *websocket.Conn
	url      string
	balance  Record
	interval time.Duration
	timeout  time.Duration
	stop     chan struct{}
	readDone chan struct{}

	writeMu sync.Mutex
}

// NewSocketIOClient creates a client for session. When cfg.URLs is empty
// the region's endpoint list is used.
func NewSocketIOClient(session Session, cfg SocketIOConfig, log logger.Logger) *SocketIOClient {
	if len(cfg.URLs) == 0 {
		cfg.URLs = RegionURLs(session.Region)
	}
	log = logger.OrDefault(log)
	return &SocketIOClient{
		session: session,
		cfg:     cfg,
		log:     log,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		callbacks: events.NewDispatcher[EventKind, Event]("socketio", log),
	}
}

// Connect tries each endpoint in order and keeps the first that completes
// the Socket.IO handshake. It returns false when none did.
func (c *SocketIOClient) Connect(ctx context.Context) (bool, error) {
	c.closing.Store(false)
	c.mu.Lock()
	c.stop = make(chan struct{})
	c.mu.Unlock()

	if err := c.dialAny(ctx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.log.Debug("socketio: %v", err)
		return false, nil
	}
	c.emit(ctx, EventConnected, c.currentURL())
	return true, nil
}

func (c *SocketIOClient) dialAny(ctx context.Context) error {
	var lastErr error
	for _, u := range c.cfg.URLs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := c.handshake(ctx, u)
		if err != nil {
			c.log.Debug("socketio: %s: %v", u, err)
			lastErr = err
			continue
		}

		if c.closing.Load() {
			conn.Close()
			return fmt.Errorf("client is closing")
		}

		done := make(chan struct{})
		c.mu.Lock()
		c.conn, c.url, c.readDone = conn, u, done
		stop := c.stop
		c.mu.Unlock()

		c.connected.Store(true)
		go c.readLoop(conn, done, stop)
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoints configured")
	}
	return fmt.Errorf("all %d endpoints failed, last error: %w", len(c.cfg.URLs), lastErr)
}

// handshake dials u and completes the Engine.IO open and Socket.IO connect.
func (c *SocketIOClient) handshake(ctx context.Context, u string) (*websocket.Conn, error) {
	hdr := http.Header{}
	if c.cfg.Origin != "" {
		hdr.Set("Origin", c.cfg.Origin)
	}
	if c.cfg.UserAgent != "" {
		hdr.Set("User-Agent", c.cfg.UserAgent)
	}

	conn, _, err := c.dialer.DialContext(ctx, u, hdr)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.handshakeTimeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for open packet: %w", err)
	}
	if !strings.HasPrefix(string(msg), eioOpen) {
		conn.Close()
		return nil, fmt.Errorf("unexpected first packet %q", truncate(string(msg), 40))
	}
	c.applyOpen(string(msg[1:]))

	auth, _ := json.Marshal(map[string]string{"token": c.session.SSID})
	if err := c.write(conn, sioConnect+string(auth)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending connect packet: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("waiting for connect ack: %w", err)
		}
		pkt := string(msg)
		switch {
		case pkt == eioPing:
			_ = c.write(conn, eioPong)
		case strings.HasPrefix(pkt, sioConnErr):
			conn.Close()
			reason := connectErrorReason(pkt[len(sioConnErr):])
			c.emit(ctx, EventAuthError, reason)
			return nil, &AuthError{URL: u, Reason: reason}
		case strings.HasPrefix(pkt, sioConnect):
			_ = conn.SetReadDeadline(time.Time{})
			return conn, nil
		}
	}
}

// applyOpen reads ping timing from the open packet payload.
func (c *SocketIOClient) applyOpen(payload string) {
	var open struct {
		PingInterval int `json:"pingInterval"`
		PingTimeout  int `json:"pingTimeout"`
	}
	interval, timeout := c.cfg.PingInterval, c.cfg.PingTimeout
	if json.Unmarshal([]byte(payload), &open) == nil {
		if open.PingInterval > 0 {
			interval = time.Duration(open.PingInterval) * time.Millisecond
		}
		if open.PingTimeout > 0 {
			timeout = time.Duration(open.PingTimeout) * time.Millisecond
		}
	}
	c.mu.Lock()
	c.interval, c.timeout = interval, timeout
	c.mu.Unlock()
}

func (c *SocketIOClient) readLoop(conn *websocket.Conn, done, stop chan struct{}) {
	defer close(done)

	for {
		c.mu.Lock()
		idle := c.interval + c.timeout
		c.mu.Unlock()
		if idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.onDrop(err, stop)
			return
		}

		pkt := string(msg)
		switch {
		case pkt == eioPing:
			if err := c.write(conn, eioPong); err != nil {
				c.log.Debug("socketio: pong failed: %v", err)
			}
		case strings.HasPrefix(pkt, sioEvent):
			c.handleEvent(pkt[len(sioEvent):])
		case pkt == sioDisconn || pkt == eioClose:
			conn.Close()
			c.onDrop(fmt.Errorf("server closed the session"), stop)
			return
		}
	}
}

// handleEvent parses a `["name", data]` array. Only balance pushes are kept.
func (c *SocketIOClient) handleEvent(body string) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(body), &parts); err != nil || len(parts) == 0 {
		return
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return
	}
	if name != "balance" || len(parts) < 2 {
		return
	}

	rec := Record{}
	if err := json.Unmarshal(parts[1], &rec); err != nil {
		var v float64
		if err := json.Unmarshal(parts[1], &v); err != nil {
			return
		}
		rec = Record{"balance": v}
	}
	c.mu.Lock()
	c.balance = rec
	c.mu.Unlock()
}

// onDrop runs on the reader goroutine when the connection goes away.
func (c *SocketIOClient) onDrop(cause error, stop chan struct{}) {
	if c.closing.Load() {
		return
	}
	if !c.connected.Swap(false) {
		return
	}
	c.log.Warn("socketio: connection to %s lost: %v", c.currentURL(), cause)
	c.emit(context.Background(), EventDisconnected, cause.Error())

	if c.session.Persistent {
		c.reconnect(stop)
	}
}

func (c *SocketIOClient) reconnect(stop chan struct{}) {
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-stop:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		err := c.dialAny(ctx)
		cancel()

		if err == nil {
			c.log.Info("socketio: reconnected to %s after %d attempt(s)", c.currentURL(), attempt)
			c.emit(context.Background(), EventReconnected, c.currentURL())
			return
		}
		c.log.Debug("socketio: reconnect attempt %d/%d failed: %v", attempt, c.cfg.ReconnectAttempts, err)
	}
	c.log.Error("socketio: giving up after %d reconnect attempts", c.cfg.ReconnectAttempts)
}

// Disconnect closes the socket and stops any reconnect in progress.
func (c *SocketIOClient) Disconnect(ctx context.Context) {
	c.closing.Store(true)

	c.mu.Lock()
	conn, done, stop := c.conn, c.readDone, c.stop
	c.conn, c.stop = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn != nil {
		_ = c.write(conn, sioDisconn)
		conn.Close()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	if c.connected.Swap(false) {
		c.emit(ctx, EventDisconnected, "client closed")
	}
}

// GetBalance returns the most recent balance pushed by the server, or nil
// when none has arrived. The service has no request/response balance call.
func (c *SocketIOClient) GetBalance(ctx context.Context) (Record, error) {
	if !c.connected.Load() {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balance == nil {
		return nil, nil
	}
	out := make(Record, len(c.balance))
	for k, v := range c.balance {
		out[k] = v
	}
	return out, nil
}

// SendMessage writes payload as one text frame. The payload must already be
// a Socket.IO packet such as `42["ps"]`.
func (c *SocketIOClient) SendMessage(ctx context.Context, payload string) (bool, error) {
	if !c.connected.Load() {
		return false, nil
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false, nil
	}

	deadline := time.Now().Add(c.handshakeTimeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.writeBy(conn, payload, deadline); err != nil {
		return false, err
	}
	return true, nil
}

func (c *SocketIOClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *SocketIOClient) AddEventCallback(kind EventKind, h Handler) {
	c.callbacks.Register(kind, h)
}

// URL returns the endpoint of the current connection.
func (c *SocketIOClient) URL() string {
	return c.currentURL()
}

func (c *SocketIOClient) currentURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *SocketIOClient) handshakeTimeout() time.Duration {
	if c.cfg.HandshakeTimeout > 0 {
		return c.cfg.HandshakeTimeout
	}
	return 10 * time.Second
}

func (c *SocketIOClient) write(conn *websocket.Conn, pkt string) error {
	return c.writeBy(conn, pkt, time.Now().Add(c.handshakeTimeout()))
}

// writeBy serializes frame writes; gorilla/websocket allows one writer at a time.
func (c *SocketIOClient) writeBy(conn *websocket.Conn, pkt string, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, []byte(pkt))
}

func (c *SocketIOClient) emit(ctx context.Context, kind EventKind, detail string) {
	c.callbacks.Emit(ctx, kind, Event{Kind: kind, Time: time.Now(), Detail: detail})
}

func connectErrorReason(payload string) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(payload), &body) == nil && body.Message != "" {
		return body.Message
	}
	if payload == "" {
		return "connect rejected"
	}
	return payload
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
