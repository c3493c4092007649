package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/monitor"
)

const (
	writeWait      = 5 * time.Second
	clientQueueLen = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrigin,
}

// pushMessage is the envelope for every frame on /ws.
type pushMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// sameHostOrigin allows requests with no Origin (CLI tools) and browsers on
// the same host, ignoring the port.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.EqualFold(u.Hostname(), host)
}

// hub fans out alerts to connected push clients. Each client owns a bounded
// queue; a slow client loses messages rather than stalling the monitor.
type hub struct {
	log     logger.Logger
	mu      sync.Mutex
	clients map[*pushClient]struct{}
}

type pushClient struct {
	send chan pushMessage
	done chan struct{}
	once sync.Once
}

func (c *pushClient) close() {
	c.once.Do(func() { close(c.done) })
}

func newHub(log logger.Logger) *hub {
	return &hub{log: log, clients: make(map[*pushClient]struct{})}
}

func (h *hub) add() *pushClient {
	c := &pushClient{send: make(chan pushMessage, clientQueueLen), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *pushClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg pushMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Debug("push client queue full, dropping %s", msg.Type)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := s.hub.add()
	defer s.hub.remove(client)

	// Reader goroutine: we don't expect client messages, but reading is how
	// gorilla notices the peer went away.
	go func() {
		defer client.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg pushMessage) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteJSON(msg)
	}
	stats := func() pushMessage {
		return pushMessage{Type: monitor.EventStatsUpdate.String(), Data: s.mon.Stats()}
	}

	if err := write(stats()); err != nil {
		return
	}

	ticker := time.NewTicker(s.opts.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-client.send:
			if err := write(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(stats()); err != nil {
				return
			}
		}
	}
}
