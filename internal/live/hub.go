// Package live pushes queue status to waiting guests over websockets.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 8
)

type Lookup interface {
	LookupByCode(ctx context.Context, code string) (*domain.QueuePosition, error)
}

type client struct {
	code string
	send chan []byte
}

// Hub keeps one websocket per watcher of a queue code. Any queue change can
// move positions, so every watcher is refreshed on every change.
type Hub struct {
	sub      events.Subscriber
	lookup   Lookup
	render   func(*domain.QueuePosition) any
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(sub events.Subscriber, lookup Lookup, logger *slog.Logger) *Hub {
	return &Hub{
		sub:    sub,
		lookup: lookup,
		render: func(v *domain.QueuePosition) any { return v },
		logger: logger.With("component", "live_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// WithRender sets the payload shape pushed to sockets.
func (h *Hub) WithRender(fn func(*domain.QueuePosition) any) *Hub {
	h.render = fn
	return h
}

// Run consumes change events until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	err := h.sub.Subscribe(ctx, h.onChange)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Watchers reports how many sockets are open.
func (h *Hub) Watchers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams the status of code until the peer
// goes away. The caller has already checked that code exists.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, code string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{code: code, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	if msg, ok := h.status(r.Context(), code); ok {
		c.send <- msg
	}

	done := make(chan struct{})
	go h.writeLoop(conn, c, done)

	// reads only serve to notice the close and keep pongs flowing
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Hub) onChange(ctx context.Context, c events.Change) {
	if c.Kind != events.QueueChanged {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	// one lookup per code, shared by every socket watching it
	cache := make(map[string][]byte)
	for _, cl := range targets {
		msg, seen := cache[cl.code]
		if !seen {
			var ok bool
			if msg, ok = h.status(ctx, cl.code); !ok {
				msg = nil
			}
			cache[cl.code] = msg
		}
		if msg == nil {
			continue
		}

		select {
		case cl.send <- msg:
		default:
			// slow reader; the next change carries fresh state anyway
		}
	}
}

func (h *Hub) status(ctx context.Context, code string) ([]byte, bool) {
	v, err := h.lookup.LookupByCode(ctx, code)
	if err != nil {
		h.logger.Warn("queue lookup failed", "code", code, "error", err)
		return nil, false
	}

	b, err := json.Marshal(h.render(v))
	if err != nil {
		h.logger.Error("marshal queue status", "error", err)
		return nil, false
	}

	return b, true
}
