// Package events carries change notifications from the domain services to
// live consumers such as the queue websocket feed.
package events

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	AvailabilityChanged Kind = "availability_changed"
	QueueChanged        Kind = "queue_changed"
)

type Change struct {
	Kind   Kind   `json:"type"`
	Date   string `json:"date,omitempty"`
	Code   string `json:"code,omitempty"`
	TsUnix int64  `json:"ts_unix"`
}

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, c Change)) error
}

// Local is an in-process Publisher/Subscriber used when redis is disabled.
type Local struct {
	mu   sync.RWMutex
	subs map[int]chan Change
	next int
}

func NewLocal() *Local {
	return &Local{subs: make(map[int]chan Change)}
}

func (l *Local) Publish(_ context.Context, c Change) error {
	if c.TsUnix == 0 {
		c.TsUnix = time.Now().Unix()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, ch := range l.subs {
		select {
		case ch <- c:
		default:
			// slow subscriber; it will catch up on the next change
		}
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, handler func(ctx context.Context, c Change)) error {
	ch := make(chan Change, 256)

	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = ch
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-ch:
			handler(ctx, c)
		}
	}
}

// Nop drops every change.
type Nop struct{}

func (Nop) Publish(context.Context, Change) error { return nil }
