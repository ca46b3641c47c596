// Package memory is a process-local storage backend. It enforces the same
// uniqueness constraints as the Postgres schema, which makes it usable for
// tests and for running the service without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/slots"
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	bookings map[uuid.UUID]domain.Booking
	blocks   map[uuid.UUID]domain.BlockedSlot
	queue    map[uuid.UUID]domain.QueueEntry
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		bookings: make(map[uuid.UUID]domain.Booking),
		blocks:   make(map[uuid.UUID]domain.BlockedSlot),
		queue:    make(map[uuid.UUID]domain.QueueEntry),
	}
}

// RunTx runs fn against the store itself. Each repository call is atomic;
// there is no rollback, so a failed fn keeps the writes it already made.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	return fn(ctx, s)
}

func (s *Store) Bookings() repository.BookingRepository         { return &BookingRepo{s: s} }
func (s *Store) BlockedSlots() repository.BlockedSlotRepository { return &BlockedSlotRepo{s: s} }
func (s *Store) Queue() repository.QueueRepository              { return &QueueRepo{s: s} }

func sameDay(a, b time.Time) bool {
	return slots.Key(a) == slots.Key(b)
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func slotOrder(label string) int {
	h, err := slots.Hour(label)
	if err != nil {
		return 99
	}
	return h
}
