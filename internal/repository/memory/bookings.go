package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

type BookingRepo struct {
	s *Store
}

func (r *BookingRepo) Get(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r *BookingRepo) List(_ context.Context, f repository.BookingFilter) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Booking
	for _, b := range r.s.bookings {
		if f.Date != nil && !sameDay(b.Date, *f.Date) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Environment != "" && b.Environment != f.Environment {
			continue
		}
		out = append(out, b)
	}
	sortBookings(out)

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}

	return out, nil
}

func (r *BookingRepo) ListActiveByDate(_ context.Context, date time.Time) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.Status.Active() && sameDay(b.Date, date) {
			out = append(out, b)
		}
	}
	sortBookings(out)

	return out, nil
}

func (r *BookingRepo) ExistsActive(
	_ context.Context,
	date time.Time,
	timeSlot string,
	env domain.Environment,
	excludeID uuid.UUID,
) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.slotTaken(date, timeSlot, env, excludeID), nil
}

func (r *BookingRepo) Create(_ context.Context, b *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if b.Status.Active() && r.s.slotTaken(b.Date, b.TimeSlot, b.Environment, uuid.Nil) {
		return repository.ErrConflict
	}

	now := r.s.now()
	b.ID = uuid.New()
	b.CreatedAt = now
	b.UpdatedAt = now
	r.s.bookings[b.ID] = *b

	return nil
}

func (r *BookingRepo) Update(_ context.Context, b *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bookings[b.ID]; !ok {
		return repository.ErrNotFound
	}
	if b.Status.Active() && r.s.slotTaken(b.Date, b.TimeSlot, b.Environment, b.ID) {
		return repository.ErrConflict
	}

	b.UpdatedAt = r.s.now()
	r.s.bookings[b.ID] = *b

	return nil
}

func (r *BookingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.bookings, id)

	return nil
}

// slotTaken must be called with mu held.
func (s *Store) slotTaken(date time.Time, timeSlot string, env domain.Environment, excludeID uuid.UUID) bool {
	for id, b := range s.bookings {
		if id == excludeID || !b.Status.Active() {
			continue
		}
		if sameDay(b.Date, date) && b.TimeSlot == timeSlot && b.Environment == env {
			return true
		}
	}
	return false
}

func sortBookings(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		a, b := bs[i], bs[j]
		if !sameDay(a.Date, b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.TimeSlot != b.TimeSlot {
			return slotOrder(a.TimeSlot) < slotOrder(b.TimeSlot)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
