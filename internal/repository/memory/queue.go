package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

type QueueRepo struct {
	s *Store
}

func (r *QueueRepo) Get(_ context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.queue[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *QueueRepo) GetByCode(_ context.Context, code string) (*domain.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.queue {
		if e.Code == code {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *QueueRepo) FindWaitingByPhone(_ context.Context, phone string, from, to time.Time) (*domain.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var found *domain.QueueEntry
	for _, e := range r.s.queue {
		if e.Phone != phone || e.Status != domain.QueueWaiting || !inWindow(e.CreatedAt, from, to) {
			continue
		}
		if found == nil || e.Before(*found) {
			found = &e
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *QueueRepo) CountWaitingBefore(_ context.Context, e *domain.QueueEntry, from, to time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, other := range r.s.queue {
		if other.Status != domain.QueueWaiting || !inWindow(other.CreatedAt, from, to) {
			continue
		}
		if other.Before(*e) {
			n++
		}
	}
	return n, nil
}

func (r *QueueRepo) List(_ context.Context, f repository.QueueFilter) ([]domain.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.QueueEntry
	for _, e := range r.s.queue {
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	return out, nil
}

func (r *QueueRepo) Create(_ context.Context, e *domain.QueueEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, other := range r.s.queue {
		if other.Code == e.Code {
			return repository.ErrDuplicateCode
		}
		if e.Status == domain.QueueWaiting && other.Status == domain.QueueWaiting &&
			other.Phone == e.Phone && sameDay(other.ServiceDate, e.ServiceDate) {
			return repository.ErrConflict
		}
	}

	e.ID = uuid.New()
	e.CreatedAt = r.s.now()
	r.s.queue[e.ID] = *e

	return nil
}

func (r *QueueRepo) Transition(_ context.Context, e *domain.QueueEntry, from ...domain.QueueStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.queue[e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if !slices.Contains(from, cur.Status) {
		return repository.ErrConflict
	}

	cur.Status = e.Status
	cur.CalledAt = e.CalledAt
	cur.SeatedAt = e.SeatedAt
	r.s.queue[e.ID] = cur
	*e = cur

	return nil
}

func (r *QueueRepo) ExpireActive(_ context.Context, from, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, e := range r.s.queue {
		if e.Status.Terminal() {
			continue
		}
		if !from.IsZero() && e.CreatedAt.Before(from) {
			continue
		}
		if !e.CreatedAt.Before(before) {
			continue
		}
		e.Status = domain.QueueExpired
		r.s.queue[id] = e
		n++
	}
	return n, nil
}
