package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

type BlockedSlotRepo struct {
	s *Store
}

func (r *BlockedSlotRepo) Get(_ context.Context, id uuid.UUID) (*domain.BlockedSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.blocks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r *BlockedSlotRepo) List(_ context.Context, f repository.BlockedSlotFilter) ([]domain.BlockedSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.BlockedSlot
	for _, b := range r.s.blocks {
		if f.From != nil && b.Date.Before(*f.From) && !sameDay(b.Date, *f.From) {
			continue
		}
		if f.To != nil && b.Date.After(*f.To) && !sameDay(b.Date, *f.To) {
			continue
		}
		if f.Environment != nil && !sameEnv(b.Environment, f.Environment) {
			continue
		}
		out = append(out, b)
	}
	sortBlocks(out)

	return out, nil
}

func (r *BlockedSlotRepo) ListByDate(_ context.Context, date time.Time) ([]domain.BlockedSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.BlockedSlot
	for _, b := range r.s.blocks {
		if sameDay(b.Date, date) {
			out = append(out, b)
		}
	}
	sortBlocks(out)

	return out, nil
}

func (r *BlockedSlotRepo) Covered(
	_ context.Context,
	date time.Time,
	timeSlot string,
	env domain.Environment,
) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, b := range r.s.blocks {
		if sameDay(b.Date, date) && b.TimeSlot == timeSlot && b.Covers(env) {
			return true, nil
		}
	}
	return false, nil
}

func (r *BlockedSlotRepo) Create(_ context.Context, b *domain.BlockedSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.insertBlock(b)
}

func (r *BlockedSlotRepo) CreateMany(_ context.Context, blocks []domain.BlockedSlot) ([]domain.BlockedSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var created []domain.BlockedSlot
	for i := range blocks {
		b := blocks[i]
		if err := r.s.insertBlock(&b); err != nil {
			continue
		}
		created = append(created, b)
	}

	return created, nil
}

func (r *BlockedSlotRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.blocks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.blocks, id)

	return nil
}

func (r *BlockedSlotRepo) DeleteByDate(_ context.Context, date time.Time, env *domain.Environment) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, b := range r.s.blocks {
		if !sameDay(b.Date, date) {
			continue
		}
		if env != nil && !sameEnv(b.Environment, env) {
			continue
		}
		delete(r.s.blocks, id)
		n++
	}

	return n, nil
}

// insertBlock must be called with mu held.
func (s *Store) insertBlock(b *domain.BlockedSlot) error {
	for _, other := range s.blocks {
		if sameDay(other.Date, b.Date) && other.TimeSlot == b.TimeSlot && sameEnv(other.Environment, b.Environment) {
			return repository.ErrConflict
		}
	}

	b.ID = uuid.New()
	b.CreatedAt = s.now()
	s.blocks[b.ID] = *b

	return nil
}

func sameEnv(a, b *domain.Environment) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortBlocks(bs []domain.BlockedSlot) {
	sort.Slice(bs, func(i, j int) bool {
		a, b := bs[i], bs[j]
		if !sameDay(a.Date, b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.TimeSlot != b.TimeSlot {
			return slotOrder(a.TimeSlot) < slotOrder(b.TimeSlot)
		}
		return envKey(a.Environment) < envKey(b.Environment)
	})
}

func envKey(e *domain.Environment) string {
	if e == nil {
		return ""
	}
	return string(*e)
}
