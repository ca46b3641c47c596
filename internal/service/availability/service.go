package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/slots"
)

// Cache stores the full-day matrix of a date. Entries are invalidated by
// the booking and block services after every commit that touches the date.
type Cache interface {
	LoadAvailability(
		ctx context.Context,
		date time.Time,
		ttl time.Duration,
		loader func(ctx context.Context) ([]domain.SlotAvailability, error),
	) ([]domain.SlotAvailability, error)
	InvalidateAvailability(ctx context.Context, date time.Time) error
}

type Config struct {
	CacheTTL time.Duration
}

type Service struct {
	store repository.Store
	cache Cache
	clock clock.Clock
	cfg   Config
}

func New(store repository.Store, cache Cache, clk clock.Clock, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		clock: clk,
		cfg:   cfg,
	}
}

// Availability is the public read path. The day's matrix may come from
// cache; labels that already passed are always filtered against the clock.
//
// Returns:
//   - []domain.SlotAvailability: remaining labels in ascending order.
//   - error: domain.ErrPastDate if date is before today.
//   - error: domain.ErrInvalidDate if date is zero.
func (s *Service) Availability(ctx context.Context, date time.Time) ([]domain.SlotAvailability, error) {
	const op = "service.availability.Availability"

	if err := s.CheckDate(date); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	load := func(ctx context.Context) ([]domain.SlotAvailability, error) {
		return s.matrix(ctx, s.store, date, uuid.Nil)
	}

	var (
		m   []domain.SlotAvailability
		err error
	)
	if s.cache != nil {
		m, err = s.cache.LoadAvailability(ctx, date, s.cfg.CacheTTL, load)
	} else {
		m, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.dropPassed(date, m), nil
}

// Resolve computes availability straight from storage through repos. It is
// the precondition check of booking writes, so it never reads the cache.
// excludeID, when set, ignores that booking as if it did not exist.
func (s *Service) Resolve(
	ctx context.Context,
	repos repository.Repositories,
	date time.Time,
	excludeID uuid.UUID,
) ([]domain.SlotAvailability, error) {
	const op = "service.availability.Resolve"

	if err := s.CheckDate(date); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m, err := s.matrix(ctx, repos, date, excludeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.dropPassed(date, m), nil
}

// CheckDate rejects zero dates and days before today.
func (s *Service) CheckDate(date time.Time) error {
	if date.IsZero() {
		return domain.ErrInvalidDate
	}

	if slots.Key(date) < slots.Key(clock.Today(s.clock)) {
		return domain.PastDateError{Date: slots.Key(date)}
	}

	return nil
}

// IsToday reports whether date is the clock's current local day.
func (s *Service) IsToday(date time.Time) bool {
	return slots.Key(date) == slots.Key(s.clock.Now())
}

// Invalidate drops the cached matrix of date.
func (s *Service) Invalidate(ctx context.Context, date time.Time) {
	if s.cache != nil {
		_ = s.cache.InvalidateAvailability(ctx, date)
	}
}

func (s *Service) matrix(
	ctx context.Context,
	repos repository.Repositories,
	date time.Time,
	excludeID uuid.UUID,
) ([]domain.SlotAvailability, error) {
	labels, err := slots.Labels(date)
	if err != nil {
		return nil, err
	}

	bookings, err := repos.Bookings().ListActiveByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	blocks, err := repos.BlockedSlots().ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	type taken struct{ indoor, outdoor bool }
	occupied := make(map[string]taken, len(labels))

	for _, b := range bookings {
		if b.ID == excludeID {
			continue
		}
		t := occupied[b.TimeSlot]
		switch b.Environment {
		case domain.EnvironmentIndoor:
			t.indoor = true
		case domain.EnvironmentOutdoor:
			t.outdoor = true
		}
		occupied[b.TimeSlot] = t
	}

	for _, bl := range blocks {
		t := occupied[bl.TimeSlot]
		if bl.Covers(domain.EnvironmentIndoor) {
			t.indoor = true
		}
		if bl.Covers(domain.EnvironmentOutdoor) {
			t.outdoor = true
		}
		occupied[bl.TimeSlot] = t
	}

	out := make([]domain.SlotAvailability, 0, len(labels))
	for _, l := range labels {
		t := occupied[l]
		out = append(out, domain.SlotAvailability{
			Time:             l,
			AvailableIndoor:  !t.indoor,
			AvailableOutdoor: !t.outdoor,
		})
	}

	return out, nil
}

// dropPassed removes today's labels whose hour is not after the current
// hour. "00:00" counts as hour 24 and survives the evening.
func (s *Service) dropPassed(date time.Time, m []domain.SlotAvailability) []domain.SlotAvailability {
	if !s.IsToday(date) {
		return m
	}

	hour := s.clock.Now().Hour()

	out := make([]domain.SlotAvailability, 0, len(m))
	for _, a := range m {
		h, err := slots.Hour(a.Time)
		if err != nil || h <= hour {
			continue
		}
		out = append(out, a)
	}

	return out
}
