package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/slots"
	"github.com/kirinyoku/tablego/internal/uow"
)

const (
	MinPartySize = 1
	MaxPartySize = 20
)

type Config struct {
	// WaitPerParty is the estimated wait added by every party ahead.
	WaitPerParty time.Duration
	// NewCode generates candidate entry codes. Defaults to NewCode.
	NewCode func() string
}

type JoinInput struct {
	Name      string
	Phone     string
	PartySize int
}

// Stats counts today's entries per status.
type Stats struct {
	Total    int                        `json:"total"`
	ByStatus map[domain.QueueStatus]int `json:"by_status"`
}

type Service struct {
	store repository.Store
	clock clock.Clock
	pub   events.Publisher
	uow   *uow.UoW
	cfg   Config
}

func New(store repository.Store, clk clock.Clock, pub events.Publisher, cfg Config) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.WaitPerParty <= 0 {
		cfg.WaitPerParty = 10 * time.Minute
	}
	if cfg.NewCode == nil {
		cfg.NewCode = NewCode
	}

	return &Service{
		store: store,
		clock: clk,
		pub:   pub,
		uow:   uow.NewUoW(store),
		cfg:   cfg,
	}
}

// Join adds a walk-in party to today's queue.
//
// A phone that already waits today is not an error for the caller: the
// returned domain.QueueConflictError carries that entry's code and current
// position. The check runs again at insert time, where the storage
// constraint on (phone, service date) has the final word.
//
// Returns:
//   - error: domain.ErrInvalidInput on bad input.
//   - error: domain.QueueConflictError (domain.ErrConflict) on a re-join.
//   - error: domain.ErrCodeGeneration when every candidate code was taken.
func (s *Service) Join(ctx context.Context, in JoinInput) (*domain.QueuePosition, error) {
	const op = "service.queue.Join"

	if err := validate(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	from, to := clock.DayWindow(s.clock.Now())

	if err := s.rejoin(ctx, in.Phone, from, to); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e := &domain.QueueEntry{
		Name:        in.Name,
		Phone:       in.Phone,
		PartySize:   in.PartySize,
		Status:      domain.QueueWaiting,
		ServiceDate: from,
	}

	// each attempt is its own transaction: a unique violation aborts the
	// surrounding postgres transaction
	var created bool
	for range maxCodeAttempts {
		e.Code = s.cfg.NewCode()

		err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
			if err := tx.Queue().Create(ctx, e); err != nil {
				return err
			}
			after(s.changed(e.Code))
			return nil
		})
		if err == nil {
			created = true
			break
		}

		switch {
		case errors.Is(err, repository.ErrDuplicateCode):
			continue
		case errors.Is(err, repository.ErrConflict):
			if err := s.rejoin(ctx, in.Phone, from, to); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			// the competing entry left the queue between insert and re-read
			return nil, fmt.Errorf("%s: %w", op, domain.ConflictError{Msg: "already in queue"})
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if !created {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrCodeGeneration)
	}

	view, err := s.view(ctx, s.store, e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return view, nil
}

// Position returns the 1-based rank of a WAITING entry among today's
// WAITING entries, ordered by (createdAt, id). Other statuses rank 0.
func (s *Service) Position(ctx context.Context, e *domain.QueueEntry) (int, error) {
	const op = "service.queue.Position"

	pos, err := s.position(ctx, s.store, e)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return pos, nil
}

// LookupByCode is the public status read. Codes match case-insensitively.
func (s *Service) LookupByCode(ctx context.Context, code string) (*domain.QueuePosition, error) {
	const op = "service.queue.LookupByCode"

	code = NormalizeCode(code)

	e, err := s.store.Queue().GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, domain.NotFoundError{Resource: "queue entry", ID: code})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	view, err := s.view(ctx, s.store, e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return view, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.QueuePosition, error) {
	const op = "service.queue.Get"

	e, err := s.store.Queue().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, id))
	}

	view, err := s.view(ctx, s.store, e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return view, nil
}

// ListToday returns today's entries in queue order, optionally limited to
// statuses. Positions are derived in one pass over the ordered list.
func (s *Service) ListToday(ctx context.Context, statuses ...domain.QueueStatus) ([]domain.QueuePosition, error) {
	const op = "service.queue.ListToday"

	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%s: %w", op, domain.ValidationError{Field: "status", Msg: "unknown status " + string(st)})
		}
	}

	from, to := clock.DayWindow(s.clock.Now())

	entries, err := s.store.Queue().List(ctx, repository.QueueFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]domain.QueuePosition, 0, len(entries))
	ahead := 0
	for _, e := range entries {
		var v domain.QueuePosition
		if e.Status == domain.QueueWaiting {
			v = s.waitingView(e, ahead+1)
			ahead++
		} else {
			v = domain.QueuePosition{Entry: e, Message: message(e.Status)}
		}

		if len(statuses) > 0 && !slices.Contains(statuses, e.Status) {
			continue
		}
		out = append(out, v)
	}

	return out, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	const op = "service.queue.Stats"

	from, to := clock.DayWindow(s.clock.Now())

	entries, err := s.store.Queue().List(ctx, repository.QueueFilter{From: from, To: to})
	if err != nil {
		return Stats{}, fmt.Errorf("%s: %w", op, err)
	}

	st := Stats{
		Total:    len(entries),
		ByStatus: make(map[domain.QueueStatus]int),
	}
	for _, e := range entries {
		st.ByStatus[e.Status]++
	}

	return st, nil
}

// Call: WAITING -> CALLED.
func (s *Service) Call(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	return s.transition(ctx, "service.queue.Call", id, domain.QueueCalled, domain.QueueWaiting)
}

// Seat: CALLED -> SEATED.
func (s *Service) Seat(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	return s.transition(ctx, "service.queue.Seat", id, domain.QueueSeated, domain.QueueCalled)
}

// MarkNoShow: CALLED -> NO_SHOW.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	return s.transition(ctx, "service.queue.MarkNoShow", id, domain.QueueNoShow, domain.QueueCalled)
}

// Cancel: WAITING or CALLED -> CANCELLED.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	return s.transition(ctx, "service.queue.Cancel", id, domain.QueueCancelled, domain.QueueWaiting, domain.QueueCalled)
}

// ClearQueue expires every WAITING or CALLED entry created today.
func (s *Service) ClearQueue(ctx context.Context) (int64, error) {
	const op = "service.queue.ClearQueue"

	from, to := clock.DayWindow(s.clock.Now())

	n, err := s.expire(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// AutoExpire expires every WAITING or CALLED entry created before today's
// local midnight. Running it twice is harmless.
func (s *Service) AutoExpire(ctx context.Context) (int64, error) {
	const op = "service.queue.AutoExpire"

	n, err := s.expire(ctx, time.Time{}, clock.Today(s.clock))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Service) expire(ctx context.Context, from, before time.Time) (int64, error) {
	var n int64

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		var err error
		n, err = tx.Queue().ExpireActive(ctx, from, before)
		if err != nil {
			return err
		}
		if n > 0 {
			after(s.changed(""))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}

func (s *Service) transition(
	ctx context.Context,
	op string,
	id uuid.UUID,
	to domain.QueueStatus,
	from ...domain.QueueStatus,
) (*domain.QueueEntry, error) {
	var out *domain.QueueEntry

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		e, err := tx.Queue().Get(ctx, id)
		if err != nil {
			return notFound(err, id)
		}

		if !slices.Contains(from, e.Status) {
			return domain.InvalidTransitionError{From: e.Status, To: to}
		}

		prev := e.Status
		now := s.clock.Now()

		e.Status = to
		switch to {
		case domain.QueueCalled:
			e.CalledAt = &now
		case domain.QueueSeated:
			e.SeatedAt = &now
		}

		if err := tx.Queue().Transition(ctx, e, from...); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// moved by a concurrent operator
				return domain.InvalidTransitionError{From: prev, To: to}
			}
			return notFound(err, id)
		}

		after(s.changed(e.Code))

		out = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// rejoin returns a QueueConflictError when phone already waits in
// [from, to), and nil when it does not.
func (s *Service) rejoin(ctx context.Context, phone string, from, to time.Time) error {
	existing, err := s.store.Queue().FindWaitingByPhone(ctx, phone, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	pos, err := s.position(ctx, s.store, existing)
	if err != nil {
		return err
	}

	return domain.QueueConflictError{
		Code:        existing.Code,
		Position:    pos,
		PeopleAhead: pos - 1,
	}
}

func (s *Service) position(ctx context.Context, repos repository.Repositories, e *domain.QueueEntry) (int, error) {
	if e.Status != domain.QueueWaiting {
		return 0, nil
	}

	from, to := clock.DayWindow(s.clock.Now())

	n, err := repos.Queue().CountWaitingBefore(ctx, e, from, to)
	if err != nil {
		return 0, err
	}

	return int(n) + 1, nil
}

func (s *Service) view(ctx context.Context, repos repository.Repositories, e *domain.QueueEntry) (*domain.QueuePosition, error) {
	if e.Status != domain.QueueWaiting {
		return &domain.QueuePosition{Entry: *e, Message: message(e.Status)}, nil
	}

	pos, err := s.position(ctx, repos, e)
	if err != nil {
		return nil, err
	}

	v := s.waitingView(*e, pos)
	return &v, nil
}

func (s *Service) waitingView(e domain.QueueEntry, pos int) domain.QueuePosition {
	ahead := pos - 1

	msg := fmt.Sprintf("You are number %d in line.", pos)
	if ahead == 0 {
		msg = "You are next in line."
	}

	return domain.QueuePosition{
		Entry:         e,
		Position:      pos,
		PeopleAhead:   ahead,
		EstimatedWait: time.Duration(ahead) * s.cfg.WaitPerParty,
		Message:       msg,
	}
}

func (s *Service) changed(code string) uow.AfterCommit {
	return func(ctx context.Context) {
		_ = s.pub.Publish(ctx, events.Change{
			Kind: events.QueueChanged,
			Date: slots.Key(s.clock.Now()),
			Code: code,
		})
	}
}

func message(st domain.QueueStatus) string {
	switch st {
	case domain.QueueCalled:
		return "Your table is ready. Please come to the host stand."
	case domain.QueueSeated:
		return "You have been seated. Enjoy your meal!"
	case domain.QueueCancelled:
		return "This queue entry was cancelled."
	case domain.QueueNoShow:
		return "You were called but did not show up. Please join the queue again."
	case domain.QueueExpired:
		return "This queue entry expired at the end of the day."
	default:
		return ""
	}
}

func validate(in JoinInput) error {
	switch {
	case in.Name == "":
		return domain.ValidationError{Field: "name", Msg: "is required"}
	case in.Phone == "":
		return domain.ValidationError{Field: "phone", Msg: "is required"}
	case in.PartySize < MinPartySize || in.PartySize > MaxPartySize:
		return domain.ValidationError{
			Field: "party_size",
			Msg:   fmt.Sprintf("must be between %d and %d", MinPartySize, MaxPartySize),
		}
	}
	return nil
}

func notFound(err error, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFoundError{Resource: "queue entry", ID: id.String()}
	}
	return err
}
