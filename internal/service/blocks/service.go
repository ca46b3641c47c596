package blocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/service/availability"
	"github.com/kirinyoku/tablego/internal/slots"
	"github.com/kirinyoku/tablego/internal/uow"
)

type CreateInput struct {
	Date        time.Time
	TimeSlot    string
	Environment *domain.Environment // nil blocks both environments
	Reason      string
}

type Service struct {
	store        repository.Store
	availability *availability.Service
	pub          events.Publisher
	uow          *uow.UoW
}

func New(store repository.Store, avail *availability.Service, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}

	return &Service{
		store:        store,
		availability: avail,
		pub:          pub,
		uow:          uow.NewUoW(store),
	}
}

// CreateBlock marks one label of date unavailable. The label is checked
// against the whole day's calendar, including hours that already passed.
//
// Returns:
//   - error: domain.ErrPastDate, domain.ErrInvalidSlot, domain.ErrInvalidInput.
//   - error: domain.ErrConflict on an exact (date, time slot, environment) duplicate.
func (s *Service) CreateBlock(ctx context.Context, in CreateInput) (*domain.BlockedSlot, error) {
	const op = "service.blocks.CreateBlock"

	if err := s.checkInput(in.Date, in.Environment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !slots.Contains(in.Date, in.TimeSlot) {
		return nil, fmt.Errorf("%s: %w", op, domain.InvalidSlotError{Date: slots.Key(in.Date), TimeSlot: in.TimeSlot})
	}

	b := &domain.BlockedSlot{
		Date:        in.Date,
		TimeSlot:    in.TimeSlot,
		Environment: in.Environment,
		Reason:      in.Reason,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		if err := tx.BlockedSlots().Create(ctx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.ConflictError{Msg: "slot is already blocked"}
			}
			return err
		}

		after(s.changed(b.Date))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// BlockEntireDay blocks every label of date. Labels that already carry the
// same block are skipped without error; only new blocks are returned.
func (s *Service) BlockEntireDay(
	ctx context.Context,
	date time.Time,
	env *domain.Environment,
	reason string,
) ([]domain.BlockedSlot, error) {
	const op = "service.blocks.BlockEntireDay"

	if err := s.checkInput(date, env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	labels, err := slots.Labels(date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	want := make([]domain.BlockedSlot, 0, len(labels))
	for _, l := range labels {
		want = append(want, domain.BlockedSlot{
			Date:        date,
			TimeSlot:    l,
			Environment: env,
			Reason:      reason,
		})
	}

	var created []domain.BlockedSlot

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		var err error
		created, err = tx.BlockedSlots().CreateMany(ctx, want)
		if err != nil {
			return err
		}

		if len(created) > 0 {
			after(s.changed(date))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

// UnblockEntireDay deletes the blocks of date, limited to env when given,
// and returns how many were removed.
func (s *Service) UnblockEntireDay(ctx context.Context, date time.Time, env *domain.Environment) (int64, error) {
	const op = "service.blocks.UnblockEntireDay"

	if date.IsZero() {
		return 0, fmt.Errorf("%s: %w", op, domain.ErrInvalidDate)
	}
	if env != nil && !env.Valid() {
		return 0, fmt.Errorf("%s: %w", op, domain.ValidationError{Field: "environment", Msg: "must be INDOOR or OUTDOOR"})
	}

	var n int64

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		var err error
		n, err = tx.BlockedSlots().DeleteByDate(ctx, date, env)
		if err != nil {
			return err
		}

		if n > 0 {
			after(s.changed(date))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	const op = "service.blocks.Remove"

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		b, err := tx.BlockedSlots().Get(ctx, id)
		if err != nil {
			return notFound(err, id)
		}

		if err := tx.BlockedSlots().Delete(ctx, id); err != nil {
			return notFound(err, id)
		}

		after(s.changed(b.Date))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.BlockedSlot, error) {
	const op = "service.blocks.Get"

	b, err := s.store.BlockedSlots().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, id))
	}

	return b, nil
}

func (s *Service) FindAll(ctx context.Context, f repository.BlockedSlotFilter) ([]domain.BlockedSlot, error) {
	const op = "service.blocks.FindAll"

	if f.Environment != nil && !f.Environment.Valid() {
		return nil, fmt.Errorf("%s: %w", op, domain.ValidationError{Field: "environment", Msg: "must be INDOOR or OUTDOOR"})
	}

	out, err := s.store.BlockedSlots().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) FindByDate(ctx context.Context, date time.Time) ([]domain.BlockedSlot, error) {
	const op = "service.blocks.FindByDate"

	if date.IsZero() {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrInvalidDate)
	}

	out, err := s.store.BlockedSlots().ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) checkInput(date time.Time, env *domain.Environment) error {
	if err := s.availability.CheckDate(date); err != nil {
		return err
	}
	if env != nil && !env.Valid() {
		return domain.ValidationError{Field: "environment", Msg: "must be INDOOR or OUTDOOR"}
	}
	return nil
}

func (s *Service) changed(date time.Time) uow.AfterCommit {
	return func(ctx context.Context) {
		s.availability.Invalidate(ctx, date)
		_ = s.pub.Publish(ctx, events.Change{Kind: events.AvailabilityChanged, Date: slots.Key(date)})
	}
}

func notFound(err error, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFoundError{Resource: "blocked slot", ID: id.String()}
	}
	return err
}
