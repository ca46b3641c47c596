package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/report"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/service/availability"
	"github.com/kirinyoku/tablego/internal/slots"
	"github.com/kirinyoku/tablego/internal/uow"
)

const (
	MinGuests = 1
	MaxGuests = 20
)

var (
	errSlotTaken  = domain.ConflictError{Msg: "slot already reserved or blocked"}
	errRebookSlot = domain.ConflictError{Msg: "slot is no longer available; the customer must rebook"}
)

type CreateInput struct {
	Customer     domain.Customer
	Date         time.Time
	TimeSlot     string
	Environment  domain.Environment
	Guests       int
	Observations string
}

// Patch carries the fields of an Update; nil fields are left unchanged.
type Patch struct {
	Name         *string
	Email        *string
	Phone        *string
	Date         *time.Time
	TimeSlot     *string
	Environment  *domain.Environment
	Guests       *int
	Observations *string
}

type Service struct {
	store        repository.Store
	availability *availability.Service
	pub          events.Publisher
	clock        clock.Clock
	uow          *uow.UoW
}

func New(store repository.Store, avail *availability.Service, pub events.Publisher, clk clock.Clock) *Service {
	if pub == nil {
		pub = events.Nop{}
	}

	return &Service{
		store:        store,
		availability: avail,
		pub:          pub,
		clock:        clk,
		uow:          uow.NewUoW(store),
	}
}

// Create books (date, timeSlot, environment) and stores it as CONFIRMED.
//
// The availability check is a fast path; the storage constraint on active
// bookings is what rejects the loser of two concurrent creates, and that
// failure surfaces as the same conflict.
//
// Returns:
//   - *domain.Booking: the stored booking.
//   - error: domain.ErrPastDate, domain.ErrInvalidSlot, domain.ErrInvalidInput.
//   - error: domain.ErrConflict if the slot is taken or blocked.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Booking, error) {
	const op = "service.booking.Create"

	if err := validate(in.Customer, in.Environment, in.Guests); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b := &domain.Booking{
		Customer:     in.Customer,
		Date:         in.Date,
		TimeSlot:     in.TimeSlot,
		Environment:  in.Environment,
		Guests:       in.Guests,
		Observations: in.Observations,
		Status:       domain.BookingConfirmed,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		if err := s.checkAvailable(ctx, tx, b.Date, b.TimeSlot, b.Environment, uuid.Nil); err != nil {
			return err
		}

		if err := tx.Bookings().Create(ctx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return errSlotTaken
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

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, id))
	}

	return b, nil
}

func (s *Service) List(ctx context.Context, f repository.BookingFilter) ([]domain.Booking, error) {
	const op = "service.booking.List"

	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, domain.ValidationError{Field: "status", Msg: "unknown status"})
	}
	if f.Environment != "" && !f.Environment.Valid() {
		return nil, fmt.Errorf("%s: %w", op, domain.ValidationError{Field: "environment", Msg: "unknown environment"})
	}

	out, err := s.store.Bookings().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Sheet renders the day's active bookings as a printable PDF.
func (s *Service) Sheet(ctx context.Context, date time.Time) ([]byte, error) {
	const op = "service.booking.Sheet"

	if date.IsZero() {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrInvalidDate)
	}

	bookings, err := s.store.Bookings().ListActiveByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pdf, err := report.BookingSheet(date, bookings, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pdf, nil
}

// Update applies p to the booking. When the date, slot or environment of an
// active booking changes, the new combination goes through the full
// availability resolver with the booking itself excluded.
//
// Returns:
//   - error: domain.ErrNotFound if the booking does not exist.
//   - error: domain.ErrPastDate, domain.ErrInvalidSlot, domain.ErrInvalidInput.
//   - error: domain.ErrConflict if the new slot is taken or blocked.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (*domain.Booking, error) {
	const op = "service.booking.Update"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		b, err := tx.Bookings().Get(ctx, id)
		if err != nil {
			return notFound(err, id)
		}

		prevDate := b.Date
		moved := p.apply(b)

		if err := validate(b.Customer, b.Environment, b.Guests); err != nil {
			return err
		}

		if moved {
			if err := s.availability.CheckDate(b.Date); err != nil {
				return err
			}
			if !slots.Contains(b.Date, b.TimeSlot) {
				return domain.InvalidSlotError{Date: slots.Key(b.Date), TimeSlot: b.TimeSlot}
			}
			if b.Status.Active() {
				if err := s.checkAvailable(ctx, tx, b.Date, b.TimeSlot, b.Environment, b.ID); err != nil {
					return err
				}
			}
		}

		if err := tx.Bookings().Update(ctx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return errSlotTaken
			}
			return notFound(err, id)
		}

		after(s.changed(prevDate))
		if slots.Key(prevDate) != slots.Key(b.Date) {
			after(s.changed(b.Date))
		}

		out = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateStatus moves the booking to status. Only CANCELLED -> CONFIRMED is
// guarded: the slot must still be a calendar label for the date and be free
// of other active bookings and blocks.
//
// Returns:
//   - error: domain.ErrNotFound if the booking does not exist.
//   - error: domain.ErrInvalidSlot if the stored slot is not a label of its date.
//   - error: domain.ErrConflict if a reconfirmed slot was taken or blocked meanwhile.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (*domain.Booking, error) {
	const op = "service.booking.UpdateStatus"

	if !status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, domain.ValidationError{Field: "status", Msg: "unknown status"})
	}

	var out *domain.Booking

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		b, err := tx.Bookings().Get(ctx, id)
		if err != nil {
			return notFound(err, id)
		}

		if b.Status == domain.BookingCancelled && status == domain.BookingConfirmed {
			if !slots.Contains(b.Date, b.TimeSlot) {
				return domain.InvalidSlotError{Date: slots.Key(b.Date), TimeSlot: b.TimeSlot}
			}
			taken, err := tx.Bookings().ExistsActive(ctx, b.Date, b.TimeSlot, b.Environment, b.ID)
			if err != nil {
				return err
			}
			blocked, err := tx.BlockedSlots().Covered(ctx, b.Date, b.TimeSlot, b.Environment)
			if err != nil {
				return err
			}
			if taken || blocked {
				return errRebookSlot
			}
		}

		b.Status = status
		if err := tx.Bookings().Update(ctx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return errRebookSlot
			}
			return notFound(err, id)
		}

		after(s.changed(b.Date))

		out = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Remove hard-deletes the booking.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	const op = "service.booking.Remove"

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		b, err := tx.Bookings().Get(ctx, id)
		if err != nil {
			return notFound(err, id)
		}

		if err := tx.Bookings().Delete(ctx, id); err != nil {
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

// checkAvailable runs the resolver for date and checks the requested cell.
func (s *Service) checkAvailable(
	ctx context.Context,
	tx repository.Repositories,
	date time.Time,
	timeSlot string,
	env domain.Environment,
	excludeID uuid.UUID,
) error {
	matrix, err := s.availability.Resolve(ctx, tx, date, excludeID)
	if err != nil {
		return err
	}

	for _, a := range matrix {
		if a.Time != timeSlot {
			continue
		}
		if !a.Available(env) {
			return errSlotTaken
		}
		return nil
	}

	return domain.InvalidSlotError{Date: slots.Key(date), TimeSlot: timeSlot}
}

func (s *Service) changed(date time.Time) uow.AfterCommit {
	return func(ctx context.Context) {
		s.availability.Invalidate(ctx, date)
		_ = s.pub.Publish(ctx, events.Change{Kind: events.AvailabilityChanged, Date: slots.Key(date)})
	}
}

// apply writes the non-nil fields into b and reports whether the slot
// identity (date, time slot, environment) changed.
func (p Patch) apply(b *domain.Booking) bool {
	if p.Name != nil {
		b.Customer.Name = *p.Name
	}
	if p.Email != nil {
		b.Customer.Email = *p.Email
	}
	if p.Phone != nil {
		b.Customer.Phone = *p.Phone
	}
	if p.Guests != nil {
		b.Guests = *p.Guests
	}
	if p.Observations != nil {
		b.Observations = *p.Observations
	}

	moved := false
	if p.Date != nil && slots.Key(*p.Date) != slots.Key(b.Date) {
		b.Date = *p.Date
		moved = true
	}
	if p.TimeSlot != nil && *p.TimeSlot != b.TimeSlot {
		b.TimeSlot = *p.TimeSlot
		moved = true
	}
	if p.Environment != nil && *p.Environment != b.Environment {
		b.Environment = *p.Environment
		moved = true
	}

	return moved
}

func validate(c domain.Customer, env domain.Environment, guests int) error {
	switch {
	case c.Name == "":
		return domain.ValidationError{Field: "name", Msg: "is required"}
	case c.Phone == "":
		return domain.ValidationError{Field: "phone", Msg: "is required"}
	case !env.Valid():
		return domain.ValidationError{Field: "environment", Msg: "must be INDOOR or OUTDOOR"}
	case guests < MinGuests || guests > MaxGuests:
		return domain.ValidationError{Field: "guests", Msg: fmt.Sprintf("must be between %d and %d", MinGuests, MaxGuests)}
	}
	return nil
}

func notFound(err error, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFoundError{Resource: "booking", ID: id.String()}
	}
	return err
}
