package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tablego/internal/domain"
)

type BookingFilter struct {
	Date        *time.Time
	Status      domain.BookingStatus
	Environment domain.Environment
	Limit       int
	Offset      int
}

type BookingRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	List(ctx context.Context, f BookingFilter) ([]domain.Booking, error)
	// ListActiveByDate returns every non-cancelled booking of the day.
	ListActiveByDate(ctx context.Context, date time.Time) ([]domain.Booking, error)
	// ExistsActive reports whether a non-cancelled booking other than
	// excludeID holds (date, timeSlot, env).
	ExistsActive(ctx context.Context, date time.Time, timeSlot string, env domain.Environment, excludeID uuid.UUID) (bool, error)
	// Create assigns ID and timestamps. ErrConflict when the slot is taken.
	Create(ctx context.Context, b *domain.Booking) error
	// Update writes every mutable field. ErrConflict when the slot is taken.
	Update(ctx context.Context, b *domain.Booking) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type BlockedSlotFilter struct {
	From        *time.Time
	To          *time.Time
	Environment *domain.Environment
}

type BlockedSlotRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.BlockedSlot, error)
	List(ctx context.Context, f BlockedSlotFilter) ([]domain.BlockedSlot, error)
	ListByDate(ctx context.Context, date time.Time) ([]domain.BlockedSlot, error)
	// Covered reports whether any block makes (date, timeSlot, env) unavailable.
	Covered(ctx context.Context, date time.Time, timeSlot string, env domain.Environment) (bool, error)
	// Create returns ErrConflict on an exact (date, timeSlot, environment) duplicate.
	Create(ctx context.Context, b *domain.BlockedSlot) error
	// CreateMany inserts what it can and returns only the rows it created.
	CreateMany(ctx context.Context, blocks []domain.BlockedSlot) ([]domain.BlockedSlot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByDate removes the day's blocks; a nil env removes all of them.
	DeleteByDate(ctx context.Context, date time.Time, env *domain.Environment) (int64, error)
}

type QueueFilter struct {
	Statuses []domain.QueueStatus
	From     time.Time
	To       time.Time
}

type QueueRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error)
	GetByCode(ctx context.Context, code string) (*domain.QueueEntry, error)
	// FindWaitingByPhone returns the phone's WAITING entry created in [from, to).
	FindWaitingByPhone(ctx context.Context, phone string, from, to time.Time) (*domain.QueueEntry, error)
	// CountWaitingBefore counts WAITING entries created in [from, to) that
	// precede e in (created_at, id) order.
	CountWaitingBefore(ctx context.Context, e *domain.QueueEntry, from, to time.Time) (int64, error)
	// List returns matching entries in (created_at, id) order.
	List(ctx context.Context, f QueueFilter) ([]domain.QueueEntry, error)
	// Create assigns ID and CreatedAt. ErrDuplicateCode on a code collision,
	// ErrConflict when the phone already waits on the same service date.
	Create(ctx context.Context, e *domain.QueueEntry) error
	// Transition moves the entry to e.Status (with its timestamps) only if it
	// is still in one of from. ErrConflict when it is not.
	Transition(ctx context.Context, e *domain.QueueEntry, from ...domain.QueueStatus) error
	// ExpireActive moves WAITING/CALLED entries created in [from, before) to
	// EXPIRED. A zero from has no lower bound.
	ExpireActive(ctx context.Context, from, before time.Time) (int64, error)
}

type Repositories interface {
	Bookings() BookingRepository
	BlockedSlots() BlockedSlotRepository
	Queue() QueueRepository
}

// Store is a Repositories that can also run fn inside one transaction.
type Store interface {
	Repositories
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
