package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/slots"
)

const bookingColumns = `id, customer_name, customer_email, customer_phone, date, time_slot,
	environment, guests, observations, status, created_at, updated_at`

// "00:00" closes the day, so it sorts after 23:00.
const slotOrder = `(time_slot = '00:00'), time_slot`

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get retrieves a booking by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return b, nil
}

// List returns bookings matching f, ordered by date, slot and creation time.
func (r *BookingRepo) List(ctx context.Context, f repository.BookingFilter) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.List"

	var (
		where []string
		args  []any
	)

	if f.Date != nil {
		args = append(args, slots.Key(*f.Date))
		where = append(where, fmt.Sprintf("date = $%d::date", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Environment != "" {
		args = append(args, string(f.Environment))
		where = append(where, fmt.Sprintf("environment = $%d", len(args)))
	}

	sql := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY date, ` + slotOrder + `, created_at`

	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.handle().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	out, err := collectBookings(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (r *BookingRepo) ListActiveByDate(ctx context.Context, date time.Time) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListActiveByDate"

	rows, err := r.handle().Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE date = $1::date AND status <> 'CANCELLED'
		 ORDER BY `+slotOrder,
		slots.Key(date),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	out, err := collectBookings(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (r *BookingRepo) ExistsActive(
	ctx context.Context,
	date time.Time,
	timeSlot string,
	env domain.Environment,
	excludeID uuid.UUID,
) (bool, error) {
	const op = "postgres.BookingRepo.ExistsActive"

	var exists bool
	err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE date = $1::date
			  AND time_slot = $2
			  AND environment = $3
			  AND status <> 'CANCELLED'
			  AND id <> $4
		 )`,
		slots.Key(date), timeSlot, string(env), excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return exists, nil
}

// Create inserts b, filling its ID and timestamps.
//
// Returns:
//   - error: repository.ErrConflict if an active booking already holds the slot.
func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	b.ID = uuid.New()

	err := r.handle().QueryRow(ctx,
		`INSERT INTO bookings (id, customer_name, customer_email, customer_phone, date,
			time_slot, environment, guests, observations, status)
		 VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		b.ID, b.Customer.Name, b.Customer.Email, b.Customer.Phone, slots.Key(b.Date),
		b.TimeSlot, string(b.Environment), b.Guests, b.Observations, string(b.Status),
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// Update overwrites every mutable column of b.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
//   - error: repository.ErrConflict if the new slot is held by another active booking.
func (r *BookingRepo) Update(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Update"

	err := r.handle().QueryRow(ctx,
		`UPDATE bookings
		 SET customer_name = $2, customer_email = $3, customer_phone = $4, date = $5::date,
			 time_slot = $6, environment = $7, guests = $8, observations = $9, status = $10,
			 updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		b.ID, b.Customer.Name, b.Customer.Email, b.Customer.Phone, slots.Key(b.Date),
		b.TimeSlot, string(b.Environment), b.Guests, b.Observations, string(b.Status),
	).Scan(&b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

func (r *BookingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.BookingRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b      domain.Booking
		env    string
		status string
	)

	if err := row.Scan(
		&b.ID,
		&b.Customer.Name,
		&b.Customer.Email,
		&b.Customer.Phone,
		&b.Date,
		&b.TimeSlot,
		&env,
		&b.Guests,
		&b.Observations,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b.Environment = domain.Environment(env)
	b.Status = domain.BookingStatus(status)

	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, translateDBErr(err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, translateDBErr(err)
	}

	return out, nil
}
