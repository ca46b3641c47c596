package postgres

import (
	"context"
	"errors"
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

const queueColumns = `id, code, name, phone, party_size, status, service_date,
	called_at, seated_at, created_at`

type QueueRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueueRepo) With(db DB) *QueueRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueueRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *QueueRepo) Get(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	const op = "postgres.QueueRepo.Get"

	e, err := scanEntry(r.handle().QueryRow(ctx,
		`SELECT `+queueColumns+` FROM queue_entries WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return e, nil
}

func (r *QueueRepo) GetByCode(ctx context.Context, code string) (*domain.QueueEntry, error) {
	const op = "postgres.QueueRepo.GetByCode"

	e, err := scanEntry(r.handle().QueryRow(ctx,
		`SELECT `+queueColumns+` FROM queue_entries WHERE code = $1`,
		code,
	))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return e, nil
}

func (r *QueueRepo) FindWaitingByPhone(
	ctx context.Context,
	phone string,
	from, to time.Time,
) (*domain.QueueEntry, error) {
	const op = "postgres.QueueRepo.FindWaitingByPhone"

	e, err := scanEntry(r.handle().QueryRow(ctx,
		`SELECT `+queueColumns+`
		 FROM queue_entries
		 WHERE phone = $1 AND status = 'WAITING'
		   AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at, id
		 LIMIT 1`,
		phone, from, to,
	))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return e, nil
}

// CountWaitingBefore counts the WAITING entries of [from, to) that sort
// strictly before e by (created_at, id). uuid comparison is bytewise, which
// matches the order of their canonical strings.
func (r *QueueRepo) CountWaitingBefore(
	ctx context.Context,
	e *domain.QueueEntry,
	from, to time.Time,
) (int64, error) {
	const op = "postgres.QueueRepo.CountWaitingBefore"

	var n int64
	err := r.handle().QueryRow(ctx,
		`SELECT count(*)
		 FROM queue_entries
		 WHERE status = 'WAITING'
		   AND created_at >= $1 AND created_at < $2
		   AND (created_at, id) < ($3, $4)`,
		from, to, e.CreatedAt, e.ID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return n, nil
}

func (r *QueueRepo) List(ctx context.Context, f repository.QueueFilter) ([]domain.QueueEntry, error) {
	const op = "postgres.QueueRepo.List"

	var (
		where []string
		args  []any
	)

	if !f.From.IsZero() {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	sql := `SELECT ` + queueColumns + ` FROM queue_entries`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at, id`

	rows, err := r.handle().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return out, nil
}

// Create inserts e, filling its ID and CreatedAt.
//
// Returns:
//   - error: repository.ErrDuplicateCode if the code is already taken.
//   - error: repository.ErrConflict if the phone already waits on this service date.
func (r *QueueRepo) Create(ctx context.Context, e *domain.QueueEntry) error {
	const op = "postgres.QueueRepo.Create"

	e.ID = uuid.New()

	err := r.handle().QueryRow(ctx,
		`INSERT INTO queue_entries (id, code, name, phone, party_size, status, service_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::date)
		 RETURNING created_at`,
		e.ID, e.Code, e.Name, e.Phone, e.PartySize, string(e.Status), slots.Key(e.ServiceDate),
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// Transition is a compare-and-set on status.
//
// Returns:
//   - error: repository.ErrNotFound if the entry does not exist.
//   - error: repository.ErrConflict if the entry is no longer in one of from.
func (r *QueueRepo) Transition(ctx context.Context, e *domain.QueueEntry, from ...domain.QueueStatus) error {
	const op = "postgres.QueueRepo.Transition"

	expected := make([]string, len(from))
	for i, s := range from {
		expected[i] = string(s)
	}

	updated, err := scanEntry(r.handle().QueryRow(ctx,
		`UPDATE queue_entries
		 SET status = $2, called_at = $3, seated_at = $4
		 WHERE id = $1 AND status = ANY($5)
		 RETURNING `+queueColumns,
		e.ID, string(e.Status), e.CalledAt, e.SeatedAt, expected,
	))
	if err == nil {
		*e = *updated
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	// zero rows: tell a missing entry from one that moved on
	if _, err := r.Get(ctx, e.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w", op, repository.ErrConflict)
}

func (r *QueueRepo) ExpireActive(ctx context.Context, from, before time.Time) (int64, error) {
	const op = "postgres.QueueRepo.ExpireActive"

	var (
		sql  = `UPDATE queue_entries
			   SET status = 'EXPIRED'
			   WHERE status IN ('WAITING', 'CALLED') AND created_at < $1`
		args = []any{before}
	)

	if !from.IsZero() {
		sql += ` AND created_at >= $2`
		args = append(args, from)
	}

	tag, err := r.handle().Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

func scanEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var (
		e      domain.QueueEntry
		status string
	)

	if err := row.Scan(
		&e.ID,
		&e.Code,
		&e.Name,
		&e.Phone,
		&e.PartySize,
		&status,
		&e.ServiceDate,
		&e.CalledAt,
		&e.SeatedAt,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.Status = domain.QueueStatus(status)

	return &e, nil
}
