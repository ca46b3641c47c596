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

const blockColumns = `id, date, time_slot, environment, reason, created_at`

type BlockedSlotRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BlockedSlotRepo) With(db DB) *BlockedSlotRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BlockedSlotRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *BlockedSlotRepo) Get(ctx context.Context, id uuid.UUID) (*domain.BlockedSlot, error) {
	const op = "postgres.BlockedSlotRepo.Get"

	b, err := scanBlock(r.handle().QueryRow(ctx,
		`SELECT `+blockColumns+` FROM blocked_slots WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return b, nil
}

func (r *BlockedSlotRepo) List(ctx context.Context, f repository.BlockedSlotFilter) ([]domain.BlockedSlot, error) {
	const op = "postgres.BlockedSlotRepo.List"

	var (
		where []string
		args  []any
	)

	if f.From != nil {
		args = append(args, slots.Key(*f.From))
		where = append(where, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	if f.To != nil {
		args = append(args, slots.Key(*f.To))
		where = append(where, fmt.Sprintf("date <= $%d::date", len(args)))
	}
	if f.Environment != nil {
		args = append(args, string(*f.Environment))
		where = append(where, fmt.Sprintf("environment = $%d", len(args)))
	}

	sql := `SELECT ` + blockColumns + ` FROM blocked_slots`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY date, ` + slotOrder + `, environment NULLS FIRST`

	rows, err := r.handle().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	out, err := collectBlocks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (r *BlockedSlotRepo) ListByDate(ctx context.Context, date time.Time) ([]domain.BlockedSlot, error) {
	const op = "postgres.BlockedSlotRepo.ListByDate"

	rows, err := r.handle().Query(ctx,
		`SELECT `+blockColumns+`
		 FROM blocked_slots
		 WHERE date = $1::date
		 ORDER BY `+slotOrder+`, environment NULLS FIRST`,
		slots.Key(date),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	out, err := collectBlocks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (r *BlockedSlotRepo) Covered(
	ctx context.Context,
	date time.Time,
	timeSlot string,
	env domain.Environment,
) (bool, error) {
	const op = "postgres.BlockedSlotRepo.Covered"

	var covered bool
	err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM blocked_slots
			WHERE date = $1::date
			  AND time_slot = $2
			  AND (environment IS NULL OR environment = $3)
		 )`,
		slots.Key(date), timeSlot, string(env),
	).Scan(&covered)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return covered, nil
}

// Create inserts a block.
//
// Returns:
//   - error: repository.ErrConflict on an exact (date, time_slot, environment) duplicate.
func (r *BlockedSlotRepo) Create(ctx context.Context, b *domain.BlockedSlot) error {
	const op = "postgres.BlockedSlotRepo.Create"

	b.ID = uuid.New()

	err := r.handle().QueryRow(ctx,
		`INSERT INTO blocked_slots (id, date, time_slot, environment, reason)
		 VALUES ($1, $2::date, $3, $4, $5)
		 RETURNING created_at`,
		b.ID, slots.Key(b.Date), b.TimeSlot, envArg(b.Environment), b.Reason,
	).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// CreateMany inserts blocks in one batch, skipping rows that collide with an
// existing block. Only the inserted rows are returned.
func (r *BlockedSlotRepo) CreateMany(ctx context.Context, blocks []domain.BlockedSlot) ([]domain.BlockedSlot, error) {
	const op = "postgres.BlockedSlotRepo.CreateMany"

	if len(blocks) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, b := range blocks {
		batch.Queue(
			`INSERT INTO blocked_slots (id, date, time_slot, environment, reason)
			 VALUES ($1, $2::date, $3, $4, $5)
			 ON CONFLICT DO NOTHING
			 RETURNING `+blockColumns,
			uuid.New(), slots.Key(b.Date), b.TimeSlot, envArg(b.Environment), b.Reason,
		)
	}

	br := r.handle().SendBatch(ctx, batch)
	defer br.Close()

	var created []domain.BlockedSlot
	for range blocks {
		b, err := scanBlock(br.QueryRow())
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// skipped by ON CONFLICT
				continue
			}
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		created = append(created, *b)
	}

	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return created, nil
}

func (r *BlockedSlotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.BlockedSlotRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM blocked_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *BlockedSlotRepo) DeleteByDate(ctx context.Context, date time.Time, env *domain.Environment) (int64, error) {
	const op = "postgres.BlockedSlotRepo.DeleteByDate"

	var (
		sql  = `DELETE FROM blocked_slots WHERE date = $1::date`
		args = []any{slots.Key(date)}
	)

	if env != nil {
		sql += ` AND environment = $2`
		args = append(args, string(*env))
	}

	tag, err := r.handle().Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

func envArg(env *domain.Environment) any {
	if env == nil {
		return nil
	}
	return string(*env)
}

func scanBlock(row pgx.Row) (*domain.BlockedSlot, error) {
	var (
		b   domain.BlockedSlot
		env *string
	)

	if err := row.Scan(&b.ID, &b.Date, &b.TimeSlot, &env, &b.Reason, &b.CreatedAt); err != nil {
		return nil, err
	}

	if env != nil {
		e := domain.Environment(*env)
		b.Environment = &e
	}

	return &b, nil
}

func collectBlocks(rows pgx.Rows) ([]domain.BlockedSlot, error) {
	defer rows.Close()

	var out []domain.BlockedSlot
	for rows.Next() {
		b, err := scanBlock(rows)
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
