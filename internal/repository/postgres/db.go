package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tablego/internal/repository"
)

const maxTxAttempts = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool   *pgxpool.Pool
	txOpts pgx.TxOptions
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		txOpts: pgx.TxOptions{
			IsoLevel:   pgx.Serializable,
			AccessMode: pgx.ReadWrite,
		},
	}
}

// RunTx runs fn in a serializable transaction, retrying serialization
// failures and deadlocks.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	const op = "postgres.Store.RunTx"

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runTxOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) runTxOnce(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	tx, err := s.pool.BeginTx(ctx, s.txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, txRepos{db: tx, pool: s.pool}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", translateDBErr(err))
	}

	return nil
}

func (s *Store) Bookings() repository.BookingRepository {
	return &BookingRepo{pool: s.pool}
}

func (s *Store) BlockedSlots() repository.BlockedSlotRepository {
	return &BlockedSlotRepo{pool: s.pool}
}

func (s *Store) Queue() repository.QueueRepository {
	return &QueueRepo{pool: s.pool}
}

type txRepos struct {
	db   DB
	pool *pgxpool.Pool
}

func (t txRepos) Bookings() repository.BookingRepository {
	return (&BookingRepo{pool: t.pool}).With(t.db)
}

func (t txRepos) BlockedSlots() repository.BlockedSlotRepository {
	return (&BlockedSlotRepo{pool: t.pool}).With(t.db)
}

func (t txRepos) Queue() repository.QueueRepository {
	return (&QueueRepo{pool: t.pool}).With(t.db)
}
