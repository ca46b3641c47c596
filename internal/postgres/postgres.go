package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN      string
	MaxConns int32
	// TimeZone is the session zone, so that now() and timestamptz to date
	// casts agree with the restaurant's calendar day.
	TimeZone string
	// ConnectAttempts bounds the startup ping loop; the database container
	// often comes up after the app. Zero means 5.
	ConnectAttempts int
}

// New builds a pool and waits until the database answers a ping.
func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	const op = "postgres.New"

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.TimeZone != "" && cfg.TimeZone != "Local" {
		poolCfg.ConnConfig.RuntimeParams["timezone"] = cfg.TimeZone
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := waitReady(ctx, pool, cfg.ConnectAttempts); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pool, nil
}

func waitReady(ctx context.Context, pool *pgxpool.Pool, attempts int) error {
	if attempts <= 0 {
		attempts = 5
	}

	backoff := 500 * time.Millisecond
	var err error
	for i := range attempts {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("database not ready after %d attempts: %w", attempts, err)
}
