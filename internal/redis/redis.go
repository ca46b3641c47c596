package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	// Addr is host:port or a redis:// / rediss:// URL. A URL carries its own
	// credentials and database, which override Password and DB.
	Addr     string
	Password string
	DB       int
}

func (c Config) options() (*redis.Options, error) {
	if strings.Contains(c.Addr, "://") {
		return redis.ParseURL(c.Addr)
	}
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

// New returns a connected client. Callers skip redis entirely when no
// address is configured, so an empty Addr is an error here.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "redis.New"

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%s: empty address", op)
	}

	opts, err := cfg.options()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts.DialTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, nil
}
