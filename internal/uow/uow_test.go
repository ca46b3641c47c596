package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// retryStore fails the first attempt of every transaction.
type retryStore struct {
	*memory.Store
}

func (s retryStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	_ = fn(ctx, s.Store)
	return fn(ctx, s.Store)
}

func TestDo_RunsHooksAfterCommit(t *testing.T) {
	u := NewUoW(memory.NewStore(nil))

	var order []string
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		after(func(context.Context) { order = append(order, "first") })
		after(func(context.Context) { order = append(order, "second") })
		order = append(order, "body")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"body", "first", "second"}, order)
}

func TestDo_FailedBodySkipsHooks(t *testing.T) {
	u := NewUoW(memory.NewStore(nil))
	boom := errors.New("boom")

	ran := false
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		after(func(context.Context) { ran = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestDo_RetriedAttemptKeepsOnlyLastHooks(t *testing.T) {
	u := NewUoW(retryStore{memory.NewStore(nil)})

	calls := 0
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		after(func(context.Context) { calls++ })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_HooksOutliveCancelledRequest(t *testing.T) {
	u := NewUoW(memory.NewStore(nil))
	ctx, cancel := context.WithCancel(context.Background())

	var hookErr error
	err := u.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		cancel()
		after(func(ctx context.Context) { hookErr = ctx.Err() })
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, hookErr)
}
