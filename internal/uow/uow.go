// Package uow runs service writes as one storage transaction followed by
// side effects that must only happen once the writes are durable.
package uow

import (
	"context"

	"github.com/kirinyoku/tablego/internal/repository"
)

// AfterCommit is a side effect registered inside a transaction, such as a
// cache invalidation or a change event.
type AfterCommit func(ctx context.Context)

// TxFunc is the body of a unit of work. It registers side effects through
// after instead of running them inline.
type TxFunc func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error

type UoW struct {
	store repository.Store
}

func NewUoW(store repository.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn in a transaction of the store. When the store retries fn, only
// the hooks of the attempt that committed survive. Hooks run in
// registration order on a context that is not cancelled with the request,
// so a client hanging up right after the commit still gets caches cleared.
func (u *UoW) Do(ctx context.Context, fn TxFunc) error {
	var pending []AfterCommit

	if err := u.store.RunTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		pending = nil
		return fn(ctx, tx, func(h AfterCommit) { pending = append(pending, h) })
	}); err != nil {
		return err
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, h := range pending {
		h(hookCtx)
	}

	return nil
}
