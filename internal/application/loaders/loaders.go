// Package loaders batches and caches per-request lookups.
package loaders

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/berez-app/berez/backend/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the dataloaders of one request
type Loaders struct {
	// UsernameLoader resolves user ids to usernames; unknown ids resolve to ""
	UsernameLoader *dataloader.Loader[int64, string]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(users repositories.UserRepository) *Loaders {
	return &Loaders{
		UsernameLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []int64) []*dataloader.Result[string] {
			results := make([]*dataloader.Result[string], len(keys))
			names, err := users.UsernamesByIDs(ctx, keys)
			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[string]{Error: err}
					continue
				}
				results[i] = &dataloader.Result[string]{Data: names[key]}
			}
			return results
		}, dataloader.WithWait[int64, string](2*time.Millisecond)),
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Usernames resolves ids through the request's loader, or a fresh one when ctx has none.
// Lookup failures yield no entry for that id.
func Usernames(ctx context.Context, users repositories.UserRepository, ids []int64) map[int64]string {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out
	}
	l := For(ctx)
	if l == nil {
		l = NewLoaders(users)
	}
	names, errs := l.UsernameLoader.LoadMany(ctx, ids)()
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			continue
		}
		if i < len(names) && names[i] != "" {
			out[id] = names[i]
		}
	}
	return out
}
