package repositories

import "context"

// Repositories groups the repositories that share one connection or transaction
type Repositories interface {
	Fountains() FountainRepository
	Reviews() ReviewRepository
	Reports() ReportRepository
	Photos() PhotoRepository
	Users() UserRepository
}

// Store is the record store. Repositories handed to fn are bound to one transaction that
// commits when fn returns nil and rolls back otherwise.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
}
