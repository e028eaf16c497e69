package providers

import (
	"context"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// SearchIndex is a full-text index over fountains
type SearchIndex interface {
	// EnsureCollection creates the index schema if it is missing
	EnsureCollection(ctx context.Context) error

	// IndexFountain inserts or replaces one fountain document
	IndexFountain(ctx context.Context, fountain *entities.Fountain) error

	// IndexFountains bulk upserts documents and returns how many were accepted
	IndexFountains(ctx context.Context, fountains []*entities.Fountain) (int, error)

	// Search returns matching fountain ids in relevance order
	Search(ctx context.Context, query string, limit int) ([]int64, error)
}
