package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	tsclient "github.com/berez-app/berez/backend/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements fountain search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ providers.SearchIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// EnsureCollection ensures the collection exists
func (a *TypesenseAdapter) EnsureCollection(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

func fountainDocument(f *entities.Fountain) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                     strconv.FormatInt(f.ID, 10),
		"address":                f.Address,
		"type":                   string(f.Type),
		"status":                 string(f.Status),
		"location":               []float64{f.Latitude, f.Longitude},
		"dog_friendly":           f.DogFriendly,
		"bottle_refill":          f.BottleRefill,
		"average_general_rating": f.AverageGeneralRating,
		"number_of_ratings":      f.NumberOfRatings,
		"last_updated":           f.LastUpdated.Unix(),
		"tags":                   buildFountainTags(f),
	}
	if f.Description != nil {
		doc["description"] = *f.Description
	}
	return doc
}

// IndexFountain upserts one fountain document
func (a *TypesenseAdapter) IndexFountain(ctx context.Context, fountain *entities.Fountain) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, fountainDocument(fountain))
	if err != nil {
		return fmt.Errorf("failed to index fountain %d: %w", fountain.ID, err)
	}
	return nil
}

// IndexFountains upserts documents one by one, logging and skipping failures
func (a *TypesenseAdapter) IndexFountains(ctx context.Context, fountains []*entities.Fountain) (int, error) {
	indexed := 0
	for _, f := range fountains {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := a.IndexFountain(ctx, f); err != nil {
			log.Ctx(ctx).Warn().Err(err).Int64("fountain_id", f.ID).Msg("skipping fountain during indexing")
			continue
		}
		indexed++
	}
	return indexed, nil
}

// Search returns fountain ids matching query in relevance order
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]int64, error) {
	params := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("address,description,tags"),
		PerPage: pointer.Int(limit),
		Page:    pointer.Int(1),
	}

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search fountains: %w", err)
	}
	if result.Hits == nil {
		return []int64{}, nil
	}
	return idsFromHits(*result.Hits), nil
}

func idsFromHits(hits []api.SearchResultHit) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, hit := range hits {
		if hit.Document == nil {
			continue
		}
		raw, ok := (*hit.Document)["id"].(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
