package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/typesense/typesense-go/v2/typesense/api"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

func TestBuildFountainTags(t *testing.T) {
	f := &entities.Fountain{
		Type:         entities.FountainTypeLeaf,
		DogFriendly:  true,
		BottleRefill: true,
		Status:       entities.FountainStatusUserSubmitted,
	}

	assert.Equal(t, []string{
		"leaf",
		"ברזיית עלה",
		"dog friendly",
		"dogs",
		"bottle refill",
		"bottle",
		"community",
	}, buildFountainTags(f))
}

func TestBuildFountainTagsNil(t *testing.T) {
	assert.Nil(t, buildFountainTags(nil))
}

func TestFountainDocument(t *testing.T) {
	desc := "shaded"
	f := &entities.Fountain{
		ID:          12,
		Address:     "Herzl 1",
		Latitude:    32.1,
		Longitude:   34.8,
		Type:        entities.FountainTypeCooler,
		Status:      entities.FountainStatusVerified,
		LastUpdated: time.Unix(1700000000, 0).UTC(),
		Description: &desc,
	}

	doc := fountainDocument(f)
	assert.Equal(t, "12", doc["id"])
	assert.Equal(t, []float64{32.1, 34.8}, doc["location"])
	assert.Equal(t, int64(1700000000), doc["last_updated"])
	assert.Equal(t, "shaded", doc["description"])

	f.Description = nil
	_, ok := fountainDocument(f)["description"]
	assert.False(t, ok)
}

func TestIDsFromHits(t *testing.T) {
	doc := func(m map[string]interface{}) *map[string]interface{} { return &m }
	hits := []api.SearchResultHit{
		{Document: doc(map[string]interface{}{"id": "3"})},
		{Document: nil},
		{Document: doc(map[string]interface{}{"id": "not-a-number"})},
		{Document: doc(map[string]interface{}{"id": "1"})},
	}
	assert.Equal(t, []int64{3, 1}, idsFromHits(hits))
}
