package search

import (
	"strings"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// MaxIndexedTags caps the tag list of one document
const MaxIndexedTags = 20

// buildFountainTags collects the searchable keywords of a fountain besides its address
func buildFountainTags(f *entities.Fountain) []string {
	if f == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var tags []string
	add := func(terms ...string) {
		for _, term := range terms {
			t := strings.ToLower(strings.TrimSpace(term))
			if t == "" || len(tags) >= MaxIndexedTags {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}

	add(string(f.Type), f.Type.Label())
	if f.DogFriendly {
		add("dog friendly", "dogs")
	}
	if f.BottleRefill {
		add("bottle refill", "bottle")
	}
	if f.Status == entities.FountainStatusUserSubmitted {
		add("community")
	}
	return tags
}
