package typesense

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFountainSchema(t *testing.T) {
	schema := FountainSchema("fountains")

	assert.Equal(t, "fountains", schema.Name)
	assert.Equal(t, "number_of_ratings", *schema.DefaultSortingField)

	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "location")
	assert.Contains(t, names, "address")
}
