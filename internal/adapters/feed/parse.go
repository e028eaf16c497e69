package feed

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// ParseExternalID reads the source identifier; integral floats such as "12.0" are accepted
func ParseExternalID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("id must be positive, got %d", id)
		}
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int64(f), nil
}

// ParseCoordinates reads {"x": lon, "y": lat}, also in the single-quoted dict spelling
func ParseCoordinates(s string) (longitude, latitude float64, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, fmt.Errorf("coordinates are empty")
	}
	normalized := strings.ReplaceAll(s, "'", `"`)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(normalized), &obj); err != nil {
		return 0, 0, fmt.Errorf("invalid coordinates %q: %w", s, err)
	}
	longitude, err = number(obj, "x")
	if err != nil {
		return 0, 0, err
	}
	latitude, err = number(obj, "y")
	if err != nil {
		return 0, 0, err
	}
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: x=%v y=%v", longitude, latitude)
	}
	return longitude, latitude, nil
}

func number(obj map[string]interface{}, key string) (float64, error) {
	switch v := obj[key].(type) {
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("coordinate %s is not a number: %q", key, v)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("coordinate %s is missing", key)
	default:
		return 0, fmt.Errorf("coordinate %s has unsupported type %T", key, v)
	}
}

// ParseFountainType maps a source label to a type, falling back to the default type.
// The second result reports whether the label was recognized.
func ParseFountainType(label string) (entities.FountainType, bool) {
	if t, ok := entities.FountainTypeFromLabel(label); ok {
		return t, true
	}
	return entities.DefaultFountainType, false
}

// ParseBool normalizes the truthy and falsy spellings seen in the feed
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "1.0", "yes", "y", "t", "כן":
		return true, nil
	case "false", "0", "0.0", "no", "n", "f", "לא", "", "nan", "none", "null":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// ToFountainInput converts one row into the attributes of an imported fountain
func ToFountainInput(row entities.FeedRow) (entities.FountainInput, error) {
	id, err := ParseExternalID(row.ExternalID)
	if err != nil {
		return entities.FountainInput{}, err
	}
	lon, lat, err := ParseCoordinates(row.Coordinates)
	if err != nil {
		return entities.FountainInput{}, err
	}
	dog, err := ParseBool(row.DogFriendly)
	if err != nil {
		return entities.FountainInput{}, fmt.Errorf("dog_friendly: %w", err)
	}
	typ, _ := ParseFountainType(row.TypeLabel)

	return entities.FountainInput{
		ID:          &id,
		Address:     strings.TrimSpace(row.Address),
		Latitude:    lat,
		Longitude:   lon,
		DogFriendly: dog,
		Type:        typ,
		Status:      entities.FountainStatusVerified,
	}, nil
}
