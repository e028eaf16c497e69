package entities

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// FountainType is the physical shape of a fountain
type FountainType string

const (
	FountainTypeCylindrical FountainType = "cylindrical"
	FountainTypeLeaf        FountainType = "leaf"
	FountainTypeCooler      FountainType = "cooler"
	FountainTypeSquare      FountainType = "square"
	FountainTypeMushroom    FountainType = "mushroom"
)

// DefaultFountainType is used when an imported label is not recognized
const DefaultFountainType = FountainTypeCylindrical

var fountainTypes = []FountainType{
	FountainTypeCylindrical,
	FountainTypeLeaf,
	FountainTypeCooler,
	FountainTypeSquare,
	FountainTypeMushroom,
}

// Valid reports whether t is one of the known fountain types
func (t FountainType) Valid() bool {
	for _, known := range fountainTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseFountainType converts a wire value into a FountainType
func ParseFountainType(s string) (FountainType, error) {
	t := FountainType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown fountain type %q", s))
	}
	return t, nil
}

// FountainStatus tracks where a fountain record came from
type FountainStatus string

const (
	FountainStatusVerified      FountainStatus = "verified"
	FountainStatusUserSubmitted FountainStatus = "user_submitted"
	FountainStatusApproved      FountainStatus = "approved"
)

// Valid reports whether s is one of the known statuses
func (s FountainStatus) Valid() bool {
	switch s {
	case FountainStatusVerified, FountainStatusUserSubmitted, FountainStatusApproved:
		return true
	}
	return false
}

// ParseFountainStatus converts a wire value into a FountainStatus
func ParseFountainStatus(s string) (FountainStatus, error) {
	st := FountainStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown fountain status %q", s))
	}
	return st, nil
}

// MaxFountainDescription is the longest accepted fountain description, in characters
const MaxFountainDescription = 500

// Fountain is a physical drinking-water point
type Fountain struct {
	ID                   int64          `json:"id" db:"id"`
	Address              string         `json:"address" db:"address"`
	Latitude             float64        `json:"latitude" db:"latitude"`
	Longitude            float64        `json:"longitude" db:"longitude"`
	DogFriendly          bool           `json:"dog_friendly" db:"dog_friendly"`
	BottleRefill         bool           `json:"bottle_refill" db:"bottle_refill"`
	Type                 FountainType   `json:"type" db:"type"`
	AverageGeneralRating float64        `json:"average_general_rating" db:"average_general_rating"`
	NumberOfRatings      int64          `json:"number_of_ratings" db:"number_of_ratings"`
	LastUpdated          time.Time      `json:"last_updated" db:"last_updated"`
	Status               FountainStatus `json:"status" db:"status"`
	SubmittedBy          *int64         `json:"submitted_by,omitempty" db:"submitted_by"`
	Description          *string        `json:"description,omitempty" db:"description"`
}

// FountainInput is the caller-controlled attribute set of a fountain.
// Derived fields (rating, count, last_updated, submitted_by) are never taken from callers.
type FountainInput struct {
	ID           *int64         `json:"id,omitempty"`
	Address      string         `json:"address"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	DogFriendly  bool           `json:"dog_friendly"`
	BottleRefill bool           `json:"bottle_refill"`
	Type         FountainType   `json:"type"`
	Status       FountainStatus `json:"status,omitempty"`
	Description  *string        `json:"description,omitempty"`
}

// ValidateCoordinates checks that a point lies within WGS84 bounds
func ValidateCoordinates(longitude, latitude float64) error {
	if latitude < -90 || latitude > 90 {
		return apperrors.NewValidationError("latitude must be between -90 and 90")
	}
	if longitude < -180 || longitude > 180 {
		return apperrors.NewValidationError("longitude must be between -180 and 180")
	}
	return nil
}

// Validate trims the address and checks value ranges and enumerations
func (in *FountainInput) Validate() error {
	in.Address = strings.TrimSpace(in.Address)
	if in.ID != nil && *in.ID <= 0 {
		return apperrors.NewValidationError("fountain id must be positive")
	}
	if err := ValidateCoordinates(in.Longitude, in.Latitude); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown fountain type %q", in.Type))
	}
	if in.Status != "" && !in.Status.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown fountain status %q", in.Status))
	}
	if in.Description != nil && len([]rune(*in.Description)) > MaxFountainDescription {
		return apperrors.NewValidationError(fmt.Sprintf("description must be at most %d characters", MaxFountainDescription))
	}
	return nil
}

// FountainChanges holds the fields of an update that differ from the stored record.
// A nil field is unchanged.
type FountainChanges struct {
	Address      *string
	Latitude     *float64
	Longitude    *float64
	DogFriendly  *bool
	BottleRefill *bool
	Type         *FountainType
	Status       *FountainStatus
	Description  **string
}

// DiffFountain compares the stored fountain with a replacement attribute set field by field.
// An empty Status in the replacement keeps the stored status.
func DiffFountain(current *Fountain, proposed FountainInput) FountainChanges {
	var c FountainChanges
	if current.Address != proposed.Address {
		c.Address = &proposed.Address
	}
	if current.Latitude != proposed.Latitude {
		c.Latitude = &proposed.Latitude
	}
	if current.Longitude != proposed.Longitude {
		c.Longitude = &proposed.Longitude
	}
	if current.DogFriendly != proposed.DogFriendly {
		c.DogFriendly = &proposed.DogFriendly
	}
	if current.BottleRefill != proposed.BottleRefill {
		c.BottleRefill = &proposed.BottleRefill
	}
	if current.Type != proposed.Type {
		c.Type = &proposed.Type
	}
	if proposed.Status != "" && current.Status != proposed.Status {
		c.Status = &proposed.Status
	}
	if !equalOptionalString(current.Description, proposed.Description) {
		d := proposed.Description
		c.Description = &d
	}
	return c
}

// Empty reports whether no field differs
func (c FountainChanges) Empty() bool {
	return len(c.Fields()) == 0
}

// Fields lists the changed attribute names in a fixed order
func (c FountainChanges) Fields() []string {
	var fields []string
	if c.Address != nil {
		fields = append(fields, "address")
	}
	if c.Latitude != nil {
		fields = append(fields, "latitude")
	}
	if c.Longitude != nil {
		fields = append(fields, "longitude")
	}
	if c.DogFriendly != nil {
		fields = append(fields, "dog_friendly")
	}
	if c.BottleRefill != nil {
		fields = append(fields, "bottle_refill")
	}
	if c.Type != nil {
		fields = append(fields, "type")
	}
	if c.Status != nil {
		fields = append(fields, "status")
	}
	if c.Description != nil {
		fields = append(fields, "description")
	}
	return fields
}

// Apply writes the changed fields onto f
func (c FountainChanges) Apply(f *Fountain) {
	if c.Address != nil {
		f.Address = *c.Address
	}
	if c.Latitude != nil {
		f.Latitude = *c.Latitude
	}
	if c.Longitude != nil {
		f.Longitude = *c.Longitude
	}
	if c.DogFriendly != nil {
		f.DogFriendly = *c.DogFriendly
	}
	if c.BottleRefill != nil {
		f.BottleRefill = *c.BottleRefill
	}
	if c.Type != nil {
		f.Type = *c.Type
	}
	if c.Status != nil {
		f.Status = *c.Status
	}
	if c.Description != nil {
		f.Description = *c.Description
	}
}

func equalOptionalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NearestResult is one page of fountains ordered by distance plus the total fountain count
type NearestResult struct {
	Items []*Fountain `json:"items"`
	Total int64       `json:"total"`
	Limit int         `json:"limit"`
}

// SquaredDistance is the ordering key used for nearest-fountain queries
func SquaredDistance(longitude, latitude float64, f *Fountain) float64 {
	dx := f.Longitude - longitude
	dy := f.Latitude - latitude
	return dx*dx + dy*dy
}

// fountainTypeLabels are the Hebrew names used by the municipal feed
var fountainTypeLabels = map[FountainType]string{
	FountainTypeCylindrical: "ברזית גליל",
	FountainTypeLeaf:        "ברזיית עלה",
	FountainTypeCooler:      "קולר",
	FountainTypeSquare:      "ברזיה מרובעת",
	FountainTypeMushroom:    "ברזית פטריה",
}

var legacyFountainTypes = map[string]FountainType{
	"cylindrical_fountain": FountainTypeCylindrical,
	"leaf_fountain":        FountainTypeLeaf,
	"leaf_fountaian":       FountainTypeLeaf,
	"square_fountain":      FountainTypeSquare,
	"mushroom_fountain":    FountainTypeMushroom,
}

// Label returns the Hebrew display name of t
func (t FountainType) Label() string {
	return fountainTypeLabels[t]
}

// FountainTypeFromLabel maps a Hebrew label, an English name or a legacy name to a type
func FountainTypeFromLabel(label string) (FountainType, bool) {
	s := strings.TrimSpace(label)
	for t, l := range fountainTypeLabels {
		if s == l {
			return t, true
		}
	}
	lower := strings.ToLower(s)
	if t := FountainType(lower); t.Valid() {
		return t, true
	}
	if t, ok := legacyFountainTypes[lower]; ok {
		return t, true
	}
	return "", false
}
