package entities

// FeedRow is one raw record of the bulk fountain feed. Values are kept as the source spells them.
type FeedRow struct {
	Line        int    `json:"-"`
	ExternalID  string `json:"oid"`
	Address     string `json:"open_map_address"`
	Coordinates string `json:"coordinates"`
	TypeLabel   string `json:"fountain_type"`
	DogFriendly string `json:"dog_friendly"`
}

// ImportRowError explains why a feed row was not imported
type ImportRowError struct {
	Line       int    `json:"line"`
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// ImportResult summarizes one ImportFromFeed run
type ImportResult struct {
	Inserted int              `json:"inserted"`
	Skipped  int              `json:"skipped"`
	Failed   int              `json:"failed"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}
