// Package feed decodes the municipal fountain feed into rows and normalizes row values.
package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// Format is the encoding of a feed file
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatFromName picks a format from a file name or content type
func FormatFromName(name string) Format {
	n := strings.ToLower(name)
	if strings.HasSuffix(n, ".json") || strings.Contains(n, "application/json") {
		return FormatJSON
	}
	return FormatCSV
}

var requiredColumns = []string{"oid", "open_map_address", "coordinates", "fountain_type", "dog_friendly"}

// Read decodes all rows of r in the given format
func Read(r io.Reader, format Format) ([]entities.FeedRow, error) {
	switch format {
	case FormatJSON:
		return ReadJSON(r)
	case FormatCSV, "":
		return ReadCSV(r)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported feed format %q", format))
	}
}

// ReadCSV decodes a header-led CSV feed. Extra columns are ignored.
func ReadCSV(r io.Reader) ([]entities.FeedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []entities.FeedRow{}, nil
	}
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("failed to read feed header: %v", err))
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("feed is missing column %q", col))
		}
	}

	field := func(rec []string, col string) string {
		i := index[col]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	rows := []entities.FeedRow{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("failed to read feed line %d: %v", line, err))
		}
		rows = append(rows, entities.FeedRow{
			Line:        line,
			ExternalID:  field(rec, "oid"),
			Address:     field(rec, "open_map_address"),
			Coordinates: field(rec, "coordinates"),
			TypeLabel:   field(rec, "fountain_type"),
			DogFriendly: field(rec, "dog_friendly"),
		})
	}
	return rows, nil
}

const feedSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["oid", "coordinates"],
    "properties": {
      "oid": {"type": ["integer", "string"]},
      "open_map_address": {"type": ["string", "null"]},
      "coordinates": {"type": ["object", "string"]},
      "fountain_type": {"type": ["string", "null"]},
      "dog_friendly": {"type": ["boolean", "integer", "string", "null"]}
    }
  }
}`

var compiledFeedSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(feedSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid feed schema: %v", err))
	}
	return s
}()

// ReadJSON decodes a JSON array feed after validating its shape
func ReadJSON(r io.Reader) ([]entities.FeedRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	result, err := compiledFeedSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("feed is not valid JSON: %v", err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, apperrors.NewValidationError("feed does not match schema: " + strings.Join(msgs, "; "))
	}

	var raw []map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("failed to decode feed: %v", err))
	}

	rows := make([]entities.FeedRow, 0, len(raw))
	for i, obj := range raw {
		rows = append(rows, entities.FeedRow{
			Line:        i + 1,
			ExternalID:  scalar(obj["oid"]),
			Address:     scalar(obj["open_map_address"]),
			Coordinates: scalar(obj["coordinates"]),
			TypeLabel:   scalar(obj["fountain_type"]),
			DogFriendly: scalar(obj["dog_friendly"]),
		})
	}
	return rows, nil
}

// scalar renders a JSON value as the text a CSV cell would hold. Objects stay as JSON text.
func scalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return str
		}
	}
	return s
}
