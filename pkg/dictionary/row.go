package dictionary

import (
	"encoding/json"
	"fmt"
)

// rowWidth is the number of positions in a serialized row.
const rowWidth = 6

// Row is one dictionary bank record. It serializes as the positional tuple
//
//	[identifier, "", "", "", [meanings...], {}]
//
// Positions 1-3 are reserved and always empty; position 5 is a placeholder
// for per-record metadata.
type Row struct {
	Identifier string
	Meanings   []string
}

// MarshalJSON implements json.Marshaler.
func (r Row) MarshalJSON() ([]byte, error) {
	meanings := r.Meanings
	if meanings == nil {
		meanings = []string{}
	}
	return json.Marshal([rowWidth]any{
		r.Identifier,
		"",
		"",
		"",
		meanings,
		struct{}{},
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Row) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if len(parts) != rowWidth {
		return fmt.Errorf("decode row: want %d fields, got %d", rowWidth, len(parts))
	}

	var out Row
	if err := json.Unmarshal(parts[0], &out.Identifier); err != nil {
		return fmt.Errorf("decode row identifier: %w", err)
	}
	if err := json.Unmarshal(parts[4], &out.Meanings); err != nil {
		return fmt.Errorf("decode row meanings: %w", err)
	}

	*r = out
	return nil
}
