package storage

import (
	"encoding/json"
	"fmt"
)

// encodeJSON renders a value for a JSON text column.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding column: %w", err)
	}
	return string(b), nil
}

// decodeJSON reads a JSON text column. Empty columns leave v untouched.
func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decoding column: %w", err)
	}
	return nil
}

// stringList normalizes nil slices so columns never hold "null".
func stringList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
