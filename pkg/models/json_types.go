package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONStringMap is a map[string]string stored as a JSON TEXT column.
// Used for the opaque visual-feature descriptors attached to elements and
// patterns; the engine only ever compares these for equality.
type JSONStringMap map[string]string

// Value implements driver.Valuer.
func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONStringMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONStringMap: %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Equal reports whether both maps hold exactly the same keys and values.
func (m JSONStringMap) Equal(other JSONStringMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
