package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONValue is an opaque JSON document stored in a text column.
type JSONValue []byte

// Scan implements sql.Scanner.
func (j *JSONValue) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONValue(v)
	default:
		return fmt.Errorf("unsupported JSONValue column type %T", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (j JSONValue) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

// MarshalJSON emits the stored document as-is.
func (j JSONValue) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps a copy of the raw document.
func (j *JSONValue) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// Decode unmarshals the stored document into dst.
func (j JSONValue) Decode(dst interface{}) error {
	return json.Unmarshal(j, dst)
}
