package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// JSONBList stores an ordered list in a JSONB (or TEXT on SQLite) column.
// A NULL or missing column scans to an empty list, never nil.
type JSONBList[T any] []T

// Value implements the driver.Valuer interface
func (l JSONBList[T]) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]T(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (l *JSONBList[T]) Scan(value interface{}) error {
	if value == nil {
		*l = JSONBList[T]{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}

	if len(strings.TrimSpace(string(bytes))) == 0 {
		*l = JSONBList[T]{}
		return nil
	}

	var items []T
	if err := json.Unmarshal(bytes, &items); err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	*l = items
	return nil
}

// UnmarshalJSON keeps the list non-nil when the payload is null.
func (l *JSONBList[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	*l = items
	return nil
}

// MarshalJSON renders a nil list as [].
func (l JSONBList[T]) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(l))
}
