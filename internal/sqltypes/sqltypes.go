package sqltypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONStringSlice is stored as a JSON array. Nil and empty are stored the
// same way and read back as an empty slice.
type JSONStringSlice []string

func (s JSONStringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}

	d, err := json.Marshal([]string(s))
	if err != nil {
		return nil, fmt.Errorf("sqltypes.JSONStringSlice.Value: %w", err)
	}

	return string(d), nil
}

func (s *JSONStringSlice) Scan(src interface{}) error {
	var d []byte

	switch src := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		d = src
	case string:
		d = []byte(src)
	default:
		return fmt.Errorf("sqltypes.JSONStringSlice.Scan: could not scan input type of %T", src)
	}

	var a []string
	if err := json.Unmarshal(d, &a); err != nil {
		return fmt.Errorf("sqltypes.JSONStringSlice.Scan: could not decode input as JSON: %w", err)
	}

	*s = a

	return nil
}

// Equal compares element by element; order matters.
func (s JSONStringSlice) Equal(other JSONStringSlice) bool {
	if len(s) != len(other) {
		return false
	}

	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}
