// Package cursor implements the opaque page tokens handed out by listing
// endpoints. A token carries an ordering timestamp, a tie-break identifier
// and an optional binding tag naming the listing it was issued for.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

const separator = "|"

var (
	ErrEmptyID     = errors.New("cursor: tie-break id must not be empty")
	ErrIDSeparator = errors.New("cursor: tie-break id must not contain " + separator)
	ErrInvalid     = errors.New("cursor: invalid token")
	ErrTimeRange   = errors.New("cursor: timestamp year must be between 0 and 9999")
)

type Cursor struct {
	At      time.Time
	ID      string
	Binding *string
}

// Bound reports whether the cursor was issued for the given binding. A
// cursor without a binding only matches the empty binding.
func (c Cursor) Bound(binding string) bool {
	if c.Binding == nil {
		return binding == ""
	}

	return *c.Binding == binding
}

func (c Cursor) String() string {
	s, err := Encode(c.At, c.ID, c.Binding)
	if err != nil {
		return ""
	}
	return s
}

func Encode(at time.Time, id string, binding *string) (string, error) {
	if id == "" {
		return "", ErrEmptyID
	}
	if strings.Contains(id, separator) {
		return "", ErrIDSeparator
	}

	// RFC 3339 only has room for four digit years
	if y := at.UTC().Year(); y < 0 || y > 9999 {
		return "", ErrTimeRange
	}

	parts := []string{at.UTC().Format(time.RFC3339Nano), id}
	if binding != nil {
		parts = append(parts, *binding)
	}

	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(parts, separator))), nil
}

// Decode is the left inverse of Encode. Anything after the second separator
// is the binding, verbatim.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	d, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}

	parts := strings.SplitN(string(d), separator, 3)
	if len(parts) < 2 {
		return Cursor{}, fmt.Errorf("%w: expected at least 2 fields, got %d", ErrInvalid, len(parts))
	}

	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad timestamp: %s", ErrInvalid, err.Error())
	}

	if parts[1] == "" {
		return Cursor{}, fmt.Errorf("%w: empty id", ErrInvalid)
	}

	c := Cursor{At: at.UTC(), ID: parts[1]}
	if len(parts) == 3 {
		binding := parts[2]
		c.Binding = &binding
	}

	return c, nil
}
