package cursor

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytcatalog/internal/ptr"
)

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name    string
		at      time.Time
		id      string
		binding *string
	}{
		{"no binding", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), "dQw4w9WgXcQ", nil},
		{"empty binding", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), "dQw4w9WgXcQ", ptr.To("")},
		{"nanoseconds", time.Date(2021, 7, 9, 1, 2, 3, 123456789, time.UTC), "Ugx123", ptr.To("replies:UC1")},
		{"non utc input", time.Date(2021, 7, 9, 1, 2, 3, 500, time.FixedZone("AEST", 10*60*60)), "abc", nil},
		{"binding with separators", time.Unix(0, 0), "v1", ptr.To("a|b||c|")},
		{"zero time", time.Time{}, "v1", ptr.To("videos:UC1")},
		{"unicode id", time.Unix(1700000000, 0), "ünï-çødé", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			token, err := Encode(tc.at, tc.id, tc.binding)
			a.NoError(err)
			a.NotContains(token, "=")
			a.NotContains(token, "+")
			a.NotContains(token, "/")

			c, err := Decode(token)
			if a.NoError(err) {
				a.True(tc.at.Equal(c.At), "expected %s, got %s", tc.at, c.At)
				a.Equal(tc.id, c.ID)
				a.Equal(tc.binding, c.Binding)
			}
		})
	}
}

func TestEncodeRejectsBadIDs(t *testing.T) {
	a := assert.New(t)

	_, err := Encode(time.Now(), "", nil)
	a.ErrorIs(err, ErrEmptyID)

	_, err = Encode(time.Now(), "a|b", nil)
	a.ErrorIs(err, ErrIDSeparator)
}

func TestEncodeTimeRange(t *testing.T) {
	for _, tc := range []struct {
		name string
		at   time.Time
		err  error
	}{
		{"year_zero", time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC), nil},
		{"year_9999", time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC), nil},
		{"year_10000", time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), ErrTimeRange},
		{"negative_year", time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC), ErrTimeRange},
		{"offset_pushes_past_9999", time.Date(9999, 12, 31, 23, 0, 0, 0, time.FixedZone("west", -2*60*60)), ErrTimeRange},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			s, err := Encode(tc.at, "id", nil)
			if tc.err != nil {
				a.ErrorIs(err, tc.err)
				return
			}

			if a.NoError(err) {
				c, err := Decode(s)
				if a.NoError(err) {
					a.True(tc.at.Equal(c.At))
				}
			}
		})
	}
}

func raw(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestDecodeGarbage(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base64", "!!!not-base64!!!"},
		{"padded base64", base64.URLEncoding.EncodeToString([]byte("2024-01-01T00:00:00Z|a"))},
		{"one field", raw("2024-01-01T00:00:00Z")},
		{"bad timestamp", raw("yesterday|abc")},
		{"empty id", raw("2024-01-01T00:00:00Z|")},
		{"empty id with binding", raw("2024-01-01T00:00:00Z||binding")},
		{"binary", raw("\x00\xff\xfe|\x01")},
		{"whitespace", "   "},
		{"long junk", strings.Repeat("A", 4097)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			a.NotPanics(func() {
				_, err := Decode(tc.input)
				a.ErrorIs(err, ErrInvalid)
			})
		})
	}
}

func TestBound(t *testing.T) {
	a := assert.New(t)

	token, err := Encode(time.Now(), "v1", ptr.To("videos:UC1"))
	a.NoError(err)

	c, err := Decode(token)
	a.NoError(err)
	a.True(c.Bound("videos:UC1"))
	a.False(c.Bound("videos:UC2"))
	a.False(c.Bound(""))

	a.True(Cursor{At: time.Now(), ID: "x"}.Bound(""))
}
