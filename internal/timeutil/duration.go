package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type durationUnit struct {
	c      byte
	d      time.Duration
	inTime bool
}

// units in the order they must appear
var durationUnits = []durationUnit{
	{'W', time.Hour * 24 * 7, false},
	{'D', time.Hour * 24, false},
	{'H', time.Hour, true},
	{'M', time.Minute, true},
	{'S', time.Second, true},
}

// ParseISODuration parses an ISO 8601 duration made of weeks, days and
// clock components, e.g. "PT1H2M3.5S", "P1DT4M" or "P0D". Years and months
// have no fixed length and are rejected. Only seconds may be fractional.
func ParseISODuration(s string) (time.Duration, error) {
	rest := s

	sign := time.Duration(1)
	if strings.HasPrefix(rest, "-") {
		sign = -1
		rest = rest[1:]
	}

	if !strings.HasPrefix(rest, "P") {
		return 0, fmt.Errorf("timeutil.ParseISODuration(%q): missing 'P' designator", s)
	}
	rest = rest[1:]

	if rest == "" {
		return 0, fmt.Errorf("timeutil.ParseISODuration(%q): no components", s)
	}

	var total time.Duration
	inTime := false
	next := 0

	for rest != "" {
		if rest[0] == 'T' {
			if inTime {
				return 0, fmt.Errorf("timeutil.ParseISODuration(%q): repeated 'T' designator", s)
			}

			inTime = true
			rest = rest[1:]

			if rest == "" {
				return 0, fmt.Errorf("timeutil.ParseISODuration(%q): 'T' without a time component", s)
			}

			continue
		}

		n := 0
		for n < len(rest) && (rest[n] >= '0' && rest[n] <= '9' || rest[n] == '.') {
			n++
		}
		if n == 0 || n == len(rest) {
			return 0, fmt.Errorf("timeutil.ParseISODuration(%q): malformed component %q", s, rest)
		}

		i := next
		for i < len(durationUnits) && (durationUnits[i].c != rest[n] || durationUnits[i].inTime != inTime) {
			i++
		}
		if i == len(durationUnits) {
			return 0, fmt.Errorf("timeutil.ParseISODuration(%q): unexpected designator '%c'", s, rest[n])
		}

		v, err := strconv.ParseFloat(rest[:n], 64)
		if err != nil {
			return 0, fmt.Errorf("timeutil.ParseISODuration(%q): %w", s, err)
		}

		if v != math.Trunc(v) && durationUnits[i].c != 'S' {
			return 0, fmt.Errorf("timeutil.ParseISODuration(%q): component '%c' can't be fractional", s, durationUnits[i].c)
		}

		total += time.Duration(v * float64(durationUnits[i].d))
		next = i + 1
		rest = rest[n+1:]
	}

	return sign * total, nil
}
