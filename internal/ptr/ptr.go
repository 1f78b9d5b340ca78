package ptr

import (
	"time"
)

func To[T any](v T) *T { return &v }

func Bool(v bool) *bool           { return &v }
func String(v string) *string     { return &v }
func Time(v time.Time) *time.Time { return &v }

// Equal reports whether both pointers are nil, or both are set to equal
// values.
func Equal[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

// TimeEqual is Equal for times, comparing instants rather than locations.
func TimeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equal(*b)
}

func Deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}

	return *p
}
