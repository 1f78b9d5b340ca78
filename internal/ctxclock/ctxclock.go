package ctxclock

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var (
	ErrNoClock     = fmt.Errorf("ctxclock: no clock found in context")
	ErrNoTimesLeft = fmt.Errorf("ctxclock: no times left")
)

type Clock interface {
	Now() (time.Time, error)
}

// context registration

var clockKey int

func WithClock(ctx context.Context, c Clock) context.Context {
	if c == nil {
		c = NewRealClock()
	}

	return context.WithValue(ctx, &clockKey, c)
}

func GetClock(ctx context.Context) Clock {
	if v := ctx.Value(&clockKey); v != nil {
		return v.(Clock)
	}

	return nil
}

// Now returns the context clock's time in UTC. Everything stored goes through
// here so that stored timestamps share one offset.
func Now(ctx context.Context) (time.Time, error) {
	c := GetClock(ctx)
	if c == nil {
		return time.Time{}, ErrNoClock
	}

	t, err := c.Now()
	if err != nil {
		return time.Time{}, fmt.Errorf("ctxclock.Now: %w", err)
	}

	return t.UTC(), nil
}

// middleware

func Register(c Clock) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithClock(r.Context(), c)))
	}
}

// real clock

type realClock struct{}

func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() (time.Time, error) {
	return time.Now(), nil
}

// static clock

type staticClock struct{ t time.Time }

func NewStaticClock(t time.Time) Clock {
	return &staticClock{t: t}
}

func (c *staticClock) Now() (time.Time, error) {
	return c.t, nil
}

// ManualClock is a clock for tests that only moves when told to.
type ManualClock struct {
	m sync.Mutex
	t time.Time
}

func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{t: t}
}

func (c *ManualClock) Now() (time.Time, error) {
	c.m.Lock()
	defer c.m.Unlock()

	return c.t, nil
}

func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.m.Lock()
	defer c.m.Unlock()

	c.t = c.t.Add(d)

	return c.t
}

// testing clock

type TestClockResult struct {
	Time  time.Time
	Error error
}

type testClock struct {
	m sync.Mutex
	a []TestClockResult
	i int
}

func NewTestClock(results []TestClockResult) Clock {
	return &testClock{a: results}
}

func (c *testClock) Now() (time.Time, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.i >= len(c.a) {
		return time.Time{}, fmt.Errorf("ctxclock.testClock.Now: %w", ErrNoTimesLeft)
	}

	r := c.a[c.i]
	c.i++

	return r.Time, r.Error
}
