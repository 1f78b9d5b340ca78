package ctxclock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	a := assert.New(t)

	_, err := Now(context.Background())
	a.ErrorIs(err, ErrNoClock)

	local := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("AEST", 10*3600))
	now, err := Now(WithClock(context.Background(), NewStaticClock(local)))
	a.NoError(err)
	a.True(now.Equal(local))
	a.Equal(time.UTC, now.Location())
}

func TestTestClock(t *testing.T) {
	a := assert.New(t)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	errClock := errors.New("clock broke")

	c := NewTestClock([]TestClockResult{{Time: t1}, {Error: errClock}})

	v, err := c.Now()
	a.NoError(err)
	a.Equal(t1, v)

	_, err = c.Now()
	a.ErrorIs(err, errClock)

	_, err = c.Now()
	a.ErrorIs(err, ErrNoTimesLeft)
}

func TestManualClock(t *testing.T) {
	a := assert.New(t)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(t1)

	a.Equal(t1.Add(time.Hour), c.Advance(time.Hour))

	v, err := c.Now()
	a.NoError(err)
	a.Equal(t1.Add(time.Hour), v)
}
