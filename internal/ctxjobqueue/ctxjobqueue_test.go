package ctxjobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/dbtest"
	"fknsrs.biz/p/ytcatalog/internal/jobqueue"
	"fknsrs.biz/p/ytcatalog/internal/queuenames"
)

func TestEnqueueSync(t *testing.T) {
	a := assert.New(t)

	ctx := ctxdb.WithDB(context.Background(), dbtest.Open(t))
	ctx = ctxclock.WithClock(ctx, ctxclock.NewStaticClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, _, err := EnqueueSync(ctx, "UC1")
	a.ErrorIs(err, ErrNoWorker)

	w := jobqueue.NewWorker(map[string]jobqueue.WorkerFunction{
		queuenames.ChannelSync: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) { return "", nil },
	})
	ctx = WithWorker(ctx, w)

	first, added, err := EnqueueSync(ctx, "UC1")
	a.NoError(err)
	a.True(added)

	again, added, err := EnqueueSync(ctx, "UC1")
	a.NoError(err)
	a.False(added)
	a.Equal(first.ID, again.ID)
	a.Equal(queuenames.ChannelSync, again.QueueName)
}
