package ctxjobqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/jobqueue"
	"fknsrs.biz/p/ytcatalog/internal/queuenames"
)

// context registration

var workerKey int

func WithWorker(ctx context.Context, w *jobqueue.Worker) context.Context {
	return context.WithValue(ctx, &workerKey, w)
}

func GetWorker(ctx context.Context) *jobqueue.Worker {
	if v := ctx.Value(&workerKey); v != nil {
		return v.(*jobqueue.Worker)
	}

	return nil
}

// middleware

func Register(w *jobqueue.Worker) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithWorker(r.Context(), w)))
	}
}

// main interface

var (
	ErrNoWorker = errors.New("ctxjobqueue: no worker found in context")
)

func Add(ctx context.Context, tx *sql.Tx, job *jobqueue.Job) error {
	w := GetWorker(ctx)
	if w == nil {
		return ErrNoWorker
	}

	if err := w.Add(ctx, tx, job); err != nil {
		return fmt.Errorf("ctxjobqueue.Add: %w", err)
	}

	return nil
}

func AddUnique(ctx context.Context, tx *sql.Tx, job *jobqueue.Job) (bool, error) {
	w := GetWorker(ctx)
	if w == nil {
		return false, ErrNoWorker
	}

	added, err := w.AddUnique(ctx, tx, job)
	if err != nil {
		return false, fmt.Errorf("ctxjobqueue.AddUnique: %w", err)
	}

	return added, nil
}

// EnqueueSync queues a channel sync unless one is already waiting. The job
// is returned either way.
func EnqueueSync(ctx context.Context, channelID string) (*jobqueue.Job, bool, error) {
	job := &jobqueue.Job{QueueName: queuenames.ChannelSync, Payload: channelID}

	var added bool
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		added, err = AddUnique(ctx, tx, job)
		return err
	}); err != nil {
		return nil, false, fmt.Errorf("ctxjobqueue.EnqueueSync(%s): %w", channelID, err)
	}

	return job, added, nil
}
