package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytcatalog/internal/catchpanic"
	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
)

var (
	ErrWorkerExists       = errors.New("jobqueue: worker already exists")
	ErrWorkerDoesNotExist = errors.New("jobqueue: worker does not exist")
	ErrNoPendingJobs      = errors.New("jobqueue: no pending jobs")
)

type WorkerFunction func(ctx context.Context, w *Worker, j *Job) (string, error)

type Worker struct {
	l  sync.RWMutex
	ch chan struct{}
	m  map[string]WorkerFunction

	// IdleDelay is how long Run waits between polls when there's nothing
	// to do.
	IdleDelay time.Duration
}

func NewWorker(workerFunctions map[string]WorkerFunction) *Worker {
	m := make(map[string]WorkerFunction)
	for k, v := range workerFunctions {
		m[k] = v
	}

	return &Worker{
		ch:        make(chan struct{}, 1),
		m:         m,
		IdleDelay: time.Second * 30,
	}
}

func (w *Worker) Register(queueName string, fn WorkerFunction) error {
	return w.RegisterAll(map[string]WorkerFunction{queueName: fn})
}

func (w *Worker) RegisterAll(workers map[string]WorkerFunction) error {
	w.l.Lock()
	defer w.l.Unlock()

	var existing []string
	for name := range workers {
		if _, ok := w.m[name]; ok {
			existing = append(existing, name)
		}
	}

	if len(existing) > 0 {
		sort.Strings(existing)
		return fmt.Errorf("jobqueue.Worker.RegisterAll: %v: %w", existing, ErrWorkerExists)
	}

	for name, fn := range workers {
		w.m[name] = fn
	}

	return nil
}

func (w *Worker) QueueNames() []string {
	w.l.RLock()
	defer w.l.RUnlock()

	a := make([]string, 0, len(w.m))
	for k := range w.m {
		a = append(a, k)
	}
	sort.Strings(a)

	return a
}

func (w *Worker) function(queueName string) (WorkerFunction, bool) {
	w.l.RLock()
	defer w.l.RUnlock()

	fn, ok := w.m[queueName]

	return fn, ok
}

func (w *Worker) prepare(ctx context.Context, job *Job) error {
	if _, ok := w.function(job.QueueName); !ok {
		return fmt.Errorf("%q: %w", job.QueueName, ErrWorkerDoesNotExist)
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return err
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.FailureDelay == 0 {
		job.FailureDelay = DefaultFailureDelay
	}
	if job.AttemptsRemaining == 0 {
		job.AttemptsRemaining = DefaultAttempts
	}

	return nil
}

// Add stores a job in tx. The worker is woken once tx is committed by the
// caller; Trigger can be used to wake it sooner.
func (w *Worker) Add(ctx context.Context, tx *sql.Tx, job *Job) error {
	if err := w.prepare(ctx, job); err != nil {
		return fmt.Errorf("jobqueue.Worker.Add: %w", err)
	}

	if err := sorm.CreateRecord(ctx, tx, job); err != nil {
		return fmt.Errorf("jobqueue.Worker.Add: could not create job record: %w", err)
	}

	w.Trigger()

	return nil
}

// AddUnique is Add unless an unfinished job with the same queue and payload
// already exists, in which case it reports false and stores nothing.
func (w *Worker) AddUnique(ctx context.Context, tx *sql.Tx, job *Job) (bool, error) {
	existing, err := findPending(ctx, tx, job.QueueName, job.Payload)
	if err != nil {
		return false, fmt.Errorf("jobqueue.Worker.AddUnique: %w", err)
	}

	if existing != nil {
		*job = *existing
		return false, nil
	}

	if err := w.Add(ctx, tx, job); err != nil {
		return false, fmt.Errorf("jobqueue.Worker.AddUnique: %w", err)
	}

	return true, nil
}

func (w *Worker) Trigger() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *Worker) reserveNext(ctx context.Context) (*Job, error) {
	for attempts := 25; ; attempts-- {
		var job *Job

		err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
			now, err := ctxclock.Now(ctx)
			if err != nil {
				return err
			}

			j, err := findNext(ctx, tx, w.QueueNames(), now)
			if err != nil || j == nil {
				return err
			}

			if err := reserve(ctx, tx, j, now, DefaultReserveDuration); err != nil {
				return err
			}

			job = j

			return nil
		})

		if ctxdb.IsBusy(err) && attempts > 1 {
			select {
			case <-time.After(time.Duration(rand.Int63n(int64(time.Millisecond * 500)))):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return job, err
	}
}

// RunOnce reserves and runs a single job. It returns ErrNoPendingJobs if
// there was nothing to do.
func (w *Worker) RunOnce(ctx context.Context) error {
	job, err := w.reserveNext(ctx)
	if err != nil {
		return fmt.Errorf("jobqueue.Worker.RunOnce: could not reserve job: %w", err)
	}
	if job == nil {
		return ErrNoPendingJobs
	}

	ctx, l := ctxlogger.WithFields(ctx, logrus.Fields{
		"job.queue_name": job.QueueName,
		"job.id":         job.ID,
	})

	fn, ok := w.function(job.QueueName)
	if !ok {
		return fmt.Errorf("jobqueue.Worker.RunOnce: %q: %w", job.QueueName, ErrWorkerDoesNotExist)
	}

	l.Debug("running job")

	var errorMessage string
	output, err := catchpanic.CatchErr1(func() (string, error) { return fn(ctx, w, job) })
	if err != nil {
		errorMessage = err.Error()
		l.WithError(err).Warn("job failed")
	} else {
		l.WithField("job.output", output).Info("job finished")
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		now, err := ctxclock.Now(ctx)
		if err != nil {
			return err
		}

		return finish(ctx, tx, job, now, errorMessage, output)
	}); err != nil {
		return fmt.Errorf("jobqueue.Worker.RunOnce: could not finish job %d: %w", job.ID, err)
	}

	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	delay := time.Duration(0)

	for {
		t := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		case <-w.ch:
			t.Stop()
		}

		switch err := w.RunOnce(ctx); {
		case err == nil:
			delay = 0
		case errors.Is(err, ErrNoPendingJobs):
			delay = w.IdleDelay
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			ctxlogger.GetLogger(ctx).WithError(err).Error("could not run job")
			delay = w.IdleDelay
		}
	}
}
