// Package jobqueue is a small persistent job queue stored in the
// application database. Jobs are reserved for a fixed window while they
// run; failed jobs are retried after a delay until their attempts run out.
package jobqueue

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytcatalog/internal/sqltypes"
)

const (
	DefaultFailureDelay    = time.Second * 30
	DefaultAttempts        = 5
	DefaultReserveDuration = time.Minute * 30
)

// ParsePayload splits "name?k=v" payloads into the name and its values.
func ParsePayload(s string) (string, url.Values, error) {
	name, query, ok := strings.Cut(s, "?")
	if !ok {
		return s, url.Values{}, nil
	}

	m, err := url.ParseQuery(query)
	if err != nil {
		return name, url.Values{}, fmt.Errorf("jobqueue.ParsePayload: %w", err)
	}

	return name, m, nil
}

func FormatPayload(s string, m url.Values) string {
	if len(m) == 0 {
		return s
	}

	return s + "?" + m.Encode()
}

type Job struct {
	ID                int                      `sql:",table:jobs" json:"id"`
	CreatedAt         time.Time                `json:"createdAt"`
	QueueName         string                   `json:"queueName"`
	Payload           string                   `json:"payload"`
	RunAfter          time.Time                `json:"runAfter"`
	FailureDelay      time.Duration            `json:"failureDelay"`
	AttemptsRemaining int                      `json:"attemptsRemaining"`
	ReservedAt        *time.Time               `json:"reservedAt"`
	ReservedUntil     *time.Time               `json:"reservedUntil"`
	FinishedAt        *time.Time               `json:"finishedAt"`
	ErrorMessages     sqltypes.JSONStringSlice `json:"errorMessages"`
	OutputMessages    sqltypes.JSONStringSlice `json:"outputMessages"`
}

// Pending reports whether the job can still run at some point.
func (j *Job) Pending() bool {
	return j.FinishedAt == nil
}

func findNext(ctx context.Context, q sorm.Querier, queueNames []string, now time.Time) (*Job, error) {
	if len(queueNames) == 0 {
		return nil, nil
	}

	var args []interface{}
	for _, name := range queueNames {
		args = append(args, name)
	}
	args = append(args, now, now)

	query := "where queue_name in (" + strings.TrimSuffix(strings.Repeat("?, ", len(queueNames)), ", ") + ") and run_after <= ? and (reserved_until is null or reserved_until < ?) and finished_at is null order by run_after asc, id asc"

	var job Job
	if err := sorm.FindFirstWhere(ctx, q, &job, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("jobqueue.findNext: %w", err)
	}

	return &job, nil
}

func findPending(ctx context.Context, q sorm.Querier, queueName, payload string) (*Job, error) {
	var job Job
	if err := sorm.FindFirstWhere(ctx, q, &job, "where queue_name = ? and payload = ? and finished_at is null", queueName, payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("jobqueue.findPending: %w", err)
	}

	return &job, nil
}

func reserve(ctx context.Context, tx *sql.Tx, job *Job, now time.Time, d time.Duration) error {
	if job.ReservedUntil != nil && job.ReservedUntil.After(now) {
		return fmt.Errorf("jobqueue.reserve: job %d is already reserved", job.ID)
	}
	if job.FinishedAt != nil {
		return fmt.Errorf("jobqueue.reserve: job %d has already finished", job.ID)
	}

	until := now.Add(d)
	job.ReservedAt = &now
	job.ReservedUntil = &until

	if err := sorm.SaveRecord(ctx, tx, job); err != nil {
		return fmt.Errorf("jobqueue.reserve: %w", err)
	}

	return nil
}

// finish records the outcome of one attempt. A failed job with attempts
// left goes back to the queue after its failure delay.
func finish(ctx context.Context, tx *sql.Tx, job *Job, now time.Time, errorMessage, outputMessage string) error {
	if job.FinishedAt != nil {
		return fmt.Errorf("jobqueue.finish: job %d has already finished", job.ID)
	}

	job.ErrorMessages = append(job.ErrorMessages, errorMessage)
	job.OutputMessages = append(job.OutputMessages, outputMessage)
	job.ReservedAt = nil
	job.ReservedUntil = nil

	if errorMessage != "" && job.AttemptsRemaining > 1 {
		job.AttemptsRemaining--
		job.RunAfter = now.Add(job.FailureDelay)
	} else {
		if errorMessage != "" {
			job.AttemptsRemaining = 0
		}
		job.FinishedAt = &now
	}

	if err := sorm.SaveRecord(ctx, tx, job); err != nil {
		return fmt.Errorf("jobqueue.finish: %w", err)
	}

	return nil
}
