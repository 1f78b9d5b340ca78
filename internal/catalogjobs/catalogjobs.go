// Package catalogjobs holds the job queue functions that keep registered
// channels up to date, and the scheduler that queues them.
package catalogjobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/jobqueue"
	"fknsrs.biz/p/ytcatalog/internal/queuenames"
	"fknsrs.biz/p/ytcatalog/internal/syncer"
	"fknsrs.biz/p/ytcatalog/internal/ytutil"
	"fknsrs.biz/p/ytcatalog/models"
)

var (
	ErrChannelNotRegistered = errors.New("catalogjobs: channel is not registered")
)

func Functions(engine *syncer.Engine) map[string]jobqueue.WorkerFunction {
	return map[string]jobqueue.WorkerFunction{
		queuenames.ChannelUpdateMetadata: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			return UpdateChannelMetadata(ctx, engine, w, j)
		},
		queuenames.ChannelSync: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			return SyncChannel(ctx, engine, j)
		},
	}
}

// UpdateChannelMetadata refreshes a channel's title, uploads feed and ETag
// from the remote, then queues a sync for it.
func UpdateChannelMetadata(ctx context.Context, engine *syncer.Engine, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
	externalID, _, err := jobqueue.ParsePayload(j.Payload)
	if err != nil {
		return "", err
	}

	rec, err := engine.Catalog().FetchChannel(ctx, externalID)
	if err != nil {
		return "", fmt.Errorf("catalogjobs.UpdateChannelMetadata(%s): %w", externalID, err)
	}

	incoming := models.Channel{
		Title:             rec.Title,
		UploadsPlaylistID: rec.UploadsPlaylistID,
		Etag:              rec.Etag,
	}
	if incoming.UploadsPlaylistID == "" {
		if id, err := ytutil.UploadsPlaylistID(externalID); err == nil {
			incoming.UploadsPlaylistID = id
		}
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return "", err
	}

	var dirty bool
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var channel models.Channel
		if err := sorm.FindFirstWhere(ctx, tx, &channel, "where external_id = ?", externalID); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%s: %w", externalID, ErrChannelNotRegistered)
			}

			return err
		}

		if dirty = channel.ApplyDetails(&incoming, now); dirty {
			if err := sorm.SaveRecord(ctx, tx, &channel); err != nil {
				return err
			}
		}

		_, err := w.AddUnique(ctx, tx, &jobqueue.Job{QueueName: queuenames.ChannelSync, Payload: externalID})

		return err
	}); err != nil {
		return "", fmt.Errorf("catalogjobs.UpdateChannelMetadata(%s): %w", externalID, err)
	}

	if dirty {
		return "updated", nil
	}

	return "unchanged", nil
}

// SyncChannel runs a full channel sync. The output is the report as JSON,
// including when the sync fails part way.
func SyncChannel(ctx context.Context, engine *syncer.Engine, j *jobqueue.Job) (string, error) {
	externalID, _, err := jobqueue.ParsePayload(j.Payload)
	if err != nil {
		return "", err
	}

	report, syncErr := engine.SyncChannel(ctx, externalID)

	d, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("catalogjobs.SyncChannel(%s): %w", externalID, errors.Join(syncErr, err))
	}

	if syncErr != nil {
		return string(d), fmt.Errorf("catalogjobs.SyncChannel(%s): %w", externalID, syncErr)
	}

	return string(d), nil
}

// EnqueueDue queues a sync for every channel not synced within interval,
// skipping channels that already have one waiting. It returns how many jobs
// were added.
func EnqueueDue(ctx context.Context, w *jobqueue.Worker, interval time.Duration) (int, error) {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return 0, err
	}

	var channels []models.Channel
	if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &channels, "where last_synced_at is null or last_synced_at <= ? order by id", now.Add(-interval)); err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("catalogjobs.EnqueueDue: %w", err)
	}

	added := 0

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, channel := range channels {
			ok, err := w.AddUnique(ctx, tx, &jobqueue.Job{QueueName: queuenames.ChannelSync, Payload: channel.ExternalID})
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}

		return nil
	}); err != nil {
		return 0, fmt.Errorf("catalogjobs.EnqueueDue: %w", err)
	}

	return added, nil
}

// RunScheduler calls EnqueueDue every tick until ctx is done. A zero
// interval disables scheduling and RunScheduler just waits.
func RunScheduler(ctx context.Context, w *jobqueue.Worker, interval, tick time.Duration) error {
	l := ctxlogger.GetLogger(ctx)

	if interval <= 0 {
		l.Info("sync scheduler disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	delay := time.Duration(0)

	for {
		t := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		n, err := EnqueueDue(ctx, w, interval)
		if err != nil {
			l.WithError(err).Error("could not queue due channels")
		} else if n > 0 {
			l.WithFields(logrus.Fields{"scheduler.queued": n}).Info("queued channel syncs")
		}

		delay = tick
	}
}
