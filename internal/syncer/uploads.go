package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fknsrs.biz/p/sorm"
	"golang.org/x/sync/errgroup"

	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/remote"
	"fknsrs.biz/p/ytcatalog/internal/sqltypes"
	"fknsrs.biz/p/ytcatalog/internal/upsert"
	"fknsrs.biz/p/ytcatalog/models"
)

// SyncUploads pulls everything in the channel's uploads feed that is newer
// than its cutoff and upserts it in batches. Each batch commits on its own,
// so an interrupted run keeps what it wrote; the cutoff only moves once the
// whole feed has been consumed.
func (e *Engine) SyncUploads(ctx context.Context, channel *models.Channel) (upsert.Result, error) {
	var total upsert.Result

	if channel.UploadsPlaylistID == "" {
		return total, fmt.Errorf("syncer.Engine.SyncUploads(%s): %w", channel.ExternalID, ErrMissingUploadsFeed)
	}

	l := ctxlogger.GetLogger(ctx)

	var since *time.Time
	if channel.LastUploadsCutoff != nil {
		t := *channel.LastUploadsCutoff
		since = &t
	}

	seen := make(map[string]bool)
	var newest time.Time
	var pending []models.Video

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}

		res, err := e.flushUploads(ctx, pending)
		if err != nil {
			return err
		}

		total = total.Add(res)
		pending = nil

		l.WithField("sync.inserted", res.Inserted).WithField("sync.updated", res.Updated).Debug("uploads batch written")

		return nil
	}

	for rec, err := range e.catalog.StreamUploads(ctx, channel.UploadsPlaylistID, since) {
		if err != nil {
			return total, fmt.Errorf("syncer.Engine.SyncUploads(%s): %w", channel.ExternalID, err)
		}

		// the feed isn't guaranteed to be ordered, so old items are skipped
		// rather than treated as the end
		if since != nil && !rec.PublishedAt.After(*since) {
			continue
		}

		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		if rec.PublishedAt.After(newest) {
			newest = rec.PublishedAt
		}

		now, err := ctxclock.Now(ctx)
		if err != nil {
			return total, fmt.Errorf("syncer.Engine.SyncUploads: %w", err)
		}

		pending = append(pending, videoFromRecord(rec, channel.UploadsPlaylistID, now))

		if len(pending) >= e.opts.BatchSize {
			if err := flush(); err != nil {
				return total, fmt.Errorf("syncer.Engine.SyncUploads(%s): %w", channel.ExternalID, err)
			}
		}
	}

	if err := flush(); err != nil {
		return total, fmt.Errorf("syncer.Engine.SyncUploads(%s): %w", channel.ExternalID, err)
	}

	if len(seen) > 0 {
		if err := advanceCutoff(ctx, channel, newest); err != nil {
			return total, fmt.Errorf("syncer.Engine.SyncUploads(%s): %w", channel.ExternalID, err)
		}
	}

	return total, nil
}

// flushUploads fills in comment availability and writes one batch.
func (e *Engine) flushUploads(ctx context.Context, videos []models.Video) (upsert.Result, error) {
	l := ctxlogger.GetLogger(ctx)

	// failures only ever leave the field unknown, so the group never errors
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i := range videos {
		v := &videos[i]

		g.Go(func() error {
			enabled, err := e.catalog.CheckCommentsEnabled(ctx, v.ExternalID)
			if err != nil {
				l.WithField("video.id", v.ExternalID).WithError(err).Warn("could not check comment availability")
				return nil
			}

			v.CommentsEnabled = enabled

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return upsert.Result{}, err
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return upsert.Result{}, err
	}

	return upsert.Batch(ctx, upsert.Videos, videos, now)
}

// advanceCutoff re-reads the stored watermark inside the transaction so a
// concurrent writer can't be moved backwards.
func advanceCutoff(ctx context.Context, channel *models.Channel, newest time.Time) error {
	return ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var current models.Channel
		if err := sorm.FindFirstWhere(ctx, tx, &current, "where id = ?", channel.ID); err != nil {
			return fmt.Errorf("advanceCutoff: could not load channel: %w", err)
		}

		if !current.AdvanceCutoff(newest) {
			channel.LastUploadsCutoff = current.LastUploadsCutoff
			return nil
		}

		if _, err := tx.ExecContext(ctx, "update channels set last_uploads_cutoff = ? where id = ?", *current.LastUploadsCutoff, channel.ID); err != nil {
			return fmt.Errorf("advanceCutoff: could not update channel: %w", err)
		}

		channel.LastUploadsCutoff = current.LastUploadsCutoff

		return nil
	})
}

func videoFromRecord(rec remote.VideoRecord, feedID string, now time.Time) models.Video {
	v := models.Video{
		UploadsPlaylistID:    feedID,
		ExternalID:           rec.ID,
		ChannelExternalID:    rec.ChannelID,
		Title:                rec.Title,
		Description:          rec.Description,
		Tags:                 append(sqltypes.JSONStringSlice{}, rec.Tags...),
		Duration:             rec.Duration,
		Visibility:           models.ResolveVisibility(rec.PrivacyStatus, rec.PublishAt, now),
		PublishedAt:          rec.PublishedAt.UTC(),
		CategoryID:           rec.CategoryID,
		DefaultLanguage:      rec.DefaultLanguage,
		DefaultAudioLanguage: rec.DefaultAudioLanguage,
		Etag:                 rec.Etag,
	}

	if rec.Location != nil {
		lat, lng := rec.Location.Latitude, rec.Location.Longitude
		v.Latitude, v.Longitude = &lat, &lng
	}

	return v
}
