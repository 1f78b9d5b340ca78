// Package syncer keeps the local catalog of a channel in step with the
// remote one. A channel sync runs the uploads delta sync and then playlist
// membership reconciliation; both are safe to re-run after an interruption.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/remote"
	"fknsrs.biz/p/ytcatalog/models"
)

var (
	ErrChannelNotFound    = errors.New("syncer: channel not found")
	ErrMissingUploadsFeed = errors.New("syncer: channel has no uploads feed")
	ErrSyncInProgress     = errors.New("syncer: a sync for this channel is already running")
)

const (
	DefaultBatchSize        = 100
	DefaultConcurrency      = 8
	DefaultDetailsChunkSize = 50
)

type Options struct {
	// BatchSize bounds how many videos are written per transaction.
	BatchSize int
	// Concurrency bounds comment checks and detail fetches in flight.
	Concurrency int
	// DetailsChunkSize is how many ids go into one FetchVideoDetails call.
	DetailsChunkSize int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.DetailsChunkSize <= 0 {
		o.DetailsChunkSize = DefaultDetailsChunkSize
	}

	return o
}

type Report struct {
	VideosInserted     int `json:"videosInserted"`
	VideosUpdated      int `json:"videosUpdated"`
	PlaylistsUpserted  int `json:"playlistsUpserted"`
	MembershipsAdded   int `json:"membershipsAdded"`
	MembershipsRemoved int `json:"membershipsRemoved"`
}

func (r Report) Fields() logrus.Fields {
	return logrus.Fields{
		"sync.videos_inserted":     r.VideosInserted,
		"sync.videos_updated":      r.VideosUpdated,
		"sync.playlists_upserted":  r.PlaylistsUpserted,
		"sync.memberships_added":   r.MembershipsAdded,
		"sync.memberships_removed": r.MembershipsRemoved,
	}
}

type Engine struct {
	catalog remote.Catalog
	opts    Options

	m       sync.Mutex
	running map[string]struct{}
}

func New(catalog remote.Catalog, opts Options) *Engine {
	return &Engine{
		catalog: catalog,
		opts:    opts.withDefaults(),
		running: make(map[string]struct{}),
	}
}

func (e *Engine) Catalog() remote.Catalog {
	return e.catalog
}

func (e *Engine) tryLock(channelID string) bool {
	e.m.Lock()
	defer e.m.Unlock()

	if _, ok := e.running[channelID]; ok {
		return false
	}

	e.running[channelID] = struct{}{}

	return true
}

func (e *Engine) unlock(channelID string) {
	e.m.Lock()
	defer e.m.Unlock()

	delete(e.running, channelID)
}

// SyncChannel syncs uploads and then playlists for one channel. At most one
// sync per channel runs at a time in an Engine; a second caller gets
// ErrSyncInProgress. On failure the report holds whatever was committed
// before the error.
func (e *Engine) SyncChannel(ctx context.Context, channelID string) (Report, error) {
	var report Report

	if !e.tryLock(channelID) {
		return report, fmt.Errorf("syncer.Engine.SyncChannel(%s): %w", channelID, ErrSyncInProgress)
	}
	defer e.unlock(channelID)

	ctx, l := ctxlogger.WithFields(ctx, logrus.Fields{
		"sync.channel_id": channelID,
		"sync.run_id":     uuid.NewString(),
	})

	channel, err := loadChannel(ctx, channelID)
	if err != nil {
		return report, fmt.Errorf("syncer.Engine.SyncChannel: %w", err)
	}

	if channel.UploadsPlaylistID == "" {
		return report, fmt.Errorf("syncer.Engine.SyncChannel(%s): %w", channelID, ErrMissingUploadsFeed)
	}

	started := time.Now()
	l.Info("channel sync started")

	uploads, err := e.SyncUploads(ctx, channel)
	report.VideosInserted = uploads.Inserted
	report.VideosUpdated = uploads.Updated
	if err != nil {
		l.WithFields(report.Fields()).WithError(err).Error("uploads sync failed")
		return report, fmt.Errorf("syncer.Engine.SyncChannel(%s): uploads: %w", channelID, err)
	}

	memberships, err := e.SyncPlaylistMemberships(ctx, channel)
	report.PlaylistsUpserted = memberships.PlaylistsUpserted
	report.MembershipsAdded = memberships.Added
	report.MembershipsRemoved = memberships.Removed
	if err != nil {
		l.WithFields(report.Fields()).WithError(err).Error("playlist sync failed")
		return report, fmt.Errorf("syncer.Engine.SyncChannel(%s): playlists: %w", channelID, err)
	}

	if err := markSynced(ctx, channel); err != nil {
		return report, fmt.Errorf("syncer.Engine.SyncChannel(%s): %w", channelID, err)
	}

	l.WithFields(report.Fields()).WithField("sync.duration", time.Since(started)).Info("channel sync finished")

	return report, nil
}

func loadChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	db := ctxdb.GetDB(ctx)
	if db == nil {
		return nil, ctxdb.ErrNoDB
	}

	var channel models.Channel
	if err := sorm.FindFirstWhere(ctx, db, &channel, "where external_id = ?", channelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loadChannel(%s): %w", channelID, ErrChannelNotFound)
		}

		return nil, fmt.Errorf("loadChannel(%s): %w", channelID, err)
	}

	return &channel, nil
}

func markSynced(ctx context.Context, channel *models.Channel) error {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("markSynced: %w", err)
	}

	// a targeted update; the metadata job may be writing other columns
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "update channels set last_synced_at = ? where id = ?", now, channel.ID)
		return err
	}); err != nil {
		return fmt.Errorf("markSynced: %w", err)
	}

	channel.LastSyncedAt = &now

	return nil
}
