package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fknsrs.biz/p/sorm"
	"golang.org/x/sync/errgroup"

	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/remote"
	"fknsrs.biz/p/ytcatalog/internal/upsert"
	"fknsrs.biz/p/ytcatalog/internal/ytutil"
	"fknsrs.biz/p/ytcatalog/models"
)

// sqlite caps bind variables per statement
const maxInList = 500

type MembershipResult struct {
	PlaylistsUpserted int
	Added             int
	Removed           int
}

// SyncPlaylistMemberships upserts the channel's playlists and then makes the
// stored membership of each one match the remote. Videos that a playlist
// references but the catalog has never seen are fetched first; anything
// still unknown afterwards is left out of the membership rather than
// recorded as a dangling reference.
func (e *Engine) SyncPlaylistMemberships(ctx context.Context, channel *models.Channel) (MembershipResult, error) {
	var res MembershipResult

	l := ctxlogger.GetLogger(ctx)

	var playlists []models.Playlist
	seen := make(map[string]bool)
	for rec, err := range e.catalog.StreamPlaylists(ctx, channel.ExternalID) {
		if err != nil {
			return res, fmt.Errorf("syncer.Engine.SyncPlaylistMemberships(%s): %w", channel.ExternalID, err)
		}

		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		playlists = append(playlists, models.Playlist{
			ExternalID:        rec.ID,
			ChannelExternalID: channel.ExternalID,
			Title:             rec.Title,
			Etag:              rec.Etag,
		})
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return res, fmt.Errorf("syncer.Engine.SyncPlaylistMemberships: %w", err)
	}

	upserted, err := upsert.Batch(ctx, upsert.Playlists, playlists, now)
	if err != nil {
		return res, fmt.Errorf("syncer.Engine.SyncPlaylistMemberships(%s): %w", channel.ExternalID, err)
	}
	res.PlaylistsUpserted = upserted.Inserted + upserted.Updated

	for _, p := range playlists {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("syncer.Engine.SyncPlaylistMemberships(%s): %w", channel.ExternalID, err)
		}

		added, removed, err := e.syncPlaylist(ctx, p.ExternalID)
		res.Added += added
		res.Removed += removed

		if err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				l.WithField("playlist.id", p.ExternalID).WithError(err).Warn("playlist disappeared during sync; skipping")
				continue
			}

			return res, fmt.Errorf("syncer.Engine.SyncPlaylistMemberships(%s): %w", channel.ExternalID, err)
		}
	}

	return res, nil
}

func (e *Engine) syncPlaylist(ctx context.Context, playlistID string) (int, int, error) {
	l := ctxlogger.GetLogger(ctx).WithField("playlist.id", playlistID)

	var remoteIDs []string
	inRemote := make(map[string]bool)
	for id, err := range e.catalog.StreamPlaylistMembers(ctx, playlistID) {
		if err != nil {
			return 0, 0, fmt.Errorf("syncPlaylist(%s): could not list members: %w", playlistID, err)
		}

		if !inRemote[id] {
			inRemote[id] = true
			remoteIDs = append(remoteIDs, id)
		}
	}

	db := ctxdb.GetDB(ctx)
	if db == nil {
		return 0, 0, ctxdb.ErrNoDB
	}

	var stored []models.VideoPlaylist
	if err := sorm.FindWhere(ctx, db, &stored, "where playlist_external_id = ?", playlistID); err != nil && err != sql.ErrNoRows {
		return 0, 0, fmt.Errorf("syncPlaylist(%s): could not load membership: %w", playlistID, err)
	}

	inLocal := make(map[string]bool, len(stored))
	for _, m := range stored {
		inLocal[m.VideoExternalID] = true
	}

	var toAdd, toRemove []string
	for _, id := range remoteIDs {
		if !inLocal[id] {
			toAdd = append(toAdd, id)
		}
	}
	for _, m := range stored {
		if !inRemote[m.VideoExternalID] {
			toRemove = append(toRemove, m.VideoExternalID)
		}
	}

	if len(toAdd) > 0 {
		known, err := knownVideoIDs(ctx, db, toAdd)
		if err != nil {
			return 0, 0, fmt.Errorf("syncPlaylist(%s): %w", playlistID, err)
		}

		var unknown []string
		for _, id := range toAdd {
			if !known[id] {
				unknown = append(unknown, id)
			}
		}

		if len(unknown) > 0 {
			l.WithField("sync.unknown_videos", len(unknown)).Debug("fetching details for videos outside the uploads feed")

			if err := e.fetchUnknownVideos(ctx, unknown); err != nil {
				return 0, 0, fmt.Errorf("syncPlaylist(%s): %w", playlistID, err)
			}
		}
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("syncPlaylist: %w", err)
	}

	var added, removed int

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		known, err := knownVideoIDs(ctx, tx, toAdd)
		if err != nil {
			return err
		}

		for _, id := range toAdd {
			if !known[id] {
				continue
			}

			r, err := tx.ExecContext(ctx, "insert into video_playlists (video_external_id, playlist_external_id, created_at) values (?, ?, ?) on conflict do nothing", id, playlistID, now)
			if err != nil {
				return fmt.Errorf("could not add %s: %w", id, err)
			}

			n, err := r.RowsAffected()
			if err != nil {
				return err
			}

			added += int(n)
		}

		for _, ids := range chunks(toRemove, maxInList) {
			args := []interface{}{playlistID}
			for _, id := range ids {
				args = append(args, id)
			}

			r, err := tx.ExecContext(ctx, "delete from video_playlists where playlist_external_id = ? and video_external_id in ("+upsert.Placeholders(len(ids))+")", args...)
			if err != nil {
				return fmt.Errorf("could not remove members: %w", err)
			}

			n, err := r.RowsAffected()
			if err != nil {
				return err
			}

			removed += int(n)
		}

		var playlist models.Playlist
		if err := sorm.FindFirstWhere(ctx, tx, &playlist, "where external_id = ?", playlistID); err != nil {
			return fmt.Errorf("could not load playlist: %w", err)
		}

		playlist.MarkMembershipSynced(now)

		if err := sorm.SaveRecord(ctx, tx, &playlist); err != nil {
			return fmt.Errorf("could not save playlist: %w", err)
		}

		return nil
	}); err != nil {
		return 0, 0, fmt.Errorf("syncPlaylist(%s): %w", playlistID, err)
	}

	if added > 0 || removed > 0 {
		l.WithField("sync.added", added).WithField("sync.removed", removed).Debug("playlist membership updated")
	}

	return added, removed, nil
}

// fetchUnknownVideos pulls details for ids in chunks and upserts them into
// their owners' uploads feeds. A chunk the remote reports as not found is
// dropped; any other failure aborts.
func (e *Engine) fetchUnknownVideos(ctx context.Context, ids []string) error {
	l := ctxlogger.GetLogger(ctx)

	parts := chunks(ids, e.opts.DetailsChunkSize)
	results := make([][]remote.VideoRecord, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for i, part := range parts {
		g.Go(func() error {
			recs, err := e.catalog.FetchVideoDetails(gctx, part)
			if err != nil {
				if errors.Is(err, remote.ErrNotFound) {
					l.WithField("sync.chunk_size", len(part)).WithError(err).Warn("video details not found")
					return nil
				}

				return fmt.Errorf("could not fetch video details: %w", err)
			}

			results[i] = recs

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return err
	}

	var videos []models.Video
	for _, recs := range results {
		for _, rec := range recs {
			feed, err := ytutil.UploadsPlaylistID(rec.ChannelID)
			if err != nil {
				l.WithField("video.id", rec.ID).WithError(err).Warn("video has no usable owner; skipping")
				continue
			}

			videos = append(videos, videoFromRecord(rec, feed, now))
		}
	}

	for _, batch := range chunks(videos, e.opts.BatchSize) {
		if _, err := upsert.Batch(ctx, upsert.Videos, batch, now); err != nil {
			return err
		}
	}

	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func knownVideoIDs(ctx context.Context, q querier, ids []string) (map[string]bool, error) {
	known := make(map[string]bool)

	for _, part := range chunks(ids, maxInList) {
		args := make([]interface{}, len(part))
		for i, id := range part {
			args[i] = id
		}

		if err := func() error {
			rows, err := q.QueryContext(ctx, "select distinct external_id from videos where external_id in ("+upsert.Placeholders(len(part))+")", args...)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					return err
				}
				known[id] = true
			}

			return rows.Err()
		}(); err != nil {
			return nil, fmt.Errorf("knownVideoIDs: %w", err)
		}
	}

	return known, nil
}

func chunks[T any](a []T, size int) [][]T {
	if size <= 0 {
		size = len(a)
	}

	var out [][]T
	for len(a) > 0 {
		n := min(size, len(a))
		out = append(out, a[:n:n])
		a = a[n:]
	}

	return out
}

