package upsert

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytcatalog/models"
)

var Videos = Adapter[models.VideoKey, models.Video]{
	Name:         "videos",
	Key:          (*models.Video).Key,
	LoadExisting: loadVideos,
	Apply: func(existing, incoming *models.Video, asOf time.Time) bool {
		return existing.ApplyDetails(incoming, asOf)
	},
	Prepare: func(v *models.Video, asOf time.Time) {
		v.CreatedAt = asOf
		v.UpdatedAt = asOf
		v.CachedAt = asOf
	},
}

func loadVideos(ctx context.Context, tx *sql.Tx, keys []models.VideoKey) ([]models.Video, error) {
	byFeed := make(map[string][]string)
	for _, k := range keys {
		byFeed[k.UploadsPlaylistID] = append(byFeed[k.UploadsPlaylistID], k.ExternalID)
	}

	feeds := make([]string, 0, len(byFeed))
	for feed := range byFeed {
		feeds = append(feeds, feed)
	}
	sort.Strings(feeds)

	var clauses []string
	var args []interface{}
	for _, feed := range feeds {
		ids := byFeed[feed]

		clauses = append(clauses, "(uploads_playlist_id = ? and external_id in ("+Placeholders(len(ids))+"))")
		args = append(args, feed)
		for _, id := range ids {
			args = append(args, id)
		}
	}

	var videos []models.Video
	if err := sorm.FindWhere(ctx, tx, &videos, "where "+strings.Join(clauses, " or "), args...); err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return videos, nil
}

var Playlists = Adapter[string, models.Playlist]{
	Name:         "playlists",
	Key:          func(p *models.Playlist) string { return p.ExternalID },
	LoadExisting: loadPlaylists,
	Apply: func(existing, incoming *models.Playlist, asOf time.Time) bool {
		return existing.ApplyDetails(incoming, asOf)
	},
	Prepare: func(p *models.Playlist, asOf time.Time) {
		p.CreatedAt = asOf
		p.UpdatedAt = asOf
	},
}

func loadPlaylists(ctx context.Context, tx *sql.Tx, keys []string) ([]models.Playlist, error) {
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	var playlists []models.Playlist
	if err := sorm.FindWhere(ctx, tx, &playlists, "where external_id in ("+Placeholders(len(keys))+")", args...); err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return playlists, nil
}
