package models

import (
	"time"

	"fknsrs.biz/p/ytcatalog/internal/sqlbuilderutil"
)

var (
	VideoPlaylistTable *sqlbuilderutil.Table
)

func init() {
	VideoPlaylistTable = sqlbuilderutil.MustMakeTable(VideoPlaylist{})
}

// VideoPlaylist is a membership fact; the row existing is the membership.
type VideoPlaylist struct {
	ID                 int `sql:",table:video_playlists"`
	VideoExternalID    string
	PlaylistExternalID string
	CreatedAt          time.Time
}
