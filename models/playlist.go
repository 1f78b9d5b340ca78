package models

import (
	"time"

	"fknsrs.biz/p/ytcatalog/internal/sqlbuilderutil"
)

var (
	PlaylistTable *sqlbuilderutil.Table
)

func init() {
	PlaylistTable = sqlbuilderutil.MustMakeTable(Playlist{})
}

type Playlist struct {
	ID                   int        `sql:",table:playlists" json:"-"`
	ExternalID           string     `json:"id"`
	ChannelExternalID    string     `json:"channelId"`
	Title                string     `json:"title"`
	Etag                 string     `json:"etag"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	LastMembershipSyncAt *time.Time `json:"lastMembershipSyncAt"`
}

// ApplyDetails compares title and ETag only; ownership is fixed at creation.
func (p *Playlist) ApplyDetails(incoming *Playlist, asOf time.Time) bool {
	dirty := false

	if p.Title != incoming.Title {
		p.Title = incoming.Title
		dirty = true
	}

	if p.Etag != incoming.Etag {
		p.Etag = incoming.Etag
		dirty = true
	}

	if dirty {
		p.UpdatedAt = asOf
	}

	return dirty
}

// MarkMembershipSynced records a completed membership pass. It always
// touches both timestamps, whether or not membership changed.
func (p *Playlist) MarkMembershipSynced(at time.Time) {
	p.LastMembershipSyncAt = &at
	p.UpdatedAt = at
}
