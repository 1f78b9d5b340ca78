package models

import (
	"time"

	"fknsrs.biz/p/ytcatalog/internal/sqlbuilderutil"
)

var (
	ChannelTable *sqlbuilderutil.Table
)

func init() {
	ChannelTable = sqlbuilderutil.MustMakeTable(Channel{})
}

type Channel struct {
	ID                int        `sql:",table:channels" json:"-"`
	ExternalID        string     `json:"id"`
	Title             string     `json:"title"`
	UploadsPlaylistID string     `json:"uploadsPlaylistId"`
	Etag              string     `json:"etag"`
	LastUploadsCutoff *time.Time `json:"lastUploadsCutoff"`
	LastSyncedAt      *time.Time `json:"lastSyncedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (c *Channel) ApplyDetails(incoming *Channel, asOf time.Time) bool {
	dirty := false

	if c.Title != incoming.Title {
		c.Title = incoming.Title
		dirty = true
	}

	if c.UploadsPlaylistID != incoming.UploadsPlaylistID {
		c.UploadsPlaylistID = incoming.UploadsPlaylistID
		dirty = true
	}

	if c.Etag != incoming.Etag {
		c.Etag = incoming.Etag
		dirty = true
	}

	if dirty {
		c.UpdatedAt = asOf
	}

	return dirty
}

// AdvanceCutoff moves the uploads watermark to t if t is newer. The
// watermark never moves backwards.
func (c *Channel) AdvanceCutoff(t time.Time) bool {
	if t.IsZero() {
		return false
	}

	if c.LastUploadsCutoff != nil && !t.After(*c.LastUploadsCutoff) {
		return false
	}

	t = t.UTC()
	c.LastUploadsCutoff = &t

	return true
}
