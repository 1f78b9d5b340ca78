package models

import (
	"time"

	"fknsrs.biz/p/ytcatalog/internal/ptr"
	"fknsrs.biz/p/ytcatalog/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytcatalog/internal/sqltypes"
)

var (
	VideoTable *sqlbuilderutil.Table
)

func init() {
	VideoTable = sqlbuilderutil.MustMakeTable(Video{})
}

// Video is identified by (UploadsPlaylistID, ExternalID).
type Video struct {
	ID                   int                      `sql:",table:videos" json:"-"`
	UploadsPlaylistID    string                   `json:"uploadsPlaylistId"`
	ExternalID           string                   `json:"id"`
	ChannelExternalID    string                   `json:"channelId"`
	Title                string                   `json:"title"`
	Description          string                   `json:"description"`
	Tags                 sqltypes.JSONStringSlice `json:"tags"`
	Duration             time.Duration            `json:"duration"`
	Visibility           Visibility               `json:"visibility"`
	PublishedAt          time.Time                `json:"publishedAt"`
	CategoryID           string                   `json:"categoryId,omitempty"`
	DefaultLanguage      string                   `json:"defaultLanguage,omitempty"`
	DefaultAudioLanguage string                   `json:"defaultAudioLanguage,omitempty"`
	Latitude             *float64                 `json:"latitude,omitempty"`
	Longitude            *float64                 `json:"longitude,omitempty"`
	Etag                 string                   `json:"etag"`
	CommentsEnabled      *bool                    `json:"commentsEnabled"`
	CachedAt             time.Time                `json:"cachedAt"`
	CreatedAt            time.Time                `json:"createdAt"`
	UpdatedAt            time.Time                `json:"updatedAt"`
}

type VideoKey struct {
	UploadsPlaylistID string
	ExternalID        string
}

func (v *Video) Key() VideoKey {
	return VideoKey{UploadsPlaylistID: v.UploadsPlaylistID, ExternalID: v.ExternalID}
}

func sameLocation(aLat, aLng, bLat, bLng *float64) bool {
	return ptr.Equal(aLat, bLat) && ptr.Equal(aLng, bLng)
}

// ApplyDetails copies every field of incoming that differs from v onto v and
// reports whether anything changed. UpdatedAt and CachedAt move to asOf only
// when something did. An unknown CommentsEnabled never replaces a known one.
func (v *Video) ApplyDetails(incoming *Video, asOf time.Time) bool {
	dirty := false

	setString := func(dst *string, src string) {
		if *dst != src {
			*dst = src
			dirty = true
		}
	}

	setString(&v.ChannelExternalID, incoming.ChannelExternalID)
	setString(&v.Title, incoming.Title)
	setString(&v.Description, incoming.Description)
	setString(&v.CategoryID, incoming.CategoryID)
	setString(&v.DefaultLanguage, incoming.DefaultLanguage)
	setString(&v.DefaultAudioLanguage, incoming.DefaultAudioLanguage)
	setString(&v.Etag, incoming.Etag)

	if !v.Tags.Equal(incoming.Tags) {
		v.Tags = append(sqltypes.JSONStringSlice{}, incoming.Tags...)
		dirty = true
	}

	if v.Duration != incoming.Duration {
		v.Duration = incoming.Duration
		dirty = true
	}

	if v.Visibility != incoming.Visibility {
		v.Visibility = incoming.Visibility
		dirty = true
	}

	if !v.PublishedAt.Equal(incoming.PublishedAt) {
		v.PublishedAt = incoming.PublishedAt
		dirty = true
	}

	if !sameLocation(v.Latitude, v.Longitude, incoming.Latitude, incoming.Longitude) {
		v.Latitude, v.Longitude = copyFloat(incoming.Latitude), copyFloat(incoming.Longitude)
		dirty = true
	}

	if incoming.CommentsEnabled != nil && !ptr.Equal(v.CommentsEnabled, incoming.CommentsEnabled) {
		v.CommentsEnabled = ptr.To(*incoming.CommentsEnabled)
		dirty = true
	}

	if dirty {
		v.UpdatedAt = asOf
		v.CachedAt = asOf
	}

	return dirty
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}

	return ptr.To(*p)
}
