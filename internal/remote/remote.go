// Package remote describes the catalog the sync engine reads from. All
// sequences are lazy: pages are fetched as the caller ranges over them, and
// breaking out of the loop stops further requests.
package remote

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"
)

var (
	ErrNotAuthorized = errors.New("remote: not authorized")
	ErrTransient     = errors.New("remote: transient failure")
	ErrNotFound      = errors.New("remote: not found")
)

type Catalog interface {
	// StreamUploads yields the feed newest-first. When since is set the
	// sequence may end early at the first item not newer than it.
	StreamUploads(ctx context.Context, feedID string, since *time.Time) iter.Seq2[VideoRecord, error]
	StreamPlaylists(ctx context.Context, ownerID string) iter.Seq2[PlaylistRecord, error]
	StreamPlaylistMembers(ctx context.Context, playlistID string) iter.Seq2[string, error]
	// FetchVideoDetails silently leaves out ids the remote doesn't know.
	FetchVideoDetails(ctx context.Context, ids []string) ([]VideoRecord, error)
	// CheckCommentsEnabled returns nil when it can't tell.
	CheckCommentsEnabled(ctx context.Context, videoID string) (*bool, error)
	FetchChannel(ctx context.Context, channelID string) (*ChannelRecord, error)
}

type Location struct {
	Latitude  float64
	Longitude float64
}

type VideoRecord struct {
	ID                   string
	ChannelID            string
	Title                string
	Description          string
	Tags                 []string
	Duration             time.Duration
	PrivacyStatus        string
	PublishAt            *time.Time
	PublishedAt          time.Time
	CategoryID           string
	DefaultLanguage      string
	DefaultAudioLanguage string
	Location             *Location
	Etag                 string
}

type PlaylistRecord struct {
	ID        string
	ChannelID string
	Title     string
	Etag      string
}

type ChannelRecord struct {
	ID                string
	Title             string
	UploadsPlaylistID string
	Etag              string
}

// Error is returned by catalog implementations. It unwraps to one of the
// package's sentinel errors so callers can use errors.Is.
type Error struct {
	Op         string
	StatusCode int
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Err.Error()

	if e.StatusCode != 0 {
		s += fmt.Sprintf(" (status %d", e.StatusCode)
		if e.Reason != "" {
			s += ", " + e.Reason
		}
		s += ")"
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an HTTP response status to a sentinel error.
func Classify(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrNotAuthorized
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		return ErrNotFound
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return ErrTransient
	default:
		return nil
	}
}

func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return errors.Is(err, ErrTransient)
}
