package ytapi

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"

	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/ptr"
	"fknsrs.biz/p/ytcatalog/internal/remote"
	"fknsrs.biz/p/ytcatalog/internal/timeutil"
)

const videoParts = "snippet,contentDetails,status,recordingDetails"

// StreamUploads lists the feed a page at a time and fetches full details
// for each page before yielding it. With since set, listing stops at the
// first item published at or before it.
func (c *Client) StreamUploads(ctx context.Context, feedID string, since *time.Time) iter.Seq2[remote.VideoRecord, error] {
	return func(yield func(remote.VideoRecord, error) bool) {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {feedID},
		}

		var failed error

		err := c.paginate(ctx, "ytapi.StreamUploads", "playlistItems", params, func(j *gabs.Container) bool {
			var ids []string
			stop := false

			for _, item := range j.Path("items").Children() {
				id := str(item, "contentDetails.videoId")
				if id == "" {
					continue
				}

				if since != nil {
					if at, ok := timestamp(item, "contentDetails.videoPublishedAt"); ok && !at.After(*since) {
						stop = true
						break
					}
				}

				ids = append(ids, id)
			}

			recs, err := c.FetchVideoDetails(ctx, ids)
			if err != nil {
				failed = err
				return false
			}

			byID := make(map[string]remote.VideoRecord, len(recs))
			for _, r := range recs {
				byID[r.ID] = r
			}

			for _, id := range ids {
				r, ok := byID[id]
				if !ok {
					continue
				}

				if !yield(r, nil) {
					return false
				}
			}

			return !stop
		})
		if err == nil {
			err = failed
		}

		if err != nil {
			yield(remote.VideoRecord{}, err)
		}
	}
}

func (c *Client) StreamPlaylists(ctx context.Context, ownerID string) iter.Seq2[remote.PlaylistRecord, error] {
	return func(yield func(remote.PlaylistRecord, error) bool) {
		params := url.Values{
			"part":      {"snippet"},
			"channelId": {ownerID},
		}

		if err := c.paginate(ctx, "ytapi.StreamPlaylists", "playlists", params, func(j *gabs.Container) bool {
			for _, item := range j.Path("items").Children() {
				r := remote.PlaylistRecord{
					ID:        str(item, "id"),
					ChannelID: str(item, "snippet.channelId"),
					Title:     str(item, "snippet.title"),
					Etag:      str(item, "etag"),
				}
				if r.ID == "" {
					continue
				}

				if !yield(r, nil) {
					return false
				}
			}

			return true
		}); err != nil {
			yield(remote.PlaylistRecord{}, err)
		}
	}
}

func (c *Client) StreamPlaylistMembers(ctx context.Context, playlistID string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {playlistID},
		}

		if err := c.paginate(ctx, "ytapi.StreamPlaylistMembers", "playlistItems", params, func(j *gabs.Container) bool {
			for _, item := range j.Path("items").Children() {
				id := str(item, "contentDetails.videoId")
				if id == "" {
					continue
				}

				if !yield(id, nil) {
					return false
				}
			}

			return true
		}); err != nil {
			yield("", err)
		}
	}
}

// FetchVideoDetails looks ids up in groups of 50, the most the API takes
// per request.
func (c *Client) FetchVideoDetails(ctx context.Context, ids []string) ([]remote.VideoRecord, error) {
	var out []remote.VideoRecord

	l := ctxlogger.GetLogger(ctx)

	for len(ids) > 0 {
		n := min(maxPageSize, len(ids))
		part := ids[:n]
		ids = ids[n:]

		j, err := c.get(ctx, "ytapi.FetchVideoDetails", "videos", url.Values{
			"part": {videoParts},
			"id":   {strings.Join(part, ",")},
		})
		if err != nil {
			return nil, err
		}

		for _, item := range j.Path("items").Children() {
			r, err := videoRecord(item)
			if err != nil {
				l.WithField("video.id", str(item, "id")).WithError(err).Warn("could not read video details")
				continue
			}

			out = append(out, r)
		}
	}

	return out, nil
}

func videoRecord(item *gabs.Container) (remote.VideoRecord, error) {
	r := remote.VideoRecord{
		ID:                   str(item, "id"),
		ChannelID:            str(item, "snippet.channelId"),
		Title:                str(item, "snippet.title"),
		Description:          str(item, "snippet.description"),
		PrivacyStatus:        str(item, "status.privacyStatus"),
		CategoryID:           str(item, "snippet.categoryId"),
		DefaultLanguage:      str(item, "snippet.defaultLanguage"),
		DefaultAudioLanguage: str(item, "snippet.defaultAudioLanguage"),
		Etag:                 str(item, "etag"),
	}

	if r.ID == "" {
		return r, fmt.Errorf("ytapi.videoRecord: missing id")
	}

	publishedAt, ok := timestamp(item, "snippet.publishedAt")
	if !ok {
		return r, fmt.Errorf("ytapi.videoRecord(%s): missing or invalid publishedAt", r.ID)
	}
	r.PublishedAt = publishedAt

	if t, ok := timestamp(item, "status.publishAt"); ok {
		r.PublishAt = &t
	}

	if s := str(item, "contentDetails.duration"); s != "" {
		d, err := timeutil.ParseISODuration(s)
		if err != nil {
			return r, fmt.Errorf("ytapi.videoRecord(%s): %w", r.ID, err)
		}
		r.Duration = d
	}

	for _, tag := range item.Path("snippet.tags").Children() {
		if s, ok := tag.Data().(string); ok {
			r.Tags = append(r.Tags, s)
		}
	}

	lat, okLat := num(item, "recordingDetails.location.latitude")
	lng, okLng := num(item, "recordingDetails.location.longitude")
	if okLat && okLng {
		r.Location = &remote.Location{Latitude: lat, Longitude: lng}
	}

	return r, nil
}

// CheckCommentsEnabled probes the comment threads of a video. The API
// answers 403 commentsDisabled when they're off.
func (c *Client) CheckCommentsEnabled(ctx context.Context, videoID string) (*bool, error) {
	_, err := c.get(ctx, "ytapi.CheckCommentsEnabled", "commentThreads", url.Values{
		"part":       {"id"},
		"videoId":    {videoID},
		"maxResults": {"1"},
	})
	if err == nil {
		return ptr.Bool(true), nil
	}

	var rerr *remote.Error
	if errors.As(err, &rerr) && rerr.Reason == "commentsDisabled" {
		return ptr.Bool(false), nil
	}

	return nil, err
}

func (c *Client) FetchChannel(ctx context.Context, channelID string) (*remote.ChannelRecord, error) {
	j, err := c.get(ctx, "ytapi.FetchChannel", "channels", url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {channelID},
	})
	if err != nil {
		return nil, err
	}

	items := j.Path("items").Children()
	if len(items) == 0 {
		return nil, &remote.Error{Op: "ytapi.FetchChannel", Err: fmt.Errorf("%w: channel %s", remote.ErrNotFound, channelID)}
	}

	item := items[0]

	return &remote.ChannelRecord{
		ID:                str(item, "id"),
		Title:             str(item, "snippet.title"),
		UploadsPlaylistID: str(item, "contentDetails.relatedPlaylists.uploads"),
		Etag:              str(item, "etag"),
	}, nil
}

var _ remote.Catalog = (*Client)(nil)
