// Package remotetest provides an in-memory remote.Catalog for tests.
package remotetest

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"sync"
	"time"

	"fknsrs.biz/p/ytcatalog/internal/cursor"
	"fknsrs.biz/p/ytcatalog/internal/remote"
)

const DefaultPageSize = 2

// Catalog serves fixed data. Feeds are paged with cursor tokens the same way
// a real paginated API would, so tests exercise early exit between pages.
//
// Failures are injected by key: the operation name ("StreamUploads",
// "FetchVideoDetails", ...) optionally followed by ":" and the id it was
// called with.
type Catalog struct {
	PageSize int
	// IgnoreSince makes StreamUploads ignore the cutoff hint, like a client
	// that can't stop early.
	IgnoreSince bool
	// BeforePage runs before each page of a feed is fetched, with the page
	// index starting at 0. Tests use it to cancel at a page boundary.
	BeforePage func(op, id string, n int)

	Uploads   map[string][]remote.VideoRecord
	Playlists map[string][]remote.PlaylistRecord
	Members   map[string][]string
	Details   map[string]remote.VideoRecord
	Comments  map[string]*bool
	Channels  map[string]remote.ChannelRecord
	Failures  map[string]error

	m     sync.Mutex
	calls map[string]int
	pages map[string]int
}

func New() *Catalog {
	return &Catalog{
		PageSize:  DefaultPageSize,
		Uploads:   make(map[string][]remote.VideoRecord),
		Playlists: make(map[string][]remote.PlaylistRecord),
		Members:   make(map[string][]string),
		Details:   make(map[string]remote.VideoRecord),
		Comments:  make(map[string]*bool),
		Channels:  make(map[string]remote.ChannelRecord),
		Failures:  make(map[string]error),
	}
}

// Calls reports how many times an operation was started.
func (c *Catalog) Calls(op string) int {
	c.m.Lock()
	defer c.m.Unlock()

	return c.calls[op]
}

// Pages reports how many pages an operation has fetched in total.
func (c *Catalog) Pages(op string) int {
	c.m.Lock()
	defer c.m.Unlock()

	return c.pages[op]
}

func (c *Catalog) count(m *map[string]int, op string) {
	c.m.Lock()
	defer c.m.Unlock()

	if *m == nil {
		*m = make(map[string]int)
	}

	(*m)[op]++
}

func (c *Catalog) failure(op, id string) error {
	c.m.Lock()
	defer c.m.Unlock()

	if err, ok := c.Failures[op+":"+id]; ok {
		return err
	}

	return c.Failures[op]
}

func (c *Catalog) pageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}

	return c.PageSize
}

// page returns the items after the position named by token, and the token
// for the page after that.
func page[T any](items []T, token, binding string, size int, key func(i int, v T) (time.Time, string)) ([]T, string, error) {
	start := 0

	if token != "" {
		c, err := cursor.Decode(token)
		if err != nil {
			return nil, "", err
		}
		if !c.Bound(binding) {
			return nil, "", fmt.Errorf("remotetest: token belongs to another feed")
		}

		prefix, id, _ := strings.Cut(c.ID, ":")

		i, err := strconv.Atoi(prefix)
		if err != nil || i < 0 || i >= len(items) {
			return nil, "", fmt.Errorf("remotetest: token position %q is out of range", c.ID)
		}
		if at, itemID := key(i, items[i]); itemID != id || !at.Equal(c.At) {
			return nil, "", fmt.Errorf("remotetest: token position %q no longer matches", c.ID)
		}

		start = i + 1
	}

	end := min(start+size, len(items))

	next := ""
	if end < len(items) {
		at, id := key(end-1, items[end-1])

		s, err := cursor.Encode(at, strconv.Itoa(end-1)+":"+id, &binding)
		if err != nil {
			return nil, "", err
		}

		next = s
	}

	return items[start:end], next, nil
}

func stream[T any](ctx context.Context, c *Catalog, op, id string, items []T, key func(i int, v T) (time.Time, string), yield func(T, error) bool, stop func(T) bool) {
	var zero T

	c.count(&c.calls, op)

	if err := c.failure(op, id); err != nil {
		yield(zero, &remote.Error{Op: "remotetest." + op, Err: err})
		return
	}

	token := ""
	for n := 0; ; n++ {
		if c.BeforePage != nil {
			c.BeforePage(op, id, n)
		}

		if err := ctx.Err(); err != nil {
			yield(zero, err)
			return
		}

		c.count(&c.pages, op)

		batch, next, err := page(items, token, op+":"+id, c.pageSize(), key)
		if err != nil {
			yield(zero, err)
			return
		}

		for _, v := range batch {
			if stop != nil && stop(v) {
				return
			}
			if !yield(v, nil) {
				return
			}
		}

		if next == "" {
			return
		}

		token = next
	}
}

func (c *Catalog) StreamUploads(ctx context.Context, feedID string, since *time.Time) iter.Seq2[remote.VideoRecord, error] {
	return func(yield func(remote.VideoRecord, error) bool) {
		var stop func(remote.VideoRecord) bool
		if since != nil && !c.IgnoreSince {
			stop = func(v remote.VideoRecord) bool { return !v.PublishedAt.After(*since) }
		}

		stream(ctx, c, "StreamUploads", feedID, c.Uploads[feedID], func(_ int, v remote.VideoRecord) (time.Time, string) {
			return v.PublishedAt, v.ID
		}, yield, stop)
	}
}

// ordering key for feeds that have no natural timestamp
func indexKey(i int) time.Time { return time.Unix(int64(i), 0).UTC() }

func (c *Catalog) StreamPlaylists(ctx context.Context, ownerID string) iter.Seq2[remote.PlaylistRecord, error] {
	return func(yield func(remote.PlaylistRecord, error) bool) {
		stream(ctx, c, "StreamPlaylists", ownerID, c.Playlists[ownerID], func(i int, v remote.PlaylistRecord) (time.Time, string) {
			return indexKey(i), v.ID
		}, yield, nil)
	}
}

func (c *Catalog) StreamPlaylistMembers(ctx context.Context, playlistID string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream(ctx, c, "StreamPlaylistMembers", playlistID, c.Members[playlistID], func(i int, v string) (time.Time, string) {
			return indexKey(i), v
		}, yield, nil)
	}
}

func (c *Catalog) FetchVideoDetails(ctx context.Context, ids []string) ([]remote.VideoRecord, error) {
	c.count(&c.calls, "FetchVideoDetails")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := c.failure("FetchVideoDetails", id); err != nil {
			return nil, &remote.Error{Op: "remotetest.FetchVideoDetails", Err: err}
		}
	}

	var a []remote.VideoRecord
	for _, id := range ids {
		if v, ok := c.Details[id]; ok {
			a = append(a, v)
		}
	}

	return a, nil
}

func (c *Catalog) CheckCommentsEnabled(ctx context.Context, videoID string) (*bool, error) {
	c.count(&c.calls, "CheckCommentsEnabled")

	if err := c.failure("CheckCommentsEnabled", videoID); err != nil {
		return nil, &remote.Error{Op: "remotetest.CheckCommentsEnabled", Err: err}
	}

	c.m.Lock()
	defer c.m.Unlock()

	return c.Comments[videoID], nil
}

func (c *Catalog) FetchChannel(ctx context.Context, channelID string) (*remote.ChannelRecord, error) {
	c.count(&c.calls, "FetchChannel")

	if err := c.failure("FetchChannel", channelID); err != nil {
		return nil, &remote.Error{Op: "remotetest.FetchChannel", Err: err}
	}

	ch, ok := c.Channels[channelID]
	if !ok {
		return nil, &remote.Error{Op: "remotetest.FetchChannel", Err: remote.ErrNotFound}
	}

	return &ch, nil
}

var _ remote.Catalog = (*Catalog)(nil)
