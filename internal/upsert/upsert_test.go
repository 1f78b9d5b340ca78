package upsert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/dbtest"
	"fknsrs.biz/p/ytcatalog/models"
)

var (
	t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func video(feed, id, title string) models.Video {
	return models.Video{
		UploadsPlaylistID: feed,
		ExternalID:        id,
		Title:             title,
		Visibility:        models.VisibilityPublic,
		PublishedAt:       t0,
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	var n int
	if err := db.QueryRow("select count(*) from " + table).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestBatchEmpty(t *testing.T) {
	a := assert.New(t)

	// no db in context: an empty batch must not need one
	res, err := Batch(context.Background(), Videos, nil, t0)
	a.NoError(err)
	a.Equal(Result{}, res)
}

func TestBatchInsertThenNoop(t *testing.T) {
	a := assert.New(t)
	db := dbtest.Open(t)
	ctx := ctxdb.WithDB(context.Background(), db)

	batch := []models.Video{video("UU1", "a", "A"), video("UU1", "b", "B"), video("UU1", "c", "C")}

	res, err := Batch(ctx, Videos, batch, t0)
	a.NoError(err)
	a.Equal(Result{Inserted: 3}, res)

	res, err = Batch(ctx, Videos, []models.Video{video("UU1", "a", "A"), video("UU1", "b", "B"), video("UU1", "c", "C")}, t1)
	a.NoError(err)
	a.Equal(Result{}, res)

	var stored models.Video
	a.NoError(sorm.FindFirstWhere(ctx, db, &stored, "where external_id = ?", "a"))
	a.True(stored.UpdatedAt.Equal(t0), "unchanged rows keep their timestamp")
	a.True(stored.CreatedAt.Equal(t0))
}

func TestBatchUpdatesOnlyDirty(t *testing.T) {
	a := assert.New(t)
	db := dbtest.Open(t)
	ctx := ctxdb.WithDB(context.Background(), db)

	_, err := Batch(ctx, Videos, []models.Video{video("UU1", "a", "A"), video("UU1", "b", "B")}, t0)
	a.NoError(err)

	res, err := Batch(ctx, Videos, []models.Video{video("UU1", "a", "A2"), video("UU1", "b", "B"), video("UU1", "c", "C")}, t1)
	a.NoError(err)
	a.Equal(Result{Inserted: 1, Updated: 1}, res)

	var a1, b1 models.Video
	a.NoError(sorm.FindFirstWhere(ctx, db, &a1, "where external_id = ?", "a"))
	a.NoError(sorm.FindFirstWhere(ctx, db, &b1, "where external_id = ?", "b"))
	a.Equal("A2", a1.Title)
	a.True(a1.UpdatedAt.Equal(t1))
	a.True(a1.CreatedAt.Equal(t0))
	a.True(b1.UpdatedAt.Equal(t0))
}

func TestBatchCompositeIdentity(t *testing.T) {
	a := assert.New(t)
	db := dbtest.Open(t)
	ctx := ctxdb.WithDB(context.Background(), db)

	res, err := Batch(ctx, Videos, []models.Video{video("UU1", "a", "A"), video("UU2", "a", "other feed")}, t0)
	a.NoError(err)
	a.Equal(Result{Inserted: 2}, res)

	res, err = Batch(ctx, Videos, []models.Video{video("UU2", "a", "other feed"), video("UU1", "a", "A")}, t1)
	a.NoError(err)
	a.Equal(Result{}, res)
	a.Equal(2, countRows(t, db, "videos"))
}

func TestBatchSizeDoesNotChangeOutcome(t *testing.T) {
	var all []models.Video
	for i := 0; i < 25; i++ {
		all = append(all, video("UU1", fmt.Sprintf("v%02d", i), fmt.Sprintf("title %d", i)))
	}

	for _, size := range []int{1, 7, 25, 100} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			a := assert.New(t)
			db := dbtest.Open(t)
			ctx := ctxdb.WithDB(context.Background(), db)

			var total Result
			for start := 0; start < len(all); start += size {
				end := min(start+size, len(all))

				res, err := Batch(ctx, Videos, append([]models.Video{}, all[start:end]...), t0)
				a.NoError(err)
				total = total.Add(res)
			}

			a.Equal(Result{Inserted: 25}, total)
			a.Equal(25, countRows(t, db, "videos"))
		})
	}
}

func TestBatchIsAtomic(t *testing.T) {
	a := assert.New(t)
	db := dbtest.Open(t)
	ctx := ctxdb.WithDB(context.Background(), db)

	errBroken := errors.New("broken")

	broken := Videos
	broken.Prepare = func(v *models.Video, asOf time.Time) {
		Videos.Prepare(v, asOf)
		if v.ExternalID == "c" {
			panic(errBroken)
		}
	}

	a.Panics(func() {
		_, _ = Batch(ctx, broken, []models.Video{video("UU1", "a", "A"), video("UU1", "b", "B"), video("UU1", "c", "C")}, t0)
	})

	a.Equal(0, countRows(t, db, "videos"))

	failing := Videos
	failing.LoadExisting = func(ctx context.Context, tx *sql.Tx, keys []models.VideoKey) ([]models.Video, error) {
		return nil, errBroken
	}

	_, err := Batch(ctx, failing, []models.Video{video("UU1", "a", "A")}, t0)
	a.ErrorIs(err, errBroken)
}

func TestPlaylists(t *testing.T) {
	a := assert.New(t)
	db := dbtest.Open(t)
	ctx := ctxdb.WithDB(context.Background(), db)

	res, err := Batch(ctx, Playlists, []models.Playlist{
		{ExternalID: "PL1", ChannelExternalID: "UC1", Title: "One", Etag: "e1"},
		{ExternalID: "PL2", ChannelExternalID: "UC1", Title: "Two", Etag: "e1"},
	}, t0)
	a.NoError(err)
	a.Equal(Result{Inserted: 2}, res)

	res, err = Batch(ctx, Playlists, []models.Playlist{
		{ExternalID: "PL1", ChannelExternalID: "UC1", Title: "One", Etag: "e2"},
		{ExternalID: "PL2", ChannelExternalID: "UC1", Title: "Two", Etag: "e1"},
	}, t1)
	a.NoError(err)
	a.Equal(Result{Updated: 1}, res)
}

func TestPlaceholders(t *testing.T) {
	a := assert.New(t)

	a.Equal("", Placeholders(0))
	a.Equal("?", Placeholders(1))
	a.Equal("?, ?, ?", Placeholders(3))
}
