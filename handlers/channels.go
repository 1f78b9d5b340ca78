package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/ctxjobqueue"
	"fknsrs.biz/p/ytcatalog/internal/ctxsyncer"
	"fknsrs.biz/p/ytcatalog/internal/godatautil"
	"fknsrs.biz/p/ytcatalog/internal/httputil"
	"fknsrs.biz/p/ytcatalog/internal/jobqueue"
	"fknsrs.biz/p/ytcatalog/internal/queuenames"
	"fknsrs.biz/p/ytcatalog/internal/remote"
	"fknsrs.biz/p/ytcatalog/internal/syncer"
	"fknsrs.biz/p/ytcatalog/internal/ytpage"
	"fknsrs.biz/p/ytcatalog/internal/ytutil"
	"fknsrs.biz/p/ytcatalog/models"
)

var channelFields = godatautil.Fields{"ExternalID", "Title", "CreatedAt", "UpdatedAt", "LastSyncedAt"}

func findChannel(ctx context.Context, externalID string) (*models.Channel, error) {
	var channel models.Channel
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &channel, "where external_id = ?", externalID); err != nil {
		return nil, err
	}

	return &channel, nil
}

func Channels(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	condition, err := godatautil.ParseFilter(q.Get("$filter"), models.ChannelTable, channelFields)
	if err != nil {
		httputil.BadRequest(rw, r, err.Error())
		return
	}

	order, err := godatautil.ParseOrders(q.Get("$orderby"), models.ChannelTable, channelFields, sb.OrderDesc(models.ChannelTable.MustC("CreatedAt")))
	if err != nil {
		httputil.BadRequest(rw, r, err.Error())
		return
	}

	var channels []models.Channel
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&channels,
		condition,
		order,
		sb.OffsetLimit(nil, sb.Literal("1000")),
	); err != nil && err != sql.ErrNoRows {
		panic(err)
	}

	if channels == nil {
		channels = []models.Channel{}
	}

	httputil.WriteJSON(rw, r, http.StatusOK, Page[models.Channel]{Items: channels})
}

func Channel(rw http.ResponseWriter, r *http.Request) {
	channel, err := findChannel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	httputil.WriteJSON(rw, r, http.StatusOK, channel)
}

func ChannelPlaylists(rw http.ResponseWriter, r *http.Request) {
	channel, err := findChannel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	var playlists []models.Playlist
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &playlists, "where channel_external_id = ? order by title, external_id", channel.ExternalID); err != nil && err != sql.ErrNoRows {
		panic(err)
	}

	if playlists == nil {
		playlists = []models.Playlist{}
	}

	httputil.WriteJSON(rw, r, http.StatusOK, Page[models.Playlist]{Items: playlists})
}

type registerChannelInput struct {
	Channel string `formam:"channel"`
	Title   string `formam:"title"`
}

// RegisterChannel adds a channel from an id, a channel URL or any page that
// names its channel, and queues a metadata refresh for it. Registering a
// known channel returns the stored record.
func RegisterChannel(resolver *ytpage.Resolver) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(rw, r, err.Error())
			return
		}

		var input registerChannelInput
		if err := formam.Decode(r.Form, &input); err != nil {
			httputil.BadRequest(rw, r, err.Error())
			return
		}

		input.Channel = strings.TrimSpace(input.Channel)
		if input.Channel == "" {
			httputil.BadRequest(rw, r, "channel is required")
			return
		}

		externalID, err := ytutil.ExtractChannelID(input.Channel)
		if err != nil {
			resolved, err := resolver.ResolveChannel(r.Context(), input.Channel)
			switch {
			case err == nil:
				externalID = resolved.ID
				if input.Title == "" {
					input.Title = resolved.Title
				}
			case errors.Is(err, ytpage.ErrUnsupported):
				httputil.BadRequest(rw, r, "channel must be a channel id, handle or youtube link")
				return
			case errors.Is(err, ytpage.ErrNoChannel), errors.Is(err, remote.ErrNotFound):
				httputil.Error(rw, r, http.StatusUnprocessableEntity, "could not find a channel for that link", err)
				return
			default:
				httputil.Error(rw, r, http.StatusBadGateway, "could not resolve channel", err)
				return
			}
		}

		uploadsID, err := ytutil.UploadsPlaylistID(externalID)
		if err != nil {
			httputil.BadRequest(rw, r, err.Error())
			return
		}

		now, err := ctxclock.Now(r.Context())
		if err != nil {
			panic(err)
		}

		var channel models.Channel
		created := false

		if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
			if err := sorm.FindFirstWhere(ctx, tx, &channel, "where external_id = ?", externalID); err != sql.ErrNoRows {
				return err
			}

			channel = models.Channel{
				ExternalID:        externalID,
				Title:             input.Title,
				UploadsPlaylistID: uploadsID,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := sorm.CreateRecord(ctx, tx, &channel); err != nil {
				return err
			}
			created = true

			_, err := ctxjobqueue.AddUnique(ctx, tx, &jobqueue.Job{QueueName: queuenames.ChannelUpdateMetadata, Payload: externalID})

			return err
		}); err != nil {
			panic(err)
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}

		httputil.WriteJSON(rw, r, status, channel)
	}
}

type syncQueued struct {
	Job    *jobqueue.Job `json:"job"`
	Queued bool          `json:"queued"`
}

// SyncChannel runs a channel sync and returns its report. With
// background=1 the sync is queued instead.
func SyncChannel(rw http.ResponseWriter, r *http.Request) {
	externalID := mux.Vars(r)["id"]

	if background := r.URL.Query().Get("background"); background == "1" || background == "true" {
		if _, err := findChannel(r.Context(), externalID); err != nil {
			if err == sql.ErrNoRows {
				httputil.NotFound(rw, r)
				return
			}

			panic(err)
		}

		job, added, err := ctxjobqueue.EnqueueSync(r.Context(), externalID)
		if err != nil {
			panic(err)
		}

		httputil.WriteJSON(rw, r, http.StatusAccepted, syncQueued{Job: job, Queued: added})
		return
	}

	engine := ctxsyncer.GetEngine(r.Context())
	if engine == nil {
		panic(errors.New("handlers.SyncChannel: no sync engine in context"))
	}

	report, err := engine.SyncChannel(r.Context(), externalID)
	switch {
	case err == nil:
		httputil.WriteJSON(rw, r, http.StatusOK, report)
	case errors.Is(err, syncer.ErrSyncInProgress):
		httputil.Error(rw, r, http.StatusConflict, "a sync for this channel is already running", err)
	case errors.Is(err, syncer.ErrChannelNotFound):
		httputil.NotFound(rw, r)
	case errors.Is(err, syncer.ErrMissingUploadsFeed):
		httputil.Error(rw, r, http.StatusUnprocessableEntity, "channel has no uploads feed", err)
	case isRemote(err):
		httputil.ErrorWithDetail(rw, r, http.StatusBadGateway, "sync failed talking to youtube", err, report)
	default:
		httputil.ErrorWithDetail(rw, r, http.StatusInternalServerError, "sync failed", err, report)
	}
}

func isRemote(err error) bool {
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		return true
	}

	return errors.Is(err, remote.ErrTransient) || errors.Is(err, remote.ErrNotAuthorized) || errors.Is(err, remote.ErrNotFound)
}
