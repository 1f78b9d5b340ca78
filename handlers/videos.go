package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/godatautil"
	"fknsrs.biz/p/ytcatalog/internal/httputil"
	"fknsrs.biz/p/ytcatalog/models"
)

var videoFields = godatautil.Fields{
	"ExternalID",
	"Title",
	"Description",
	"Visibility",
	"CategoryID",
	"DefaultLanguage",
	"DefaultAudioLanguage",
	"CommentsEnabled",
	"PublishedAt",
}

func videoKey(v *models.Video) (time.Time, string) {
	return v.PublishedAt, v.ExternalID
}

func ChannelVideos(rw http.ResponseWriter, r *http.Request) {
	channel, err := findChannel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	p, err := parsePageRequest(r, "videos:"+channel.ExternalID)
	if err != nil {
		httputil.BadRequest(rw, r, err.Error())
		return
	}

	filter, err := godatautil.ParseFilter(r.URL.Query().Get("$filter"), models.VideoTable, videoFields)
	if err != nil {
		httputil.BadRequest(rw, r, err.Error())
		return
	}

	publishedAt := models.VideoTable.MustC("PublishedAt")
	externalID := models.VideoTable.MustC("ExternalID")

	var videos []models.Video
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		and(
			sb.BinaryOperator("=", models.VideoTable.MustC("UploadsPlaylistID"), sb.Bind(channel.UploadsPlaylistID)),
			p.condition(publishedAt, externalID),
			filter,
		),
		p.orders(publishedAt, externalID),
		sb.OffsetLimit(nil, sb.Literal(strconv.Itoa(p.fetchLimit()))),
	); err != nil && err != sql.ErrNoRows {
		panic(err)
	}

	page, err := makePage(p, videos, videoKey)
	if err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func PlaylistVideos(rw http.ResponseWriter, r *http.Request) {
	var playlist models.Playlist
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &playlist, "where external_id = ?", mux.Vars(r)["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	p, err := parsePageRequest(r, "playlist:"+playlist.ExternalID)
	if err != nil {
		httputil.BadRequest(rw, r, err.Error())
		return
	}

	where := "where external_id in (select video_external_id from video_playlists where playlist_external_id = ?)"
	args := []interface{}{playlist.ExternalID}

	if p.after != nil {
		where += " and (published_at < ? or (published_at = ? and external_id < ?))"
		args = append(args, p.after.At, p.after.At, p.after.ID)
	}

	where += " order by published_at desc, external_id desc limit ?"
	args = append(args, p.fetchLimit())

	var videos []models.Video
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &videos, where, args...); err != nil && err != sql.ErrNoRows {
		panic(err)
	}

	page, err := makePage(p, videos, videoKey)
	if err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}
