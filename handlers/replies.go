package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/httputil"
	"fknsrs.biz/p/ytcatalog/models"
)

// ChannelReplies lists stored reply drafts for a channel, newest pull
// first.
func ChannelReplies(rw http.ResponseWriter, r *http.Request) {
	channel, err := findChannel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	p, err := parsePageRequest(r, "replies:"+channel.ExternalID)
	if err != nil {
		httputil.BadRequest(rw, r, err.Error())
		return
	}

	pulledAt := models.CommentReplyTable.MustC("PulledAt")
	commentID := models.CommentReplyTable.MustC("CommentExternalID")

	var replies []models.CommentReply
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&replies,
		and(
			sb.BinaryOperator("=", models.CommentReplyTable.MustC("ChannelExternalID"), sb.Bind(channel.ExternalID)),
			p.condition(pulledAt, commentID),
		),
		p.orders(pulledAt, commentID),
		sb.OffsetLimit(nil, sb.Literal(strconv.Itoa(p.fetchLimit()))),
	); err != nil && err != sql.ErrNoRows {
		panic(err)
	}

	page, err := makePage(p, replies, func(v *models.CommentReply) (time.Time, string) {
		return v.PulledAt, v.CommentExternalID
	})
	if err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}
