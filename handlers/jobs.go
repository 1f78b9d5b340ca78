package handlers

import (
	"database/sql"
	"net/http"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/httputil"
	"fknsrs.biz/p/ytcatalog/internal/jobqueue"
)

func Jobs(rw http.ResponseWriter, r *http.Request) {
	var jobs []jobqueue.Job
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &jobs, "where finished_at is null order by id desc limit 1000"); err != nil && err != sql.ErrNoRows {
		panic(err)
	}

	if jobs == nil {
		jobs = []jobqueue.Job{}
	}

	httputil.WriteJSON(rw, r, http.StatusOK, Page[jobqueue.Job]{Items: jobs})
}
