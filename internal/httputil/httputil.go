package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify"
	minifyjson "github.com/tdewolff/minify/json"

	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
)

const contentTypeJSON = "application/json"

type errorBody struct {
	Error  string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`
}

func WriteJSON(rw http.ResponseWriter, r *http.Request, status int, v interface{}) {
	rw.Header().Set("content-type", contentTypeJSON+"; charset=utf-8")
	rw.WriteHeader(status)

	enc := json.NewEncoder(rw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		ctxlogger.GetLogger(r.Context()).WithError(err).Warn("could not write response body")
	}
}

// Error writes {"error": message}. Server side failures are logged with the
// underlying error, which is not shown to the client.
func Error(rw http.ResponseWriter, r *http.Request, status int, message string, err error) {
	ErrorWithDetail(rw, r, status, message, err, nil)
}

// ErrorWithDetail is Error with an extra payload, like the partial result of
// an operation that failed part way through.
func ErrorWithDetail(rw http.ResponseWriter, r *http.Request, status int, message string, err error, detail interface{}) {
	if status >= http.StatusInternalServerError {
		ctxlogger.GetLogger(r.Context()).WithFields(logrus.Fields{
			"http.status_code": status,
		}).WithError(err).Error(message)
	}

	WriteJSON(rw, r, status, errorBody{Error: message, Detail: detail})
}

func BadRequest(rw http.ResponseWriter, r *http.Request, message string) {
	Error(rw, r, http.StatusBadRequest, message, nil)
}

func NotFound(rw http.ResponseWriter, r *http.Request) {
	Error(rw, r, http.StatusNotFound, "not found", nil)
}

func InternalServerError(rw http.ResponseWriter, r *http.Request, err error) {
	Error(rw, r, http.StatusInternalServerError, "internal server error", err)
}

func NewMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(contentTypeJSON, minifyjson.Minify)
	return m
}

// Minify rewrites responses whose content type the minifier knows. Upgraded
// connections pass through untouched.
func Minify(m *minify.M) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		if strings.ToLower(r.Header.Get("connection")) == "upgrade" {
			next(rw, r)
			return
		}

		mw := m.ResponseWriter(rw, r)
		defer mw.Close()

		next(mw, r)
	}
}
