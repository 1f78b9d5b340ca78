package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSON(t *testing.T) {
	a := assert.New(t)

	rw := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteJSON(rw, r, http.StatusCreated, map[string]int{"a": 1})

	a.Equal(http.StatusCreated, rw.Code)
	a.Equal("application/json; charset=utf-8", rw.Header().Get("content-type"))
	a.JSONEq(`{"a": 1}`, rw.Body.String())
}

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		fn     func(rw http.ResponseWriter, r *http.Request)
		status int
		body   string
	}{
		{"bad_request", func(rw http.ResponseWriter, r *http.Request) { BadRequest(rw, r, "bad limit") }, http.StatusBadRequest, `{"error": "bad limit"}`},
		{"not_found", NotFound, http.StatusNotFound, `{"error": "not found"}`},
		{"internal", func(rw http.ResponseWriter, r *http.Request) { InternalServerError(rw, r, errors.New("secret")) }, http.StatusInternalServerError, `{"error": "internal server error"}`},
		{"detail", func(rw http.ResponseWriter, r *http.Request) {
			ErrorWithDetail(rw, r, http.StatusBadGateway, "remote failure", errors.New("x"), map[string]int{"n": 2})
		}, http.StatusBadGateway, `{"error": "remote failure", "detail": {"n": 2}}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			rw := httptest.NewRecorder()
			tc.fn(rw, httptest.NewRequest(http.MethodGet, "/", nil))

			a.Equal(tc.status, rw.Code)
			a.JSONEq(tc.body, rw.Body.String())
		})
	}
}

func TestMinify(t *testing.T) {
	a := assert.New(t)

	mw := Minify(NewMinifier())

	rw := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	mw(rw, r, func(rw http.ResponseWriter, r *http.Request) {
		WriteJSON(rw, r, http.StatusOK, map[string]int{"a": 1})
	})

	a.Equal(http.StatusOK, rw.Code)
	a.JSONEq(`{"a": 1}`, rw.Body.String())
	a.NotContains(rw.Body.String(), "\n  ")
}
