package ytpage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytcatalog/internal/ctxhttpclient"
	"fknsrs.biz/p/ytcatalog/internal/remote"
)

const channelPage = `<!doctype html>
<html><head>
<meta property="og:title" content=" Some Channel ">
<meta itemprop="channelId" content="UCuAXFkgsw1L7xaCfnd5JJOw">
</head><body></body></html>`

const canonicalPage = `<!doctype html>
<html><head>
<meta property="og:title" content="Other Channel">
<link rel="canonical" href="https://www.youtube.com/channel/UC0123456789abcdefghij_-">
</head><body></body></html>`

const emptyPage = `<!doctype html><html><head><title>nothing</title></head><body></body></html>`

func TestChannelFromDocument(t *testing.T) {
	for _, tc := range []struct {
		name string
		html string
		ch   *Channel
	}{
		{"meta", channelPage, &Channel{ID: "UCuAXFkgsw1L7xaCfnd5JJOw", Title: "Some Channel"}},
		{"canonical", canonicalPage, &Channel{ID: "UC0123456789abcdefghij_-", Title: "Other Channel"}},
		{"empty", emptyPage, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.html))
			a.NoError(err)

			a.Equal(tc.ch, ChannelFromDocument(doc))
		})
	}
}

func TestResolveChannel(t *testing.T) {
	var paths []string

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())

		switch {
		case r.URL.Path == "/@somechannel", r.URL.Path == "/watch", r.URL.Path == "/channel/UCuAXFkgsw1L7xaCfnd5JJOw":
			io.WriteString(rw, channelPage)
		case r.URL.Path == "/c/custom":
			io.WriteString(rw, canonicalPage)
		case r.URL.Path == "/@gone":
			rw.WriteHeader(http.StatusNotFound)
		default:
			io.WriteString(rw, emptyPage)
		}
	}))
	defer s.Close()

	ctx := ctxhttpclient.WithHTTPClient(context.Background(), s.Client())
	r := &Resolver{BaseURL: s.URL}

	for _, tc := range []struct {
		input string
		id    string
		path  string
		err   error
	}{
		{input: "@somechannel", id: "UCuAXFkgsw1L7xaCfnd5JJOw", path: "/@somechannel"},
		{input: "https://www.youtube.com/@somechannel", id: "UCuAXFkgsw1L7xaCfnd5JJOw", path: "/@somechannel"},
		{input: "https://youtube.com/c/custom", id: "UC0123456789abcdefghij_-", path: "/c/custom"},
		{input: "UCuAXFkgsw1L7xaCfnd5JJOw", id: "UCuAXFkgsw1L7xaCfnd5JJOw", path: "/channel/UCuAXFkgsw1L7xaCfnd5JJOw"},
		{input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", id: "UCuAXFkgsw1L7xaCfnd5JJOw", path: "/watch?v=dQw4w9WgXcQ"},
		{input: "@gone", err: remote.ErrNotFound, path: "/@gone"},
		{input: "https://www.youtube.com/@nothing", err: ErrNoChannel, path: "/@nothing"},
		{input: "https://example.com/@somechannel", err: ErrUnsupported},
		{input: "not a link", err: ErrUnsupported},
	} {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)
			paths = nil

			ch, err := r.ResolveChannel(ctx, tc.input)
			if tc.err != nil {
				a.ErrorIs(err, tc.err)
				a.Nil(ch)
			} else if a.NoError(err) && a.NotNil(ch) {
				a.Equal(tc.id, ch.ID)
			}

			if tc.path != "" {
				a.Equal([]string{tc.path}, paths)
			} else {
				a.Empty(paths)
			}
		})
	}
}
