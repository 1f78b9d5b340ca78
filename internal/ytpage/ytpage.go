// Package ytpage reads channel identity from public YouTube pages. It's
// used to resolve links the API can't, such as handles and custom URLs.
package ytpage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fknsrs.biz/p/ytcatalog/internal/ctxhttpclient"
	"fknsrs.biz/p/ytcatalog/internal/remote"
	"fknsrs.biz/p/ytcatalog/internal/ytutil"
)

const DefaultBaseURL = "https://www.youtube.com"

var (
	ErrNoChannel   = errors.New("ytpage: no channel found on page")
	ErrUnsupported = errors.New("ytpage: not a youtube link, handle or id")
)

type Channel struct {
	ID    string
	Title string
}

type Resolver struct {
	BaseURL string
}

func getDocument(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("ytpage.getDocument: %w", err)
	}
	req.Header.Set("accept-language", "en")

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("ytpage.getDocument: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := remote.Classify(res.StatusCode)
		if err == nil {
			err = fmt.Errorf("unexpected status %d", res.StatusCode)
		}

		return nil, &remote.Error{Op: "ytpage.getDocument", StatusCode: res.StatusCode, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("ytpage.getDocument: %w", err)
	}

	return doc, nil
}

// pageURL maps user input to a page that names its channel. Absolute URLs
// are fetched as they are, with the host swapped for BaseURL.
func (r *Resolver) pageURL(input string) (string, error) {
	base := strings.TrimSuffix(r.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "@") {
		return base + "/" + url.PathEscape(input), nil
	}

	if idType, id, err := ytutil.ExtractAndIdentifyID(input); err == nil {
		switch idType {
		case ytutil.ChannelID:
			return base + "/channel/" + id, nil
		case ytutil.PlaylistID:
			return base + "/playlist?list=" + url.QueryEscape(id), nil
		case ytutil.VideoID:
			return base + "/watch?v=" + url.QueryEscape(id), nil
		}
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("ytpage.Resolver.pageURL(%q): %w", input, ErrUnsupported)
	}

	if !strings.HasSuffix(u.Hostname(), "youtube.com") {
		return "", fmt.Errorf("ytpage.Resolver.pageURL(%q): %w", input, ErrUnsupported)
	}

	out := base + u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}

	return out, nil
}

// ResolveChannel finds the channel behind a link, handle or id.
func (r *Resolver) ResolveChannel(ctx context.Context, input string) (*Channel, error) {
	u, err := r.pageURL(input)
	if err != nil {
		return nil, err
	}

	doc, err := getDocument(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("ytpage.Resolver.ResolveChannel(%q): %w", input, err)
	}

	ch := ChannelFromDocument(doc)
	if ch == nil {
		return nil, fmt.Errorf("ytpage.Resolver.ResolveChannel(%q): %w", input, ErrNoChannel)
	}

	return ch, nil
}

// ChannelFromDocument reads the channel a page belongs to, or returns nil.
func ChannelFromDocument(doc *goquery.Document) *Channel {
	candidates := []string{
		doc.Find("meta[itemprop=channelId]").AttrOr("content", ""),
		doc.Find("meta[itemprop=identifier]").AttrOr("content", ""),
		channelFromURL(doc.Find("link[rel=canonical]").AttrOr("href", "")),
		channelFromURL(doc.Find("meta[property='og:url']").AttrOr("content", "")),
	}

	for _, id := range candidates {
		if !ytutil.IsChannelID(id) {
			continue
		}

		return &Channel{
			ID:    id,
			Title: strings.TrimSpace(doc.Find("meta[property='og:title']").AttrOr("content", "")),
		}
	}

	return nil
}

func channelFromURL(s string) string {
	if s == "" || !strings.Contains(s, "/channel/") {
		return ""
	}

	id, err := ytutil.ExtractChannelID(s)
	if err != nil {
		return ""
	}

	return id
}
