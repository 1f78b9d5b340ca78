package ctxhttpclient

import (
	"context"
	"net/http"
	"time"
)

var defaultClient = &http.Client{Timeout: 30 * time.Second}

var httpClientKey int

func WithHTTPClient(ctx context.Context, httpClient *http.Client) context.Context {
	return context.WithValue(ctx, &httpClientKey, httpClient)
}

// GetHTTPClient returns the context's client, or a shared client with a
// timeout when none was set.
func GetHTTPClient(ctx context.Context) *http.Client {
	if v, ok := ctx.Value(&httpClientKey).(*http.Client); ok && v != nil {
		return v
	}

	return defaultClient
}
