// Package ytapi is a remote.Catalog backed by the YouTube Data API v3.
package ytapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"golang.org/x/time/rate"

	"fknsrs.biz/p/ytcatalog/internal/ctxhttpclient"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/remote"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	maxPageSize = 50
)

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond * 500,
		MaxBackoff:     time.Second * 10,
		Multiplier:     2,
		JitterFraction: 0.2,
	}
}

type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Retry             *RetryConfig
	// HTTPClient overrides the client found in the request context.
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
}

func New(opts Options) *Client {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	retry := DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		retry:      retry,
	}
}

func (c *Client) client(ctx context.Context) *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}

	return ctxhttpclient.GetHTTPClient(ctx)
}

// get fetches one resource, retrying transient failures with backoff.
func (c *Client) get(ctx context.Context, op, resource string, params url.Values) (*gabs.Container, error) {
	backoff := c.retry.InitialBackoff

	for attempt := 0; ; attempt++ {
		j, err := c.getOnce(ctx, op, resource, params)
		if err == nil {
			return j, nil
		}

		if attempt >= c.retry.MaxRetries || !shouldRetry(err) {
			return nil, err
		}

		sleep := min(backoff+jitter(backoff, c.retry.JitterFraction), c.retry.MaxBackoff)

		ctxlogger.GetLogger(ctx).WithError(err).WithField("ytapi.attempt", attempt+1).WithField("ytapi.backoff", sleep).Debug("retrying request")

		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}

		if c.retry.Multiplier > 0 {
			backoff = min(time.Duration(float64(backoff)*c.retry.Multiplier), c.retry.MaxBackoff)
		}
	}
}

func (c *Client) getOnce(ctx context.Context, op, resource string, params url.Values) (*gabs.Container, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+resource+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &remote.Error{Op: op, Err: err}
	}
	req.Header.Set("accept", "application/json")

	res, err := c.client(ctx).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &remote.Error{Op: op, Err: fmt.Errorf("%w: %w", remote.ErrTransient, err)}
	}
	defer res.Body.Close()

	j, parseErr := gabs.ParseJSONBuffer(res.Body)

	if res.StatusCode != http.StatusOK {
		return nil, responseError(op, res.StatusCode, j)
	}

	if parseErr != nil {
		return nil, &remote.Error{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("could not parse response: %w", parseErr)}
	}

	return j, nil
}

// reasons the API reports with a 403 that clear up on their own
var transientReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"backendError":          true,
}

func responseError(op string, statusCode int, j *gabs.Container) error {
	reason := str(j, "error.errors.0.reason")

	kind := remote.Classify(statusCode)
	if transientReasons[reason] {
		kind = remote.ErrTransient
	}
	if kind == nil {
		kind = fmt.Errorf("unexpected status %d", statusCode)
	}

	err := kind
	if msg := str(j, "error.message"); msg != "" {
		err = fmt.Errorf("%w: %s", kind, msg)
	}

	return &remote.Error{Op: op, StatusCode: statusCode, Reason: reason, Err: err}
}

// a spent daily quota won't come back within a backoff window
func shouldRetry(err error) bool {
	var rerr *remote.Error
	if errors.As(err, &rerr) && rerr.Reason == "quotaExceeded" {
		return false
	}

	return remote.IsRetryable(err)
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}

	return time.Duration((rand.Float64() - 0.5) * 2 * float64(d) * fraction)
}

// paginate calls fn with each page of a list resource until fn returns
// false or there are no more pages.
func (c *Client) paginate(ctx context.Context, op, resource string, params url.Values, fn func(j *gabs.Container) bool) error {
	token := ""

	for {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("maxResults", fmt.Sprint(maxPageSize))
		if token != "" {
			q.Set("pageToken", token)
		}

		j, err := c.get(ctx, op, resource, q)
		if err != nil {
			return err
		}

		if !fn(j) {
			return nil
		}

		token = str(j, "nextPageToken")
		if token == "" {
			return nil
		}
	}
}

func str(c *gabs.Container, path string) string {
	if c == nil || !c.ExistsP(path) {
		return ""
	}

	s, _ := c.Path(path).Data().(string)

	return s
}

func num(c *gabs.Container, path string) (float64, bool) {
	if c == nil || !c.ExistsP(path) {
		return 0, false
	}

	switch v := c.Path(path).Data().(type) {
	case float64:
		return v, true
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func timestamp(c *gabs.Container, path string) (time.Time, bool) {
	s := str(c, path)
	if s == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}

	return t.UTC(), true
}
