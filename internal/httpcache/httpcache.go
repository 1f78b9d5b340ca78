// Package httpcache is an http.RoundTripper that keeps successful GET
// responses in a bbolt database.
package httpcache

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.etcd.io/bbolt"
)

type Entry struct {
	StoredAt   time.Time
	URL        string
	Status     string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *Entry) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        e.Status,
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

type Storage interface {
	Fetch(key string) (*Entry, error)
	Save(key string, e *Entry) error
}

func Key(u *url.URL) string {
	h := sha1.Sum([]byte(u.String()))
	return path.Join(u.Host, hex.EncodeToString(h[:]))
}

var bucketName = []byte("httpcache")

type BBoltStorage struct {
	db *bbolt.DB
}

func NewBBoltStorage(db *bbolt.DB) *BBoltStorage {
	return &BBoltStorage{db: db}
}

// Fetch returns nil without an error on a miss.
func (s *BBoltStorage) Fetch(key string) (*Entry, error) {
	var e *Entry

	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}

		d := b.Get([]byte(key))
		if d == nil {
			return nil
		}

		// d is only valid inside the transaction
		var v Entry
		if err := gob.NewDecoder(bytes.NewReader(d)).Decode(&v); err != nil {
			return err
		}

		e = &v

		return nil
	}); err != nil {
		return nil, fmt.Errorf("httpcache.BBoltStorage.Fetch: %w", err)
	}

	return e, nil
}

func (s *BBoltStorage) Save(key string, e *Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("httpcache.BBoltStorage.Save: %w", err)
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}

		return b.Put([]byte(key), buf.Bytes())
	}); err != nil {
		return fmt.Errorf("httpcache.BBoltStorage.Save: %w", err)
	}

	return nil
}

type Options struct {
	MaxAge time.Duration
	// ShouldCache limits caching to some requests. A nil func caches every
	// GET.
	ShouldCache func(req *http.Request) bool
	Now         func() time.Time
}

type Transport struct {
	transport http.RoundTripper
	storage   Storage
	opts      Options
}

func NewTransport(transport http.RoundTripper, storage Storage, opts Options) *Transport {
	if transport == nil {
		transport = http.DefaultTransport
	}

	if opts.MaxAge <= 0 {
		opts.MaxAge = time.Hour * 24
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Transport{
		transport: transport,
		storage:   storage,
		opts:      opts,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || (t.opts.ShouldCache != nil && !t.opts.ShouldCache(req)) {
		return t.transport.RoundTrip(req)
	}

	key := Key(req.URL)

	if e, err := t.storage.Fetch(key); err == nil && e != nil && t.opts.Now().Sub(e.StoredAt) < t.opts.MaxAge {
		return e.response(req), nil
	}

	res, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return res, nil
	}

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("httpcache.Transport.RoundTrip: could not read response: %w", err)
	}

	e := &Entry{
		StoredAt:   t.opts.Now(),
		URL:        req.URL.String(),
		Status:     res.Status,
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}

	if err := t.storage.Save(key, e); err != nil {
		return nil, fmt.Errorf("httpcache.Transport.RoundTrip: %w", err)
	}

	return e.response(req), nil
}
