package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sb "fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytcatalog/internal/cursor"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var (
	errBadLimit     = fmt.Errorf("limit must be a whole number between 1 and %d", MaxLimit)
	errBadPageToken = errors.New("pageToken is malformed")
	errWrongListing = errors.New("pageToken belongs to a different listing")
)

// Page is the body of every cursor paginated listing. NextPageToken is left
// out on the last page.
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

type pageRequest struct {
	binding string
	limit   int
	after   *cursor.Cursor
}

func parsePageRequest(r *http.Request, binding string) (pageRequest, error) {
	p := pageRequest{binding: binding, limit: DefaultLimit}

	q := r.URL.Query()

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxLimit {
			return p, errBadLimit
		}
		p.limit = n
	}

	if s := q.Get("pageToken"); s != "" {
		c, err := cursor.Decode(s)
		if err != nil {
			return p, errBadPageToken
		}
		if !c.Bound(binding) {
			return p, errWrongListing
		}
		p.after = &c
	}

	return p, nil
}

// condition restricts rows to those after the cursor in (at desc, id desc)
// order, or returns nil on the first page.
func (p pageRequest) condition(at, id sb.AsExpr) sb.AsExpr {
	if p.after == nil {
		return nil
	}

	return sb.BooleanOperator(
		"or",
		sb.BinaryOperator("<", at, sb.Bind(p.after.At)),
		sb.BooleanOperator(
			"and",
			sb.BinaryOperator("=", at, sb.Bind(p.after.At)),
			sb.BinaryOperator("<", id, sb.Bind(p.after.ID)),
		),
	)
}

func (p pageRequest) orders(at, id sb.AsExpr) []sb.AsOrderingTerm {
	return []sb.AsOrderingTerm{sb.OrderDesc(at), sb.OrderDesc(id)}
}

// fetchLimit is one more than the page size so the last page can be told
// apart without a count query.
func (p pageRequest) fetchLimit() int {
	return p.limit + 1
}

func makePage[T any](p pageRequest, rows []T, key func(v *T) (time.Time, string)) (Page[T], error) {
	page := Page[T]{Items: rows}
	if page.Items == nil {
		page.Items = []T{}
	}

	if len(rows) <= p.limit {
		return page, nil
	}

	page.Items = rows[:p.limit]

	at, id := key(&page.Items[p.limit-1])

	binding := p.binding
	token, err := cursor.Encode(at, id, &binding)
	if err != nil {
		return page, fmt.Errorf("handlers.makePage: %w", err)
	}

	page.NextPageToken = token

	return page, nil
}

func and(exprs ...sb.AsExpr) sb.AsExpr {
	var a []sb.AsExpr
	for _, e := range exprs {
		if e != nil {
			a = append(a, e)
		}
	}

	switch len(a) {
	case 0:
		return nil
	case 1:
		return a[0]
	default:
		return sb.BooleanOperator("and", a...)
	}
}
