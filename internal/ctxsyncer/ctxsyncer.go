package ctxsyncer

import (
	"context"
	"net/http"

	"fknsrs.biz/p/ytcatalog/internal/syncer"
)

// context registration

var engineKey int

func WithEngine(ctx context.Context, e *syncer.Engine) context.Context {
	return context.WithValue(ctx, &engineKey, e)
}

func GetEngine(ctx context.Context) *syncer.Engine {
	if v := ctx.Value(&engineKey); v != nil {
		return v.(*syncer.Engine)
	}

	return nil
}

// middleware

func Register(e *syncer.Engine) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithEngine(r.Context(), e)))
	}
}
