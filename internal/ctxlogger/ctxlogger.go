package ctxlogger

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// context registration

var loggerKey int

func WithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, &loggerKey, l)
}

func GetLogger(ctx context.Context) logrus.FieldLogger {
	if v := ctx.Value(&loggerKey); v != nil {
		return v.(logrus.FieldLogger)
	}

	return logrus.StandardLogger()
}

// WithFields returns a context whose logger carries the extra fields.
func WithFields(ctx context.Context, fields logrus.Fields) (context.Context, logrus.FieldLogger) {
	l := GetLogger(ctx).WithFields(fields)
	return WithLogger(ctx, l), l
}

// middleware

func Register(l logrus.FieldLogger) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithLogger(r.Context(), l)))
	}
}

type statusSizer interface {
	Status() int
	Size() int
}

// Log logs one line per request after it has been handled. The response
// writer must report status and size (negroni's does).
func Log() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		start := time.Now()

		ctx, l := WithFields(r.Context(), logrus.Fields{
			"http.method":     r.Method,
			"http.path":       r.URL.Path,
			"http.query":      r.URL.RawQuery,
			"http.user_agent": r.Header.Get("user-agent"),
		})

		defer func() {
			fields := logrus.Fields{
				"http.duration": time.Since(start),
			}

			if nrw, ok := rw.(statusSizer); ok {
				fields["http.status_code"] = nrw.Status()
				fields["http.response_size"] = nrw.Size()
			}

			l.WithFields(fields).Info("http request finished")
		}()

		next(rw, r.WithContext(ctx))
	}
}
