// Package sqllog wraps a database/sql driver so statements are written to
// the context logger along with their duration and the calling stack.
package sqllog

import (
	"context"
	"database/sql/driver"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	proxy "github.com/shogo82148/go-sql-proxy"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/stackutil"
)

const maxStackDepth = 64

type Stats struct {
	Start    time.Time
	Duration time.Duration
	Stack    []runtime.Frame

	query     string
	queryText string
	queryArgs []driver.NamedValue
}

// Query returns the statement with its arguments substituted in.
func (s *Stats) Query() string {
	if s.query == "" && s.queryText != "" {
		s.query = printQuery(s.queryText, s.queryArgs)
	}

	return s.query
}

// Filter decides which statements get logged and which stack frames are
// worth showing next to them.
type Filter struct {
	// SlowerThan drops statements that finished faster than this.
	SlowerThan time.Duration
	// IgnoreFunctions drops statements issued from any of these functions.
	IgnoreFunctions []string
	// HidePackages removes frames from these packages from the logged stack.
	HidePackages []string
}

func (f Filter) collect(stack []runtime.Frame) bool {
	for _, name := range f.IgnoreFunctions {
		for _, frame := range stack {
			if frame.Function == name {
				return false
			}
		}
	}

	return true
}

func (f Filter) log(stats *Stats) bool {
	return f.SlowerThan == 0 || stats.Duration >= f.SlowerThan
}

func makeStats(ctx context.Context, filter Filter, query string, args []driver.NamedValue) (interface{}, error) {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return nil, err
	}

	stack := stackutil.GetStack(maxStackDepth, 2)
	if !filter.collect(stack) {
		return nil, nil
	}

	return &Stats{
		Start:     now,
		Stack:     stack,
		queryText: query,
		queryArgs: args,
	}, nil
}

func logStats(ctx context.Context, filter Filter, upstream error, qctx interface{}, prefix, message string) error {
	if upstream != nil {
		return upstream
	}

	stats, ok := qctx.(*Stats)
	if !ok || stats == nil {
		return nil
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return err
	}

	stats.Duration = now.Sub(stats.Start)

	if !filter.log(stats) {
		return nil
	}

	fields := logrus.Fields{
		prefix + ".start":    stats.Start.Format(time.RFC3339Nano),
		prefix + ".duration": stats.Duration,
	}
	if q := stats.Query(); q != "" {
		fields[prefix+".content"] = q
	}

	n := 0
	for _, frame := range stats.Stack {
		if stackutil.InPackage(frame, filter.HidePackages) {
			continue
		}

		fields[fmt.Sprintf("%s.stack.%02d", prefix, n)] = stackutil.FormatStackFrame(frame)
		n++
	}

	ctxlogger.GetLogger(ctx).WithFields(fields).Info(message)

	return nil
}

// New wraps a driver. Register the result under a new name with sql.Register
// and open connections through that name.
func New(wrapped driver.Driver, filter Filter) driver.Driver {
	return proxy.NewProxyContext(wrapped, &proxy.HooksContext{
		PreExec: func(ctx context.Context, stmt *proxy.Stmt, args []driver.NamedValue) (interface{}, error) {
			return makeStats(ctx, filter, stmt.QueryString, args)
		},
		PostExec: func(ctx context.Context, qctx interface{}, stmt *proxy.Stmt, args []driver.NamedValue, _ driver.Result, err error) error {
			return logStats(ctx, filter, err, qctx, "sql.exec", "sql exec")
		},
		PreQuery: func(ctx context.Context, stmt *proxy.Stmt, args []driver.NamedValue) (interface{}, error) {
			return makeStats(ctx, filter, stmt.QueryString, args)
		},
		PostQuery: func(ctx context.Context, qctx interface{}, stmt *proxy.Stmt, args []driver.NamedValue, _ driver.Rows, err error) error {
			return logStats(ctx, filter, err, qctx, "sql.query", "sql query")
		},
		PreBegin: func(ctx context.Context, conn *proxy.Conn) (interface{}, error) {
			return makeStats(ctx, filter, "", nil)
		},
		PostBegin: func(ctx context.Context, qctx interface{}, conn *proxy.Conn, err error) error {
			return logStats(ctx, filter, err, qctx, "sql.tx_begin", "sql tx begin")
		},
		PreCommit: func(ctx context.Context, tx *proxy.Tx) (interface{}, error) {
			return makeStats(ctx, filter, "", nil)
		},
		PostCommit: func(ctx context.Context, qctx interface{}, tx *proxy.Tx, err error) error {
			return logStats(ctx, filter, err, qctx, "sql.tx_commit", "sql tx commit")
		},
		PreRollback: func(ctx context.Context, tx *proxy.Tx) (interface{}, error) {
			return makeStats(ctx, filter, "", nil)
		},
		PostRollback: func(ctx context.Context, qctx interface{}, tx *proxy.Tx, err error) error {
			return logStats(ctx, filter, err, qctx, "sql.tx_rollback", "sql tx rollback")
		},
	})
}

// printQuery substitutes sqlite placeholders (?, ?NNN and $NNN) with their
// arguments and collapses whitespace. Placeholders inside quoted strings are
// left alone.
func printQuery(query string, args []driver.NamedValue) string {
	var b strings.Builder

	next := 0
	quoted := false
	space := false

	for i := 0; i < len(query); i++ {
		c := query[i]

		if c == '\'' {
			quoted = !quoted
		}

		if !quoted && unicode.IsSpace(rune(c)) {
			space = true
			continue
		}
		if space {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
		}

		if quoted || (c != '?' && c != '$') {
			b.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}

		var n int
		if j > i+1 {
			n, _ = strconv.Atoi(query[i+1 : j])
		} else if c == '?' {
			next++
			n = next
		}

		if n < 1 || n > len(args) {
			b.WriteString(query[i:j])
		} else {
			b.WriteString(printValue(args[n-1].Value))
		}

		i = j - 1
	}

	return b.String()
}

func printValue(v driver.Value) string {
	switch e := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(e)
	case int64:
		return strconv.FormatInt(e, 10)
	case float64:
		return strconv.FormatFloat(e, 'f', -1, 64)
	case time.Time:
		return "'" + e.Format(time.RFC3339Nano) + "'"
	case string:
		return quote(e)
	case []byte:
		return quote(string(e))
	default:
		return quote(fmt.Sprintf("%v", e))
	}
}

func quote(s string) string {
	for _, r := range s {
		if unicode.IsControl(r) || !unicode.IsPrint(r) {
			return fmt.Sprintf("[%d bytes of binary data]", len(s))
		}
	}

	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
