package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni/v2"
	"go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"fknsrs.biz/p/ytcatalog/handlers"
	"fknsrs.biz/p/ytcatalog/internal/catalogjobs"
	"fknsrs.biz/p/ytcatalog/internal/config"
	"fknsrs.biz/p/ytcatalog/internal/configreader"
	"fknsrs.biz/p/ytcatalog/internal/ctxclock"
	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/ctxhttpclient"
	"fknsrs.biz/p/ytcatalog/internal/ctxjobqueue"
	"fknsrs.biz/p/ytcatalog/internal/ctxlogger"
	"fknsrs.biz/p/ytcatalog/internal/ctxsyncer"
	"fknsrs.biz/p/ytcatalog/internal/httpcache"
	"fknsrs.biz/p/ytcatalog/internal/httputil"
	"fknsrs.biz/p/ytcatalog/internal/jobqueue"
	"fknsrs.biz/p/ytcatalog/internal/logrusstackhook"
	"fknsrs.biz/p/ytcatalog/internal/migrations"
	"fknsrs.biz/p/ytcatalog/internal/sqllog"
	"fknsrs.biz/p/ytcatalog/internal/syncer"
	"fknsrs.biz/p/ytcatalog/internal/ytapi"
	"fknsrs.biz/p/ytcatalog/internal/ytpage"
)

func init() {
	sorm.SetParameterPrefix("?")
}

// how often the scheduler looks for channels that are due
const schedulerTick = time.Minute

var cfg = config.Default()

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

type simpleQueryLogger struct {
	logger logrus.FieldLogger
}

func (s *simpleQueryLogger) LogQuery(query string, args []interface{}) {
	s.logger.WithFields(logrus.Fields{
		"db.query":      query,
		"db.args.count": len(args),
	}).Debug("sorm query start")
}

func (s *simpleQueryLogger) LogQueryAfter(query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.duration":   duration,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	l := s.logger.WithFields(fields)
	if err != nil {
		l.WithError(err).Warn("sorm query failed")
		return
	}

	l.Info("sorm query finish")
}

func main() {
	if err := configreader.Read(os.Args[0], os.Args[1:], os.Environ(), &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()

	logger.SetLevel(cfg.LogLevel)
	if len(cfg.LogDebugLevels) > 0 {
		logger.AddHook(logrusstackhook.NewStackHook(cfg.LogDebugLevels, nil))
	}

	logger.WithFields(logrus.Fields{
		"config.config":                  cfg.Config,
		"config.log_level":               cfg.LogLevel,
		"config.log_debug_levels":        cfg.LogDebugLevels,
		"config.log_queries":             cfg.LogQueries,
		"config.log_sorm":                cfg.LogSORM,
		"config.application_addr":        cfg.ApplicationAddr,
		"config.application_database":    cfg.ApplicationDatabase,
		"config.application_cache_path":  cfg.ApplicationCachePath,
		"config.application_minify":      cfg.ApplicationMinify,
		"config.background_workers":      cfg.BackgroundWorkers,
		"config.requests_per_second":     cfg.RequestsPerSecond,
		"config.sync_batch_size":         cfg.SyncBatchSize,
		"config.sync_concurrency":        cfg.SyncConcurrency,
		"config.sync_details_chunk_size": cfg.SyncDetailsChunkSize,
		"config.sync_interval":           cfg.SyncInterval,
	}).Info("program starting")

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("program failed")
	}

	logger.Info("program finished")
}

func run(ctx context.Context, logger *logrus.Logger) error {
	if cfg.LogSORM {
		sorm.SetQueryLogger(&simpleQueryLogger{logger})
	}

	ctx = ctxlogger.WithLogger(ctx, logger)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewRealClock())

	dbDriver := "sqlite3"

	if cfg.LogQueries.Enabled {
		dbDriver = "sqlite3:logged"

		sql.Register(dbDriver, sqllog.New(&sqlite3.SQLiteDriver{}, sqllog.Filter{
			SlowerThan: cfg.LogQueries.SlowerThan,
			HidePackages: []string{
				// standard library
				"database/sql",
				"net/http",
				"runtime",
				// libraries
				"fknsrs.biz/p/sorm",
				"github.com/gorilla/mux",
				"github.com/shogo82148/go-sql-proxy",
				"github.com/urfave/negroni/v2",
				// middleware
				"fknsrs.biz/p/ytcatalog/internal/ctxclock",
				"fknsrs.biz/p/ytcatalog/internal/ctxdb",
				"fknsrs.biz/p/ytcatalog/internal/ctxjobqueue",
				"fknsrs.biz/p/ytcatalog/internal/ctxlogger",
				"fknsrs.biz/p/ytcatalog/internal/ctxsyncer",
				"fknsrs.biz/p/ytcatalog/internal/sqllog",
			},
			IgnoreFunctions: []string{
				"fknsrs.biz/p/ytcatalog/internal/jobqueue.(*Worker).Run",
			},
		}))
	}

	db, err := sql.Open(dbDriver, "file:"+cfg.ApplicationDatabase+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("run: could not open database: %w", err)
	}
	defer db.Close()

	version, err := migrations.Apply(ctx, db)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.WithField("db.schema_version", version).Info("database ready")

	ctx = ctxdb.WithDB(ctx, db)

	pageClient := &http.Client{Timeout: time.Second * 30}

	if cfg.ApplicationCachePath != "" {
		cacheDB, err := bbolt.Open(cfg.ApplicationCachePath, 0600, &bbolt.Options{Timeout: time.Second * 5})
		if err != nil {
			return fmt.Errorf("run: could not open cache: %w", err)
		}
		defer cacheDB.Close()

		pageClient.Transport = httpcache.NewTransport(nil, httpcache.NewBBoltStorage(cacheDB), httpcache.Options{
			MaxAge: cfg.CacheMaxAge,
		})
	}

	// youtube pages go through the cache; the data api never does, so
	// change detection always sees current values
	ctx = ctxhttpclient.WithHTTPClient(ctx, pageClient)

	catalog := ytapi.New(ytapi.Options{
		BaseURL:           cfg.YouTubeBaseURL,
		APIKey:            cfg.YouTubeAPIKey,
		RequestsPerSecond: cfg.RequestsPerSecond,
		HTTPClient:        &http.Client{Timeout: time.Second * 30},
	})

	engine := syncer.New(catalog, syncer.Options{
		BatchSize:        cfg.SyncBatchSize,
		Concurrency:      cfg.SyncConcurrency,
		DetailsChunkSize: cfg.SyncDetailsChunkSize,
	})
	ctx = ctxsyncer.WithEngine(ctx, engine)

	worker := jobqueue.NewWorker(nil)
	if err := worker.RegisterAll(catalogjobs.Functions(engine)); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	ctx = ctxjobqueue.WithWorker(ctx, worker)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runApplicationWorker(withWorkerName(ctx, "application"), cfg.ApplicationAddr)
	})

	for i := 0; i < cfg.BackgroundWorkers; i++ {
		ctx := withWorkerName(ctx, fmt.Sprintf("job_queue.%d", i))

		g.Go(func() error {
			ctxlogger.GetLogger(ctx).Info("running job queue worker")
			return worker.Run(ctx)
		})
	}

	g.Go(func() error {
		return catalogjobs.RunScheduler(withWorkerName(ctx, "scheduler"), worker, cfg.SyncInterval, schedulerTick)
	})

	return g.Wait()
}

func withWorkerName(ctx context.Context, name string) context.Context {
	ctx, _ = ctxlogger.WithFields(ctx, logrus.Fields{"worker.name": name})
	return ctx
}

func runApplicationWorker(ctx context.Context, addr string) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running application worker")

	m := handlers.NewRouter(&ytpage.Resolver{})

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxclock.Register(ctxclock.GetClock(ctx)))
	n.UseFunc(ctxdb.Register(ctxdb.GetDB(ctx)))
	n.UseFunc(ctxjobqueue.Register(ctxjobqueue.GetWorker(ctx)))
	n.UseFunc(ctxsyncer.Register(ctxsyncer.GetEngine(ctx)))
	n.UseFunc(ctxlogger.Log())

	if cfg.ApplicationMinify {
		n.UseFunc(httputil.Minify(httputil.NewMinifier()))
	}

	n.UseHandler(m)

	s := &http.Server{
		Addr:              addr,
		Handler:           n,
		ReadHeaderTimeout: time.Second * 10,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*10)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return ctx.Err()
	}
}
