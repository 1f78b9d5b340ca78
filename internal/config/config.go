package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LevelList is a comma-separated list of log levels; "-" means none.
type LevelList []logrus.Level

func (a LevelList) MarshalText() ([]byte, error) {
	if len(a) == 0 {
		return []byte("-"), nil
	}

	names := make([]string, len(a))
	for i, l := range a {
		names[i] = l.String()
	}

	return []byte(strings.Join(names, ",")), nil
}

func (a *LevelList) UnmarshalText(d []byte) error {
	s := strings.TrimSpace(string(d))

	if s == "" || s == "-" {
		*a = LevelList{}
		return nil
	}

	var levels LevelList

	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		l, err := logrus.ParseLevel(e)
		if err != nil {
			return fmt.Errorf("config.LevelList.UnmarshalText: %w", err)
		}

		levels = append(levels, l)
	}

	*a = levels

	return nil
}

// LogQueries is "none", "all" or ">duration" to log only slow queries.
type LogQueries struct {
	Enabled    bool
	SlowerThan time.Duration
}

func (l LogQueries) String() string {
	switch {
	case !l.Enabled:
		return "none"
	case l.SlowerThan > 0:
		return ">" + l.SlowerThan.String()
	default:
		return "all"
	}
}

func (l LogQueries) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LogQueries) UnmarshalText(d []byte) error {
	s := strings.TrimSpace(string(d))

	switch {
	case s == "" || s == "none":
		*l = LogQueries{}
	case s == "all":
		*l = LogQueries{Enabled: true}
	case strings.HasPrefix(s, ">") && len(s) > 1:
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return fmt.Errorf("config.LogQueries.UnmarshalText: %w", err)
		}

		*l = LogQueries{Enabled: true, SlowerThan: d}
	default:
		return fmt.Errorf("config.LogQueries.UnmarshalText: unrecognised input %q; valid options are none, all, or >x where x is a duration", s)
	}

	return nil
}

type Config struct {
	Config               string        `name:"config" toml:"config" yaml:"config" help:"Config file location."`
	LogLevel             logrus.Level  `name:"log_level" toml:"log_level" yaml:"log_level" help:"Global log level."`
	LogDebugLevels       LevelList     `name:"log_debug_levels" toml:"log_debug_levels" yaml:"log_debug_levels" help:"Which log levels to include stack data on."`
	LogQueries           LogQueries    `name:"log_queries" toml:"log_queries" yaml:"log_queries" help:"Log SQL queries: none, all, or >duration."`
	LogSORM              bool          `name:"log_sorm" toml:"log_sorm" yaml:"log_sorm" help:"Log SORM queries."`
	ApplicationAddr      string        `name:"application_addr" toml:"application_addr" yaml:"application_addr" help:"Address to listen on for the HTTP API."`
	ApplicationDatabase  string        `name:"application_database" toml:"application_database" yaml:"application_database" help:"SQLite database location."`
	ApplicationCachePath string        `name:"application_cache_path" toml:"application_cache_path" yaml:"application_cache_path" help:"Location for the page fetch cache; empty disables it."`
	CacheMaxAge          time.Duration `name:"cache_max_age" toml:"cache_max_age" yaml:"cache_max_age" help:"How long cached pages stay fresh."`
	ApplicationMinify    bool          `name:"application_minify" toml:"application_minify" yaml:"application_minify" help:"Minify JSON output."`
	BackgroundWorkers    int           `name:"background_workers" toml:"background_workers" yaml:"background_workers" help:"How many background job workers to run."`
	YouTubeAPIKey        string        `name:"youtube_api_key" toml:"youtube_api_key" yaml:"youtube_api_key" help:"YouTube Data API key."`
	YouTubeBaseURL       string        `name:"youtube_base_url" toml:"youtube_base_url" yaml:"youtube_base_url" help:"YouTube Data API base URL."`
	RequestsPerSecond    float64       `name:"requests_per_second" toml:"requests_per_second" yaml:"requests_per_second" help:"Upper bound on YouTube API requests per second; 0 means unlimited."`
	SyncBatchSize        int           `name:"sync_batch_size" toml:"sync_batch_size" yaml:"sync_batch_size" help:"Videos written per transaction during sync."`
	SyncConcurrency      int           `name:"sync_concurrency" toml:"sync_concurrency" yaml:"sync_concurrency" help:"Concurrent remote lookups during sync."`
	SyncDetailsChunkSize int           `name:"sync_details_chunk_size" toml:"sync_details_chunk_size" yaml:"sync_details_chunk_size" help:"Video ids per details lookup when a playlist references unknown videos."`
	SyncInterval         time.Duration `name:"sync_interval" toml:"sync_interval" yaml:"sync_interval" help:"How often every channel is queued for sync; 0 disables the scheduler."`
}

func Default() Config {
	return Config{
		LogLevel:             logrus.InfoLevel,
		LogDebugLevels:       LevelList{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
		ApplicationAddr:      ":3000",
		ApplicationDatabase:  "ytcatalog.db",
		CacheMaxAge:          time.Hour * 24,
		ApplicationMinify:    true,
		BackgroundWorkers:    2,
		RequestsPerSecond:    5,
		SyncBatchSize:        100,
		SyncConcurrency:      8,
		SyncDetailsChunkSize: 50,
		SyncInterval:         time.Hour * 6,
	}
}

func (c Config) Validate() error {
	if c.ApplicationDatabase == "" {
		return fmt.Errorf("config.Config.Validate: application_database is required")
	}

	if c.BackgroundWorkers < 0 {
		return fmt.Errorf("config.Config.Validate: background_workers can't be negative")
	}

	if c.SyncBatchSize < 0 || c.SyncConcurrency < 0 || c.SyncDetailsChunkSize < 0 {
		return fmt.Errorf("config.Config.Validate: sync_batch_size, sync_concurrency and sync_details_chunk_size can't be negative")
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("config.Config.Validate: requests_per_second can't be negative")
	}

	return nil
}
