package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	UpstreamBase string
	UserAgent    string
	PageSize     int
	MaxPages     int

	// Minimum interval between consecutive requests per upstream stage.
	CatalogInterval  time.Duration
	DetailInterval   time.Duration
	CalendarInterval time.Duration
	RequestTimeout   time.Duration
	// SearchTimeout bounds one whole paced pipeline run.
	SearchTimeout time.Duration

	// Width of the per-place check stage. 1 keeps the strictly sequential
	// reference behavior.
	Workers int

	RedisAddr  string
	RedisDB    int
	RedisPass  string
	MySQLDSN   string
	CatalogTTL time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	ms := func(k string, def int) time.Duration {
		return time.Duration(atoi(k, def)) * time.Millisecond
	}
	c := Config{
		AppEnv:           env("APP_ENV", "prod"),
		HTTPAddr:         env("HTTP_ADDR", ":8080"),
		MetricsAddr:      env("METRICS_ADDR", ""),
		UpstreamBase:     env("UPSTREAM_BASE_URL", "https://book.naturstyrelsen.dk"),
		UserAgent:        env("UPSTREAM_USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"),
		PageSize:         atoi("CATALOG_PAGE_SIZE", 200),
		MaxPages:         atoi("CATALOG_MAX_PAGES", 500),
		CatalogInterval:  ms("CATALOG_INTERVAL_MS", 150),
		DetailInterval:   ms("DETAIL_INTERVAL_MS", 70),
		CalendarInterval: ms("CALENDAR_INTERVAL_MS", 250),
		RequestTimeout:   ms("REQUEST_TIMEOUT_MS", 30000),
		SearchTimeout:    time.Duration(atoi("SEARCH_TIMEOUT_SECONDS", 300)) * time.Second,
		Workers:          atoi("CHECK_WORKERS", 1),
		RedisAddr:        env("REDIS_ADDR", ""),
		RedisPass:        env("REDIS_PASSWORD", ""),
		RedisDB:          atoi("REDIS_DB", 0),
		MySQLDSN:         env("MYSQL_DSN", ""),
		CatalogTTL:       time.Duration(atoi("CATALOG_TTL_SECONDS", 300)) * time.Second,
	}
	if c.Workers < 1 {
		log.Warn().Int("workers", c.Workers).Msg("CHECK_WORKERS < 1, using 1")
		c.Workers = 1
	}
	if c.PageSize < 1 {
		c.PageSize = 200
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
