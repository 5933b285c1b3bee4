package cached

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultMaxSize = 256 << 20
	DefaultTTL     = 24 * time.Hour
)

type options struct {
	cacheDir string
	maxSize  int64
	ttl      time.Duration
	logger   *slog.Logger
}

// Option configures the cached archive.
type Option func(*options)

// WithCacheDir sets the parent directory of the cache.
// Default is the system temp directory.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.cacheDir = dir
		}
	}
}

// WithMaxSize sets the maximum cache size in bytes. When the cache is full
// new snapshots are not cached until old entries expire.
func WithMaxSize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.maxSize = size
		}
	}
}

// WithTTL sets how long a cached snapshot is served. Zero disables expiry
// and the background cleanup.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl >= 0 {
			o.ttl = ttl
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
