// Package cached keeps a local file copy of archived snapshots in front of
// a remote snapshot.Archive.
//
// Archived snapshots never change, so a cached copy stays valid until it
// is deleted through this wrapper or expires.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rbaliyan/exmdb/snapshot"
)

var _ snapshot.Archive = (*Archive)(nil)

// Archive wraps a snapshot.Archive with a file cache.
type Archive struct {
	backend  snapshot.Archive
	cacheDir string
	maxSize  int64
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	cacheSize int64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New wraps backend. Call Close to stop the background cleanup.
func New(backend snapshot.Archive, opts ...Option) (*Archive, error) {
	o := &options{
		cacheDir: os.TempDir(),
		maxSize:  DefaultMaxSize,
		ttl:      DefaultTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cacheDir := filepath.Join(o.cacheDir, "exmdb-snapshots")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	a := &Archive{
		backend:  backend,
		cacheDir: cacheDir,
		maxSize:  o.maxSize,
		ttl:      o.ttl,
		logger:   o.logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	a.calculateCacheSize()

	if o.ttl > 0 {
		go a.cleanupLoop()
	} else {
		close(a.done)
	}
	return a, nil
}

// Put archives snap on the backend and caches it under the returned URI.
func (a *Archive) Put(ctx context.Context, snap *snapshot.Snapshot) (string, error) {
	uri, err := a.backend.Put(ctx, snap)
	if err != nil {
		return "", err
	}
	if data, err := snapshot.Marshal(snap); err == nil {
		a.store(uri, data)
	}
	return uri, nil
}

// Load returns the cached copy of uri, or loads it from the backend and
// caches it.
func (a *Archive) Load(ctx context.Context, uri string) (*snapshot.Snapshot, error) {
	cachePath := a.path(uri)

	if info, err := os.Stat(cachePath); err == nil {
		if a.ttl == 0 || time.Since(info.ModTime()) < a.ttl {
			data, err := os.ReadFile(cachePath)
			if err == nil {
				if snap, err := snapshot.Unmarshal(data); err == nil {
					a.logger.Debug("cache hit", "uri", uri)
					return snap, nil
				}
			}
		}
		a.remove(cachePath, info.Size())
	}

	a.logger.Debug("cache miss", "uri", uri)
	snap, err := a.backend.Load(ctx, uri)
	if err != nil {
		return nil, err
	}
	if data, err := snapshot.Marshal(snap); err == nil {
		a.store(uri, data)
	}
	return snap, nil
}

// Delete removes uri from the cache and the backend.
func (a *Archive) Delete(ctx context.Context, uri string) error {
	cachePath := a.path(uri)
	if info, err := os.Stat(cachePath); err == nil {
		a.remove(cachePath, info.Size())
	}
	return a.backend.Delete(ctx, uri)
}

// ClearCache removes all cached files.
func (a *Archive) ClearCache() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.cacheDir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(a.cacheDir, entry.Name()))
		}
	}
	a.cacheSize = 0
	a.logger.Info("snapshot cache cleared")
	return nil
}

// Size returns the bytes currently cached.
func (a *Archive) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cacheSize
}

// Close stops the background cleanup. Cached files are kept.
func (a *Archive) Close() error {
	a.stopOnce.Do(func() { close(a.stop) })
	<-a.done
	return nil
}

func (a *Archive) path(uri string) string {
	h := sha256.Sum256([]byte(uri))
	return filepath.Join(a.cacheDir, hex.EncodeToString(h[:])+".json")
}

// store writes data through a temporary file so readers never see a
// partial snapshot.
func (a *Archive) store(uri string, data []byte) {
	size := int64(len(data))
	if !a.hasSpace(size) {
		a.logger.Debug("cache full, not caching", "uri", uri, "size", size)
		return
	}

	tmp, err := os.CreateTemp(a.cacheDir, "tmp-*")
	if err != nil {
		a.logger.Warn("failed to create temp file for caching", "error", err)
		return
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		a.logger.Warn("failed to write cache file", "write_error", werr, "close_error", cerr)
		return
	}

	cachePath := a.path(uri)
	var replaced int64
	if info, err := os.Stat(cachePath); err == nil {
		replaced = info.Size()
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		a.logger.Warn("failed to move temp file to cache", "error", err)
		return
	}
	a.updateCacheSize(size - replaced)
	a.logger.Debug("cached snapshot", "uri", uri, "size", size)
}

func (a *Archive) remove(path string, size int64) {
	if err := os.Remove(path); err == nil {
		a.updateCacheSize(-size)
	}
}

func (a *Archive) hasSpace(size int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cacheSize+size <= a.maxSize
}

func (a *Archive) updateCacheSize(delta int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cacheSize = max(a.cacheSize+delta, 0)
}

func (a *Archive) calculateCacheSize() {
	entries, err := os.ReadDir(a.cacheDir)
	if err != nil {
		a.logger.Warn("failed to calculate cache size", "error", err)
		return
	}
	var size int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, err := entry.Info(); err == nil {
			size += info.Size()
		}
	}
	a.mu.Lock()
	a.cacheSize = size
	a.mu.Unlock()
}

func (a *Archive) cleanupLoop() {
	defer close(a.done)
	ticker := time.NewTicker(a.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.cleanupExpired()
		}
	}
}

func (a *Archive) cleanupExpired() {
	entries, err := os.ReadDir(a.cacheDir)
	if err != nil {
		a.logger.Warn("failed to read cache dir for cleanup", "error", err)
		return
	}

	now := time.Now()
	var removed int
	var freed int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > a.ttl {
			if err := os.Remove(filepath.Join(a.cacheDir, entry.Name())); err == nil {
				removed++
				freed += info.Size()
			}
		}
	}

	if removed > 0 {
		a.updateCacheSize(-freed)
		a.logger.Info("snapshot cache cleanup completed", "removed", removed, "freed_bytes", freed)
	}
}
