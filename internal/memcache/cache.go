// Package memcache is a three-tier value cache: an in-process map, a gob
// artifact on disk, and finally the caller's compute function.
//
// Artifacts live in a single directory:
//
//	{dir}/{base}.expanded[.contig.C][.feature.F][.column.K][.strand.S][.distinct].gob
//
// Writes go to a temporary file that is renamed into place, and concurrent
// callers for one key share a single computation.
package memcache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CorruptionError reports an artifact that exists but cannot be decoded.
// Get treats it as a miss.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache artifact %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Cache holds computed values for the lifetime of the process and
// persists them under dir. An empty dir disables the disk tier.
type Cache struct {
	dir     string
	mem     *gocache.Cache
	group   singleflight.Group
	logger  *zap.Logger
	metrics *Metrics

	mu   sync.Mutex
	keys map[string]Key
}

// New creates a cache persisting artifacts under dir.
func New(dir string) (*Cache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	metrics, _ := NewMetrics(nil)
	return &Cache{
		dir:     dir,
		mem:     gocache.New(gocache.NoExpiration, 0),
		logger:  zap.NewNop(),
		metrics: metrics,
		keys:    make(map[string]Key),
	}, nil
}

// SetLogger sets the logger for cache events.
func (c *Cache) SetLogger(l *zap.Logger) {
	c.logger = l
}

// SetMetrics replaces the cache counters, e.g. with registered ones.
func (c *Cache) SetMetrics(m *Metrics) {
	c.metrics = m
}

// Dir returns the artifact directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the value for key from memory, then from disk, and otherwise
// calls compute, persists the result and keeps it in memory. compute runs at
// most once per key until the key is removed or the cache cleared.
func Get[T any](c *Cache, key Key, compute func() (T, error)) (T, error) {
	var zero T
	name := key.String()

	if v, ok := c.mem.Get(name); ok {
		if t, ok := v.(T); ok {
			c.metrics.Hits.WithLabelValues("memory").Inc()
			return t, nil
		}
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		if v, ok := c.mem.Get(name); ok {
			c.metrics.Hits.WithLabelValues("memory").Inc()
			return v, nil
		}
		c.remember(key)

		if c.dir != "" {
			path := key.Path(c.dir)
			var val T
			found, err := readArtifact(path, &val)
			if err != nil {
				c.metrics.Corrupted.Inc()
				c.logger.Warn("discarding unreadable cache artifact", zap.Error(err))
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
					c.logger.Warn("remove corrupt artifact", zap.String("path", path), zap.Error(rmErr))
				}
			} else if found {
				c.metrics.Hits.WithLabelValues("disk").Inc()
				c.mem.Set(name, val, gocache.NoExpiration)
				return val, nil
			}
		}

		c.metrics.Misses.Inc()
		val, err := compute()
		if err != nil {
			return nil, err
		}

		if c.dir != "" {
			path := key.Path(c.dir)
			if err := writeArtifact(path, val); err != nil {
				c.metrics.Writes.WithLabelValues("error").Inc()
				c.logger.Warn("failed to persist cache artifact", zap.String("path", path), zap.Error(err))
			} else {
				c.metrics.Writes.WithLabelValues("success").Inc()
				c.logger.Debug("wrote cache artifact", zap.String("path", path))
			}
		}
		c.mem.Set(name, val, gocache.NoExpiration)
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %s holds %T", name, v)
	}
	return t, nil
}

func (c *Cache) remember(key Key) {
	c.mu.Lock()
	c.keys[key.String()] = key
	c.mu.Unlock()
}

// Remove drops key from memory and deletes its artifact.
func (c *Cache) Remove(key Key) error {
	name := key.String()
	c.mem.Delete(name)
	c.mu.Lock()
	delete(c.keys, name)
	c.mu.Unlock()
	if c.dir == "" {
		return nil
	}
	if err := os.Remove(key.Path(c.dir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache artifact: %w", err)
	}
	return nil
}

// Clear deletes the artifacts of every key seen by this cache and empties
// the memory tier.
func (c *Cache) Clear() error {
	c.mu.Lock()
	keys := c.keys
	c.keys = make(map[string]Key)
	c.mu.Unlock()

	c.mem.Flush()
	if c.dir == "" {
		return nil
	}

	var errs []error
	for _, key := range keys {
		path := key.Path(c.dir)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		c.logger.Debug("removed cache artifact", zap.String("path", path))
	}
	return errors.Join(errs...)
}

// Len returns the number of values held in memory.
func (c *Cache) Len() int {
	return c.mem.ItemCount()
}

// readArtifact decodes path into dst. A missing or empty file reports
// found == false without error; an empty file is what an interrupted
// writer leaves behind.
func readArtifact(path string, dst any) (bool, error) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, &CorruptionError{Path: path, Err: err}
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(dst); err != nil {
		return false, &CorruptionError{Path: path, Err: err}
	}
	return true, nil
}

// writeArtifact encodes v to a temporary file next to path and renames it
// into place.
func writeArtifact(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
