package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const diskExt = ".cache"

// DiskCache implements persistent file-per-entry caching on an afero filesystem
type DiskCache struct {
	fs  afero.Fs
	dir string
	ttl time.Duration
}

// NewDiskCache creates a new disk cache rooted at dir. A nil fs uses the OS filesystem.
func NewDiskCache(fs afero.Fs, dir string, ttl time.Duration) *DiskCache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DiskCache{
		fs:  fs,
		dir: dir,
		ttl: ttl,
	}
}

type cacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get retrieves a value from the disk cache
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = c.fs.Remove(path)
		return nil, false
	}

	if entry.expired(time.Now()) {
		_ = c.fs.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// Set stores a value in the disk cache. A zero ttl uses the cache default;
// a negative one never expires.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	entry := cacheEntry{Data: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Write then rename so readers never see a partial entry
	path := c.path(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := c.fs.Rename(tmp, path); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("commit cache file: %w", err)
	}

	return nil
}

// Delete removes a value from the disk cache
func (c *DiskCache) Delete(key string) error {
	err := c.fs.Remove(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cached files
func (c *DiskCache) Clear() error {
	return c.fs.RemoveAll(c.dir)
}

// Prune deletes expired and unreadable entries and returns how many were removed
func (c *DiskCache) Prune() (int, error) {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	now := time.Now()
	removed := 0
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != diskExt {
			continue
		}
		path := filepath.Join(c.dir, info.Name())

		data, err := afero.ReadFile(c.fs, path)
		if err != nil {
			continue
		}
		var entry cacheEntry
		if json.Unmarshal(data, &entry) == nil && !entry.expired(now) {
			continue
		}
		if c.fs.Remove(path) == nil {
			removed++
		}
	}
	return removed, nil
}

// path generates the file path for a cache key
func (c *DiskCache) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(c.dir, name+diskExt)
}
