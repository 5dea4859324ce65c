package zsave

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zframe"
)

// FileCache is a disk-backed, content-hash-keyed save store. Grounded on
// cacheFilePath/isCacheValid in selectstoryui/ui.go, which hash a story's
// download URL into a cache file name under a TTL; here the key is a save
// slot name (e.g. a save-game filename) instead of a URL, and TTL is
// optional -- a save game is meant to persist indefinitely, so TTL == 0
// disables expiry, unlike the story-list cache's fixed 7-day window.
type FileCache struct {
	dir string
	ttl time.Duration
}

// NewFileCache creates a FileCache rooted at dir. ttl == 0 means entries
// never expire.
func NewFileCache(dir string, ttl time.Duration) *FileCache {
	return &FileCache{dir: dir, ttl: ttl}
}

func (c *FileCache) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:]))
}

func (c *FileCache) valid(path string) bool {
	if c.ttl <= 0 {
		_, err := os.Stat(path)
		return err == nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < c.ttl
}

// Save writes state, marshaled, to the cache file for key.
func (c *FileCache) Save(key string, state RuntimeState) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return zerr.New(zerr.IncompatibleSave, "creating save directory %s: %v", c.dir, err)
	}
	if err := os.WriteFile(c.path(key), Marshal(state), 0644); err != nil {
		return zerr.New(zerr.IncompatibleSave, "writing save %s: %v", key, err)
	}
	return nil
}

// Load reads and unmarshals the cache file for key, reporting
// IncompatibleSave if it is missing, expired, or malformed.
func (c *FileCache) Load(key string) (RuntimeState, error) {
	path := c.path(key)
	if !c.valid(path) {
		return RuntimeState{}, zerr.New(zerr.IncompatibleSave, "no save found for %q", key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeState{}, zerr.New(zerr.IncompatibleSave, "reading save %q: %v", key, err)
	}
	return Unmarshal(data, zframe.DefaultMaxFrames, zframe.DefaultMaxEvalDepth)
}
