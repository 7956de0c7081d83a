package cache

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileCache stores snapshots as JSON documents on disk, one file per key.
// Concurrent processes writing the same key are not coordinated; this is an
// accepted limitation of the single-instance deployment.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-backed store rooted at dir.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (fc *FileCache) Dir() string { return fc.dir }

// Read implements Store.
func (fc *FileCache) Read(key string, ttl time.Duration) (*Entry, bool) {
	data, err := os.ReadFile(fc.path(key))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if ttl > 0 && entry.Age(time.Now()) > ttl {
		return &entry, false // stale, returned for inspection only
	}
	return &entry, true
}

// Write implements Store. The snapshot is written to a temporary file and
// renamed into place so readers never observe a partial document.
func (fc *FileCache) Write(key string, data json.RawMessage) error {
	entry := Entry{Timestamp: time.Now().Unix(), Data: data}

	out, err := json.MarshalIndent(&entry, "", "  ")
	if err != nil {
		return err
	}

	path := fc.path(key)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (fc *FileCache) path(key string) string {
	return filepath.Join(fc.dir, sanitizeKey(key)+".json")
}

// sanitizeKey makes a key safe for use as a filename.
func sanitizeKey(key string) string {
	// Very long keys fall back to a hash to stay under filesystem limits.
	if len(key) > 200 {
		hash := md5.Sum([]byte(key))
		return fmt.Sprintf("hash_%x", hash)
	}

	unsafe := []string{"/", ":", "?", "&", "=", "#", "<", ">", "|", "*", "\""}
	result := key
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result
}
