package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileCache is a single cached file that is replaced atomically, so readers
// never observe a partial download.
type FileCache struct {
	path string
	now  func() time.Time
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path, now: time.Now}
}

func (c *FileCache) Path() string {
	return c.path
}

// Age reports how long ago the file was last written. ok is false when the
// file does not exist.
func (c *FileCache) Age() (age time.Duration, ok bool, err error) {
	st, err := os.Stat(c.path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("stat %s: %w", c.path, err)
	}
	return c.now().Sub(st.ModTime()), true, nil
}

// Stale reports whether the file is missing or older than maxAge.
func (c *FileCache) Stale(maxAge time.Duration) (bool, error) {
	age, ok, err := c.Age()
	if err != nil {
		return false, err
	}
	return !ok || age > maxAge, nil
}

// Replace writes r to a temp file next to the target and renames it over the
// cached file.
func (c *FileCache) Replace(r io.Reader) (int64, error) {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("replacing %s: %w", c.path, err)
	}
	return n, nil
}
