package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps one <key>.json file per entry under Dir.
type FileStore struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the directory and 0600 on
	// files.
	StrictPerms bool
}

func (c *FileStore) modes() (dir, file os.FileMode) {
	if c.StrictPerms {
		return 0o700, 0o600
	}
	return 0o755, 0o644
}

func (c *FileStore) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	dirMode, _ := c.modes()
	if err := os.MkdirAll(c.Dir, dirMode); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if !c.StrictPerms {
		return nil
	}
	// MkdirAll leaves an existing directory's mode alone.
	return os.Chmod(c.Dir, dirMode)
}

func (c *FileStore) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns cached bytes if present and refreshes the entry's mtime so age
// based purging keeps recently used entries.
func (c *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes bytes through a temp file and rename so readers never observe
// a partial entry.
func (c *FileStore) Save(_ context.Context, key string, data []byte) (err error) {
	if err := c.ensureDir(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache entry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	_, fileMode := c.modes()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), fileMode)
	}
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp.Name(), c.pathFor(key))
}
