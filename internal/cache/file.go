// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/wneessen/geo-loc/internal/location"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

var validKey = regexp.MustCompile(`^[a-z0-9_-]+$`)

// FileStore keeps one JSON file per key in a directory. The expiry is part of the file.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore returns a FileStore in dir. An empty dir selects geo-loc below the user
// cache directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine user cache directory: %w", err)
		}
		dir = filepath.Join(cacheDir, "geo-loc")
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the directory the store writes to.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid cache key: %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileStore) Get(_ context.Context, key string) (location.Fix, bool, error) {
	path, err := f.path(key)
	if err != nil {
		return location.Fix{}, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return location.Fix{}, false, nil
	}
	if err != nil {
		return location.Fix{}, false, fmt.Errorf("failed to read cache file: %w", err)
	}

	rec, fix, err := decode(data)
	if err != nil {
		return location.Fix{}, false, err
	}
	if !f.now().Before(rec.Expiry) {
		return location.Fix{}, false, nil
	}
	return fix, true, nil
}

// Set writes the fix to a temporary file and renames it into place.
func (f *FileStore) Set(_ context.Context, key string, fix location.Fix, ttl time.Duration) (err error) {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	data, err := encode(fix, f.now().Add(ttl))
	if err != nil {
		return err
	}
	if err = os.MkdirAll(f.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set cache file permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}
