package store

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"
)

// FileSnapshotter persists blobs as whole files under a directory, the
// default and spec-mandated backend (spec §6: "${HOME}/.config/antigravity-proxy/").
// Concurrent Load calls for the same key are coalesced with singleflight,
// mirroring the cache-refresh coalescing in the teacher's account selector.
type FileSnapshotter struct {
	dir    string
	group  singleflight.Group
}

// NewFileSnapshotter creates a snapshotter rooted at dir, creating it if
// it does not already exist.
func NewFileSnapshotter(dir string) (*FileSnapshotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileSnapshotter{dir: dir}, nil
}

func (f *FileSnapshotter) path(key string) string {
	return filepath.Join(f.dir, key)
}

// Save writes data to a temp file and renames it over the target, so a
// reader never observes a partially-written snapshot.
func (f *FileSnapshotter) Save(ctx context.Context, key string, data []byte) error {
	target := f.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Load reads the named blob. It returns ErrNotFound if the file has never
// been written.
func (f *FileSnapshotter) Load(ctx context.Context, key string) ([]byte, error) {
	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		data, err := os.ReadFile(f.path(key))
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
