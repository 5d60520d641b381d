package scratch

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type diskStore struct {
	root string
}

// NewDisk returns a Store backed by a local directory. Suitable for a single
// worker instance; a shared backend is needed when several instances may
// resume each other's jobs.
func NewDisk(root string) Store {
	return &diskStore{root: root}
}

func (d *diskStore) path(name string) string {
	// Object names come from event data, keep them inside root.
	return filepath.Join(d.root, filepath.Base(name))
}

func (d *diskStore) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(d.root, os.ModePerm); err != nil {
		return 0, err
	}

	f, err := os.Create(d.path(name))
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(d.path(name))
		return 0, err
	}
	return n, nil
}

func (d *diskStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(d.path(name))
}

func (d *diskStore) Remove(ctx context.Context, name string) error {
	err := os.Remove(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
