package scratch

import (
	"context"
	"io"
)

// Store holds in-flight recording files between download and upload. Objects
// are short-lived: the worker removes them after a finished upload and on
// terminal failure, so scratch space never accumulates.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}
