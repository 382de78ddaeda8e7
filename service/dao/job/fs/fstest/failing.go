// Package fstest provides storage doubles for registry mirror tests.
package fstest

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

// ErrDiskFull is returned by a failing FailingFS upload.
var ErrDiskFull = errors.New("disk full")

// FailingFS delegates to afs until Fail is switched on, then rejects
// uploads.
type FailingFS struct {
	afs.Service
	Fail    atomic.Bool
	Uploads atomic.Int32
}

func (f *FailingFS) Upload(ctx context.Context, URL string, mode os.FileMode, reader io.Reader, options ...storage.Option) error {
	if f.Fail.Load() {
		return ErrDiskFull
	}
	f.Uploads.Add(1)
	return f.Service.Upload(ctx, URL, mode, reader, options...)
}

// New wraps a fresh afs service.
func New() *FailingFS {
	return &FailingFS{Service: afs.New()}
}
