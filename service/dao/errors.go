package dao

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// Common, reusable DAO errors. They wrap errdefs classes so that transports
// can map them without knowing the package.
var (
	// ErrNotFound is returned when the requested entity does not exist in the
	// underlying storage.
	ErrNotFound = fmt.Errorf("dao: not found: %w", errdefs.ErrNotFound)

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = fmt.Errorf("dao: invalid id: %w", errdefs.ErrInvalidArgument)

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = fmt.Errorf("dao: nil entity: %w", errdefs.ErrInvalidArgument)
)
