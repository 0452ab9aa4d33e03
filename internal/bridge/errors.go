package bridge

import (
	"errors"
	"fmt"

	"github.com/pmkit/logbridge/internal/codec"
	"github.com/pmkit/logbridge/internal/registry"
)

// Sentinels for the boundary error taxonomy. Callers match with errors.Is.
var (
	// ErrBounds reports a trace index outside [0, slot_count).
	ErrBounds = errors.New("trace index out of bounds")

	// ErrWrongState reports an operation against a handle in the wrong
	// lifecycle state, e.g. populating an already finalized log.
	ErrWrongState = errors.New("handle in wrong state for operation")

	// ErrNotFound is the registry's lookup failure. A destroyed handle fails
	// here; use-after-free never reaches freed memory.
	ErrNotFound = registry.ErrNotFound

	// ErrSerialization reports a malformed or type-mismatched attribute
	// payload. Scoped to the single call that carried it.
	ErrSerialization = codec.ErrSerialization

	// ErrConcurrentWriteHazard names the documented undefined outcome of two
	// workers populating the same slot. It is never returned at runtime; the
	// protocol relies on disjoint-index ownership and detecting a violation
	// would put an atomic on every slot write. Prevent it by caller
	// discipline.
	ErrConcurrentWriteHazard = errors.New("concurrent writes to one slot leave its content undefined")
)

func wrongStateErr(id int64, want string) error {
	return fmt.Errorf("handle %d is not a %s: %w", id, want, ErrWrongState)
}

func boundsErr(id int64, index, count uint32) error {
	return fmt.Errorf("handle %d: index %d with %d slots: %w", id, index, count, ErrBounds)
}
