// Package registry maps opaque int64 handles to core-owned objects. The
// boundary only ever carries handles minted here, never addresses: a stale or
// forged id fails a table lookup with ErrNotFound instead of dereferencing
// freed memory. Handles are issued from a monotonic counter and never reused
// within a registry's lifetime.
package registry
