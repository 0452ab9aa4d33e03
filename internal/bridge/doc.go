// Package bridge is the boundary surface of the core: every operation takes
// or returns opaque int64 handles and byte payloads in the tagged attribute
// encoding, nothing else. Construction fans populate calls over disjoint
// trace slots, finalize freezes the shape, read-back fans per-trace reads,
// and destroy is the single explicit reclamation point. A failed call aborts
// only itself; no error corrupts the registry or any other live handle.
package bridge
