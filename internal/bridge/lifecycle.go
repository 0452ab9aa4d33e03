package bridge

import (
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

// DestroyLog unregisters handle and releases the core's reference to its
// log, returning false if the handle is already gone or never existed; a
// double destroy is answered, never crashed on. Any later operation on the
// handle fails with ErrNotFound through the registry lookup; other live
// handles are unaffected.
//
// DestroyLog accepts construction handles too, so an abandoned construction
// can be reclaimed without finalizing it first.
func (e *Engine) DestroyLog(handle int64) bool {
	ok := e.reg.Unregister(handle)
	if ok {
		e.logger.Debug("handle destroyed", logpkg.Int64("handle", handle))
	}
	return ok
}
