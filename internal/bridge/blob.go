package bridge

import (
	"github.com/pmkit/logbridge/internal/codec"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

// Whole-log blob path: one payload in, one payload out, no per-trace
// crossings. Kept as the documented fallback for small logs and for
// collaborators (archive, tooling) that want a complete log in one piece.
// The indexed protocol remains the required path for large logs.

// LogAsBytes returns the entire finalized log as a single blob.
func (e *Engine) LogAsBytes(handle int64) ([]byte, error) {
	h, err := e.resolveLog(handle)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return codec.EncodeLog(h.log)
}

// CreateLogFromBytes decodes a whole-log blob and registers it directly as a
// finalized log, skipping the construction phase. The returned handle has
// the same lifecycle obligations as one from FinalizeLog.
func (e *Engine) CreateLogFromBytes(blob []byte) (int64, error) {
	log, err := codec.DecodeLog(blob)
	if err != nil {
		return 0, err
	}
	id := e.reg.Register(&logHandle{log: log})
	e.logger.Debug("log created from blob",
		logpkg.Int64("handle", id), logpkg.Int("traces", len(log.Traces)))
	return id, nil
}
