package bridge

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pmkit/logbridge/internal/codec"
	"github.com/pmkit/logbridge/internal/xlog"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

// TraceCount returns the number of traces in the finalized log. The count
// never changes after finalize.
func (e *Engine) TraceCount(handle int64) (uint32, error) {
	h, err := e.resolveLog(handle)
	if err != nil {
		return 0, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return uint32(len(h.log.Traces)), nil
}

// TraceLength returns the number of events in the trace at index.
func (e *Engine) TraceLength(handle int64, index uint32) (uint32, error) {
	h, err := e.resolveLog(handle)
	if err != nil {
		return 0, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if int(index) >= len(h.log.Traces) {
		return 0, boundsErr(handle, index, uint32(len(h.log.Traces)))
	}
	return uint32(len(h.log.Traces[index].Events)), nil
}

// TraceLengths returns the event count of every trace in index order, letting
// the receiving side preallocate all per-trace buffers in one call.
func (e *Engine) TraceLengths(handle int64) ([]uint32, error) {
	h, err := e.resolveLog(handle)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	lengths := make([]uint32, len(h.log.Traces))
	for i, t := range h.log.Traces {
		lengths[i] = uint32(len(t.Events))
	}
	return lengths, nil
}

// LogAttributes returns the encoded log-level attribute map with the trace
// count injected under the reserved NumTracesKey. Receivers strip that key
// before treating the map as user data.
func (e *Engine) LogAttributes(handle int64) ([]byte, error) {
	h, err := e.resolveLog(handle)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	attrs := h.log.Attributes.Clone()
	count := len(h.log.Traces)
	h.mu.RUnlock()
	if attrs == nil {
		attrs = xlog.Attributes{}
	}
	attrs.Set(xlog.NumTracesKey, xlog.Int(int64(count)))
	return codec.EncodeAttributes(attrs)
}

// TraceAsBytes returns the batch encoding of one trace: element 0 the trace
// attributes, elements 1..N the event attribute maps in order, each carrying
// the event's identity under the reserved key. Safe to call concurrently for
// many indices from many readers as long as no whole-log mutation runs; the
// per-log lock enforces that exclusion.
func (e *Engine) TraceAsBytes(handle int64, index uint32) ([]byte, error) {
	h, err := e.resolveLog(handle)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if int(index) >= len(h.log.Traces) {
		return nil, boundsErr(handle, index, uint32(len(h.log.Traces)))
	}
	t := h.log.Traces[index]
	batch := make([]xlog.Attributes, 0, 1+len(t.Events))
	batch = append(batch, t.Attributes)
	for _, ev := range t.Events {
		batch = append(batch, ev.WireAttrs())
	}
	return codec.EncodeBatch(batch)
}

// AddStartEndMarkers prepends a synthetic start event and appends a synthetic
// end event to every trace, each carrying only the reserved activity name.
// Original events and their order are untouched between the two markers.
//
// The pass is not idempotent: a second call adds a second pair of markers.
// It runs entirely inside the core, fanned out across traces, and holds the
// log's exclusive lock so no read-back interleaves with it.
func (e *Engine) AddStartEndMarkers(handle int64) error {
	h, err := e.resolveLog(handle)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range h.log.Traces {
		t := &h.log.Traces[i]
		g.Go(func() error {
			events := make([]xlog.Event, 0, len(t.Events)+2)
			events = append(events, xlog.NewEvent(xlog.StartActivity))
			events = append(events, t.Events...)
			events = append(events, xlog.NewEvent(xlog.EndActivity))
			t.Events = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("marker pass: %w", err)
	}
	e.logger.Debug("start/end markers added", logpkg.Int64("handle", handle))
	return nil
}
