package bridge

import (
	"fmt"

	"github.com/pmkit/logbridge/internal/codec"
	"github.com/pmkit/logbridge/internal/xlog"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

// CreateLog allocates a construction with slotCount empty trace slots and the
// decoded log-level attributes, registers it, and returns its handle.
//
// The handle must eventually be consumed by FinalizeLog; the log handle that
// FinalizeLog returns must in turn be paired with exactly one DestroyLog.
// An abandoned construction leaks until destroyed; the core performs no
// automatic collection.
func (e *Engine) CreateLog(slotCount uint32, logAttrs []byte) (int64, error) {
	attrs, err := codec.DecodeAttributes(logAttrs)
	if err != nil {
		return 0, fmt.Errorf("log attributes: %w", err)
	}
	c := &construction{
		attrs: attrs,
		slots: make([]*xlog.Trace, slotCount),
	}
	id := e.reg.Register(c)
	e.logger.Debug("log construction created",
		logpkg.Int64("handle", id), logpkg.Int("slots", int(slotCount)))
	return id, nil
}

// PopulateSlot decodes one trace (attributes plus its events, batch-encoded)
// and writes it into slots[index].
//
// Callers may invoke PopulateSlot concurrently for distinct indices from
// independent workers; that is the intended use. Concurrent calls for the
// same index are not supported and leave the slot's content undefined (see
// ErrConcurrentWriteHazard). Populating a slot twice sequentially overwrites
// it; that is a caller bug the core does not detect.
func (e *Engine) PopulateSlot(handle int64, index uint32, traceAttrs, eventBatch []byte) error {
	c, err := e.resolveConstruction(handle)
	if err != nil {
		return err
	}
	if int(index) >= len(c.slots) {
		return boundsErr(handle, index, uint32(len(c.slots)))
	}
	attrs, err := codec.DecodeAttributes(traceAttrs)
	if err != nil {
		return fmt.Errorf("trace %d attributes: %w", index, err)
	}
	eventMaps, err := codec.DecodeBatch(eventBatch)
	if err != nil {
		return fmt.Errorf("trace %d events: %w", index, err)
	}
	events := make([]xlog.Event, len(eventMaps))
	for i, m := range eventMaps {
		events[i] = xlog.EventFromAttrs(m)
	}
	// Disjoint-index ownership: this worker is the only writer of this slot,
	// so no lock is taken here.
	c.slots[index] = &xlog.Trace{Attributes: attrs, Events: events}
	return nil
}

// FinalizeLog consumes the construction behind handle and registers the
// finished, immutable-shape log, returning its new handle. Slots never
// populated become empty traces (no attributes, zero events) so partial
// builds stay inspectable. The construction handle is invalid afterwards;
// a second finalize fails with ErrNotFound.
//
// FinalizeLog must be called only after every PopulateSlot worker has
// returned; the caller's join is the synchronization point.
func (e *Engine) FinalizeLog(handle int64) (int64, error) {
	c, err := e.resolveConstruction(handle)
	if err != nil {
		return 0, err
	}
	traces := make([]xlog.Trace, len(c.slots))
	for i, slot := range c.slots {
		if slot == nil {
			traces[i] = xlog.Trace{Attributes: xlog.Attributes{}}
			continue
		}
		traces[i] = *slot
	}
	e.reg.Unregister(handle)
	id := e.reg.Register(&logHandle{log: &xlog.EventLog{Attributes: c.attrs, Traces: traces}})
	e.logger.Debug("log finalized",
		logpkg.Int64("construction", handle), logpkg.Int64("handle", id),
		logpkg.Int("traces", len(traces)))
	return id, nil
}
