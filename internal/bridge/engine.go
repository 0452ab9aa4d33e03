package bridge

import (
	"sync"

	"github.com/pmkit/logbridge/internal/registry"
	"github.com/pmkit/logbridge/internal/xlog"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

// Engine owns a handle registry and implements every boundary operation
// against it. One Engine is one independent core instance; tests create their
// own so handles never leak across cases.
type Engine struct {
	reg    *registry.Registry
	logger logpkg.Logger
}

// New returns an Engine with a no-op logger.
func New() *Engine {
	return NewWithLogger(logpkg.NewNopLogger())
}

// NewWithLogger returns an Engine that logs boundary failures through logger.
func NewWithLogger(logger logpkg.Logger) *Engine {
	return &Engine{reg: registry.New(), logger: logger}
}

// Handles reports the number of live handles. Useful for leak checks at
// teardown: every create/finalize must be paired with exactly one destroy.
func (e *Engine) Handles() int { return e.reg.Len() }

// DestroyAll drops every live handle. Test teardown only.
func (e *Engine) DestroyAll() { e.reg.Clear() }

// construction is the registry entry for an in-progress log: a fixed slot
// array whose count is decided at creation and immutable thereafter. A nil
// slot has never been populated. Distinct indices are written by distinct
// workers; the struct itself is never locked during population.
type construction struct {
	attrs xlog.Attributes
	slots []*xlog.Trace
}

// logHandle is the registry entry for a finalized log. The RWMutex arbitrates
// read-back against whole-log mutation: per-trace reads share the lock,
// mutation passes take it exclusively. Shape (trace count, per-trace event
// count) only changes under the exclusive lock.
type logHandle struct {
	mu  sync.RWMutex
	log *xlog.EventLog
}

// resolveConstruction fetches the construction behind id, failing with
// ErrNotFound for unknown ids and ErrWrongState for finalized logs.
func (e *Engine) resolveConstruction(id int64) (*construction, error) {
	obj, err := e.reg.Resolve(id)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*construction)
	if !ok {
		return nil, wrongStateErr(id, "construction")
	}
	return c, nil
}

// resolveLog fetches the finalized log behind id, failing with ErrNotFound
// for unknown ids and ErrWrongState for in-progress constructions.
func (e *Engine) resolveLog(id int64) (*logHandle, error) {
	obj, err := e.reg.Resolve(id)
	if err != nil {
		return nil, err
	}
	h, ok := obj.(*logHandle)
	if !ok {
		return nil, wrongStateErr(id, "finalized log")
	}
	return h, nil
}

var defaultOnce sync.Once
var defaultEngine *Engine

// Default returns the process-wide engine, created on first use. Callers that
// need isolation (tests, tools embedding several cores) should use New
// instead.
func Default() *Engine {
	defaultOnce.Do(func() { defaultEngine = New() })
	return defaultEngine
}
