// Package xlog defines the in-core event log model: a log is an ordered
// sequence of traces, a trace an ordered sequence of events, and every level
// carries a map of typed attributes. The model is the unit of ownership for
// the boundary protocol; callers outside the core never hold these types
// directly, only handles resolved through the registry.
package xlog
