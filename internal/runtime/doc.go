// Package runtime wires storage, the archive, and the boundary engine into a
// single-process instance for the CLI and for embedders.
package runtime
