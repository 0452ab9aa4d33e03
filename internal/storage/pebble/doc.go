// Package pebblestore provides a thin wrapper around Pebble with an fsync
// policy, batches, and point helpers. It backs the log archive; nothing in
// the boundary protocol itself touches disk.
package pebblestore
