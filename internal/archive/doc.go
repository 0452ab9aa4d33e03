// Package archive persists finalized logs under caller-chosen names. It is a
// collaborator of the boundary, not part of it: it talks to the core only
// through the blob surface (LogAsBytes, CreateLogFromBytes) and stores
// zstd-compressed blobs plus a small metadata record in Pebble.
package archive
