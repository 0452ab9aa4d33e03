package archive

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - archive/{name}/m: metadata (JSON)
// - archive/{name}/b: compressed log blob

var (
	archivePrefix = []byte("archive/")
	metaSuffix    = []byte("/m")
	blobSuffix    = []byte("/b")
)

// KeyMeta builds the metadata key for an archived log.
func KeyMeta(name string) []byte {
	k := make([]byte, 0, len(archivePrefix)+len(name)+len(metaSuffix))
	k = append(k, archivePrefix...)
	k = append(k, name...)
	k = append(k, metaSuffix...)
	return k
}

// KeyBlob builds the blob key for an archived log.
func KeyBlob(name string) []byte {
	k := make([]byte, 0, len(archivePrefix)+len(name)+len(blobSuffix))
	k = append(k, archivePrefix...)
	k = append(k, name...)
	k = append(k, blobSuffix...)
	return k
}
