package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"

	"github.com/pmkit/logbridge/internal/bridge"
	pebblestore "github.com/pmkit/logbridge/internal/storage/pebble"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

// ErrNoSuchLog is returned when the named log is not in the archive.
var ErrNoSuchLog = errors.New("archived log not found")

// Meta describes one archived log.
type Meta struct {
	Name       string `json:"name"`
	Traces     uint32 `json:"traces"`
	RawBytes   int    `json:"rawBytes"`
	StoredAtMs int64  `json:"storedAtMs"`
}

// Store persists finalized logs in Pebble, zstd-compressed.
type Store struct {
	db     *pebblestore.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger logpkg.Logger
}

// Open builds a Store over an already-open DB. The Store does not own the DB.
func Open(db *pebblestore.DB, logger logpkg.Logger) (*Store, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, enc: enc, dec: dec, logger: logger}, nil
}

// Close releases the compressor state. The underlying DB stays open.
func (s *Store) Close() {
	s.enc.Close()
	s.dec.Close()
}

// Save snapshots the log behind handle into the archive under name,
// overwriting any previous log with that name. The handle stays live.
func (s *Store) Save(eng *bridge.Engine, name string, handle int64) error {
	if name == "" {
		return errors.New("archive: name is required")
	}
	blob, err := eng.LogAsBytes(handle)
	if err != nil {
		return fmt.Errorf("archive %q: %w", name, err)
	}
	traces, err := eng.TraceCount(handle)
	if err != nil {
		return fmt.Errorf("archive %q: %w", name, err)
	}
	meta := Meta{Name: name, Traces: traces, RawBytes: len(blob), StoredAtMs: time.Now().UnixMilli()}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	compressed := s.enc.EncodeAll(blob, nil)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(KeyBlob(name), compressed, nil); err != nil {
		return err
	}
	if err := b.Set(KeyMeta(name), metaBytes, nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return fmt.Errorf("archive %q: commit: %w", name, err)
	}
	s.logger.Info("log archived",
		logpkg.Str("name", name),
		logpkg.Int("traces", int(traces)),
		logpkg.Int("raw_bytes", len(blob)),
		logpkg.Int("stored_bytes", len(compressed)))
	return nil
}

// Load materializes the named archived log into eng and returns its new
// handle. The caller owns the handle and must destroy it.
func (s *Store) Load(eng *bridge.Engine, name string) (int64, error) {
	compressed, err := s.db.Get(KeyBlob(name))
	if err != nil {
		if errors.Is(err, pebblestore.ErrKeyNotFound) {
			return 0, fmt.Errorf("%q: %w", name, ErrNoSuchLog)
		}
		return 0, err
	}
	blob, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return 0, fmt.Errorf("archive %q: decompress: %w", name, err)
	}
	return eng.CreateLogFromBytes(blob)
}

// Stat returns the metadata for one archived log.
func (s *Store) Stat(name string) (Meta, error) {
	b, err := s.db.Get(KeyMeta(name))
	if err != nil {
		if errors.Is(err, pebblestore.ErrKeyNotFound) {
			return Meta{}, fmt.Errorf("%q: %w", name, ErrNoSuchLog)
		}
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// List returns metadata for every archived log in name order.
func (s *Store) List() ([]Meta, error) {
	low := KeyMeta("")
	hi := append(append([]byte(nil), archivePrefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Meta
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) < len(metaSuffix) || string(key[len(key)-len(metaSuffix):]) != string(metaSuffix) {
			continue
		}
		var m Meta
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Delete removes the named log from the archive, reporting whether it was
// present.
func (s *Store) Delete(name string) (bool, error) {
	if _, err := s.db.Get(KeyMeta(name)); err != nil {
		if errors.Is(err, pebblestore.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(KeyMeta(name), nil); err != nil {
		return false, err
	}
	if err := b.Delete(KeyBlob(name), nil); err != nil {
		return false, err
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return false, err
	}
	s.logger.Info("archived log deleted", logpkg.Str("name", name))
	return true, nil
}
