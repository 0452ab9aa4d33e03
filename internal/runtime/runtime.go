package runtime

import (
	"errors"
	"time"

	"github.com/pmkit/logbridge/internal/archive"
	"github.com/pmkit/logbridge/internal/bridge"
	cfgpkg "github.com/pmkit/logbridge/internal/config"
	pebblestore "github.com/pmkit/logbridge/internal/storage/pebble"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Config  cfgpkg.Config
	Logger  logpkg.Logger
}

// Runtime wires the core engine, the archive store, and configuration for a
// single process.
type Runtime struct {
	db     *pebblestore.DB
	eng    *bridge.Engine
	arch   *archive.Store
	config cfgpkg.Config
	logger logpkg.Logger
}

// Open initializes storage and the core engine and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = opts.Config.DataDir
	}
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       dataDir,
		Fsync:         fsyncMode(opts.Config.Fsync),
		FsyncInterval: time.Duration(opts.Config.FsyncIntervalMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	arch, err := archive.Open(db, logger.WithComponent("archive"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Runtime{
		db:     db,
		eng:    bridge.NewWithLogger(logger.WithComponent("bridge")),
		arch:   arch,
		config: opts.Config,
		logger: logger,
	}, nil
}

// Close closes underlying resources. Live handles in the engine are dropped
// with the process; the archive is the durable part.
func (r *Runtime) Close() error {
	if r.arch != nil {
		r.arch.Close()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage health check.
func (r *Runtime) CheckHealth() error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Engine returns the boundary engine.
func (r *Runtime) Engine() *bridge.Engine { return r.eng }

// Archive returns the archive store.
func (r *Runtime) Archive() *archive.Store { return r.arch }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

func fsyncMode(s string) pebblestore.FsyncMode {
	switch s {
	case "never":
		return pebblestore.FsyncModeNever
	case "interval":
		return pebblestore.FsyncModeInterval
	case "always":
		return pebblestore.FsyncModeAlways
	default:
		return pebblestore.FsyncModeUnspecified
	}
}
