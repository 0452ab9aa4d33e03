package bridge

import (
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pmkit/logbridge/internal/codec"
	"github.com/pmkit/logbridge/internal/xlog"
)

// CopyStats reports what a CopyLog round trip moved and how long each phase
// took.
type CopyStats struct {
	Traces      uint32
	ReadDur     time.Duration
	PopulateDur time.Duration
}

// CopyLog drives the full indexed protocol against itself: it reads every
// trace of src through TraceAsBytes, then builds a new log via CreateLog and
// PopulateSlot with the slot order shuffled across workers, and finalizes.
// It exercises exactly the path an external caller takes on both sides of
// the boundary, which makes it the benchmark body and a strong end-to-end
// check: the copy must be equal to the source trace for trace.
//
// workers caps the fan-out on both phases; 0 means NumCPU.
func (e *Engine) CopyLog(src int64, workers int) (int64, CopyStats, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var stats CopyStats

	count, err := e.TraceCount(src)
	if err != nil {
		return 0, stats, err
	}
	stats.Traces = count

	// Read-back fan-out.
	start := time.Now()
	payloads := make([][]byte, count)
	var rg errgroup.Group
	rg.SetLimit(workers)
	for i := uint32(0); i < count; i++ {
		i := i
		rg.Go(func() error {
			data, err := e.TraceAsBytes(src, i)
			if err != nil {
				return err
			}
			payloads[i] = data
			return nil
		})
	}
	if err := rg.Wait(); err != nil {
		return 0, stats, err
	}
	stats.ReadDur = time.Since(start)

	attrBytes, err := e.LogAttributes(src)
	if err != nil {
		return 0, stats, err
	}
	logAttrs, err := codec.DecodeAttributes(attrBytes)
	if err != nil {
		return 0, stats, err
	}
	delete(logAttrs, xlog.NumTracesKey)
	logAttrBytes, err := codec.EncodeAttributes(logAttrs)
	if err != nil {
		return 0, stats, err
	}

	dst, err := e.CreateLog(count, logAttrBytes)
	if err != nil {
		return 0, stats, err
	}

	// Populate fan-out in shuffled index order; the result must not depend
	// on completion order.
	order := rand.Perm(int(count))
	start = time.Now()
	var pg errgroup.Group
	pg.SetLimit(workers)
	for _, idx := range order {
		idx := uint32(idx)
		pg.Go(func() error {
			maps, err := codec.DecodeBatch(payloads[idx])
			if err != nil {
				return fmt.Errorf("trace %d: %w", idx, err)
			}
			if len(maps) == 0 {
				return fmt.Errorf("trace %d: empty batch", idx)
			}
			traceAttrs, err := codec.EncodeAttributes(maps[0])
			if err != nil {
				return err
			}
			eventBatch, err := codec.EncodeBatch(maps[1:])
			if err != nil {
				return err
			}
			return e.PopulateSlot(dst, idx, traceAttrs, eventBatch)
		})
	}
	if err := pg.Wait(); err != nil {
		e.DestroyLog(dst)
		return 0, stats, err
	}
	stats.PopulateDur = time.Since(start)

	id, err := e.FinalizeLog(dst)
	if err != nil {
		e.DestroyLog(dst)
		return 0, stats, err
	}
	return id, stats, nil
}
