package archive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/pmkit/logbridge/internal/bridge"
	"github.com/pmkit/logbridge/internal/codec"
	pebblestore "github.com/pmkit/logbridge/internal/storage/pebble"
	"github.com/pmkit/logbridge/internal/xlog"
	logpkg "github.com/pmkit/logbridge/pkg/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(db, logpkg.NewNopLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func buildTestLog(t *testing.T, eng *bridge.Engine, traces int) int64 {
	t.Helper()
	logAttrs := xlog.Attributes{}
	logAttrs.Set("source", xlog.String("archive-test"))
	encAttrs, err := codec.EncodeAttributes(logAttrs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	h, err := eng.CreateLog(uint32(traces), encAttrs)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < traces; i++ {
		ta := xlog.Attributes{}
		ta.Set(xlog.ActivityKey, xlog.String("case"))
		ev := xlog.Attributes{}
		ev.Set(xlog.ActivityKey, xlog.String("step"))
		ev.Set(xlog.EventIDKey, xlog.ID(uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i)})))
		taB, _ := codec.EncodeAttributes(ta)
		batch, _ := codec.EncodeBatch([]xlog.Attributes{ev})
		if err := eng.PopulateSlot(h, uint32(i), taB, batch); err != nil {
			t.Fatalf("populate: %v", err)
		}
	}
	id, err := eng.FinalizeLog(h)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return id
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	eng := bridge.New()

	src := buildTestLog(t, eng, 3)
	defer eng.DestroyLog(src)
	if err := s.Save(eng, "orders", src); err != nil {
		t.Fatalf("save: %v", err)
	}

	back, err := s.Load(eng, "orders")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer eng.DestroyLog(back)

	want, err := eng.LogAsBytes(src)
	if err != nil {
		t.Fatalf("src bytes: %v", err)
	}
	got, err := eng.LogAsBytes(back)
	if err != nil {
		t.Fatalf("loaded bytes: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Fatalf("archive round trip changed the log")
	}

	meta, err := s.Stat("orders")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if meta.Traces != 3 || meta.RawBytes != len(want) {
		t.Fatalf("meta %+v does not match log (%d traces, %d bytes)", meta, 3, len(want))
	}
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)
	eng := bridge.New()
	if _, err := s.Load(eng, "ghost"); !errors.Is(err, ErrNoSuchLog) {
		t.Fatalf("got %v, want ErrNoSuchLog", err)
	}
	if _, err := s.Stat("ghost"); !errors.Is(err, ErrNoSuchLog) {
		t.Fatalf("stat: got %v, want ErrNoSuchLog", err)
	}
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	eng := bridge.New()

	for _, name := range []string{"b-log", "a-log"} {
		h := buildTestLog(t, eng, 1)
		if err := s.Save(eng, name, h); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		eng.DestroyLog(h)
	}

	metas, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("got %d entries want 2", len(metas))
	}
	// Pebble iterates keys in order, so names come back sorted.
	if metas[0].Name != "a-log" || metas[1].Name != "b-log" {
		t.Fatalf("got names %q %q", metas[0].Name, metas[1].Name)
	}

	ok, err := s.Delete("a-log")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = s.Delete("a-log")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if ok {
		t.Fatalf("second delete should report false")
	}

	metas, err = s.List()
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(metas) != 1 || metas[0].Name != "b-log" {
		t.Fatalf("delete left %v", metas)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	eng := bridge.New()

	first := buildTestLog(t, eng, 1)
	if err := s.Save(eng, "same", first); err != nil {
		t.Fatalf("save: %v", err)
	}
	eng.DestroyLog(first)

	second := buildTestLog(t, eng, 4)
	defer eng.DestroyLog(second)
	if err := s.Save(eng, "same", second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	meta, err := s.Stat("same")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if meta.Traces != 4 {
		t.Fatalf("got %d traces want 4 after overwrite", meta.Traces)
	}
}
