package runtime

import (
	"os"
	"path/filepath"
	"testing"

	cfgpkg "github.com/pmkit/logbridge/internal/config"
	"github.com/pmkit/logbridge/internal/xes"
)

const tinyXES = `<log xes.version="1.0">
	<trace>
		<string key="concept:name" value="case-1"/>
		<event><string key="concept:name" value="a"/></event>
	</trace>
</log>`

func openTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Fsync = "never"
	rt, err := Open(Options{DataDir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenAndHealth(t *testing.T) {
	rt := openTestRuntime(t)
	if rt.Engine() == nil || rt.Archive() == nil {
		t.Fatalf("runtime wiring incomplete")
	}
	if err := rt.CheckHealth(); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestArchivePersistsAcrossRuntimes(t *testing.T) {
	dir := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.Fsync = "never"

	rt, err := Open(Options{DataDir: dir, Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	h, err := xes.ImportFile(writeTempXES(t), rt.Engine(), 1)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := rt.Archive().Save(rt.Engine(), "persisted", h); err != nil {
		t.Fatalf("save: %v", err)
	}
	rt.Engine().DestroyLog(h)
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt2, err := Open(Options{DataDir: dir, Config: cfg})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt2.Close()
	back, err := rt2.Archive().Load(rt2.Engine(), "persisted")
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	defer rt2.Engine().DestroyLog(back)
	count, err := rt2.Engine().TraceCount(back)
	if err != nil || count != 1 {
		t.Fatalf("got count %d err %v, want 1", count, err)
	}
}

func writeTempXES(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.xes")
	if err := os.WriteFile(path, []byte(tinyXES), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}
