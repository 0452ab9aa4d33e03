package xes

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pmkit/logbridge/internal/bridge"
	"github.com/pmkit/logbridge/internal/codec"
	"github.com/pmkit/logbridge/internal/filter"
	"github.com/pmkit/logbridge/internal/xlog"
)

const sampleXES = `<?xml version="1.0" encoding="UTF-8"?>
<log xes.version="1.0">
	<extension name="Concept" prefix="concept" uri="http://www.xes-standard.org/concept.xesext"/>
	<string key="concept:name" value="orders"/>
	<int key="schema" value="2"/>
	<trace>
		<string key="concept:name" value="case-1"/>
		<container key="meta">
			<string key="origin" value="web"/>
		</container>
		<event>
			<string key="concept:name" value="register"/>
			<date key="time:timestamp" value="2024-08-26T10:00:00.000Z"/>
			<boolean key="manual" value="false"/>
		</event>
		<event>
			<string key="concept:name" value="approve"/>
			<float key="amount" value="12.5"/>
			<list key="tags">
				<string key="t" value="vip"/>
				<string key="t" value="eu"/>
			</list>
		</event>
	</trace>
	<trace>
		<string key="concept:name" value="case-2"/>
		<event>
			<string key="concept:name" value="register"/>
		</event>
	</trace>
</log>
`

func TestImport(t *testing.T) {
	eng := bridge.New()
	h, err := Import(strings.NewReader(sampleXES), eng, 2)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	defer eng.DestroyLog(h)

	lengths, err := eng.TraceLengths(h)
	if err != nil {
		t.Fatalf("lengths: %v", err)
	}
	if len(lengths) != 2 || lengths[0] != 2 || lengths[1] != 1 {
		t.Fatalf("got lengths %v want [2 1]", lengths)
	}

	attrBytes, err := eng.LogAttributes(h)
	if err != nil {
		t.Fatalf("log attrs: %v", err)
	}
	logAttrs, err := codec.DecodeAttributes(attrBytes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, _ := logAttrs.Get("schema"); v.IntVal() != 2 {
		t.Fatalf("log attribute lost: %v", logAttrs)
	}

	data, err := eng.TraceAsBytes(h, 0)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	maps, err := codec.DecodeBatch(data)
	if err != nil {
		t.Fatalf("decode trace: %v", err)
	}
	meta, ok := maps[0].Get("meta")
	if !ok || meta.Kind() != xlog.KindContainer {
		t.Fatalf("container attribute lost: %v", maps[0])
	}
	origin, _ := meta.ContainerVal().Get("origin")
	if origin.StringVal() != "web" {
		t.Fatalf("nested attribute lost: %v", meta)
	}
	ts, _ := maps[1].Get("time:timestamp")
	if ts.Kind() != xlog.KindTimestamp || ts.TimestampMs() != 1724666400000 {
		t.Fatalf("timestamp decoded wrong: %v", ts)
	}
	tags, _ := maps[2].Get("tags")
	if tags.Kind() != xlog.KindList || len(tags.ListVal()) != 2 {
		t.Fatalf("list attribute lost: %v", tags)
	}
}

func TestExportRoundTrip(t *testing.T) {
	eng := bridge.New()
	h, err := Import(strings.NewReader(sampleXES), eng, 0)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	defer eng.DestroyLog(h)

	var first bytes.Buffer
	if err := Export(&first, eng, h, filter.TraceFilter{}, 0); err != nil {
		t.Fatalf("export: %v", err)
	}

	// Re-import the exported document and export again; the texts must agree
	// since export writes keys in sorted order.
	h2, err := Import(bytes.NewReader(first.Bytes()), eng, 0)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	defer eng.DestroyLog(h2)
	var second bytes.Buffer
	if err := Export(&second, eng, h2, filter.TraceFilter{}, 0); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("export not stable across round trip:\n%s\n---\n%s", first.String(), second.String())
	}
	if strings.Contains(first.String(), xlog.EventIDKey) {
		t.Fatalf("internal identity key leaked into XES output")
	}
}

func TestExportFilter(t *testing.T) {
	eng := bridge.New()
	h, err := Import(strings.NewReader(sampleXES), eng, 0)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	defer eng.DestroyLog(h)

	f, err := filter.New(`'approve' in activities`)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	var out bytes.Buffer
	if err := Export(&out, eng, h, f, 0); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := strings.Count(out.String(), "<trace>"); got != 1 {
		t.Fatalf("filter kept %d traces want 1:\n%s", got, out.String())
	}
	if !strings.Contains(out.String(), `value="case-1"`) {
		t.Fatalf("wrong trace kept:\n%s", out.String())
	}
}

func TestImportMalformed(t *testing.T) {
	eng := bridge.New()
	if _, err := Import(strings.NewReader("<log><trace>"), eng, 0); err == nil {
		t.Fatalf("truncated document should fail")
	}
	if _, err := Import(strings.NewReader(`<log><trace><event><int key="n" value="NaN"/></event></trace></log>`), eng, 0); err == nil {
		t.Fatalf("bad int literal should fail")
	}
	if eng.Handles() != 0 {
		t.Fatalf("failed import leaked %d handles", eng.Handles())
	}
}
