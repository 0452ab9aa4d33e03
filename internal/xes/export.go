package xes

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pmkit/logbridge/internal/bridge"
	"github.com/pmkit/logbridge/internal/codec"
	"github.com/pmkit/logbridge/internal/filter"
	"github.com/pmkit/logbridge/internal/xlog"
)

// Export writes the log behind handle as an XES document. Traces are pulled
// through the per-trace read-back protocol in parallel, then written in index
// order. A non-empty filter drops traces it rejects; indices keep referring
// to the source log. workers caps the fan-out; 0 means NumCPU.
func Export(w io.Writer, eng *bridge.Engine, handle int64, f filter.TraceFilter, workers int) error {
	attrBytes, err := eng.LogAttributes(handle)
	if err != nil {
		return err
	}
	logAttrs, err := codec.DecodeAttributes(attrBytes)
	if err != nil {
		return err
	}
	// The trace count travels as a synthetic attribute; strip it before
	// treating the map as user data.
	delete(logAttrs, xlog.NumTracesKey)

	count, err := eng.TraceCount(handle)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	traces := make([]*xlog.Trace, count)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := uint32(0); i < count; i++ {
		i := i
		g.Go(func() error {
			data, err := eng.TraceAsBytes(handle, i)
			if err != nil {
				return err
			}
			maps, err := codec.DecodeBatch(data)
			if err != nil {
				return fmt.Errorf("trace %d: %w", i, err)
			}
			t := xlog.TraceFromBatch(maps)
			if f.Eval(int(i), t) {
				traces[i] = &t
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	logStart := xml.StartElement{
		Name: xml.Name{Local: "log"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xes.version"}, Value: "1.0"}},
	}
	if err := enc.EncodeToken(logStart); err != nil {
		return err
	}
	if err := writeAttrs(enc, logAttrs); err != nil {
		return err
	}
	for _, t := range traces {
		if t == nil {
			continue
		}
		if err := writeTrace(enc, t); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(logStart.End()); err != nil {
		return err
	}
	return enc.Flush()
}

// ExportFile is Export into a freshly created file.
func ExportFile(path string, eng *bridge.Engine, handle int64, f filter.TraceFilter, workers int) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Export(out, eng, handle, f, workers); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeTrace(enc *xml.Encoder, t *xlog.Trace) error {
	start := xml.StartElement{Name: xml.Name{Local: "trace"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := writeAttrs(enc, t.Attributes); err != nil {
		return err
	}
	for i := range t.Events {
		evStart := xml.StartElement{Name: xml.Name{Local: "event"}}
		if err := enc.EncodeToken(evStart); err != nil {
			return err
		}
		if err := writeAttrs(enc, t.Events[i].Attributes); err != nil {
			return err
		}
		if err := enc.EncodeToken(evStart.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// writeAttrs writes a map in sorted key order so output is deterministic.
func writeAttrs(enc *xml.Encoder, attrs xlog.Attributes) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeAttr(enc, attrs[k]); err != nil {
			return err
		}
	}
	return nil
}

func writeAttr(enc *xml.Encoder, attr xlog.Attribute) error {
	v := attr.Value
	keyAttr := xml.Attr{Name: xml.Name{Local: "key"}, Value: attr.Key}
	scalar := func(tag, value string) error {
		el := xml.StartElement{
			Name: xml.Name{Local: tag},
			Attr: []xml.Attr{keyAttr, {Name: xml.Name{Local: "value"}, Value: value}},
		}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		return enc.EncodeToken(el.End())
	}
	switch v.Kind() {
	case xlog.KindString:
		return scalar("string", v.StringVal())
	case xlog.KindTimestamp:
		ts := time.UnixMilli(v.TimestampMs()).UTC()
		return scalar("date", ts.Format("2006-01-02T15:04:05.000Z07:00"))
	case xlog.KindInt:
		return scalar("int", fmt.Sprintf("%d", v.IntVal()))
	case xlog.KindFloat:
		return scalar("float", fmt.Sprintf("%g", v.FloatVal()))
	case xlog.KindBoolean:
		return scalar("boolean", fmt.Sprintf("%t", v.BoolVal()))
	case xlog.KindID:
		return scalar("id", v.IDVal().String())
	case xlog.KindList:
		el := xml.StartElement{Name: xml.Name{Local: "list"}, Attr: []xml.Attr{keyAttr}}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		for _, item := range v.ListVal() {
			if err := writeAttr(enc, item); err != nil {
				return err
			}
		}
		return enc.EncodeToken(el.End())
	case xlog.KindContainer:
		el := xml.StartElement{Name: xml.Name{Local: "container"}, Attr: []xml.Attr{keyAttr}}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		if err := writeAttrs(enc, v.ContainerVal()); err != nil {
			return err
		}
		return enc.EncodeToken(el.End())
	}
	return nil
}
