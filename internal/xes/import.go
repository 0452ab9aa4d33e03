package xes

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pmkit/logbridge/internal/bridge"
	"github.com/pmkit/logbridge/internal/codec"
	"github.com/pmkit/logbridge/internal/xlog"
)

// parsedTrace is one trace as it appears in the document, before it crosses
// the boundary.
type parsedTrace struct {
	attrs  xlog.Attributes
	events []xlog.Attributes
}

// parsedLog is the whole document.
type parsedLog struct {
	attrs  xlog.Attributes
	traces []parsedTrace
}

// Import parses an XES document and builds it into eng through the
// construction protocol: one create, populate fanned out over trace indices,
// one finalize. workers caps the fan-out; 0 means NumCPU. Returns the
// finalized log handle, owned by the caller.
func Import(r io.Reader, eng *bridge.Engine, workers int) (int64, error) {
	doc, err := parse(r)
	if err != nil {
		return 0, err
	}
	logAttrs, err := codec.EncodeAttributes(doc.attrs)
	if err != nil {
		return 0, err
	}
	h, err := eng.CreateLog(uint32(len(doc.traces)), logAttrs)
	if err != nil {
		return 0, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range doc.traces {
		i := i
		g.Go(func() error {
			t := doc.traces[i]
			traceAttrs, err := codec.EncodeAttributes(t.attrs)
			if err != nil {
				return fmt.Errorf("trace %d: %w", i, err)
			}
			batch, err := codec.EncodeBatch(t.events)
			if err != nil {
				return fmt.Errorf("trace %d: %w", i, err)
			}
			return eng.PopulateSlot(h, uint32(i), traceAttrs, batch)
		})
	}
	if err := g.Wait(); err != nil {
		// Leave no half-built construction behind.
		eng.DestroyLog(h)
		return 0, err
	}
	return eng.FinalizeLog(h)
}

// ImportFile is Import over a file path.
func ImportFile(path string, eng *bridge.Engine, workers int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Import(f, eng, workers)
}

// frame is one open container-like element during parsing: the log, a trace,
// an event, or a nested list/container attribute.
type frame struct {
	elem string // "log", "trace", "event", "list", "container"
	key  string // attribute key for list/container frames
	m    xlog.Attributes
	list []xlog.Attribute
}

func (f *frame) add(key string, v xlog.Value) {
	if f.elem == "list" {
		f.list = append(f.list, xlog.Attribute{Key: key, Value: v})
		return
	}
	f.m.Set(key, v)
}

func parse(r io.Reader) (parsedLog, error) {
	dec := xml.NewDecoder(r)
	doc := parsedLog{attrs: xlog.Attributes{}}
	var stack []*frame

	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return parsedLog{}, fmt.Errorf("xes: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "log":
				stack = append(stack, &frame{elem: "log", m: doc.attrs})
			case "trace":
				doc.traces = append(doc.traces, parsedTrace{attrs: xlog.Attributes{}})
				stack = append(stack, &frame{elem: "trace", m: doc.traces[len(doc.traces)-1].attrs})
			case "event":
				if len(doc.traces) == 0 {
					if err := dec.Skip(); err != nil {
						return parsedLog{}, fmt.Errorf("xes: %w", err)
					}
					continue
				}
				cur := &doc.traces[len(doc.traces)-1]
				attrs := xlog.Attributes{}
				cur.events = append(cur.events, attrs)
				stack = append(stack, &frame{elem: "event", m: attrs})
			case "extension", "classifier", "global":
				if err := dec.Skip(); err != nil {
					return parsedLog{}, fmt.Errorf("xes: %w", err)
				}
			case "list", "container":
				key := xmlAttr(t, "key")
				f := &frame{elem: t.Name.Local, key: key}
				if t.Name.Local == "container" {
					f.m = xlog.Attributes{}
				}
				stack = append(stack, f)
			case "values":
				// XES 2.0 wraps list members; transparent here.
			default:
				parent := top()
				if parent == nil {
					continue
				}
				key := xmlAttr(t, "key")
				v, ok, err := scalarValue(t.Name.Local, xmlAttr(t, "value"))
				if err != nil {
					return parsedLog{}, fmt.Errorf("xes: attribute %q: %w", key, err)
				}
				if ok {
					parent.add(key, v)
				}
				// Unknown tags and scalar children are skipped either way.
				if err := dec.Skip(); err != nil {
					return parsedLog{}, fmt.Errorf("xes: %w", err)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "log", "trace", "event":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case "list", "container":
				f := top()
				if f == nil {
					continue
				}
				stack = stack[:len(stack)-1]
				parent := top()
				if parent == nil {
					continue
				}
				if f.elem == "list" {
					parent.add(f.key, xlog.List(f.list))
				} else {
					parent.add(f.key, xlog.Container(f.m))
				}
			}
		}
	}
	return doc, nil
}

func xmlAttr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// scalarValue maps an XES attribute tag to a typed value. ok is false for
// tags that are not attributes (they are skipped, matching the reference
// importer's tolerance).
func scalarValue(tag, raw string) (xlog.Value, bool, error) {
	switch tag {
	case "string":
		return xlog.String(raw), true, nil
	case "date":
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return xlog.Value{}, false, fmt.Errorf("bad date %q", raw)
		}
		return xlog.Timestamp(ts.UnixMilli()), true, nil
	case "int":
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return xlog.Value{}, false, fmt.Errorf("bad int %q", raw)
		}
		return xlog.Int(i), true, nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return xlog.Value{}, false, fmt.Errorf("bad float %q", raw)
		}
		return xlog.Float(f), true, nil
	case "boolean":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return xlog.Value{}, false, fmt.Errorf("bad boolean %q", raw)
		}
		return xlog.Bool(b), true, nil
	case "id":
		id, err := uuid.Parse(raw)
		if err != nil {
			return xlog.Value{}, false, fmt.Errorf("bad id %q", raw)
		}
		return xlog.ID(id), true, nil
	default:
		return xlog.Value{}, false, nil
	}
}
