package codec

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/pmkit/logbridge/internal/xlog"
)

// Whole-log blob form: the entire log as one payload, for callers that
// prefer a single crossing over the indexed per-trace protocol. Layout:
//
//	{"attributes": <map>, "traces": [{"attributes": <map>, "events": [<map>...]}...]}
//
// where every <map> is the tagged attribute encoding and event maps carry
// the reserved identity key. Fine for small logs; large logs should use the
// indexed protocol, which avoids one giant copy and parallelizes per trace.

type wireTrace struct {
	Attributes map[string]wireAttr   `json:"attributes"`
	Events     []map[string]wireAttr `json:"events"`
}

type wireLog struct {
	Attributes map[string]wireAttr `json:"attributes"`
	Traces     []wireTrace         `json:"traces"`
}

// EncodeLog encodes the whole log as one blob.
func EncodeLog(log *xlog.EventLog) ([]byte, error) {
	attrs, err := wireMap(log.Attributes)
	if err != nil {
		return nil, fmt.Errorf("log attributes: %w", err)
	}
	wl := wireLog{Attributes: attrs, Traces: make([]wireTrace, len(log.Traces))}
	for i, t := range log.Traces {
		ta, err := wireMap(t.Attributes)
		if err != nil {
			return nil, fmt.Errorf("trace %d attributes: %w", i, err)
		}
		wt := wireTrace{Attributes: ta, Events: make([]map[string]wireAttr, len(t.Events))}
		for j, ev := range t.Events {
			em, err := wireMap(ev.WireAttrs())
			if err != nil {
				return nil, fmt.Errorf("trace %d event %d: %w", i, j, err)
			}
			wt.Events[j] = em
		}
		wl.Traces[i] = wt
	}
	return json.Marshal(wl)
}

// DecodeLog decodes a whole-log blob, consuming reserved event identity keys.
func DecodeLog(data []byte) (*xlog.EventLog, error) {
	p := parsers.Get()
	defer parsers.Put(p)
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	attrsVal := root.Get("attributes")
	if attrsVal == nil {
		return nil, fmt.Errorf("%w: log blob missing attributes", ErrSerialization)
	}
	attrs, err := decodeMap(attrsVal)
	if err != nil {
		return nil, fmt.Errorf("log attributes: %w", err)
	}
	log := &xlog.EventLog{Attributes: attrs}
	tracesVal := root.Get("traces")
	if tracesVal == nil {
		return log, nil
	}
	traceArr, err := tracesVal.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: log blob traces is not an array", ErrSerialization)
	}
	log.Traces = make([]xlog.Trace, len(traceArr))
	for i, tv := range traceArr {
		t, err := decodeTrace(tv)
		if err != nil {
			return nil, fmt.Errorf("trace %d: %w", i, err)
		}
		log.Traces[i] = t
	}
	return log, nil
}

func decodeTrace(v *fastjson.Value) (xlog.Trace, error) {
	attrsVal := v.Get("attributes")
	if attrsVal == nil {
		return xlog.Trace{}, fmt.Errorf("%w: trace missing attributes", ErrSerialization)
	}
	attrs, err := decodeMap(attrsVal)
	if err != nil {
		return xlog.Trace{}, err
	}
	t := xlog.Trace{Attributes: attrs}
	eventsVal := v.Get("events")
	if eventsVal == nil {
		return t, nil
	}
	evArr, err := eventsVal.Array()
	if err != nil {
		return xlog.Trace{}, fmt.Errorf("%w: trace events is not an array", ErrSerialization)
	}
	t.Events = make([]xlog.Event, len(evArr))
	for j, ev := range evArr {
		m, err := decodeMap(ev)
		if err != nil {
			return xlog.Trace{}, fmt.Errorf("event %d: %w", j, err)
		}
		t.Events[j] = xlog.EventFromAttrs(m)
	}
	return t, nil
}
