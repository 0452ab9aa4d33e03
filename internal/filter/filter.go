// Package filter compiles CEL predicates over traces, for selecting traces
// during export and inspection without pulling a whole log to the caller.
package filter

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/pmkit/logbridge/internal/xlog"
)

// TraceFilter wraps a compiled CEL program evaluated once per trace. When
// built from an empty expression it is disabled and admits everything.
type TraceFilter struct {
	prog    cel.Program
	enabled bool
}

// New compiles expr. Available variables:
//
//	index      int    : trace index in the log
//	length     int    : number of events in the trace
//	attrs      dyn    : trace attributes as plain values
//	activities list   : concept:name of each event, in order
//	now_ms     int    : current time in epoch milliseconds
func New(expr string) (TraceFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return TraceFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("index", cel.IntType),
		cel.Variable("length", cel.IntType),
		cel.Variable("attrs", cel.DynType),
		cel.Variable("activities", cel.ListType(cel.StringType)),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return TraceFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return TraceFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return TraceFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return TraceFilter{}, err
	}
	return TraceFilter{prog: prog, enabled: true}, nil
}

// Enabled reports whether the filter carries an expression.
func (f TraceFilter) Enabled() bool { return f.enabled }

// Eval evaluates the expression against one trace. When disabled, returns
// true. Evaluation errors count as non-matches.
func (f TraceFilter) Eval(index int, t xlog.Trace) bool {
	if !f.enabled {
		return true
	}
	activities := make([]string, 0, len(t.Events))
	for _, ev := range t.Events {
		if v, ok := ev.Attributes.Get(xlog.ActivityKey); ok && v.Kind() == xlog.KindString {
			activities = append(activities, v.StringVal())
		}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"index":      int64(index),
		"length":     int64(len(t.Events)),
		"attrs":      plainMap(t.Attributes),
		"activities": activities,
		"now_ms":     time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// plainMap lowers typed attributes to plain values for CEL's dyn access.
func plainMap(attrs xlog.Attributes) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, attr := range attrs {
		out[k] = plainValue(attr.Value)
	}
	return out
}

func plainValue(v xlog.Value) any {
	switch v.Kind() {
	case xlog.KindString:
		return v.StringVal()
	case xlog.KindTimestamp:
		return v.TimestampMs()
	case xlog.KindInt:
		return v.IntVal()
	case xlog.KindFloat:
		return v.FloatVal()
	case xlog.KindBoolean:
		return v.BoolVal()
	case xlog.KindID:
		return v.IDVal().String()
	case xlog.KindList:
		items := make([]any, len(v.ListVal()))
		for i, a := range v.ListVal() {
			items[i] = plainValue(a.Value)
		}
		return items
	case xlog.KindContainer:
		return plainMap(v.ContainerVal())
	default:
		return nil
	}
}
