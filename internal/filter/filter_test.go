package filter

import (
	"testing"

	"github.com/pmkit/logbridge/internal/xlog"
)

func sampleTrace(activities ...string) xlog.Trace {
	attrs := xlog.Attributes{}
	attrs.Set("priority", xlog.Int(3))
	attrs.Set("region", xlog.String("eu"))
	t := xlog.Trace{Attributes: attrs}
	for _, a := range activities {
		t.Events = append(t.Events, xlog.NewEvent(a))
	}
	return t
}

func TestDisabledFilterAdmitsAll(t *testing.T) {
	f, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if f.Enabled() {
		t.Fatalf("empty expression should be disabled")
	}
	if !f.Eval(0, xlog.Trace{}) {
		t.Fatalf("disabled filter rejected a trace")
	}
}

func TestExpressions(t *testing.T) {
	tr := sampleTrace("register", "approve", "ship")
	cases := []struct {
		expr string
		want bool
	}{
		{"length > 2", true},
		{"length > 3", false},
		{"index == 7", true},
		{"'approve' in activities", true},
		{"'reject' in activities", false},
		{"activities[0] == 'register'", true},
		{"attrs.priority >= 3", true},
		{"attrs.region == 'us'", false},
		{"now_ms > 0", true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			f, err := New(tc.expr)
			if err != nil {
				t.Fatalf("compile %q: %v", tc.expr, err)
			}
			if got := f.Eval(7, tr); got != tc.want {
				t.Fatalf("%q: got %v want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := New("length >"); err == nil {
		t.Fatalf("unparsable expression should fail to compile")
	}
	if _, err := New("no_such_var == 1"); err == nil {
		t.Fatalf("unknown variable should fail the check")
	}
}

func TestEvalErrorsCountAsNonMatch(t *testing.T) {
	// Missing map key is a runtime error, not a compile error.
	f, err := New("attrs.missing == 'x'")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Eval(0, sampleTrace("a")) {
		t.Fatalf("eval error should count as non-match")
	}
}
