package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pmkit/logbridge/internal/xlog"
)

func allVariants() xlog.Attributes {
	id := uuid.MustParse("a2b62f6e-0c0f-4a75-9c3e-5d6d1d2f9b10")
	attrs := xlog.Attributes{}
	attrs.Set("s", xlog.String("hello"))
	attrs.Set("ts", xlog.Timestamp(1724630400000))
	attrs.Set("n", xlog.Int(-42))
	attrs.Set("f", xlog.Float(3.25))
	attrs.Set("b", xlog.Bool(true))
	attrs.Set("id", xlog.ID(id))
	attrs.Set("l", xlog.List([]xlog.Attribute{
		{Key: "first", Value: xlog.Int(1)},
		{Key: "second", Value: xlog.String("two")},
	}))
	inner := xlog.Attributes{}
	inner.Set("nested", xlog.Float(0.5))
	attrs.Set("c", xlog.Container(inner))
	return attrs
}

func TestRoundTripAllVariants(t *testing.T) {
	attrs := allVariants()
	data, err := EncodeAttributes(attrs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeAttributes(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !attrs.Equal(back) {
		t.Fatalf("round trip changed attributes:\n in: %v\nout: %v", attrs, back)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	attrs := allVariants()
	a, err := EncodeAttributes(attrs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeAttributes(attrs.Clone())
	if err != nil {
		t.Fatalf("encode clone: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("same attributes encoded differently:\n%s\n%s", a, b)
	}
}

func TestWireShape(t *testing.T) {
	attrs := xlog.Attributes{}
	attrs.Set("age", xlog.Int(7))
	data, err := EncodeAttributes(attrs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"age":{"key":"age","value":{"type":"Int","content":7}}}`
	if string(data) != want {
		t.Fatalf("wire shape drifted:\ngot  %s\nwant %s", data, want)
	}
}

func TestDecodeRejectsMalformedValues(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"missing type", `{"k":{"key":"k","value":{"content":1}}}`},
		{"unknown tag", `{"k":{"key":"k","value":{"type":"Decimal","content":1}}}`},
		{"missing content", `{"k":{"key":"k","value":{"type":"Int"}}}`},
		{"int from string", `{"k":{"key":"k","value":{"type":"Int","content":"1"}}}`},
		{"date from float", `{"k":{"key":"k","value":{"type":"Date","content":1.5}}}`},
		{"bool from int", `{"k":{"key":"k","value":{"type":"Boolean","content":1}}}`},
		{"bad uuid", `{"k":{"key":"k","value":{"type":"ID","content":"not-a-uuid"}}}`},
		{"list not array", `{"k":{"key":"k","value":{"type":"List","content":{}}}}`},
		{"not an object", `[1,2]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeAttributes([]byte(tc.in))
			if !errors.Is(err, ErrSerialization) {
				t.Fatalf("got %v, want ErrSerialization", err)
			}
		})
	}
}

func TestDecodeBatchScopesErrorsPerElement(t *testing.T) {
	good := `{"a":{"key":"a","value":{"type":"String","content":"x"}}}`
	bad := `{"a":{"key":"a","value":{"type":"Int","content":"oops"}}}`
	payload := "[" + good + "," + bad + "," + good + "]"

	maps, err := DecodeBatch([]byte(payload))
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("got %v, want ErrSerialization", err)
	}
	if !strings.Contains(err.Error(), "element 1") {
		t.Fatalf("error does not name the failed element: %v", err)
	}
	if len(maps) != 3 {
		t.Fatalf("got %d elements want 3", len(maps))
	}
	if maps[0] == nil || maps[2] == nil {
		t.Fatalf("well-formed siblings were dropped")
	}
	if maps[1] != nil {
		t.Fatalf("failed element should be nil")
	}
}

func TestBatchRoundTripPreservesOrder(t *testing.T) {
	in := make([]xlog.Attributes, 4)
	for i := range in {
		m := xlog.Attributes{}
		m.Set("idx", xlog.Int(int64(i)))
		in[i] = m
	}
	data, err := EncodeBatch(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range out {
		v, ok := out[i].Get("idx")
		if !ok || v.IntVal() != int64(i) {
			t.Fatalf("element %d out of order: %v", i, out[i])
		}
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := DecodeAttributes([]byte("{nope")); !errors.Is(err, ErrSerialization) {
		t.Fatalf("got %v, want ErrSerialization", err)
	}
	if _, err := DecodeBatch([]byte(`{"not":"an array"}`)); !errors.Is(err, ErrSerialization) {
		t.Fatalf("got %v, want ErrSerialization", err)
	}
}
