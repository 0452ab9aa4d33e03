package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/valyala/fastjson"

	"github.com/pmkit/logbridge/internal/xlog"
)

// ErrSerialization marks a payload that does not conform to the tagged
// attribute schema: unknown type tag, or content that cannot be coerced to
// the declared type. It says nothing about sibling maps in a batch.
var ErrSerialization = errors.New("attribute serialization error")

var parsers fastjson.ParserPool

// wireValue and wireAttr mirror the tagged schema for encoding.
type wireValue struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

type wireAttr struct {
	Key   string    `json:"key"`
	Value wireValue `json:"value"`
}

// EncodeAttributes encodes one attribute map.
func EncodeAttributes(attrs xlog.Attributes) ([]byte, error) {
	m, err := wireMap(attrs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// EncodeBatch encodes an ordered sequence of attribute maps as one payload.
func EncodeBatch(maps []xlog.Attributes) ([]byte, error) {
	out := make([]map[string]wireAttr, len(maps))
	for i, attrs := range maps {
		m, err := wireMap(attrs)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = m
	}
	return json.Marshal(out)
}

func wireMap(attrs xlog.Attributes) (map[string]wireAttr, error) {
	m := make(map[string]wireAttr, len(attrs))
	for k, attr := range attrs {
		wa, err := encodeAttr(attr)
		if err != nil {
			return nil, err
		}
		m[k] = wa
	}
	return m, nil
}

func encodeAttr(attr xlog.Attribute) (wireAttr, error) {
	wv, err := encodeValue(attr.Value)
	if err != nil {
		return wireAttr{}, fmt.Errorf("key %q: %w", attr.Key, err)
	}
	return wireAttr{Key: attr.Key, Value: wv}, nil
}

func encodeValue(v xlog.Value) (wireValue, error) {
	var content any
	switch v.Kind() {
	case xlog.KindString:
		content = v.StringVal()
	case xlog.KindTimestamp:
		content = v.TimestampMs()
	case xlog.KindInt:
		content = v.IntVal()
	case xlog.KindFloat:
		content = v.FloatVal()
	case xlog.KindBoolean:
		content = v.BoolVal()
	case xlog.KindID:
		content = v.IDVal().String()
	case xlog.KindList:
		items := make([]wireAttr, len(v.ListVal()))
		for i, a := range v.ListVal() {
			wa, err := encodeAttr(a)
			if err != nil {
				return wireValue{}, err
			}
			items[i] = wa
		}
		content = items
	case xlog.KindContainer:
		m, err := wireMap(v.ContainerVal())
		if err != nil {
			return wireValue{}, err
		}
		content = m
	default:
		return wireValue{}, fmt.Errorf("%w: unencodable kind %d", ErrSerialization, v.Kind())
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return wireValue{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return wireValue{Type: v.Kind().String(), Content: raw}, nil
}

// DecodeAttributes decodes one attribute map. The returned error wraps
// ErrSerialization and is scoped to this map only.
func DecodeAttributes(data []byte) (xlog.Attributes, error) {
	p := parsers.Get()
	defer parsers.Put(p)
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return decodeMap(root)
}

// DecodeBatch decodes an ordered sequence of attribute maps. A malformed
// element does not abort its siblings: every well-formed element is decoded
// and returned at its index, failed indices are left nil, and the combined
// error reports each failure. The slice is valid whenever it is non-nil.
func DecodeBatch(data []byte) ([]xlog.Attributes, error) {
	p := parsers.Get()
	defer parsers.Put(p)
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	arr, err := root.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: batch payload is not an array", ErrSerialization)
	}
	out := make([]xlog.Attributes, len(arr))
	var errs []error
	for i, el := range arr {
		m, err := decodeMap(el)
		if err != nil {
			errs = append(errs, fmt.Errorf("element %d: %w", i, err))
			continue
		}
		out[i] = m
	}
	return out, errors.Join(errs...)
}

func decodeMap(v *fastjson.Value) (xlog.Attributes, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: attribute map is not an object", ErrSerialization)
	}
	attrs := make(xlog.Attributes, obj.Len())
	var visitErr error
	obj.Visit(func(key []byte, av *fastjson.Value) {
		if visitErr != nil {
			return
		}
		attr, err := decodeAttr(av)
		if err != nil {
			visitErr = fmt.Errorf("key %q: %w", string(key), err)
			return
		}
		// The outer map key wins over the repeated inner key.
		attr.Key = string(key)
		attrs[attr.Key] = attr
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return attrs, nil
}

func decodeAttr(v *fastjson.Value) (xlog.Attribute, error) {
	key := v.Get("key")
	val := v.Get("value")
	if val == nil {
		return xlog.Attribute{}, fmt.Errorf("%w: missing value", ErrSerialization)
	}
	decoded, err := decodeValue(val)
	if err != nil {
		return xlog.Attribute{}, err
	}
	attr := xlog.Attribute{Value: decoded}
	if key != nil {
		kb, err := key.StringBytes()
		if err != nil {
			return xlog.Attribute{}, fmt.Errorf("%w: key is not a string", ErrSerialization)
		}
		attr.Key = string(kb)
	}
	return attr, nil
}

func decodeValue(v *fastjson.Value) (xlog.Value, error) {
	tagVal := v.Get("type")
	if tagVal == nil {
		return xlog.Value{}, fmt.Errorf("%w: missing type tag", ErrSerialization)
	}
	tagBytes, err := tagVal.StringBytes()
	if err != nil {
		return xlog.Value{}, fmt.Errorf("%w: non-string type tag", ErrSerialization)
	}
	kind, ok := xlog.KindFromTag(string(tagBytes))
	if !ok {
		return xlog.Value{}, fmt.Errorf("%w: unknown type tag %q", ErrSerialization, string(tagBytes))
	}
	content := v.Get("content")
	if content == nil {
		return xlog.Value{}, fmt.Errorf("%w: missing content", ErrSerialization)
	}
	switch kind {
	case xlog.KindString:
		s, err := content.StringBytes()
		if err != nil {
			return xlog.Value{}, coerceErr("String", content)
		}
		return xlog.String(string(s)), nil
	case xlog.KindTimestamp:
		ms, err := content.Int64()
		if err != nil {
			return xlog.Value{}, coerceErr("Date", content)
		}
		return xlog.Timestamp(ms), nil
	case xlog.KindInt:
		i, err := content.Int64()
		if err != nil {
			return xlog.Value{}, coerceErr("Int", content)
		}
		return xlog.Int(i), nil
	case xlog.KindFloat:
		f, err := content.Float64()
		if err != nil {
			return xlog.Value{}, coerceErr("Float", content)
		}
		return xlog.Float(f), nil
	case xlog.KindBoolean:
		b, err := content.Bool()
		if err != nil {
			return xlog.Value{}, coerceErr("Boolean", content)
		}
		return xlog.Bool(b), nil
	case xlog.KindID:
		s, err := content.StringBytes()
		if err != nil {
			return xlog.Value{}, coerceErr("ID", content)
		}
		id, err := uuid.Parse(string(s))
		if err != nil {
			return xlog.Value{}, fmt.Errorf("%w: content %q is not a UUID", ErrSerialization, string(s))
		}
		return xlog.ID(id), nil
	case xlog.KindList:
		arr, err := content.Array()
		if err != nil {
			return xlog.Value{}, coerceErr("List", content)
		}
		items := make([]xlog.Attribute, len(arr))
		for i, el := range arr {
			attr, err := decodeAttr(el)
			if err != nil {
				return xlog.Value{}, fmt.Errorf("list index %d: %w", i, err)
			}
			items[i] = attr
		}
		return xlog.List(items), nil
	case xlog.KindContainer:
		sub, err := decodeMap(content)
		if err != nil {
			return xlog.Value{}, err
		}
		return xlog.Container(sub), nil
	}
	return xlog.Value{}, fmt.Errorf("%w: unknown kind", ErrSerialization)
}

func coerceErr(tag string, content *fastjson.Value) error {
	return fmt.Errorf("%w: content %s cannot be coerced to %s", ErrSerialization, content.Type(), tag)
}
