package xlog

import (
	"github.com/google/uuid"
)

// Reserved attribute keys understood by the boundary protocol. They are
// carried inside attribute maps on the wire but are not user data: receivers
// strip them before handing the map to callers.
const (
	// ActivityKey names the activity of an event (XES concept extension).
	ActivityKey = "concept:name"
	// EventIDKey carries an event's identity across the boundary.
	EventIDKey = "__UUID__"
	// NumTracesKey is injected into encoded log attributes so the receiving
	// side can preallocate its aggregate before issuing per-trace reads.
	NumTracesKey = "__NUM_TRACES__"
	// StartActivity and EndActivity are the activity names of the synthetic
	// marker events inserted by the start/end mutation pass.
	StartActivity = "__START"
	EndActivity   = "__END"
)

// Kind discriminates the active variant of a Value. Exactly one variant is
// active at a time and round-tripping preserves the kind: an Int is never
// reinterpreted as a Float even when the content would allow it.
type Kind uint8

const (
	KindString Kind = iota
	KindTimestamp
	KindInt
	KindFloat
	KindBoolean
	KindID
	KindList
	KindContainer
)

// String returns the wire tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindTimestamp:
		return "Date"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindID:
		return "ID"
	case KindList:
		return "List"
	case KindContainer:
		return "Container"
	default:
		return "Unknown"
	}
}

// KindFromTag maps a wire tag back to its Kind. ok is false for tags the
// model does not know.
func KindFromTag(tag string) (Kind, bool) {
	switch tag {
	case "String":
		return KindString, true
	case "Date":
		return KindTimestamp, true
	case "Int":
		return KindInt, true
	case "Float":
		return KindFloat, true
	case "Boolean":
		return KindBoolean, true
	case "ID":
		return KindID, true
	case "List":
		return KindList, true
	case "Container":
		return KindContainer, true
	default:
		return 0, false
	}
}

// Value is a closed, recursive attribute variant. The zero Value is the empty
// string. Construct values with the typed constructors; read them back with
// the accessor matching Kind().
type Value struct {
	kind Kind
	str  string
	num  int64 // Timestamp (epoch ms) and Int share the integer slot
	f    float64
	b    bool
	id   uuid.UUID
	list []Attribute
	sub  Attributes
}

// String constructs a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Timestamp constructs a timestamp value from milliseconds since the Unix
// epoch.
func Timestamp(ms int64) Value { return Value{kind: KindTimestamp, num: ms} }

// Int constructs a 64-bit integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Float constructs a 64-bit float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// ID constructs a UUID value.
func ID(id uuid.UUID) Value { return Value{kind: KindID, id: id} }

// List constructs an ordered list value. List members keep their order and
// may share keys, unlike a Container.
func List(items []Attribute) Value { return Value{kind: KindList, list: items} }

// Container constructs a nested attribute map value.
func Container(attrs Attributes) Value { return Value{kind: KindContainer, sub: attrs} }

// Kind reports the active variant.
func (v Value) Kind() Kind { return v.kind }

// StringVal returns the string content; valid only when Kind is KindString.
func (v Value) StringVal() string { return v.str }

// TimestampMs returns the epoch milliseconds; valid only for KindTimestamp.
func (v Value) TimestampMs() int64 { return v.num }

// IntVal returns the integer content; valid only for KindInt.
func (v Value) IntVal() int64 { return v.num }

// FloatVal returns the float content; valid only for KindFloat.
func (v Value) FloatVal() float64 { return v.f }

// BoolVal returns the boolean content; valid only for KindBoolean.
func (v Value) BoolVal() bool { return v.b }

// IDVal returns the UUID content; valid only for KindID.
func (v Value) IDVal() uuid.UUID { return v.id }

// ListVal returns the ordered members; valid only for KindList.
func (v Value) ListVal() []Attribute { return v.list }

// ContainerVal returns the nested map; valid only for KindContainer.
func (v Value) ContainerVal() Attributes { return v.sub }

// Equal reports deep equality including the variant kind.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindTimestamp, KindInt:
		return v.num == o.num
	case KindFloat:
		return v.f == o.f
	case KindBoolean:
		return v.b == o.b
	case KindID:
		return v.id == o.id
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i].Key != o.list[i].Key || !v.list[i].Value.Equal(o.list[i].Value) {
				return false
			}
		}
		return true
	case KindContainer:
		return v.sub.Equal(o.sub)
	}
	return false
}

// Clone returns a deep copy. Scalar kinds share nothing; List and Container
// copy their children.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Attribute, len(v.list))
		for i, a := range v.list {
			items[i] = Attribute{Key: a.Key, Value: a.Value.Clone()}
		}
		return Value{kind: KindList, list: items}
	case KindContainer:
		return Value{kind: KindContainer, sub: v.sub.Clone()}
	default:
		return v
	}
}

// Attribute is one keyed value. The key is repeated inside the struct so a
// List (which is ordered, not keyed) can carry keyed members.
type Attribute struct {
	Key   string
	Value Value
}

// Attributes maps attribute key to attribute. Iteration order carries no
// meaning; ordering contracts live at the trace/event level only.
type Attributes map[string]Attribute

// Set inserts or replaces the attribute under key.
func (a Attributes) Set(key string, v Value) {
	a[key] = Attribute{Key: key, Value: v}
}

// Get returns the value under key.
func (a Attributes) Get(key string) (Value, bool) {
	attr, ok := a[key]
	return attr.Value, ok
}

// Clone returns a deep copy of the map.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, attr := range a {
		out[k] = Attribute{Key: attr.Key, Value: attr.Value.Clone()}
	}
	return out
}

// Equal reports deep equality of two maps.
func (a Attributes) Equal(o Attributes) bool {
	if len(a) != len(o) {
		return false
	}
	for k, attr := range a {
		other, ok := o[k]
		if !ok || attr.Key != other.Key || !attr.Value.Equal(other.Value) {
			return false
		}
	}
	return true
}

// Event is one step of a trace. The ID is the event's cross-boundary
// identity; it is not a user-visible attribute and travels on the wire under
// the reserved EventIDKey.
type Event struct {
	ID         uuid.UUID
	Attributes Attributes
}

// NewEvent creates an event carrying only an activity name, with a fresh
// identity.
func NewEvent(activity string) Event {
	attrs := make(Attributes, 1)
	attrs.Set(ActivityKey, String(activity))
	return Event{ID: uuid.New(), Attributes: attrs}
}

// EventFromAttrs builds an Event from a decoded wire attribute map,
// consuming the reserved identity key when present and minting a fresh
// identity otherwise. The map is taken over by the event.
func EventFromAttrs(attrs Attributes) Event {
	ev := Event{Attributes: attrs}
	if v, ok := attrs.Get(EventIDKey); ok {
		switch v.Kind() {
		case KindID:
			ev.ID = v.IDVal()
		case KindString:
			if id, err := uuid.Parse(v.StringVal()); err == nil {
				ev.ID = id
			}
		}
		delete(attrs, EventIDKey)
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	return ev
}

// WireAttrs returns a copy of the event's attributes with its identity
// injected under the reserved key, ready for encoding.
func (e Event) WireAttrs() Attributes {
	attrs := e.Attributes.Clone()
	if attrs == nil {
		attrs = Attributes{}
	}
	attrs.Set(EventIDKey, ID(e.ID))
	return attrs
}

// Trace is an ordered sequence of events plus trace-level attributes. Event
// order is significant and preserved exactly through any transfer.
type Trace struct {
	Attributes Attributes
	Events     []Event
}

// EventLog is an ordered sequence of traces plus log-level attributes.
// Traces are addressed by integer index throughout the boundary protocol.
type EventLog struct {
	Attributes Attributes
	Traces     []Trace
}

// TraceFromBatch reassembles a trace from its batch layout: element 0 is the
// trace attribute map, elements 1..N the event maps in order. Reserved event
// identity keys are consumed. An empty batch yields an empty trace.
func TraceFromBatch(maps []Attributes) Trace {
	var t Trace
	if len(maps) == 0 {
		t.Attributes = Attributes{}
		return t
	}
	t.Attributes = maps[0]
	if t.Attributes == nil {
		t.Attributes = Attributes{}
	}
	if len(maps) > 1 {
		t.Events = make([]Event, len(maps)-1)
		for i, m := range maps[1:] {
			if m == nil {
				m = Attributes{}
			}
			t.Events[i] = EventFromAttrs(m)
		}
	}
	return t
}
