package texttemplate

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Value is a value in a render context. It defines string conversion and
// truthiness semantics.
type Value interface {
	String() string
	Truth() bool
}

// Mapping is implemented by string-keyed container values. Keys returns the
// natural iteration order used by for loops.
type Mapping interface {
	Value
	Get(key string) (Value, bool)
	Keys() []string
}

// LookupHook can be optionally implemented by Value containers to serve
// attribute lookups performed by the resolver.
type LookupHook interface {
	OnLookup(key string) (Value, bool)
}

// NoneValue represents the absence of a value.
type NoneValue struct{}

func (NoneValue) String() string { return "" }
func (NoneValue) Truth() bool    { return false }

// BoolValue wraps a boolean.
type BoolValue bool

func (b BoolValue) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b BoolValue) Truth() bool { return bool(b) }

// IntValue wraps an integer (64-bit).
type IntValue int64

func (i IntValue) String() string { return strconv.FormatInt(int64(i), 10) }
func (i IntValue) Truth() bool    { return int64(i) != 0 }

// FloatValue wraps a float (64-bit).
type FloatValue float64

func (f FloatValue) String() string { return strconv.FormatFloat(float64(f), 'f', -1, 64) }
func (f FloatValue) Truth() bool    { return float64(f) != 0 }

// StringValue wraps a string.
type StringValue string

func (s StringValue) String() string { return string(s) }
func (s StringValue) Truth() bool    { return len(string(s)) > 0 }

// ListValue wraps an ordered sequence of values.
type ListValue []Value

func (l ListValue) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}
func (l ListValue) Truth() bool { return len(l) > 0 }

// DictValue wraps a string-keyed dictionary of values. Go maps carry no
// order, so iteration uses sorted keys.
type DictValue map[string]Value

func (d DictValue) String() string { return "{...}" }
func (d DictValue) Truth() bool    { return len(d) > 0 }

func (d DictValue) Get(key string) (Value, bool) {
	v, ok := d[key]
	return v, ok
}

func (d DictValue) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OrderedDict is a mapping that remembers insertion order. The data loaders
// produce it so loops follow document order.
type OrderedDict struct {
	keys   []string
	values map[string]Value
}

// NewOrderedDict builds an OrderedDict from alternating key/value pairs.
func NewOrderedDict(pairs ...any) *OrderedDict {
	d := &OrderedDict{values: map[string]Value{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(fmt.Sprint(pairs[i]), FromGo(pairs[i+1]))
	}
	return d
}

// Set stores val under key. Existing keys keep their position.
func (d *OrderedDict) Set(key string, val Value) {
	if d.values == nil {
		d.values = map[string]Value{}
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = val
}

func (d *OrderedDict) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *OrderedDict) Keys() []string { return append([]string(nil), d.keys...) }
func (d *OrderedDict) Len() int       { return len(d.keys) }
func (d *OrderedDict) String() string { return "{...}" }
func (d *OrderedDict) Truth() bool    { return len(d.keys) > 0 }

// RecordValue exposes a Go struct to templates. Fields are looked up by
// name, case-insensitively.
type RecordValue struct {
	rv reflect.Value
}

// Textual reports whether the record has its own string form.
func (r RecordValue) Textual() bool {
	_, ok := r.rv.Interface().(fmt.Stringer)
	if !ok && r.rv.CanAddr() {
		_, ok = r.rv.Addr().Interface().(fmt.Stringer)
	}
	return ok
}

// TypeName is the Go type name of the wrapped struct.
func (r RecordValue) TypeName() string { return r.rv.Type().String() }

func (r RecordValue) String() string {
	if s, ok := r.rv.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return "<" + r.TypeName() + ">"
}

func (r RecordValue) Truth() bool { return true }

// Field returns the exported field whose name matches key.
func (r RecordValue) Field(key string) (Value, bool) {
	f := r.rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, key) })
	if !f.IsValid() || !f.CanInterface() {
		return nil, false
	}
	return FromGo(f.Interface()), true
}

// Context is the data scope of a render: names to values.
type Context map[string]Value

// NewContextFromAny converts a map[string]any into a Value-based Context.
// It recursively converts nested maps/slices into DictValue/ListValue.
func NewContextFromAny(m map[string]any) Context {
	ctx := Context{}
	for k, v := range m {
		ctx[k] = FromGo(v)
	}
	return ctx
}

// derive returns a shallow copy of c for a nested scope.
func (c Context) derive() Context {
	out := make(Context, len(c)+4)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// FromGo converts a Go value to a Value.
func FromGo(v any) Value {
	if v == nil {
		return NoneValue{}
	}
	switch t := v.(type) {
	case Value:
		return t
	case Context:
		return DictValue(t)
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int8:
		return IntValue(int64(t))
	case int16:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case uint:
		return IntValue(int64(t))
	case uint8:
		return IntValue(int64(t))
	case uint16:
		return IntValue(int64(t))
	case uint32:
		return IntValue(int64(t))
	case uint64:
		return IntValue(int64(t))
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case []byte:
		return StringValue(string(t))
	case fmt.Stringer:
		if reflect.Indirect(reflect.ValueOf(v)).Kind() != reflect.Struct {
			return StringValue(t.String())
		}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make(ListValue, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, FromGo(rv.Index(i).Interface()))
		}
		return out
	case reflect.Map:
		// Only string keys are supported.
		if rv.Type().Key().Kind() == reflect.String {
			out := DictValue{}
			it := rv.MapRange()
			for it.Next() {
				out[it.Key().String()] = FromGo(it.Value().Interface())
			}
			return out
		}
	case reflect.Struct:
		return RecordValue{rv: rv}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NoneValue{}
		}
		if rv.Elem().Kind() == reflect.Struct {
			return RecordValue{rv: rv.Elem()}
		}
		return FromGo(rv.Elem().Interface())
	}
	// Fallback: string formatting
	return StringValue(fmt.Sprintf("%v", v))
}

// ToGo converts a Value back into plain Go values (maps, slices, scalars).
func ToGo(v Value) any {
	switch t := v.(type) {
	case nil, NoneValue:
		return nil
	case BoolValue:
		return bool(t)
	case IntValue:
		return int64(t)
	case FloatValue:
		return float64(t)
	case StringValue:
		return string(t)
	case ListValue:
		out := make([]any, 0, len(t))
		for _, it := range t {
			out = append(out, ToGo(it))
		}
		return out
	case Mapping:
		out := make(map[string]any)
		for _, k := range t.Keys() {
			vv, _ := t.Get(k)
			out[k] = ToGo(vv)
		}
		return out
	case RecordValue:
		if !t.Textual() {
			return t.rv.Interface()
		}
		return t.String()
	default:
		return v.String()
	}
}

// entry is one step of a for loop: the loop key and the bound value.
type entry struct {
	key Value
	val Value
}

// entries converts a collection Value into loop entries. ok is false for
// values that are not collections.
func entries(v Value) ([]entry, bool) {
	switch t := v.(type) {
	case ListValue:
		out := make([]entry, len(t))
		for i, it := range t {
			out[i] = entry{key: IntValue(i), val: it}
		}
		return out, true
	case Mapping:
		keys := t.Keys()
		out := make([]entry, 0, len(keys))
		for _, k := range keys {
			vv, _ := t.Get(k)
			out = append(out, entry{key: StringValue(k), val: vv})
		}
		return out, true
	}
	return nil, false
}
