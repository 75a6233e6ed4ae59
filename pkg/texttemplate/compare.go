package texttemplate

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Comparison rules used by conditions.
//
// Loose equality (==, !=):
//   - none equals any value whose Truth() is false ("", 0, false, empty
//     list or mapping) and nothing else;
//   - if either side is a bool, both sides compare by Truth();
//   - numbers, and strings that parse as numbers, compare numerically;
//     a number against a non-numeric string compares the number's string
//     form with the string;
//   - strings compare byte-wise;
//   - lists compare element-wise with loose equality, mappings by key set
//     and loose equality of values;
//   - everything else is unequal.
//
// Strict equality (===, !==) requires the same kind (none, bool, int,
// float, string, list, mapping, record) and equal contents; 1 === 1.0 is
// false.
//
// Ordering (<, <=, >, >=) compares numerically when both sides are numeric
// (numbers, numeric strings, bools as 0/1, none as 0), byte-wise for two
// strings (none counts as ""), by Truth() when a bool meets a non-numeric
// value, and lists by length and then element-wise. Any other combination
// is unordered and every ordering operator yields false.

func looseEqual(a, b Value) bool {
	a, b = normalize(a), normalize(b)
	_, an := a.(NoneValue)
	_, bn := b.(NoneValue)
	if an || bn {
		if an && bn {
			return true
		}
		if an {
			return !b.Truth()
		}
		return !a.Truth()
	}
	_, ab := a.(BoolValue)
	_, bb := b.(BoolValue)
	if ab || bb {
		return a.Truth() == b.Truth()
	}
	if fa, ok := numeric(a); ok {
		if fb, ok := numeric(b); ok {
			return fa == fb
		}
		if s, ok := b.(StringValue); ok {
			return a.String() == string(s)
		}
		return false
	}
	if s, ok := a.(StringValue); ok {
		switch t := b.(type) {
		case StringValue:
			return s == t
		case IntValue, FloatValue:
			return string(s) == t.String()
		}
		return false
	}
	if la, ok := a.(ListValue); ok {
		lb, ok := b.(ListValue)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !looseEqual(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	if ma, ok := a.(Mapping); ok {
		mb, ok := b.(Mapping)
		return ok && mappingEqual(ma, mb, looseEqual)
	}
	return false
}

func strictEqual(a, b Value) bool {
	a, b = normalize(a), normalize(b)
	if kindOf(a) != kindOf(b) {
		return false
	}
	switch t := a.(type) {
	case NoneValue:
		return true
	case BoolValue, IntValue, FloatValue, StringValue:
		return a == b
	case ListValue:
		lb := b.(ListValue)
		if len(t) != len(lb) {
			return false
		}
		for i := range t {
			if !strictEqual(t[i], lb[i]) {
				return false
			}
		}
		return true
	case Mapping:
		return mappingEqual(t, b.(Mapping), strictEqual)
	case RecordValue:
		rb := b.(RecordValue)
		return t.rv.Type() == rb.rv.Type() && reflect.DeepEqual(t.rv.Interface(), rb.rv.Interface())
	}
	return false
}

// compareValues returns -1, 0 or 1 and whether the pair is ordered.
func compareValues(a, b Value) (int, bool) {
	a, b = normalize(a), normalize(b)
	if fa, ok := orderNumeric(a, b); ok {
		fb, _ := orderNumeric(b, a)
		return cmpFloat(fa, fb), true
	}
	sa, aok := orderString(a)
	sb, bok := orderString(b)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	_, ab := a.(BoolValue)
	_, bb := b.(BoolValue)
	if ab || bb {
		return cmpFloat(boolFloat(a.Truth()), boolFloat(b.Truth())), true
	}
	la, aok := a.(ListValue)
	lb, bok := b.(ListValue)
	if aok && bok {
		if len(la) != len(lb) {
			return cmpFloat(float64(len(la)), float64(len(lb))), true
		}
		for i := range la {
			c, ok := compareValues(la[i], lb[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		return 0, true
	}
	return 0, false
}

func mappingEqual(a, b Mapping, eq func(a, b Value) bool) bool {
	ka, kb := a.Keys(), b.Keys()
	if len(ka) != len(kb) {
		return false
	}
	for _, k := range ka {
		vb, ok := b.Get(k)
		if !ok {
			return false
		}
		va, _ := a.Get(k)
		if !eq(va, vb) {
			return false
		}
	}
	return true
}

func normalize(v Value) Value {
	if v == nil {
		return NoneValue{}
	}
	return v
}

func kindOf(v Value) string {
	switch v.(type) {
	case NoneValue:
		return "none"
	case BoolValue:
		return "bool"
	case IntValue:
		return "int"
	case FloatValue:
		return "float"
	case StringValue:
		return "string"
	case ListValue:
		return "list"
	case Mapping:
		return "mapping"
	case RecordValue:
		return "record"
	}
	return "other"
}

// numeric reports the float form of numbers and numeric strings.
func numeric(v Value) (float64, bool) {
	switch t := v.(type) {
	case IntValue:
		return float64(t), true
	case FloatValue:
		return float64(t), true
	case StringValue:
		s := strings.TrimSpace(string(t))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// orderNumeric returns the numeric form of v for ordering against other.
// Bools and none count as numbers only when other is numeric.
func orderNumeric(v, other Value) (float64, bool) {
	if f, ok := numeric(v); ok {
		if _, ok := numeric(other); ok {
			return f, true
		}
		if isNumberLike(other) {
			return f, true
		}
		return 0, false
	}
	if isNumberLike(v) {
		if _, ok := numeric(other); ok {
			switch t := v.(type) {
			case BoolValue:
				return boolFloat(bool(t)), true
			case NoneValue:
				return 0, true
			}
		}
	}
	return 0, false
}

func isNumberLike(v Value) bool {
	switch v.(type) {
	case BoolValue, NoneValue:
		return true
	}
	return false
}

func orderString(v Value) (string, bool) {
	switch t := v.(type) {
	case StringValue:
		return string(t), true
	case NoneValue:
		return "", true
	}
	return "", false
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
