package starlark

import (
	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"go.starlark.net/starlark"
)

// ConvertToStarlark converts a template value to a Starlark value.
// Mappings become dicts in their iteration order.
func ConvertToStarlark(val texttemplate.Value) starlark.Value {
	if val == nil {
		return starlark.None
	}

	switch v := val.(type) {
	case texttemplate.StringValue:
		return starlark.String(string(v))
	case texttemplate.IntValue:
		return starlark.MakeInt64(int64(v))
	case texttemplate.FloatValue:
		return starlark.Float(float64(v))
	case texttemplate.BoolValue:
		return starlark.Bool(bool(v))
	case texttemplate.ListValue:
		items := make([]starlark.Value, len(v))
		for i, item := range v {
			items[i] = ConvertToStarlark(item)
		}
		return starlark.NewList(items)
	case texttemplate.Mapping:
		keys := v.Keys()
		dict := starlark.NewDict(len(keys))
		for _, key := range keys {
			value, _ := v.Get(key)
			_ = dict.SetKey(starlark.String(key), ConvertToStarlark(value))
		}
		return dict
	case texttemplate.NoneValue:
		return starlark.None
	default:
		return starlark.String(val.String())
	}
}

// ConvertFromStarlark converts a Starlark value to a template value. Dicts
// keep their insertion order.
func ConvertFromStarlark(val starlark.Value) texttemplate.Value {
	if val == nil || val == starlark.None {
		return texttemplate.NoneValue{}
	}

	switch v := val.(type) {
	case starlark.String:
		return texttemplate.StringValue(string(v))
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return texttemplate.IntValue(i)
		}
		// Too large for int64.
		return texttemplate.StringValue(v.String())
	case starlark.Float:
		return texttemplate.FloatValue(float64(v))
	case starlark.Bool:
		return texttemplate.BoolValue(bool(v))
	case *starlark.List:
		items := make(texttemplate.ListValue, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = ConvertFromStarlark(v.Index(i))
		}
		return items
	case starlark.Tuple:
		items := make(texttemplate.ListValue, len(v))
		for i, it := range v {
			items[i] = ConvertFromStarlark(it)
		}
		return items
	case *starlark.Dict:
		dict := texttemplate.NewOrderedDict()
		for _, item := range v.Items() {
			key := item[0].String()
			if s, ok := item[0].(starlark.String); ok {
				key = string(s)
			}
			dict.Set(key, ConvertFromStarlark(item[1]))
		}
		return dict
	default:
		return texttemplate.StringValue(val.String())
	}
}
