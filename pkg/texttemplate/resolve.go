package texttemplate

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolve looks up a dotted path such as "user.address.city" in ctx.
//
// Each segment descends into a mapping by key, into a record by field name
// or into a list by numeric index. When a segment is missing the result is
// NoneValue if softFail is set, otherwise a *ResolutionError naming the
// segment. A record without a string form resolves to a diagnostic
// placeholder instead of failing.
func Resolve(ctx Context, path string, softFail bool) (Value, error) {
	v, _, err := resolve(ctx, path, softFail)
	return v, err
}

// resolve is Resolve that also reports the first missing segment.
func resolve(ctx Context, path string, softFail bool) (Value, string, error) {
	path = strings.TrimSpace(path)
	var cur Value = DictValue(ctx)
	var seg, missing string
	for _, seg = range strings.Split(path, ".") {
		next, ok := lookup(cur, seg)
		if !ok {
			if !softFail {
				return nil, seg, &ResolutionError{Path: path, Segment: seg}
			}
			if missing == "" {
				missing = seg
			}
			cur = NoneValue{}
			continue
		}
		cur = next
	}
	if r, ok := cur.(RecordValue); ok && !r.Textual() {
		return StringValue(fmt.Sprintf("##ERR:OBJECT_IN_TEXT:[%s]ON[%s]:%s###", path, seg, r.TypeName())), missing, nil
	}
	return cur, missing, nil
}

func lookup(v Value, key string) (Value, bool) {
	if v == nil {
		return nil, false
	}
	if h, ok := v.(LookupHook); ok {
		if r, ok := h.OnLookup(key); ok {
			return normalize(r), true
		}
	}
	switch t := v.(type) {
	case Mapping:
		r, ok := t.Get(key)
		if !ok {
			return nil, false
		}
		return normalize(r), true
	case RecordValue:
		return t.Field(key)
	case ListValue:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(t) {
			return nil, false
		}
		return normalize(t[i]), true
	}
	return nil, false
}
