package texttemplate

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultFilterName is the registry slot applied at the end of every chain
// that does not mention raw.
const DefaultFilterName = "_DEFAULT_"

// Filter transforms a value. params are the literal ":"-separated
// parameters written after the filter name.
type Filter func(val Value, params []string) (Value, error)

// Filters is a registry of filter functions.
type Filters map[string]Filter

// FilterCall is one stage of a filter chain: {=path|name:p1:p2}.
type FilterCall struct {
	Name   string
	Params []string
}

func (c FilterCall) String() string {
	if len(c.Params) == 0 {
		return c.Name
	}
	return c.Name + ":" + strings.Join(c.Params, ":")
}

// DefaultFilters returns the built-in filters.
func DefaultFilters() Filters {
	escape := func(val Value, _ []string) (Value, error) {
		return StringValue(html.EscapeString(val.String())), nil
	}
	return Filters{
		DefaultFilterName: escape,
		"html":            escape,
		"raw": func(val Value, _ []string) (Value, error) {
			return val, nil
		},
		"singleLine": func(val Value, _ []string) (Value, error) {
			return StringValue(singleLineReplacer.Replace(val.String())), nil
		},
		"inivalue": func(val Value, _ []string) (Value, error) {
			return StringValue(iniReplacer.Replace(val.String())), nil
		},
		"fixedLength": fixedLength,
	}
}

var (
	singleLineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
	iniReplacer        = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `'`, `\'`, "\x00", `\0`, "\r\n", `\n`, "\n", `\n`)
)

// fixedLength pads or truncates to length runes: fixedLength:length[:padChar].
func fixedLength(val Value, params []string) (Value, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("fixedLength requires a length parameter")
	}
	length, err := strconv.Atoi(strings.TrimSpace(params[0]))
	if err != nil || length < 0 {
		return nil, fmt.Errorf("fixedLength: invalid length %q", params[0])
	}
	pad := " "
	if len(params) > 1 && params[1] != "" {
		pad = params[1]
	}
	s := val.String()
	n := utf8.RuneCountInString(s)
	if n > length {
		return StringValue(string([]rune(s)[:length])), nil
	}
	var b strings.Builder
	b.WriteString(s)
	for n < length {
		for _, r := range pad {
			if n == length {
				break
			}
			b.WriteRune(r)
			n++
		}
	}
	return StringValue(b.String()), nil
}

// Clone returns a copy of the registry.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SetDefault copies the current implementation of name into the default
// slot.
func (f Filters) SetDefault(name string) error {
	fn, ok := f[name]
	if !ok {
		return &UndefinedFilterError{Name: name}
	}
	f[DefaultFilterName] = fn
	return nil
}

// Apply runs the chain left to right. Unless a stage is named raw the
// default filter runs last. Unknown names fail with *UndefinedFilterError.
func (f Filters) Apply(val Value, chain []FilterCall) (Value, error) {
	calls := chain
	if !hasRaw(chain) {
		calls = append(append([]FilterCall(nil), chain...), FilterCall{Name: DefaultFilterName})
	}
	val = normalize(val)
	for _, c := range calls {
		fn := f[c.Name]
		if fn == nil {
			return nil, &UndefinedFilterError{Name: c.Name}
		}
		out, err := fn(val, c.Params)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", c.Name, err)
		}
		val = normalize(out)
	}
	return val, nil
}

// ApplyChain parses a textual chain such as "singleLine|fixedLength:8:-"
// and applies it, returning the rendered text.
func (f Filters) ApplyChain(val Value, chain string) (string, error) {
	out, err := f.Apply(val, ParseFilterChain(chain))
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func hasRaw(chain []FilterCall) bool {
	for _, c := range chain {
		if c.Name == "raw" {
			return true
		}
	}
	return false
}

// ParseFilterChain splits "a:1:2|b" into calls. Parameters are literals.
func ParseFilterChain(s string) []FilterCall {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var calls []FilterCall
	for _, part := range strings.Split(s, "|") {
		fields := strings.Split(part, ":")
		call := FilterCall{Name: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			call.Params = fields[1:]
		}
		calls = append(calls, call)
	}
	return calls
}
