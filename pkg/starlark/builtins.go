package starlark

import (
	"fmt"

	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"go.starlark.net/starlark"
)

var builtinNames = map[string]struct{}{
	"render":       {},
	"apply_filter": {},
}

// createBuiltins returns the functions scripts can call in addition to the
// Starlark universe:
//
//	render(template, **vars)      renders template with vars as context
//	apply_filter(value, chain)    applies a filter chain such as "singleLine|raw"
func (e *Evaluator) createBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"render": starlark.NewBuiltin("render", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var src string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, nil, 1, &src); err != nil {
				return starlark.None, err
			}
			ctx := texttemplate.Context{}
			for _, kv := range kwargs {
				name, ok := starlark.AsString(kv[0])
				if !ok {
					return starlark.None, fmt.Errorf("%s: keyword name is not a string", fn.Name())
				}
				ctx[name] = ConvertFromStarlark(kv[1])
			}
			out, err := e.engine.Render(src, ctx, true)
			if err != nil {
				return starlark.None, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			return starlark.String(out), nil
		}),

		"apply_filter": starlark.NewBuiltin("apply_filter", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var value starlark.Value
			var chain string
			if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "value", &value, "chain", &chain); err != nil {
				return starlark.None, err
			}
			out, err := e.engine.Filters().ApplyChain(ConvertFromStarlark(value), chain)
			if err != nil {
				return starlark.None, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			return starlark.String(out), nil
		}),
	}
}
