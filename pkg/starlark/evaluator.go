package starlark

import (
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"go.starlark.net/starlark"
)

// Evaluator runs Starlark scripts that produce render data and filters.
type Evaluator struct {
	thread   *starlark.Thread
	builtins starlark.StringDict
	globals  starlark.StringDict
	engine   *texttemplate.Engine
	logger   *slog.Logger
}

type Option func(*Evaluator)

// WithEngine sets the engine used by the render and apply_filter builtins.
func WithEngine(e *texttemplate.Engine) Option {
	return func(ev *Evaluator) { ev.engine = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(ev *Evaluator) { ev.logger = l }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		globals: make(starlark.StringDict),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.engine == nil {
		e.engine = texttemplate.New(texttemplate.WithLogger(e.logger))
	}
	e.thread = e.newThread("texttemplate")
	e.builtins = e.createBuiltins()
	return e
}

func (e *Evaluator) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(th *starlark.Thread, msg string) {
			e.logger.Info(msg, "script", th.Name)
		},
	}
}

// SetGlobal sets a global variable in the Starlark environment.
func (e *Evaluator) SetGlobal(name string, value texttemplate.Value) {
	e.globals[name] = ConvertToStarlark(value)
}

func (e *Evaluator) predeclared() starlark.StringDict {
	predeclared := make(starlark.StringDict, len(e.builtins)+len(e.globals))
	maps.Copy(predeclared, e.builtins)
	maps.Copy(predeclared, e.globals)
	return predeclared
}

// Eval evaluates a Starlark expression.
func (e *Evaluator) Eval(expr string) (texttemplate.Value, error) {
	val, err := starlark.Eval(e.thread, "<eval>", expr, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return ConvertFromStarlark(val), nil
}

// ExecFile executes a Starlark file. src may be nil, a string or a
// []byte, as for starlark.ExecFile. Top-level definitions become globals.
func (e *Evaluator) ExecFile(filename string, src any) error {
	globals, err := starlark.ExecFile(e.thread, filename, src, e.predeclared())
	if err != nil {
		return fmt.Errorf("starlark execution error: %w", err)
	}
	maps.Copy(e.globals, globals)
	return nil
}

// GetGlobal returns a global variable as a template value.
func (e *Evaluator) GetGlobal(name string) (texttemplate.Value, bool) {
	if val, ok := e.globals[name]; ok {
		return ConvertFromStarlark(val), true
	}
	return nil, false
}

// LoadContext makes every entry of ctx a Starlark global.
func (e *Evaluator) LoadContext(ctx texttemplate.Context) {
	for key, value := range ctx {
		e.SetGlobal(key, value)
	}
}

// ExportContext returns the exportable data globals as a render context.
// Functions and names starting with an underscore are skipped.
func (e *Evaluator) ExportContext() texttemplate.Context {
	ctx := make(texttemplate.Context)
	for key, value := range e.globals {
		if !isExportableKey(key) {
			continue
		}
		if _, ok := value.(starlark.Callable); ok {
			continue
		}
		ctx[key] = ConvertFromStarlark(value)
	}
	return ctx
}

// ExportFilters returns every exportable top-level function as a template
// filter. The function is called with the value followed by the literal
// filter parameters as strings.
func (e *Evaluator) ExportFilters() texttemplate.Filters {
	filters := texttemplate.Filters{}
	names := make([]string, 0)
	for key := range e.globals {
		names = append(names, key)
	}
	sort.Strings(names)
	for _, key := range names {
		fn, ok := e.globals[key].(*starlark.Function)
		if !ok || !isExportableKey(key) {
			continue
		}
		filters[key] = e.filterFunc(fn)
	}
	return filters
}

func (e *Evaluator) filterFunc(fn *starlark.Function) texttemplate.Filter {
	return func(val texttemplate.Value, params []string) (texttemplate.Value, error) {
		args := make(starlark.Tuple, 0, len(params)+1)
		args = append(args, ConvertToStarlark(val))
		for _, p := range params {
			args = append(args, starlark.String(p))
		}
		// Threads are not safe for concurrent use; filters may run from
		// several renders at once.
		out, err := starlark.Call(e.newThread("filter:"+fn.Name()), fn, args, nil)
		if err != nil {
			return nil, err
		}
		return ConvertFromStarlark(out), nil
	}
}

func isExportableKey(key string) bool {
	if _, builtin := builtinNames[key]; builtin {
		return false
	}
	return key != "" && key[0] != '_'
}
