package texttemplate

import (
	"fmt"
	"log/slog"

	v "github.com/neurodesk/texttemplate/pkg/validator"
)

// Engine compiles and renders templates with one filter registry.
//
// The registry is seeded with the built-in filters and may be extended
// with RegisterFilter and SetDefaultFilter before rendering starts. It is
// not synchronized: callers must not change it while renders are running.
// Renders themselves keep all state per call and may run concurrently.
type Engine struct {
	filters  Filters
	logger   *slog.Logger
	trim     bool
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFilters adds filters to the registry, replacing built-ins of the
// same name.
func WithFilters(f Filters) Option {
	return func(e *Engine) {
		for name, fn := range f {
			e.filters[name] = fn
		}
	}
}

// WithTrimNewlines drops the newline after each block tag.
func WithTrimNewlines(trim bool) Option {
	return func(e *Engine) { e.trim = trim }
}

// WithMaxDepth limits block nesting at render time; 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

func New(opts ...Option) *Engine {
	e := &Engine{filters: DefaultFilters(), logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterFilter adds or replaces a filter.
func (e *Engine) RegisterFilter(name string, fn Filter) error {
	if err := v.All(
		v.NotEmpty(name, "filter name"),
		v.Identifier(name, "filter name"),
	); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("filter %q: nil function", name)
	}
	e.filters[name] = fn
	e.logger.Debug("registered filter", "name", name)
	return nil
}

// RegisterAlias registers name as a filter that runs chain, e.g.
// "singleLine|fixedLength:20". The default filter is not appended inside
// the alias; it still runs once at the end of the using chain. Stages are
// looked up when the alias runs.
func (e *Engine) RegisterAlias(name, chain string) error {
	calls := ParseFilterChain(chain)
	if len(calls) == 0 {
		return fmt.Errorf("filter alias %q: empty chain", name)
	}
	for _, c := range calls {
		if c.Name == name {
			return fmt.Errorf("filter alias %q refers to itself", name)
		}
	}
	calls = append(calls, FilterCall{Name: "raw"})
	return e.RegisterFilter(name, func(val Value, _ []string) (Value, error) {
		return e.filters.Apply(val, calls)
	})
}

// SetDefaultFilter makes the current implementation of name the filter
// applied to every chain without raw.
func (e *Engine) SetDefaultFilter(name string) error {
	return e.filters.SetDefault(name)
}

// Filters returns a copy of the registry.
func (e *Engine) Filters() Filters { return e.filters.Clone() }

// Template is a compiled template, reusable across renders.
type Template struct {
	Source string
	Doc    *Document
	engine *Engine
}

// Compile runs the nesting tagger, the else-chain rewriter and the parser.
func (e *Engine) Compile(src string) (*Template, error) {
	tagged, ids, err := tagNesting(src)
	if err != nil {
		return nil, err
	}
	doc, err := parse(rewriteElseChains(tagged, ids), ids)
	if err != nil {
		return nil, err
	}
	if e.trim {
		trimBlockNewlines(doc.Nodes)
	}
	return &Template{Source: src, Doc: doc, engine: e}, nil
}

// Render compiles src and renders it against ctx. With softFail, missing
// variables render empty; otherwise they fail with *ResolutionError.
// Template errors are fatal in both modes.
func (e *Engine) Render(src string, ctx Context, softFail bool) (string, error) {
	t, err := e.Compile(src)
	if err != nil {
		return "", err
	}
	return t.Execute(ctx, softFail)
}

// Execute renders the compiled template against ctx.
func (t *Template) Execute(ctx Context, softFail bool) (string, error) {
	r := &Renderer{Filters: t.engine.filters, Logger: t.engine.logger, MaxDepth: t.engine.maxDepth}
	return r.Render(t.Doc, ctx, softFail)
}

// Render renders src with a default engine.
func Render(src string, ctx Context, softFail bool) (string, error) {
	return New().Render(src, ctx, softFail)
}
