// Package data loads render contexts from YAML, JSON and Starlark files.
//
// YAML and JSON documents are decoded through yaml.Node so mappings keep
// their document order when iterated by for loops.
package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurodesk/texttemplate/pkg/netcache"
	"github.com/neurodesk/texttemplate/pkg/starlark"
	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"gopkg.in/yaml.v3"
)

// Decode reads one YAML or JSON document whose top level is a mapping.
// An empty document yields an empty context.
func Decode(r io.Reader) (texttemplate.Context, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return texttemplate.Context{}, nil
		}
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	val, err := FromNode(&doc)
	if err != nil {
		return nil, err
	}
	switch m := val.(type) {
	case texttemplate.NoneValue:
		return texttemplate.Context{}, nil
	case texttemplate.Mapping:
		ctx := texttemplate.Context{}
		for _, k := range m.Keys() {
			ctx[k], _ = m.Get(k)
		}
		return ctx, nil
	}
	return nil, fmt.Errorf("data must be a mapping at the top level, got %s", nodeKind(&doc))
}

// FromNode converts a decoded YAML node into a template value.
func FromNode(n *yaml.Node) (texttemplate.Value, error) {
	switch n.Kind {
	case 0:
		return texttemplate.NoneValue{}, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return texttemplate.NoneValue{}, nil
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		return FromNode(n.Alias)
	case yaml.SequenceNode:
		out := make(texttemplate.ListValue, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := FromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := texttemplate.NewOrderedDict()
		if err := addMapping(out, n); err != nil {
			return nil, err
		}
		return out, nil
	case yaml.ScalarNode:
		return scalar(n)
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func addMapping(out *texttemplate.OrderedDict, n *yaml.Node) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.ShortTag() == "!!merge" {
			if err := mergeInto(out, v); err != nil {
				return err
			}
			continue
		}
		if k.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		val, err := FromNode(v)
		if err != nil {
			return err
		}
		out.Set(k.Value, val)
	}
	return nil
}

// mergeInto applies a "<<" merge key. Explicit keys of the mapping win, so
// merged keys only fill gaps.
func mergeInto(out *texttemplate.OrderedDict, v *yaml.Node) error {
	if v.Kind == yaml.AliasNode {
		v = v.Alias
	}
	var sources []*yaml.Node
	switch v.Kind {
	case yaml.MappingNode:
		sources = []*yaml.Node{v}
	case yaml.SequenceNode:
		sources = v.Content
	default:
		return fmt.Errorf("line %d: merge value must be a mapping", v.Line)
	}
	for _, src := range sources {
		if src.Kind == yaml.AliasNode {
			src = src.Alias
		}
		tmp := texttemplate.NewOrderedDict()
		if err := addMapping(tmp, src); err != nil {
			return err
		}
		for _, k := range tmp.Keys() {
			if _, ok := out.Get(k); ok {
				continue
			}
			val, _ := tmp.Get(k)
			out.Set(k, val)
		}
	}
	return nil
}

func scalar(n *yaml.Node) (texttemplate.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return texttemplate.NoneValue{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return texttemplate.BoolValue(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			// Out of int64 range: keep the text.
			return texttemplate.StringValue(n.Value), nil
		}
		return texttemplate.IntValue(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return texttemplate.FloatValue(f), nil
	}
	return texttemplate.StringValue(n.Value), nil
}

func nodeKind(n *yaml.Node) string {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	switch n.Kind {
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		return "a scalar"
	}
	return "an unknown node"
}

// Loader loads data files.
type Loader struct {
	// Engine is used by Starlark scripts through the render and
	// apply_filter builtins. It may be nil.
	Engine *texttemplate.Engine
	// Cache fetches http(s) URLs. Without it URLs are rejected.
	Cache  *netcache.Cache
	Logger *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// LoadFile loads a data file by extension: .yaml, .yml and .json are
// decoded as documents; .star files are executed and their exportable
// globals become the context. path may be an http(s) URL.
func (l *Loader) LoadFile(ctx context.Context, path string) (texttemplate.Context, error) {
	ext := strings.ToLower(filepath.Ext(path))
	local := path
	if netcache.IsURL(path) {
		if l.Cache == nil {
			return nil, fmt.Errorf("%s: remote data requires a cache", path)
		}
		u, err := url.Parse(path)
		if err != nil {
			return nil, err
		}
		ext = strings.ToLower(filepath.Ext(u.Path))
		if local, _, err = l.Cache.Get(ctx, path); err != nil {
			return nil, err
		}
	}
	switch ext {
	case ".yaml", ".yml", ".json":
		f, err := os.Open(local)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		c, err := Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		l.logger().Debug("loaded data", "path", path, "keys", len(c))
		return c, nil
	case ".star":
		src, err := os.ReadFile(local)
		if err != nil {
			return nil, err
		}
		opts := []starlark.Option{starlark.WithLogger(l.logger())}
		if l.Engine != nil {
			opts = append(opts, starlark.WithEngine(l.Engine))
		}
		ev := starlark.NewEvaluator(opts...)
		if err := ev.ExecFile(path, src); err != nil {
			return nil, err
		}
		c := ev.ExportContext()
		l.logger().Debug("loaded data script", "path", path, "keys", len(c))
		return c, nil
	default:
		return nil, fmt.Errorf("%s: unsupported data file extension %q", path, ext)
	}
}

// LoadFiles loads and merges files in order; later files override keys of
// earlier ones.
func (l *Loader) LoadFiles(ctx context.Context, paths ...string) (texttemplate.Context, error) {
	out := texttemplate.Context{}
	for _, p := range paths {
		c, err := l.LoadFile(ctx, p)
		if err != nil {
			return nil, err
		}
		Merge(out, c)
	}
	return out, nil
}

// Merge copies src into dst. Nested mappings present on both sides are
// merged recursively; any other value in src replaces the one in dst.
func Merge(dst, src texttemplate.Context) {
	for k, v := range src {
		dst[k] = mergeValue(dst[k], v)
	}
}

func mergeValue(old, v texttemplate.Value) texttemplate.Value {
	om, ok1 := old.(texttemplate.Mapping)
	nm, ok2 := v.(texttemplate.Mapping)
	if !ok1 || !ok2 {
		return v
	}
	out := texttemplate.NewOrderedDict()
	for _, k := range om.Keys() {
		ov, _ := om.Get(k)
		out.Set(k, ov)
	}
	for _, k := range nm.Keys() {
		nv, _ := nm.Get(k)
		ov, _ := out.Get(k)
		out.Set(k, mergeValue(ov, nv))
	}
	return out
}

// Set assigns a value at a dotted path, creating intermediate mappings,
// e.g. Set(ctx, "user.name", StringValue("ada")).
func Set(ctx texttemplate.Context, path string, val texttemplate.Value) error {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid path %q", path)
		}
	}
	if len(parts) == 1 {
		ctx[parts[0]] = val
		return nil
	}
	nested := texttemplate.NewOrderedDict()
	cur := nested
	for _, p := range parts[1 : len(parts)-1] {
		next := texttemplate.NewOrderedDict()
		cur.Set(p, next)
		cur = next
	}
	cur.Set(parts[len(parts)-1], val)
	ctx[parts[0]] = mergeValue(ctx[parts[0]], nested)
	return nil
}

// ParseAssignment parses "path=value". The value is decoded as a YAML
// scalar, so "n=3" sets an integer and "ok=true" a boolean.
func ParseAssignment(s string) (string, texttemplate.Value, error) {
	path, raw, ok := strings.Cut(s, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid assignment %q, expected path=value", s)
	}
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &n); err != nil || len(n.Content) == 0 || n.Content[0].Kind != yaml.ScalarNode {
		return strings.TrimSpace(path), texttemplate.StringValue(raw), nil
	}
	val, err := scalar(n.Content[0])
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(path), val, nil
}
