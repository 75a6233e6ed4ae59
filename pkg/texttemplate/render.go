package texttemplate

import (
	"bytes"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// ContextPath is the reserved variable path that renders a dump of the
// whole current context.
const ContextPath = "__CONTEXT__"

// Renderer evaluates parsed documents.
type Renderer struct {
	Filters  Filters
	Logger   *slog.Logger
	MaxDepth int // 0 means unlimited
}

func NewRenderer(filters Filters) *Renderer {
	if filters == nil {
		filters = DefaultFilters()
	}
	return &Renderer{Filters: filters, Logger: slog.Default()}
}

// evalState is the mutable state of a single render. It is never shared
// between renders, so one Renderer may serve concurrent calls.
type evalState struct {
	softFail bool
	// matched records, per if-chain identity, whether a branch of the
	// current evaluation of that chain has already been taken.
	matched map[int]bool
	depth   int
}

// Render evaluates doc against ctx. On error no partial output is returned.
func (r *Renderer) Render(doc *Document, ctx Context, softFail bool) (string, error) {
	if ctx == nil {
		ctx = Context{}
	}
	st := &evalState{softFail: softFail, matched: map[int]bool{}}
	var buf bytes.Buffer
	if err := r.renderNodes(&buf, doc.Nodes, ctx, st); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Renderer) renderNodes(buf *bytes.Buffer, nodes []Node, ctx Context, st *evalState) error {
	for _, n := range nodes {
		switch t := n.(type) {
		case *TextNode:
			buf.WriteString(t.Text)
		case *VariableNode:
			if err := r.renderVariable(buf, t, ctx, st); err != nil {
				return err
			}
		case *ForNode:
			if err := r.enter(st); err != nil {
				return err
			}
			err := r.renderFor(buf, t, ctx, st)
			st.depth--
			if err != nil {
				return err
			}
		case *IfNode:
			if err := r.enter(st); err != nil {
				return err
			}
			err := r.renderIf(buf, t, ctx, st)
			st.depth--
			if err != nil {
				return err
			}
		case *UnknownNode:
			r.logger().Warn("unknown block command", "command", t.Command)
			buf.WriteString((&UnknownCommandError{Command: t.Command}).Error())
		default:
			return fmt.Errorf("unhandled node type: %T", n)
		}
	}
	return nil
}

func (r *Renderer) enter(st *evalState) error {
	st.depth++
	if r.MaxDepth > 0 && st.depth > r.MaxDepth {
		st.depth--
		return &MaxDepthError{Depth: r.MaxDepth}
	}
	return nil
}

func (r *Renderer) renderVariable(buf *bytes.Buffer, n *VariableNode, ctx Context, st *evalState) error {
	if n.Path == ContextPath {
		dump, err := dumpContext(ctx)
		if err != nil {
			return err
		}
		buf.WriteString(dump)
		return nil
	}
	v, missing, err := resolve(ctx, n.Path, st.softFail)
	if err != nil {
		return err
	}
	if missing != "" {
		r.logger().Debug("variable not found", "path", n.Path, "segment", missing)
	}
	out, err := r.Filters.Apply(v, n.Filters)
	if err != nil {
		return fmt.Errorf("rendering {=%s}: %w", n.Path, err)
	}
	buf.WriteString(out.String())
	return nil
}

func (r *Renderer) renderFor(buf *bytes.Buffer, n *ForNode, ctx Context, st *evalState) error {
	coll, _, _ := resolve(ctx, n.Collection, true)
	items, ok := entries(coll)
	if !ok {
		return nil
	}
	for idx, it := range items {
		child := ctx.derive()
		child[n.Local] = it.val
		child["@key"] = it.key
		child["@index0"] = IntValue(idx)
		child["@index1"] = IntValue(idx + 1)
		if err := r.renderNodes(buf, n.Body, child, st); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderIf(buf *bytes.Buffer, n *IfNode, ctx Context, st *evalState) error {
	if !n.Continuation {
		st.matched[n.ID] = false
	} else if st.matched[n.ID] {
		return nil
	}
	if n.Cond != nil && !n.Cond.Eval(ctx) {
		return nil
	}
	st.matched[n.ID] = true
	return r.renderNodes(buf, n.Body, ctx, st)
}

func dumpContext(ctx Context) (string, error) {
	node, err := yamlNode(DictValue(ctx))
	if err == nil {
		var out []byte
		if out, err = yaml.Marshal(node); err == nil {
			return "\n----- " + ContextPath + " -----\n" + string(out) + "----- / " + ContextPath + " -----\n", nil
		}
	}
	return "", fmt.Errorf("dumping context: %w", err)
}

// yamlNode builds a yaml node that keeps the key order of each mapping.
func yamlNode(v Value) (*yaml.Node, error) {
	switch t := normalize(v).(type) {
	case Mapping:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range t.Keys() {
			vv, _ := t.Get(k)
			child, err := yamlNode(vv)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, child)
		}
		return n, nil
	case ListValue:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range t {
			child, err := yamlNode(it)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(ToGo(t)); err != nil {
			return nil, err
		}
		return n, nil
	}
}
