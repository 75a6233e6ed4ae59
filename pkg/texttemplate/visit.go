package texttemplate

import (
	"bytes"
	"fmt"
)

type Visitor interface {
	Visit(n Node) error
}

func Walk(v Visitor, n Node) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	var children []Node
	switch t := n.(type) {
	case *Document:
		children = t.Nodes
	case *ForNode:
		children = t.Body
	case *IfNode:
		children = t.Body
	}
	for _, c := range children {
		if err := Walk(v, c); err != nil {
			return err
		}
	}
	return nil
}

// VisitorFunc adapts a function to a Visitor.
type VisitorFunc func(n Node) error

func (f VisitorFunc) Visit(n Node) error { return f(n) }

// Pretty returns a line-oriented string representation of the tree.
func Pretty(doc *Document) string {
	var buf bytes.Buffer
	ppNode(&buf, 0, doc)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}
	var children []Node
	switch t := n.(type) {
	case *Document:
		buf.WriteString("Document\n")
		children = t.Nodes
	case *TextNode:
		fmt.Fprintf(buf, "Text(%q)\n", t.Text)
	case *VariableNode:
		fmt.Fprintf(buf, "Variable(%s", t.Path)
		for _, f := range t.Filters {
			fmt.Fprintf(buf, " |%s", f)
		}
		buf.WriteString(")\n")
	case *ForNode:
		fmt.Fprintf(buf, "For#%d(%s in %s)\n", t.ID, t.Local, t.Collection)
		children = t.Body
	case *IfNode:
		switch {
		case t.Cond == nil:
			fmt.Fprintf(buf, "Else#%d\n", t.ID)
		case t.Continuation:
			fmt.Fprintf(buf, "ElseIf#%d(%q)\n", t.ID, t.Cond.Raw)
		default:
			fmt.Fprintf(buf, "If#%d(%q)\n", t.ID, t.Cond.Raw)
		}
		children = t.Body
	case *UnknownNode:
		fmt.Fprintf(buf, "Unknown#%d(%s %q)\n", t.ID, t.Command, t.Params)
	}
	for _, c := range children {
		ppNode(buf, indent+2, c)
	}
}
