package texttemplate

import (
	"regexp"
	"strings"
)

var forHeader = regexp.MustCompile(`^\s*([A-Za-z0-9_@.]+)\s+in\s+([A-Za-z0-9_@.]+)\s*$`)

// Parse parses tagged template text (the output of TagNesting followed by
// RewriteElseChains) into a Document. A block's body runs up to the
// closing tag carrying the same name and identity; a closing tag for any
// other block is an *UnmatchedCloseTagError.
func Parse(tagged string) (*Document, error) {
	return parse(tagged, nil)
}

// parse limits block tags to the identities in ids when ids is non-nil.
func parse(tagged string, ids map[blockID]bool) (*Document, error) {
	p := &parser{l: newLexer(tagged, ids)}
	nodes, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	return &Document{Nodes: nodes}, nil
}

type parser struct {
	l *lexer
}

// parseNodes parses until the closing tag of open. If open is nil, parses
// to EOF.
func (p *parser) parseNodes(open *token) ([]Node, error) {
	var nodes []Node
	for {
		tok := p.l.nextToken()
		switch tok.kind {
		case tokEOF:
			if open != nil {
				return nil, &UnclosedTagError{Tag: open.name, Line: p.l.line(open.pos)}
			}
			return nodes, nil
		case tokText:
			nodes = append(nodes, &TextNode{Text: tok.val})
		case tokVar:
			nodes = append(nodes, parseVariable(tok.val))
		case tokClose:
			if open != nil && tok.name == open.name && tok.id == open.id {
				return nodes, nil
			}
			return nil, &UnmatchedCloseTagError{Tag: "/" + tok.name, Line: p.l.line(tok.pos)}
		case tokOpen:
			if tok.name == "elseif" {
				// Left over by the else-chain rewriter: no condition.
				return nil, &MalformedExpressionError{Expr: "elseif" + tok.val}
			}
			body, err := p.parseNodes(&tok)
			if err != nil {
				return nil, err
			}
			n, err := newBlock(tok, body)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
	}
}

func newBlock(tok token, body []Node) (Node, error) {
	switch tok.name {
	case "for":
		m := forHeader.FindStringSubmatch(tok.val)
		if m == nil {
			return nil, &MalformedExpressionError{Expr: strings.TrimSpace(tok.val)}
		}
		return &ForNode{ID: tok.id, Local: m[1], Collection: m[2], Body: body}, nil
	case "if":
		n := &IfNode{ID: tok.id, Body: body}
		expr := strings.TrimSpace(tok.val)
		if rest, ok := strings.CutPrefix(expr, ElseMarker); ok {
			n.Continuation = true
			expr = strings.TrimSpace(rest)
			if expr == "" {
				return n, nil
			}
		}
		cond, err := ParseCondition(expr)
		if err != nil {
			return nil, err
		}
		n.Cond = cond
		return n, nil
	default:
		return &UnknownNode{ID: tok.id, Command: tok.name, Params: strings.TrimSpace(tok.val)}, nil
	}
}

// parseVariable splits "path|filter:p1|filter2" into its path and chain.
func parseVariable(s string) *VariableNode {
	path, chain, _ := strings.Cut(s, "|")
	return &VariableNode{Path: strings.TrimSpace(path), Filters: ParseFilterChain(chain)}
}

// trimBlockNewlines drops the newline that directly follows each block's
// opening and closing tag.
func trimBlockNewlines(nodes []Node) {
	for i, n := range nodes {
		if !isBlock(n) {
			continue
		}
		if body := blockBody(n); len(body) > 0 {
			trimLeadingNewline(body[0])
			trimBlockNewlines(body)
		}
		if i+1 < len(nodes) {
			trimLeadingNewline(nodes[i+1])
		}
	}
}

func blockBody(n Node) []Node {
	switch t := n.(type) {
	case *ForNode:
		return t.Body
	case *IfNode:
		return t.Body
	}
	return nil
}

func isBlock(n Node) bool {
	switch n.(type) {
	case *ForNode, *IfNode, *UnknownNode:
		return true
	}
	return false
}

func trimLeadingNewline(n Node) {
	if t, ok := n.(*TextNode); ok {
		if s, ok := strings.CutPrefix(t.Text, "\r\n"); ok {
			t.Text = s
			return
		}
		t.Text = strings.TrimPrefix(t.Text, "\n")
	}
}
