package texttemplate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseTree(t *testing.T) {
	doc, err := Parse("Hi {=user.name|singleLine|fixedLength:8:-}!{for1 x in xs}[{=x}]{/for1}{if2 ::NL_ELSE_FALSE}e{/if2}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := &Document{Nodes: []Node{
		&TextNode{Text: "Hi "},
		&VariableNode{Path: "user.name", Filters: []FilterCall{
			{Name: "singleLine"},
			{Name: "fixedLength", Params: []string{"8", "-"}},
		}},
		&TextNode{Text: "!"},
		&ForNode{ID: 1, Local: "x", Collection: "xs", Body: []Node{
			&TextNode{Text: "["},
			&VariableNode{Path: "x"},
			&TextNode{Text: "]"},
		}},
		&IfNode{ID: 2, Continuation: true, Body: []Node{&TextNode{Text: "e"}}},
	}}
	if diff := cmp.Diff(want, doc, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCondition(t *testing.T) {
	cases := []struct {
		expr  string
		op    string
		left  string
		right string
	}{
		{"a==b", "==", "a", "b"},
		{"  user.age >= 18 ", ">=", "user.age", "18"},
		{`name !== "x y"`, "!==", "name", `"x y"`},
		{"isActive", "", "isActive", ""},
		{"'a<b' < c", "<", "'a<b'", "c"},
	}
	for _, c := range cases {
		cond, err := ParseCondition(c.expr)
		if err != nil {
			t.Fatalf("ParseCondition(%q): %v", c.expr, err)
		}
		if cond.Op != c.op || cond.Left.Raw != c.left || cond.Right.Raw != c.right {
			t.Fatalf("ParseCondition(%q) = %q %q %q", c.expr, cond.Left.Raw, cond.Op, cond.Right.Raw)
		}
	}
	for _, bad := range []string{"a ==", "a b", "== b", ""} {
		_, err := ParseCondition(bad)
		var e *MalformedExpressionError
		if !errors.As(err, &e) {
			t.Fatalf("ParseCondition(%q): want MalformedExpressionError, got %v", bad, err)
		}
	}
}

func TestParseOverlappingBlocks(t *testing.T) {
	tagged, err := TagNesting("{if 1}{for x in xs}{/if}{/for}")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	_, err = Parse(tagged)
	var e *UnmatchedCloseTagError
	if !errors.As(err, &e) || e.Tag != "/if" {
		t.Fatalf("want UnmatchedCloseTagError for /if, got %v", err)
	}
}

func TestParseBadForHeader(t *testing.T) {
	_, err := Parse("{for0 x of xs}{/for0}")
	var e *MalformedExpressionError
	if !errors.As(err, &e) || e.Expr != "x of xs" {
		t.Fatalf("want MalformedExpressionError, got %v", err)
	}
}

func TestLexerLeavesUntaggedBlocksAsText(t *testing.T) {
	doc, err := Parse("{if x}{=a")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(doc.Nodes) != 1 {
		t.Fatalf("want one text node, got %d", len(doc.Nodes))
	}
	if tn, ok := doc.Nodes[0].(*TextNode); !ok || tn.Text != "{if x}{=a" {
		t.Fatalf("got %#v", doc.Nodes[0])
	}
}

func TestPretty(t *testing.T) {
	tpl, err := New().Compile("{if a}{=b|raw}{elseif c}x{else}{foo}{/foo}{/if}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := Pretty(tpl.Doc)
	want := strings.Join([]string{
		"Document",
		`  If#0("a")`,
		"    Variable(b |raw)",
		`  ElseIf#0("c")`,
		`    Text("x")`,
		"  Else#0",
		`    Unknown#1(foo "")`,
		"",
	}, "\n")
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestWalkCountsNodes(t *testing.T) {
	tpl, err := New().Compile("{for x in xs}{if x}{=x}{/if}{/for}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var vars int
	err = Walk(VisitorFunc(func(n Node) error {
		if _, ok := n.(*VariableNode); ok {
			vars++
		}
		return nil
	}), tpl.Doc)
	if err != nil || vars != 1 {
		t.Fatalf("vars=%d err=%v", vars, err)
	}
}
