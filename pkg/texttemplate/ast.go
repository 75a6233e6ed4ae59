package texttemplate

// Node is any node in a parsed template.
type Node interface {
	node()
}

// Document is the root node produced by Parse.
type Document struct {
	Nodes []Node
}

func (*Document) node() {}

// TextNode represents literal text between tags.
type TextNode struct {
	Text string
}

func (*TextNode) node() {}

// VariableNode represents a substitution tag: {=path|filter:p1|filter2}
type VariableNode struct {
	Path    string
	Filters []FilterCall
}

func (*VariableNode) node() {}

// ForNode represents a loop: {for local in collection}...{/for}
type ForNode struct {
	ID         int
	Local      string
	Collection string
	Body       []Node
}

func (*ForNode) node() {}

// IfNode represents one branch of an if chain. Branches produced from
// else/elseif share the ID of the chain's first if and set Continuation.
type IfNode struct {
	ID           int
	Cond         *Condition // nil for a bare else branch
	Continuation bool
	Body         []Node
}

func (*IfNode) node() {}

// UnknownNode is a block whose command the engine does not implement. It
// renders as an inline error marker.
type UnknownNode struct {
	ID      int
	Command string
	Params  string
}

func (*UnknownNode) node() {}
