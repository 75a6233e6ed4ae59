package texttemplate

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned by loaders for unknown template names.
var ErrTemplateNotFound = errors.New("template not found")

// UnmatchedCloseTagError reports a closing tag (or else/elseif) without an
// open counterpart, or one that closes a block other than the innermost
// open one. Tag is the tag as written, e.g. "/if" or "else".
type UnmatchedCloseTagError struct {
	Tag  string
	Line int
}

func (e *UnmatchedCloseTagError) Error() string {
	return fmt.Sprintf("line %d: opening tag not found for {%s}", e.Line, e.Tag)
}

// UnclosedTagError reports a block tag that is never closed.
type UnclosedTagError struct {
	Tag  string
	Line int
}

func (e *UnclosedTagError) Error() string {
	return fmt.Sprintf("unclosed tag {%s} opened in line %d", e.Tag, e.Line)
}

// ResolutionError reports a variable path that cannot be resolved in
// strict mode.
type ResolutionError struct {
	Path    string
	Segment string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: no element %q", e.Path, e.Segment)
}

// UndefinedFilterError reports an unknown filter name in a chain.
type UndefinedFilterError struct {
	Name string
}

func (e *UndefinedFilterError) Error() string {
	return fmt.Sprintf("filter %q not defined", e.Name)
}

// MalformedExpressionError reports a condition or loop header that cannot
// be parsed.
type MalformedExpressionError struct {
	Expr string
}

func (e *MalformedExpressionError) Error() string {
	return fmt.Sprintf("malformed expression: %q", e.Expr)
}

// UnknownCommandError names a block command the engine does not know. It
// is never returned from a render; its text is written inline instead.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("!! Invalid command: '%s' !!", e.Command)
}

// MaxDepthError reports block nesting beyond the configured limit.
type MaxDepthError struct {
	Depth int
}

func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("block nesting exceeds maximum depth %d", e.Depth)
}
