package texttemplate

import (
	"regexp"
	"strconv"
	"strings"
)

const operandPattern = `("[^"]*"|'[^']*'|[^\s=!<>"']+)`

var (
	binaryExpr  = regexp.MustCompile(`^\s*` + operandPattern + `\s*(===|!==|==|!=|<=|>=|<|>)\s*` + operandPattern + `\s*$`)
	unaryExpr   = regexp.MustCompile(`^\s*` + operandPattern + `\s*$`)
	numberToken = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// Condition is a parsed if/elseif expression: either "operand op operand"
// or a single operand tested for truthiness.
type Condition struct {
	Raw   string
	Left  Operand
	Op    string // empty for the single-operand form
	Right Operand
}

// Operand is a literal or a dotted variable path.
type Operand struct {
	Raw     string
	Literal Value // nil when the operand is a path
}

// ParseCondition parses expression text. Text that matches neither the
// binary nor the single-operand form is a *MalformedExpressionError.
func ParseCondition(expr string) (*Condition, error) {
	if m := binaryExpr.FindStringSubmatch(expr); m != nil {
		return &Condition{Raw: expr, Left: parseOperand(m[1]), Op: m[2], Right: parseOperand(m[3])}, nil
	}
	if m := unaryExpr.FindStringSubmatch(expr); m != nil {
		return &Condition{Raw: expr, Left: parseOperand(m[1])}, nil
	}
	return nil, &MalformedExpressionError{Expr: expr}
}

// EvaluateCondition parses and evaluates expr against ctx. Variable
// operands resolve softly, so missing paths compare as none.
func EvaluateCondition(expr string, ctx Context) (bool, error) {
	c, err := ParseCondition(expr)
	if err != nil {
		return false, err
	}
	return c.Eval(ctx), nil
}

func parseOperand(s string) Operand {
	o := Operand{Raw: s}
	switch {
	case len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]:
		o.Literal = StringValue(s[1 : len(s)-1])
	case numberToken.MatchString(s):
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			o.Literal = IntValue(i)
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			o.Literal = FloatValue(f)
		}
	case strings.EqualFold(s, "true"):
		o.Literal = BoolValue(true)
	case strings.EqualFold(s, "false"):
		o.Literal = BoolValue(false)
	case strings.EqualFold(s, "null"):
		o.Literal = NoneValue{}
	}
	return o
}

// Value returns the literal, or the path resolved in ctx.
func (o Operand) Value(ctx Context) Value {
	if o.Literal != nil {
		return o.Literal
	}
	v, _, _ := resolve(ctx, o.Raw, true)
	return v
}

// Eval evaluates the condition against ctx.
func (c *Condition) Eval(ctx Context) bool {
	a := c.Left.Value(ctx)
	if c.Op == "" {
		return looseEqual(a, BoolValue(true))
	}
	b := c.Right.Value(ctx)
	switch c.Op {
	case "==":
		return looseEqual(a, b)
	case "!=":
		return !looseEqual(a, b)
	case "===":
		return strictEqual(a, b)
	case "!==":
		return !strictEqual(a, b)
	}
	n, ok := compareValues(a, b)
	if !ok {
		return false
	}
	switch c.Op {
	case "<":
		return n < 0
	case "<=":
		return n <= 0
	case ">":
		return n > 0
	case ">=":
		return n >= 0
	}
	return false
}
