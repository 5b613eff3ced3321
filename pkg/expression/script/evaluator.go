package script

import (
	"errors"
	"strings"

	"github.com/goliatone/go-instrument/pkg/expression"
)

// ErrEmptyExpression is returned when the expression holds no tokens.
var ErrEmptyExpression = errors.New("expression/script: empty expression")

// Evaluator is a small, dependency-free implementation of expression.Evaluator.
//
// Supported syntax:
//   - literals: numbers, 'single' or "double" quoted strings, true, false, null
//   - variables: bare identifiers with dot paths (`context.dob`) or bracketed
//     names (`[q_1]`)
//   - comparisons: `==` (or `=`), `!=` (or `<>`), `<`, `<=`, `>`, `>=`
//   - arithmetic: `+ - * / %`, unary minus, parentheses
//   - boolean composition: `&&`/`and`, `||`/`or`, `!`/`not`
//   - functions: isnull, if, round, abs, sum, min, max
//
// A variable that is missing from the context fails with
// expression.ErrUndefinedVariable; one holding nil fails with
// expression.ErrNullVariable. Everything else is a plain error.
type Evaluator struct{}

var _ expression.Evaluator = (*Evaluator)(nil)

func New() *Evaluator { return &Evaluator{} }

func (e *Evaluator) Evaluate(expr string, ctx expression.Context) (any, error) {
	n, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return n.eval(ctx)
}

// Program is a parsed expression that can be evaluated repeatedly.
type Program struct {
	root node
}

// Parse compiles expr without evaluating it. Definition loaders use it to
// report syntax errors up front.
func Parse(expr string) (*Program, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, ErrEmptyExpression
	}
	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyExpression
	}
	root, err := parseExpression(tokens)
	if err != nil {
		return nil, err
	}
	return &Program{root: root}, nil
}

func (p *Program) eval(ctx expression.Context) (any, error) {
	if p == nil || p.root == nil {
		return nil, ErrEmptyExpression
	}
	return p.root.eval(ctx)
}
