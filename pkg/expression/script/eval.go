package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-instrument/pkg/expression"
)

type node interface {
	eval(ctx expression.Context) (any, error)
}

type literalNode struct {
	value any
}

func (n literalNode) eval(expression.Context) (any, error) {
	return n.value, nil
}

type variableNode struct {
	name string
}

func (n variableNode) eval(ctx expression.Context) (any, error) {
	value, ok := lookup(ctx, n.name)
	if !ok {
		return nil, expression.UndefinedVariable(n.name)
	}
	if value == nil {
		return nil, expression.NullVariable(n.name)
	}
	return normalize(value), nil
}

type orNode struct {
	left  node
	right node
}

func (n orNode) eval(ctx expression.Context) (any, error) {
	left, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if expression.Truthy(left) {
		return true, nil
	}
	right, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	return expression.Truthy(right), nil
}

type andNode struct {
	left  node
	right node
}

func (n andNode) eval(ctx expression.Context) (any, error) {
	left, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if !expression.Truthy(left) {
		return false, nil
	}
	right, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	return expression.Truthy(right), nil
}

type notNode struct {
	inner node
}

func (n notNode) eval(ctx expression.Context) (any, error) {
	value, err := n.inner.eval(ctx)
	if err != nil {
		return nil, err
	}
	return !expression.Truthy(value), nil
}

type negateNode struct {
	inner node
}

func (n negateNode) eval(ctx expression.Context) (any, error) {
	value, err := n.inner.eval(ctx)
	if err != nil {
		return nil, err
	}
	num, ok := coerceNumber(value)
	if !ok {
		return nil, fmt.Errorf("expression/script: cannot negate %q", expression.DisplayString(value))
	}
	return -num, nil
}

type compareNode struct {
	op    tokenKind
	left  node
	right node
}

func (n compareNode) eval(ctx expression.Context) (any, error) {
	left, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokenEq:
		return looseEqual(left, right), nil
	case tokenNeq:
		return !looseEqual(left, right), nil
	}

	cmp, ok := order(left, right)
	if !ok {
		return false, nil
	}
	switch n.op {
	case tokenLt:
		return cmp < 0, nil
	case tokenLte:
		return cmp <= 0, nil
	case tokenGt:
		return cmp > 0, nil
	case tokenGte:
		return cmp >= 0, nil
	default:
		return nil, fmt.Errorf("expression/script: unsupported comparison operator")
	}
}

type arithNode struct {
	op    tokenKind
	left  node
	right node
}

func (n arithNode) eval(ctx expression.Context) (any, error) {
	left, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}

	lnum, lok := coerceNumber(left)
	rnum, rok := coerceNumber(right)
	if n.op == tokenPlus && (!lok || !rok) {
		return expression.DisplayString(left) + expression.DisplayString(right), nil
	}
	if !lok || !rok {
		return nil, fmt.Errorf("expression/script: non-numeric operand for %s: %q, %q",
			opString(n.op), expression.DisplayString(left), expression.DisplayString(right))
	}

	switch n.op {
	case tokenPlus:
		return lnum + rnum, nil
	case tokenMinus:
		return lnum - rnum, nil
	case tokenStar:
		return lnum * rnum, nil
	case tokenSlash:
		return lnum / rnum, nil
	case tokenPercent:
		return math.Mod(lnum, rnum), nil
	default:
		return nil, fmt.Errorf("expression/script: unsupported arithmetic operator")
	}
}

type callNode struct {
	name string
	fn   function
	args []node
}

func (n callNode) eval(ctx expression.Context) (any, error) {
	return n.fn.call(ctx, n.args)
}

func opString(kind tokenKind) string {
	switch kind {
	case tokenPlus:
		return "+"
	case tokenMinus:
		return "-"
	case tokenStar:
		return "*"
	case tokenSlash:
		return "/"
	case tokenPercent:
		return "%"
	default:
		return "?"
	}
}

func lookup(ctx expression.Context, key string) (any, bool) {
	key = strings.TrimSpace(key)
	if key == "" || ctx == nil {
		return nil, false
	}

	// Prefer exact match for dotted keys.
	if v, ok := ctx[key]; ok {
		return v, true
	}

	parts := strings.Split(key, ".")
	var current any = map[string]any(ctx)
	for _, part := range parts {
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case expression.Context:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}

// normalize folds the integer kinds into float64 so arithmetic and equality
// work on a single numeric representation.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case float32:
		return float64(v)
	case uint:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return value
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := normalize(value).(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func looseEqual(left, right any) bool {
	left, right = normalize(left), normalize(right)
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	lb, lIsBool := left.(bool)
	rb, rIsBool := right.(bool)
	if lIsBool || rIsBool {
		if lIsBool && rIsBool {
			return lb == rb
		}
		if lIsBool {
			return lb == boolOf(right)
		}
		return rb == boolOf(left)
	}

	if lnum, ok := numericOperand(left); ok {
		if rnum, ok := numericOperand(right); ok {
			return lnum == rnum
		}
	}
	return expression.DisplayString(left) == expression.DisplayString(right)
}

func boolOf(value any) bool {
	if s, ok := value.(string); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return expression.Truthy(value)
}

// numericOperand only accepts numbers and numeric strings; booleans are
// excluded so comparisons never silently turn true into 1.
func numericOperand(value any) (float64, bool) {
	if _, isBool := value.(bool); isBool {
		return 0, false
	}
	return coerceNumber(value)
}

func order(left, right any) (int, bool) {
	left, right = normalize(left), normalize(right)
	if left == nil || right == nil {
		return 0, false
	}
	if lnum, ok := numericOperand(left); ok {
		if rnum, ok := numericOperand(right); ok {
			switch {
			case lnum < rnum:
				return -1, true
			case lnum > rnum:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return strings.Compare(expression.DisplayString(left), expression.DisplayString(right)), true
}
