package expression

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Evaluator computes the value of an expression (a DisplayIf condition, a
// RequireResponse rule or a calc Formula) against a variable context. Results
// are bool, float64 or string; nil is returned for null-valued expressions.
type Evaluator interface {
	Evaluate(expression string, ctx Context) (any, error)
}

// Context is the variable scope handed to an Evaluator. The pipeline builds a
// fresh Context for every evaluation: the current answers plus the external
// session context under the ContextKey entry.
type Context map[string]any

// ContextKey is the reserved variable holding the external session context
// (for example `context.dob`).
const ContextKey = "context"

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(expression string, ctx Context) (any, error)

// Evaluate delegates to the underlying function.
func (fn EvaluatorFunc) Evaluate(expression string, ctx Context) (any, error) {
	return fn(expression, ctx)
}

var (
	// ErrNullVariable reports a referenced variable that exists but holds null.
	ErrNullVariable = errors.New("expression: referenced variable is null")
	// ErrUndefinedVariable reports a referenced variable that is absent.
	ErrUndefinedVariable = errors.New("expression: referenced variable is undefined")
)

// VariableError carries the variable name alongside one of the readiness
// failure kinds. errors.Is matches it against ErrNullVariable or
// ErrUndefinedVariable.
type VariableError struct {
	Name string
	Kind error
}

func (e *VariableError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Name)
}

// Unwrap exposes the failure kind.
func (e *VariableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

// NullVariable builds a VariableError for a null-valued variable.
func NullVariable(name string) error {
	return &VariableError{Name: name, Kind: ErrNullVariable}
}

// UndefinedVariable builds a VariableError for a missing variable.
func UndefinedVariable(name string) error {
	return &VariableError{Name: name, Kind: ErrUndefinedVariable}
}

// IsNull reports whether err signals a null variable.
func IsNull(err error) bool {
	return errors.Is(err, ErrNullVariable)
}

// IsUndefined reports whether err signals an undefined variable.
func IsUndefined(err error) bool {
	return errors.Is(err, ErrUndefinedVariable)
}

// IsReadinessGap reports whether err is one of the "dependent value not yet
// answered" failures rather than an authoring error.
func IsReadinessGap(err error) bool {
	return IsNull(err) || IsUndefined(err)
}

// NewContext merges answers with the external context under ContextKey. The
// answers map is copied so evaluators never hold a reference to caller state.
func NewContext(answers map[string]any, external map[string]any) Context {
	ctx := make(Context, len(answers)+1)
	for key, value := range answers {
		ctx[key] = value
	}
	ext := make(map[string]any, len(external))
	for key, value := range external {
		ext[key] = value
	}
	ctx[ContextKey] = ext
	return ctx
}

// Truthy applies the loose truthiness used by instrument rules: nil, false,
// zero, NaN and the empty string are false.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0 && !math.IsNaN(float64(v))
	case []any:
		return true
	case map[string]any:
		return true
	default:
		return true
	}
}

// DisplayString converts an evaluation result into the string stored for a
// calc field. Whole numbers drop the fractional part ("3" not "3.0").
func DisplayString(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
