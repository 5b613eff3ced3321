package pipeline

import (
	"fmt"

	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/instrument"
)

// FormulaError reports a calc field whose DisplayIf or Formula failed for a
// reason other than an unanswered dependency. It is never recovered from.
type FormulaError struct {
	Field    string
	Property string
	Err      error
}

func (e *FormulaError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("pipeline: calc field %q: %s: %v", e.Field, e.Property, e.Err)
}

// Unwrap exposes the evaluator error.
func (e *FormulaError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Calculate evaluates every calc field in fields and returns their display
// values keyed by name. Fields hidden by DisplayIf and fields whose inputs are
// not yet answered are left out of the result.
func (p *Pipeline) Calculate(fields []instrument.FieldSchema, data instrument.AnswerSet, ctx Context) (map[string]string, error) {
	out := make(map[string]string)
	for _, field := range fields {
		if field.Type != instrument.FieldTypeCalc {
			continue
		}

		show, err := p.calcDisplayed(field, data, ctx)
		if err != nil {
			return nil, err
		}
		if !show {
			continue
		}

		result, err := p.evaluate(field.Formula, data, ctx)
		if err != nil {
			if expression.IsReadinessGap(err) {
				continue
			}
			return nil, &FormulaError{Field: field.Name, Property: "Formula", Err: err}
		}

		value := expression.DisplayString(result)
		if value == "" {
			value = "0"
		}
		out[field.Name] = value
	}
	return out, nil
}

func (p *Pipeline) calcDisplayed(field instrument.FieldSchema, data instrument.AnswerSet, ctx Context) (bool, error) {
	if field.DisplayIf.IsEmpty() {
		return true, nil
	}
	if literal, ok := field.DisplayIf.Literal(); ok {
		return literal, nil
	}
	result, err := p.evaluate(field.DisplayIf.Expression(), data, ctx)
	if err != nil {
		if expression.IsReadinessGap(err) {
			return false, nil
		}
		return false, &FormulaError{Field: field.Name, Property: "DisplayIf", Err: err}
	}
	return expression.Truthy(result), nil
}
