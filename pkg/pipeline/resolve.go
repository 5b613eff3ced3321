package pipeline

import (
	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/instrument"
)

// IsDisplayed reports whether field is shown for the current answers.
// Unresolvable rules hide the field: a null variable does so silently, any
// other evaluation failure is logged.
func (p *Pipeline) IsDisplayed(field instrument.FieldSchema, data instrument.AnswerSet, ctx Context, surveyMode bool) bool {
	return p.isDisplayed(-1, field, data, ctx, surveyMode)
}

func (p *Pipeline) isDisplayed(index int, field instrument.FieldSchema, data instrument.AnswerSet, ctx Context, surveyMode bool) bool {
	if field.Hidden || (surveyMode && field.HiddenSurvey) {
		return false
	}
	if field.DisplayIf.IsEmpty() {
		return true
	}
	if literal, ok := field.DisplayIf.Literal(); ok {
		return literal
	}

	result, err := p.evaluate(field.DisplayIf.Expression(), data, ctx)
	if err != nil {
		if !expression.IsNull(err) {
			p.logRuleError("DisplayIf", index, field, err)
		}
		return false
	}
	return expression.Truthy(result)
}

// IsRequired reports whether field must be answered before saving. Label
// kinds are never required; rule failures resolve to not required.
func (p *Pipeline) IsRequired(field instrument.FieldSchema, data instrument.AnswerSet, ctx Context) bool {
	return p.isRequired(-1, field, data, ctx)
}

func (p *Pipeline) isRequired(index int, field instrument.FieldSchema, data instrument.AnswerSet, ctx Context) bool {
	kind, ok := field.Kind()
	if !ok || !kind.IsInput() {
		return false
	}
	rule := field.Options.RequireResponse
	if rule.IsEmpty() {
		return false
	}
	if literal, ok := rule.Literal(); ok {
		return literal
	}

	result, err := p.evaluate(rule.Expression(), data, ctx)
	if err != nil {
		if !expression.IsNull(err) {
			p.logRuleError("RequireResponse", index, field, err)
		}
		return false
	}
	return expression.Truthy(result)
}

func (p *Pipeline) logRuleError(property string, index int, field instrument.FieldSchema, err error) {
	args := []any{
		"property", property,
		"field", field.Name,
		"error", err,
	}
	if index >= 0 {
		args = append(args, "index", index)
	}
	p.logger.Warn("pipeline: rule evaluation failed", args...)
}
