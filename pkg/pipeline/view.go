package pipeline

import "github.com/goliatone/go-instrument/pkg/instrument"

// View filters the schema down to displayed fields and annotates each with
// its current value and resolved requirement. The returned slice is built
// fresh on every call.
func (p *Pipeline) View(data instrument.AnswerSet, ctx Context, surveyMode bool) []instrument.AnnotatedField {
	fields := p.schema.Fields()
	out := make([]instrument.AnnotatedField, 0, len(fields))
	for idx, field := range fields {
		if !p.isDisplayed(idx, field, data, ctx, surveyMode) {
			continue
		}
		out = append(out, instrument.AnnotatedField{
			FieldSchema:     field,
			Index:           idx,
			Value:           data[field.Name],
			RequireResponse: p.isRequired(idx, field, data, ctx),
		})
	}
	return out
}

// MissingRequired returns the names of annotated fields that are required
// but hold no answer.
func MissingRequired(fields []instrument.AnnotatedField) []string {
	var missing []string
	for _, field := range fields {
		if field.Missing() {
			missing = append(missing, field.Name)
		}
	}
	return missing
}
