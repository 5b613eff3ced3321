// Package pipeline derives everything an instrument form shows from its
// schema, the current answers and the external session context: which
// fields are displayed, which are required, the values of calc fields and the
// reconciled answer set after each edit.
//
// A Pipeline holds no answer state of its own; callers pass the answer set in
// and receive fresh maps back.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/expression/script"
	"github.com/goliatone/go-instrument/pkg/instrument"
)

// ContextDOB is the external context key holding the candidate date of birth.
const ContextDOB = "dob"

// Context is the external evaluation context (candidate date of birth and
// any other session-level values). Expressions reach it as `context.<key>`.
type Context map[string]any

// Option mutates a Pipeline during construction.
type Option func(*Pipeline)

// WithEvaluator swaps the expression evaluator.
func WithEvaluator(evaluator expression.Evaluator) Option {
	return func(p *Pipeline) {
		p.evaluator = evaluator
	}
}

// WithLogger sets the logger used for rule diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithWindows sets the admissible age windows used for Window_Difference.
func WithWindows(windows ...instrument.AgeWindow) Option {
	return func(p *Pipeline) {
		p.windows = append([]instrument.AgeWindow(nil), windows...)
	}
}

// Pipeline evaluates instrument rules for one schema.
type Pipeline struct {
	schema    *instrument.Schema
	evaluator expression.Evaluator
	logger    *slog.Logger
	windows   []instrument.AgeWindow
}

// New constructs a Pipeline for schema. The built-in script evaluator is used
// unless WithEvaluator is supplied.
func New(schema *instrument.Schema, options ...Option) *Pipeline {
	p := &Pipeline{schema: schema}
	for _, opt := range options {
		if opt != nil {
			opt(p)
		}
	}
	p.applyDefaults()
	return p
}

func (p *Pipeline) applyDefaults() {
	if p.schema == nil {
		p.schema = instrument.NewSchema(instrument.Meta{}, nil)
	}
	if p.evaluator == nil {
		p.evaluator = script.New()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
}

// Schema returns the schema the pipeline was built for.
func (p *Pipeline) Schema() *instrument.Schema {
	return p.schema
}

// Windows returns a copy of the configured age windows.
func (p *Pipeline) Windows() []instrument.AgeWindow {
	return append([]instrument.AgeWindow(nil), p.windows...)
}

func (p *Pipeline) evaluate(rule string, data instrument.AnswerSet, ctx Context) (any, error) {
	return p.evaluator.Evaluate(rule, expression.NewContext(data, ctx))
}

// dateString renders answer and context date values as YYYY-MM-DD text.
func dateString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(time.DateOnly)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(time.DateOnly)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
