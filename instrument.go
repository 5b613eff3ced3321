// Package goinstrument is the top-level entry point for administering
// clinical instruments: load a definition, open a session, and hand the
// session to a front end such as pkg/tui.
package goinstrument

import (
	"log/slog"

	"github.com/goliatone/go-instrument/pkg/expression/script"
	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/session"
)

// Schema aliases instrument.Schema for callers importing only the root
// package.
type Schema = instrument.Schema

// AnswerSet aliases instrument.AnswerSet.
type AnswerSet = instrument.AnswerSet

// Session aliases session.Session.
type Session = session.Session

// Outcome aliases session.Outcome.
type Outcome = session.Outcome

// CheckExpression reports syntax errors in a visibility, requirement or
// formula expression using the built-in script evaluator.
func CheckExpression(expr string) error {
	_, err := script.Parse(expr)
	return err
}

// LoadSchema loads a definition and rejects expressions the built-in
// evaluator cannot parse.
func LoadSchema(src instrument.Source, options ...instrument.LoadOption) (*Schema, error) {
	opts := append([]instrument.LoadOption{instrument.WithSyntaxCheck(CheckExpression)}, options...)
	return instrument.Load(src, opts...)
}

// NewSession starts a session for schema.
func NewSession(schema *Schema, options ...session.Option) *Session {
	return session.New(schema, options...)
}

// OpenSession loads the definition at src and starts a session for it.
func OpenSession(src instrument.Source, options ...session.Option) (*Session, error) {
	schema, err := LoadSchema(src)
	if err != nil {
		return nil, err
	}
	return session.New(schema, options...), nil
}

// WithSessionLogger routes session and pipeline logs to logger.
func WithSessionLogger(logger *slog.Logger) session.Option {
	return session.WithLogger(logger)
}

// WithSessionSaver sets where completed answers are written.
func WithSessionSaver(saver session.Saver) session.Option {
	return session.WithSaver(saver)
}
