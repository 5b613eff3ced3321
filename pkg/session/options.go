package session

import (
	"log/slog"

	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/pipeline"
)

// Option mutates a Session during construction.
type Option func(*Session)

// WithLogger sets the logger shared with the underlying pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithEvaluator swaps the expression evaluator used by the pipeline.
func WithEvaluator(evaluator expression.Evaluator) Option {
	return func(s *Session) {
		s.evaluator = evaluator
	}
}

// WithSaver sets the collaborator that receives the answers on save.
func WithSaver(saver Saver) Option {
	return func(s *Session) {
		s.saver = saver
	}
}

// WithContext sets the external evaluation context (for example the
// candidate date of birth under "dob").
func WithContext(ctx pipeline.Context) Option {
	return func(s *Session) {
		s.context = make(pipeline.Context, len(ctx))
		for k, v := range ctx {
			s.context[k] = v
		}
	}
}

// WithInitialData seeds the answer set, for example when resuming a draft.
func WithInitialData(data instrument.AnswerSet) Option {
	return func(s *Session) {
		s.data = data.Clone()
	}
}

// WithWindows sets the admissible age windows.
func WithWindows(windows ...instrument.AgeWindow) Option {
	return func(s *Session) {
		s.windows = append([]instrument.AgeWindow(nil), windows...)
	}
}

// WithSurveyMode hides fields flagged HiddenSurvey.
func WithSurveyMode(enabled bool) Option {
	return func(s *Session) {
		s.surveyMode = enabled
	}
}

// WithDataEntryMode exposes the meta block and allows editing Date_taken and
// Examiner.
func WithDataEntryMode(enabled bool) Option {
	return func(s *Session) {
		s.dataEntryMode = enabled
	}
}

// WithFrozen makes the session read-only.
func WithFrozen(frozen bool) Option {
	return func(s *Session) {
		s.frozen = frozen
	}
}

// WithExaminers restricts Examiner edits to the given id → name table.
func WithExaminers(examiners map[string]string) Option {
	return func(s *Session) {
		s.examiners = make(map[string]string, len(examiners))
		for id, name := range examiners {
			s.examiners[id] = name
		}
	}
}

// WithLocale selects the language of session messages.
func WithLocale(locale string) Option {
	return func(s *Session) {
		s.locale = locale
	}
}

// WithTranslator overrides how session messages are resolved.
func WithTranslator(t Translator) Option {
	return func(s *Session) {
		s.translator = t
	}
}
