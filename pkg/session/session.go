// Package session owns the answers of one instrument administration and
// drives them through edit, validation and save.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/pipeline"
)

var (
	// ErrUnknownField reports an edit naming neither a schema field nor a
	// meta key.
	ErrUnknownField = errors.New("session: unknown field")
	// ErrReadOnlyField reports an edit of a derived or presentational field.
	ErrReadOnlyField = errors.New("session: field is read-only")
	// ErrUnknownExaminer reports an Examiner value outside the configured list.
	ErrUnknownExaminer = errors.New("session: unknown examiner")
	// ErrFrozen reports an edit or save on a frozen session.
	ErrFrozen = errors.New("session: instrument is frozen")
	// ErrSaved reports an edit or save after the session has been saved.
	ErrSaved = errors.New("session: instrument already saved")
)

// State is the lifecycle position of a Session.
type State int

const (
	// Editing is the default state.
	Editing State = iota
	// ValidationFailed follows a save attempt with required fields empty.
	ValidationFailed
	// Saved is terminal; the answers were handed to the Saver.
	Saved
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case ValidationFailed:
		return "validation-failed"
	case Saved:
		return "saved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Saver persists the reconciled answers of a completed instrument.
type Saver interface {
	Save(ctx context.Context, data instrument.AnswerSet) error
}

// SaverFunc adapts a function into a Saver.
type SaverFunc func(ctx context.Context, data instrument.AnswerSet) error

// Save delegates to the underlying function.
func (fn SaverFunc) Save(ctx context.Context, data instrument.AnswerSet) error {
	return fn(ctx, data)
}

// Outcome describes the result of RequestSave.
type Outcome struct {
	State   State
	Message string
	// Missing lists required fields left empty, in schema order.
	Missing []string
}

// MetaData is the data-entry block shown above the instrument.
type MetaData struct {
	DateTaken        any
	CandidateAge     any
	WindowDifference any
	Examiner         any
}

// Session is a single-writer instrument administration. It is not safe for
// concurrent use; callers serialise Edit, RequestSave and View.
type Session struct {
	schema    *instrument.Schema
	pipeline  *pipeline.Pipeline
	evaluator expression.Evaluator
	logger    *slog.Logger
	saver     Saver

	context    pipeline.Context
	windows    []instrument.AgeWindow
	examiners  map[string]string
	locale     string
	translator Translator

	surveyMode    bool
	dataEntryMode bool
	frozen        bool

	data         instrument.AnswerSet
	state        State
	showRequired bool
	errorMessage string
	missing      []string
}

// New starts a session for schema.
func New(schema *instrument.Schema, options ...Option) *Session {
	s := &Session{schema: schema}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	s.applyDefaults()
	return s
}

func (s *Session) applyDefaults() {
	if s.schema == nil {
		s.schema = instrument.NewSchema(instrument.Meta{}, nil)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.locale == "" {
		s.locale = DefaultLocale
	}
	if s.data == nil {
		s.data = instrument.AnswerSet{}
	}
	if s.context == nil {
		s.context = pipeline.Context{}
	}
	s.pipeline = pipeline.New(s.schema,
		pipeline.WithEvaluator(s.evaluator),
		pipeline.WithLogger(s.logger),
		pipeline.WithWindows(s.windows...),
	)
}

// Edit records value for name and recomputes derived answers. A nil value
// resets the field. Calc fields, labels and the derived meta keys cannot be
// edited; Date_taken and Examiner only in data-entry mode.
func (s *Session) Edit(name string, value any) error {
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.checkEditable(name, value); err != nil {
		return err
	}

	next, err := s.pipeline.Reconcile(s.data, &pipeline.Edit{Name: name, Value: value}, s.context)
	if err != nil {
		return fmt.Errorf("session: edit %s: %w", name, err)
	}
	s.data = next
	s.state = Editing
	return nil
}

func (s *Session) writable() error {
	switch {
	case s.state == Saved:
		return ErrSaved
	case s.frozen:
		return ErrFrozen
	default:
		return nil
	}
}

func (s *Session) checkEditable(name string, value any) error {
	if field, ok := s.schema.Field(name); ok {
		kind, _ := field.Kind()
		if !kind.IsEditable() {
			return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
		}
		return nil
	}

	switch {
	case !instrument.IsMetaKey(name):
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	case instrument.IsDerivedMetaKey(name):
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
	case !s.dataEntryMode:
		return fmt.Errorf("%w: %s outside data-entry mode", ErrReadOnlyField, name)
	}

	if name != instrument.KeyExaminer || len(s.examiners) == 0 || instrument.IsEmptyValue(value) {
		return nil
	}
	if _, ok := s.examiners[fmt.Sprint(value)]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownExaminer, value)
	}
	return nil
}

// RequestSave recomputes every derived answer and either reports the
// required fields still empty or hands the answers to the Saver exactly
// once. Validation failure is an Outcome, not an error.
func (s *Session) RequestSave(ctx context.Context) (Outcome, error) {
	if err := s.writable(); err != nil {
		return Outcome{State: s.state}, err
	}

	next, err := s.pipeline.Reconcile(s.data, nil, s.context)
	if err != nil {
		return Outcome{State: s.state}, fmt.Errorf("session: save snapshot: %w", err)
	}
	s.data = next

	missing := pipeline.MissingRequired(s.View())
	if len(missing) > 0 {
		s.state = ValidationFailed
		s.showRequired = true
		s.errorMessage = translate(s.translator, s.locale, MessageRequiredMissing)
		s.missing = missing
		s.logger.Debug("session: save blocked by required fields", "missing", missing)
		return Outcome{State: s.state, Message: s.errorMessage, Missing: append([]string(nil), missing...)}, nil
	}

	if s.saver != nil {
		if err := s.saver.Save(ctx, s.data.Clone()); err != nil {
			s.state = Editing
			return Outcome{State: s.state}, fmt.Errorf("session: save: %w", err)
		}
	}

	s.state = Saved
	s.showRequired = false
	s.errorMessage = ""
	s.missing = nil
	s.logger.Info("session: instrument saved", "instrument", s.schema.Meta().ShortName, "answers", len(s.data))
	return Outcome{State: s.state}, nil
}

// View returns the displayed fields annotated with their current answers.
func (s *Session) View() []instrument.AnnotatedField {
	return s.pipeline.View(s.data, s.context, s.surveyMode)
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Data returns a copy of the current answers.
func (s *Session) Data() instrument.AnswerSet { return s.data.Clone() }

// ShowRequired reports whether required fields should be highlighted. It is
// set by a failed save and cleared only by a successful one.
func (s *Session) ShowRequired() bool { return s.showRequired }

// ErrorMessage returns the localized validation message, if any.
func (s *Session) ErrorMessage() string { return s.errorMessage }

// Missing returns the required fields that blocked the last save attempt.
func (s *Session) Missing() []string { return append([]string(nil), s.missing...) }

// Schema returns the instrument schema.
func (s *Session) Schema() *instrument.Schema { return s.schema }

// Meta returns the instrument title block.
func (s *Session) Meta() instrument.Meta { return s.schema.Meta() }

// MetaData returns the current data-entry block values.
func (s *Session) MetaData() MetaData {
	return MetaData{
		DateTaken:        s.data[instrument.KeyDateTaken],
		CandidateAge:     s.data[instrument.KeyCandidateAge],
		WindowDifference: s.data[instrument.KeyWindowDifference],
		Examiner:         s.data[instrument.KeyExaminer],
	}
}

// Examiners returns the configured examiners as choices sorted by id.
func (s *Session) Examiners() []instrument.Choice {
	ids := make([]string, 0, len(s.examiners))
	for id := range s.examiners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]instrument.Choice, 0, len(ids))
	for _, id := range ids {
		out = append(out, instrument.Choice{Value: id, Label: s.examiners[id]})
	}
	return out
}

// DataEntryMode reports whether the meta block is editable.
func (s *Session) DataEntryMode() bool { return s.dataEntryMode }

// SurveyMode reports whether HiddenSurvey fields are hidden.
func (s *Session) SurveyMode() bool { return s.surveyMode }

// Frozen reports whether the session is read-only.
func (s *Session) Frozen() bool { return s.frozen }

// Locale returns the message locale.
func (s *Session) Locale() string { return s.locale }

// SaveText returns the localized save button label.
func (s *Session) SaveText() string {
	return translate(s.translator, s.locale, MessageSaveText)
}

// SaveWarning returns the localized warning shown next to the save button.
func (s *Session) SaveWarning() string {
	return translate(s.translator, s.locale, MessageSaveWarning)
}
