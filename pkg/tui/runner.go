// Package tui administers an instrument session in the terminal, prompting
// for each displayed field as visibility rules reveal it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/session"
	"github.com/goliatone/go-instrument/pkg/window"
)

// NoAnswer is the select option that clears a choice field.
const NoAnswer = "(no answer)"

// Theme captures optional message prefixes.
type Theme struct {
	InfoPrefix     string
	ErrorPrefix    string
	RequiredMarker string
}

// Option configures the Runner.
type Option func(*Runner)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Runner) {
		r.theme = theme
	}
}

// Runner walks a session through prompts until it is saved or the operator
// declines.
type Runner struct {
	driver PromptDriver
	theme  Theme
}

// New constructs a Runner backed by survey prompts unless overridden.
func New(options ...Option) *Runner {
	r := &Runner{
		theme: Theme{RequiredMarker: "*", ErrorPrefix: "! "},
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver()
	}
	return r
}

// Run prompts for every displayed field, then asks to save. Fields reported
// missing by a failed save are asked again. Frozen sessions are only
// summarised.
func (r *Runner) Run(ctx context.Context, s *session.Session) (session.Outcome, error) {
	if ctx == nil {
		return session.Outcome{}, errors.New("tui: context is required")
	}
	if s == nil {
		return session.Outcome{}, errors.New("tui: session is required")
	}

	if err := r.header(ctx, s); err != nil {
		return session.Outcome{State: s.State()}, err
	}
	if s.Frozen() {
		return session.Outcome{State: s.State()}, r.summary(ctx, s)
	}
	if s.DataEntryMode() {
		if err := r.promptMeta(ctx, s); err != nil {
			return session.Outcome{State: s.State()}, err
		}
	}

	asked := make(map[int]bool)
	for {
		if err := r.walk(ctx, s, asked); err != nil {
			return session.Outcome{State: s.State()}, err
		}

		save, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: s.SaveText() + "?",
			Help:    s.SaveWarning(),
			Default: true,
		})
		if err != nil {
			return session.Outcome{State: s.State()}, err
		}
		if !save {
			return session.Outcome{State: s.State()}, ErrDeclined
		}

		outcome, err := s.RequestSave(ctx)
		if err != nil {
			return outcome, err
		}
		if outcome.State == session.Saved {
			return outcome, r.summary(ctx, s)
		}

		if err := r.info(ctx, r.theme.ErrorPrefix+outcome.Message); err != nil {
			return outcome, err
		}
		if err := r.askMissing(ctx, s, outcome.Missing); err != nil {
			return outcome, err
		}
	}
}

func (r *Runner) header(ctx context.Context, s *session.Session) error {
	meta := s.Meta()
	title := PlainText(meta.LongName)
	if title == "" {
		title = PlainText(meta.ShortName)
	}
	if title != "" {
		if err := r.info(ctx, title); err != nil {
			return err
		}
	}
	if desc := PlainText(meta.Description); desc != "" {
		return r.info(ctx, desc)
	}
	return nil
}

// walk presents fields in schema order, re-reading the view after every
// answer so newly revealed fields are picked up.
func (r *Runner) walk(ctx context.Context, s *session.Session, asked map[int]bool) error {
	for {
		next, ok := nextField(s.View(), asked)
		if !ok {
			return nil
		}
		asked[next.Index] = true
		if err := r.present(ctx, s, next); err != nil {
			return err
		}
	}
}

func nextField(view []instrument.AnnotatedField, asked map[int]bool) (instrument.AnnotatedField, bool) {
	for _, field := range view {
		if !asked[field.Index] {
			return field, true
		}
	}
	return instrument.AnnotatedField{}, false
}

func (r *Runner) present(ctx context.Context, s *session.Session, field instrument.AnnotatedField) error {
	kind, ok := field.Kind()
	if !ok {
		return nil
	}
	switch kind {
	case instrument.KindLabel:
		if text := PlainText(field.Description); text != "" {
			return r.info(ctx, text)
		}
		return nil
	case instrument.KindRadioLabels:
		labels := make([]string, 0, len(field.Labels))
		for _, label := range field.Labels {
			labels = append(labels, PlainText(label))
		}
		return r.info(ctx, strings.Join(labels, " | "))
	case instrument.KindCalc:
		return nil
	case instrument.KindRadio, instrument.KindSelect, instrument.KindCheckbox,
		instrument.KindTextPlain, instrument.KindTextLarge, instrument.KindDate:
		return r.ask(ctx, s, field)
	default:
		return nil
	}
}

func (r *Runner) askMissing(ctx context.Context, s *session.Session, missing []string) error {
	wanted := make(map[string]bool, len(missing))
	for _, name := range missing {
		wanted[name] = true
	}
	for _, field := range s.View() {
		if !wanted[field.Name] {
			continue
		}
		if err := r.ask(ctx, s, field); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) ask(ctx context.Context, s *session.Session, field instrument.AnnotatedField) error {
	kind, _ := field.Kind()
	message := PlainText(field.Description)
	if message == "" {
		message = field.Name
	}
	if field.RequireResponse && r.theme.RequiredMarker != "" {
		message = r.theme.RequiredMarker + " " + message
	}

	var (
		value any
		err   error
	)
	switch kind {
	case instrument.KindRadio, instrument.KindSelect:
		value, err = r.choose(ctx, message, field.Name, field.Options.Choices(), field.Value)
	case instrument.KindCheckbox:
		value, err = r.driver.Confirm(ctx, ConfirmConfig{
			Message: message,
			Help:    field.Name,
			Default: expression.Truthy(field.Value),
		})
	case instrument.KindTextLarge:
		value, err = r.driver.TextArea(ctx, TextAreaConfig{
			Message: message,
			Help:    field.Name,
			Default: currentText(field.Value),
		})
	case instrument.KindDate:
		value, err = r.driver.Input(ctx, InputConfig{
			Message:   message + " (YYYY-MM-DD)",
			Help:      field.Name,
			Default:   currentText(field.Value),
			Validator: validateDate,
		})
	default:
		value, err = r.driver.Input(ctx, InputConfig{
			Message: message,
			Help:    field.Name,
			Default: currentText(field.Value),
		})
	}
	if err != nil {
		return err
	}
	if text, ok := value.(string); ok && strings.TrimSpace(text) == "" {
		value = nil
	}
	if err := s.Edit(field.Name, value); err != nil {
		return fmt.Errorf("tui: %s: %w", field.Name, err)
	}
	return nil
}

func (r *Runner) choose(ctx context.Context, message, help string, choices []instrument.Choice, current any) (any, error) {
	values := make([]string, 0, len(choices))
	labels := make([]string, 0, len(choices)+1)
	defaultIdx := -1
	for _, choice := range choices {
		if choice.Value == "" {
			continue
		}
		label := PlainText(choice.Label)
		if label == "" {
			label = choice.Value
		}
		if current != nil && fmt.Sprint(current) == choice.Value {
			defaultIdx = len(values)
		}
		values = append(values, choice.Value)
		labels = append(labels, label)
	}
	labels = append(labels, NoAnswer)

	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      message,
		Options:      labels,
		DefaultIndex: defaultIdx,
		Help:         help,
	})
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(values) {
		return nil, nil
	}
	return values[idx], nil
}

func (r *Runner) promptMeta(ctx context.Context, s *session.Session) error {
	meta := s.MetaData()
	date, err := r.driver.Input(ctx, InputConfig{
		Message:   "Date of administration (YYYY-MM-DD)",
		Help:      instrument.KeyDateTaken,
		Default:   currentText(meta.DateTaken),
		Validator: validateDate,
	})
	if err != nil {
		return err
	}
	if err := s.Edit(instrument.KeyDateTaken, emptyToNil(date)); err != nil {
		return fmt.Errorf("tui: %s: %w", instrument.KeyDateTaken, err)
	}

	var examiner any
	if choices := s.Examiners(); len(choices) > 0 {
		examiner, err = r.choose(ctx, "Examiner", instrument.KeyExaminer, choices, meta.Examiner)
	} else {
		var text string
		text, err = r.driver.Input(ctx, InputConfig{
			Message: "Examiner",
			Help:    instrument.KeyExaminer,
			Default: currentText(meta.Examiner),
		})
		examiner = emptyToNil(text)
	}
	if err != nil {
		return err
	}
	if err := s.Edit(instrument.KeyExaminer, examiner); err != nil {
		return fmt.Errorf("tui: %s: %w", instrument.KeyExaminer, err)
	}

	meta = s.MetaData()
	if meta.CandidateAge != nil {
		return r.info(ctx, fmt.Sprintf("Candidate age: %s months, window difference: %s days",
			expression.DisplayString(meta.CandidateAge), expression.DisplayString(meta.WindowDifference)))
	}
	return nil
}

func (r *Runner) summary(ctx context.Context, s *session.Session) error {
	for _, field := range s.View() {
		kind, ok := field.Kind()
		if !ok || !kind.IsInput() {
			continue
		}
		label := PlainText(field.Description)
		if label == "" {
			label = field.Name
		}
		value := "-"
		if !instrument.IsEmptyValue(field.Value) {
			value = expression.DisplayString(field.Value)
		}
		if err := r.info(ctx, fmt.Sprintf("%s: %s", label, value)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) info(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.InfoPrefix+msg)
}

func validateDate(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	_, err := window.ParseDate(value)
	return err
}

func currentText(value any) string {
	if instrument.IsEmptyValue(value) {
		return ""
	}
	return expression.DisplayString(value)
}

func emptyToNil(text string) any {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return text
}

var (
	plainPolicyOnce sync.Once
	plainPolicy     *bluemonday.Policy
)

// PlainText strips markup from instrument display text for terminal output.
func PlainText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	plainPolicyOnce.Do(func() {
		plainPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(raw)))
}
