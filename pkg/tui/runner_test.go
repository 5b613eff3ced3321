package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/pipeline"
	"github.com/goliatone/go-instrument/pkg/session"
)

type stubDriver struct {
	inputs        []string
	selectIdx     []int
	confirm       []bool
	textAreas     []string
	infoMessages  []string
	selectConfigs []SelectConfig
	inputPos      int
	selectPos     int
	confirmPos    int
	textPos       int
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.selectConfigs = append(s.selectConfigs, cfg)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

type captureSaver struct {
	saved []instrument.AnswerSet
}

func (c *captureSaver) Save(_ context.Context, data instrument.AnswerSet) error {
	c.saved = append(c.saved, data)
	return nil
}

func runnerSchema() *instrument.Schema {
	return instrument.NewSchema(instrument.Meta{LongName: "Smoking <b>history</b>"}, []instrument.FieldSchema{
		{Type: instrument.FieldTypeLabel, Description: "<h3>Part A</h3>"},
		{Name: "q1", Type: instrument.FieldTypeRadio, Description: "Do you smoke?", Options: instrument.Options{
			RequireResponse: instrument.Literal(true),
			Values:          map[string]string{"yes": "Yes", "no": "No", "": ""},
			Order:           []string{"yes", "no"},
		}},
		{Name: "q2", Type: instrument.FieldTypeText, Description: "How many per day?", DisplayIf: instrument.Expr("q1 == 'yes'")},
		{Name: "notes", Type: instrument.FieldTypeText, Description: "Notes", Options: instrument.Options{Type: instrument.TextLarge}},
		{Name: "score", Type: instrument.FieldTypeCalc, Formula: "q2 * 2"},
	})
}

func newRunnerSession(saver session.Saver, opts ...session.Option) *session.Session {
	base := []session.Option{
		session.WithSaver(saver),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return session.New(runnerSchema(), append(base, opts...)...)
}

func TestRun_RevealsDependentFieldsAndSaves(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		selectIdx: []int{0},
		inputs:    []string{"5"},
		textAreas: []string{""},
		confirm:   []bool{true},
	}
	saver := &captureSaver{}
	s := newRunnerSession(saver)

	outcome, err := New(WithPromptDriver(driver)).Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.State != session.Saved {
		t.Fatalf("expected saved, got %v", outcome.State)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(saver.saved))
	}
	want := instrument.AnswerSet{"q1": "yes", "q2": "5", "notes": nil, "score": "10"}
	if diff := cmp.Diff(want, saver.saved[0]); diff != "" {
		t.Fatalf("saved data mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"Yes", "No", NoAnswer}, driver.selectConfigs[0].Options); diff != "" {
		t.Fatalf("select options mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(driver.selectConfigs[0].Message, "* ") {
		t.Fatalf("required marker missing: %q", driver.selectConfigs[0].Message)
	}
	if driver.infoMessages[0] != "Smoking history" || driver.infoMessages[1] != "Part A" {
		t.Fatalf("unexpected header output %q", driver.infoMessages)
	}
}

func TestRun_ReasksMissingFields(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		selectIdx: []int{2, 1},
		textAreas: []string{"n/a"},
		confirm:   []bool{true, true},
	}
	saver := &captureSaver{}
	s := newRunnerSession(saver, session.WithLocale("fr-ca"))

	outcome, err := New(WithPromptDriver(driver)).Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.State != session.Saved {
		t.Fatalf("expected saved, got %v", outcome.State)
	}
	if driver.selectPos != 2 || driver.confirmPos != 2 {
		t.Fatalf("expected two selects and two confirms, got %d/%d", driver.selectPos, driver.confirmPos)
	}
	if saver.saved[0]["q1"] != "no" {
		t.Fatalf("unexpected saved answers %+v", saver.saved[0])
	}

	found := false
	for _, msg := range driver.infoMessages {
		if strings.Contains(msg, "Veuillez remplir") {
			found = true
		}
	}
	if !found {
		t.Fatalf("validation message not shown: %q", driver.infoMessages)
	}
}

func TestRun_Declined(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		selectIdx: []int{1},
		textAreas: []string{""},
		confirm:   []bool{false},
	}
	saver := &captureSaver{}
	s := newRunnerSession(saver)

	_, err := New(WithPromptDriver(driver)).Run(context.Background(), s)
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if len(saver.saved) != 0 {
		t.Fatalf("declined session saved")
	}
}

func TestRun_FrozenOnlySummarises(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{}
	s := newRunnerSession(&captureSaver{},
		session.WithFrozen(true),
		session.WithInitialData(instrument.AnswerSet{"q1": "no"}),
	)

	if _, err := New(WithPromptDriver(driver)).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if driver.selectPos+driver.inputPos+driver.confirmPos+driver.textPos != 0 {
		t.Fatalf("frozen session prompted")
	}
	if !containsMessage(driver.infoMessages, "Do you smoke?: no") {
		t.Fatalf("summary missing answer: %q", driver.infoMessages)
	}
}

func TestRun_DataEntryMeta(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{
		inputs:    []string{"2020-02-10"},
		selectIdx: []int{0, 1},
		textAreas: []string{""},
		confirm:   []bool{true},
	}
	saver := &captureSaver{}
	s := newRunnerSession(saver,
		session.WithDataEntryMode(true),
		session.WithContext(pipeline.Context{pipeline.ContextDOB: "2020-01-15"}),
		session.WithExaminers(map[string]string{"4": "Dr. Roy"}),
	)

	if _, err := New(WithPromptDriver(driver)).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := saver.saved[0]
	if got[instrument.KeyExaminer] != "4" || got[instrument.KeyCandidateAge] != 0.8 {
		t.Fatalf("meta not recorded: %+v", got)
	}
	if !containsMessage(driver.infoMessages, "Candidate age: 0.8 months, window difference: 0 days") {
		t.Fatalf("age summary missing: %q", driver.infoMessages)
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	if got := PlainText("<b>Tom &amp; Jerry</b> <script>x()</script>"); got != "Tom & Jerry" {
		t.Fatalf("PlainText = %q", got)
	}
}

func containsMessage(messages []string, want string) bool {
	for _, msg := range messages {
		if msg == want {
			return true
		}
	}
	return false
}
