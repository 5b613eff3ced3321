package pipeline_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/pipeline"
)

func newTestPipeline(t *testing.T, fields []instrument.FieldSchema, opts ...pipeline.Option) (*pipeline.Pipeline, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	return pipeline.New(instrument.NewSchema(instrument.Meta{}, fields), opts...), &logs
}

func TestIsDisplayed(t *testing.T) {
	t.Parallel()

	p, logs := newTestPipeline(t, nil)
	data := instrument.AnswerSet{"q1": "yes", "q2": nil}
	ctx := pipeline.Context{"site": "mtl"}

	cases := []struct {
		name    string
		field   instrument.FieldSchema
		survey  bool
		want    bool
		wantLog bool
	}{
		{name: "no condition", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText}, want: true},
		{name: "hidden wins over condition", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, Hidden: true, DisplayIf: instrument.Literal(true)}, want: false},
		{name: "hidden survey outside survey mode", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, HiddenSurvey: true}, want: true},
		{name: "hidden survey in survey mode", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, HiddenSurvey: true}, survey: true, want: false},
		{name: "literal false", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, DisplayIf: instrument.Literal(false)}, want: false},
		{name: "expression true", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, DisplayIf: instrument.Expr("q1 == 'yes'")}, want: true},
		{name: "expression false", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, DisplayIf: instrument.Expr("q1 == 'no'")}, want: false},
		{name: "context lookup", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, DisplayIf: instrument.Expr("context.site == 'mtl'")}, want: true},
		{name: "null variable is silent", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, DisplayIf: instrument.Expr("q2 == 'x'")}, want: false},
		{name: "syntax error is logged", field: instrument.FieldSchema{Name: "broken", Type: instrument.FieldTypeText, DisplayIf: instrument.Expr("q1 ==")}, want: false, wantLog: true},
	}

	for _, tc := range cases {
		logs.Reset()
		got := p.IsDisplayed(tc.field, data, ctx, tc.survey)
		if got != tc.want {
			t.Errorf("%s: IsDisplayed = %v, want %v", tc.name, got, tc.want)
		}
		if logged := logs.Len() > 0; logged != tc.wantLog {
			t.Errorf("%s: logged = %v, want %v (%s)", tc.name, logged, tc.wantLog, logs.String())
		}
	}
}

func TestIsDisplayed_UndefinedVariableIsLogged(t *testing.T) {
	t.Parallel()

	p, logs := newTestPipeline(t, nil)
	field := instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, DisplayIf: instrument.Expr("missing == 1")}
	if p.IsDisplayed(field, instrument.AnswerSet{}, nil, false) {
		t.Fatalf("expected field to be hidden")
	}
	if !strings.Contains(logs.String(), "field=a") {
		t.Fatalf("expected diagnostic naming the field, got %q", logs.String())
	}
}

func TestIsRequired(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t, nil)
	data := instrument.AnswerSet{"q1": "yes", "q2": nil}

	cases := []struct {
		name  string
		field instrument.FieldSchema
		want  bool
	}{
		{name: "label never required", field: instrument.FieldSchema{Type: instrument.FieldTypeLabel, Options: instrument.Options{RequireResponse: instrument.Literal(true)}}, want: false},
		{name: "radio labels never required", field: instrument.FieldSchema{Type: instrument.FieldTypeRadioLabels, Options: instrument.Options{RequireResponse: instrument.Literal(true)}}, want: false},
		{name: "literal true", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeRadio, Options: instrument.Options{RequireResponse: instrument.Literal(true)}}, want: true},
		{name: "absent rule", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText}, want: false},
		{name: "expression true", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, Options: instrument.Options{RequireResponse: instrument.Expr("q1 == 'yes'")}}, want: true},
		{name: "null variable", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeText, Options: instrument.Options{RequireResponse: instrument.Expr("q2 == 'yes'")}}, want: false},
		{name: "broken rule", field: instrument.FieldSchema{Name: "a", Type: instrument.FieldTypeDate, Options: instrument.Options{RequireResponse: instrument.Expr("(")}}, want: false},
	}
	for _, tc := range cases {
		if got := p.IsRequired(tc.field, data, nil); got != tc.want {
			t.Errorf("%s: IsRequired = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCalculate(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: "q1", Type: instrument.FieldTypeText},
		{Name: "total", Type: instrument.FieldTypeCalc, Formula: "q1 + q2"},
		{Name: "double", Type: instrument.FieldTypeCalc, Formula: "q1 * 2"},
		{Name: "gated", Type: instrument.FieldTypeCalc, Formula: "1", DisplayIf: instrument.Expr("q1 > 10")},
		{Name: "blank", Type: instrument.FieldTypeCalc, Formula: "''"},
	}
	p, _ := newTestPipeline(t, fields)

	got, err := p.Calculate(fields, instrument.AnswerSet{"q1": "3"}, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := map[string]string{"double": "6", "blank": "0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("calculated values mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculate_NullAndEmptyResults(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: "q1", Type: instrument.FieldTypeText},
		{Name: "flag", Type: instrument.FieldTypeCalc, Formula: "if(q1 == 'a', null, 1)"},
		{Name: "label", Type: instrument.FieldTypeCalc, Formula: "if(q1 == 'a', '', 'other')"},
	}
	p, _ := newTestPipeline(t, fields)

	cases := []struct {
		answer string
		want   map[string]string
	}{
		{answer: "a", want: map[string]string{"flag": "null", "label": "0"}},
		{answer: "b", want: map[string]string{"flag": "1", "label": "other"}},
	}
	for _, tc := range cases {
		got, err := p.Calculate(fields, instrument.AnswerSet{"q1": tc.answer}, nil)
		if err != nil {
			t.Fatalf("q1=%s: calculate: %v", tc.answer, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("q1=%s: mismatch (-want +got):\n%s", tc.answer, diff)
		}
	}
}

func TestCalculate_MalformedFormulaIsFatal(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: "bad", Type: instrument.FieldTypeCalc, Formula: "q1 +* 2"},
	}
	p, _ := newTestPipeline(t, fields)

	_, err := p.Calculate(fields, instrument.AnswerSet{"q1": 1}, nil)
	var formulaErr *pipeline.FormulaError
	if !errors.As(err, &formulaErr) {
		t.Fatalf("expected FormulaError, got %v", err)
	}
	if formulaErr.Field != "bad" || formulaErr.Property != "Formula" {
		t.Fatalf("unexpected error detail %+v", formulaErr)
	}

	_, err = p.Reconcile(instrument.AnswerSet{}, &pipeline.Edit{Name: "q1", Value: 2}, nil)
	if !errors.As(err, &formulaErr) {
		t.Fatalf("expected reconcile to propagate FormulaError, got %v", err)
	}
}

func TestCalculate_StubEvaluatorFailureKinds(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: "null", Type: instrument.FieldTypeCalc, Formula: "null"},
		{Name: "undefined", Type: instrument.FieldTypeCalc, Formula: "undefined"},
		{Name: "ok", Type: instrument.FieldTypeCalc, Formula: "ok"},
	}
	stub := expression.EvaluatorFunc(func(expr string, _ expression.Context) (any, error) {
		switch expr {
		case "null":
			return nil, expression.NullVariable("x")
		case "undefined":
			return nil, expression.UndefinedVariable("y")
		default:
			return 4.5, nil
		}
	})
	p, _ := newTestPipeline(t, fields, pipeline.WithEvaluator(stub))

	got, err := p.Calculate(fields, nil, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"ok": "4.5"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_AppliesEditAndCalc(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: "q1", Type: instrument.FieldTypeText},
		{Name: "q2", Type: instrument.FieldTypeText},
		{Name: "total", Type: instrument.FieldTypeCalc, Formula: "q1 + q2"},
	}
	p, _ := newTestPipeline(t, fields)

	prev := instrument.AnswerSet{"q1": 2}
	next, err := p.Reconcile(prev, &pipeline.Edit{Name: "q2", Value: 5}, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	want := instrument.AnswerSet{"q1": 2, "q2": 5, "total": "7"}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if _, touched := prev["q2"]; touched {
		t.Fatalf("previous answer set was mutated")
	}
}

func TestReconcile_UnansweredCalcOmitted(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: "q1", Type: instrument.FieldTypeText},
		{Name: "total", Type: instrument.FieldTypeCalc, Formula: "q1 + q2"},
	}
	p, _ := newTestPipeline(t, fields)

	next, err := p.Reconcile(instrument.AnswerSet{"total": "9"}, &pipeline.Edit{Name: "q1", Value: 1}, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// The overlay only adds keys; a stale value survives in the base.
	if next["total"] != "9" {
		t.Fatalf("expected base value to remain, got %v", next["total"])
	}

	next, err = p.Reconcile(instrument.AnswerSet{}, &pipeline.Edit{Name: "q1", Value: 1}, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if _, ok := next["total"]; ok {
		t.Fatalf("expected total to be omitted, got %v", next["total"])
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: "q1", Type: instrument.FieldTypeText},
		{Name: "double", Type: instrument.FieldTypeCalc, Formula: "q1 * 2"},
	}
	p, _ := newTestPipeline(t, fields, pipeline.WithWindows(instrument.AgeWindow{AgeMinDays: 0, AgeMaxDays: 400}))
	ctx := pipeline.Context{pipeline.ContextDOB: "2020-01-15"}
	edit := &pipeline.Edit{Name: instrument.KeyDateTaken, Value: "2020-03-01"}

	first, err := p.Reconcile(instrument.AnswerSet{"q1": 4}, edit, ctx)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := p.Reconcile(first, edit, ctx)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("reconcile not idempotent (-first +second):\n%s", diff)
	}
}

func TestReconcile_MetaOverlay(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t, nil, pipeline.WithWindows(instrument.AgeWindow{AgeMinDays: 30, AgeMaxDays: 60}))
	ctx := pipeline.Context{pipeline.ContextDOB: "2020-01-15"}

	next, err := p.Reconcile(nil, &pipeline.Edit{Name: instrument.KeyDateTaken, Value: "2020-02-10"}, ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if next[instrument.KeyCandidateAge] != 0.8 {
		t.Fatalf("candidate age = %v, want 0.8", next[instrument.KeyCandidateAge])
	}
	if next[instrument.KeyWindowDifference] != -5.0 {
		t.Fatalf("window difference = %v, want -5", next[instrument.KeyWindowDifference])
	}

	// Other edits leave derived meta untouched.
	again, err := p.Reconcile(instrument.AnswerSet{instrument.KeyDateTaken: "2020-02-10", instrument.KeyCandidateAge: 99.0}, &pipeline.Edit{Name: "q", Value: "x"}, ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if again[instrument.KeyCandidateAge] != 99.0 {
		t.Fatalf("non-date edit recomputed meta: %v", again[instrument.KeyCandidateAge])
	}

	// A snapshot recomputes it.
	snap, err := p.Reconcile(again, nil, ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap[instrument.KeyCandidateAge] != 0.8 {
		t.Fatalf("snapshot did not recompute meta: %v", snap[instrument.KeyCandidateAge])
	}
}

func TestReconcile_MetaWinsOverCalcField(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Name: instrument.KeyCandidateAge, Type: instrument.FieldTypeCalc, Formula: "'stale'"},
	}
	p, _ := newTestPipeline(t, fields)
	ctx := pipeline.Context{pipeline.ContextDOB: "2020-01-15"}

	next, err := p.Reconcile(nil, &pipeline.Edit{Name: instrument.KeyDateTaken, Value: "2020-02-10"}, ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if next[instrument.KeyCandidateAge] != 0.8 {
		t.Fatalf("meta overlay lost to calc field: %v", next[instrument.KeyCandidateAge])
	}

	// Without a date edit the calc value stands.
	other, err := p.Reconcile(nil, &pipeline.Edit{Name: "q", Value: 1}, ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if other[instrument.KeyCandidateAge] != "stale" {
		t.Fatalf("expected calc value, got %v", other[instrument.KeyCandidateAge])
	}
}

func TestReconcile_InvalidDateClearsMeta(t *testing.T) {
	t.Parallel()

	p, logs := newTestPipeline(t, nil)
	ctx := pipeline.Context{pipeline.ContextDOB: "2020-01-15"}
	prev := instrument.AnswerSet{instrument.KeyCandidateAge: 3.0, instrument.KeyWindowDifference: 1.0}

	next, err := p.Reconcile(prev, &pipeline.Edit{Name: instrument.KeyDateTaken, Value: "not-a-date"}, ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if v, ok := next[instrument.KeyCandidateAge]; !ok || v != nil {
		t.Fatalf("expected Candidate_Age cleared, got %v (present=%v)", v, ok)
	}
	if v, ok := next[instrument.KeyWindowDifference]; !ok || v != nil {
		t.Fatalf("expected Window_Difference cleared, got %v (present=%v)", v, ok)
	}
	if !strings.Contains(logs.String(), "age calculation failed") {
		t.Fatalf("expected warning, got %q", logs.String())
	}
}

func TestView(t *testing.T) {
	t.Parallel()

	fields := []instrument.FieldSchema{
		{Type: instrument.FieldTypeLabel, Description: "Intro"},
		{Name: "q1", Type: instrument.FieldTypeRadio, Options: instrument.Options{RequireResponse: instrument.Literal(true)}},
		{Name: "secret", Type: instrument.FieldTypeText, Hidden: true, DisplayIf: instrument.Expr("q1 == 'yes'")},
		{Name: "q2", Type: instrument.FieldTypeText, DisplayIf: instrument.Expr("q1 == 'yes'"), Options: instrument.Options{RequireResponse: instrument.Expr("q1 == 'yes'")}},
	}
	p, _ := newTestPipeline(t, fields)

	view := p.View(instrument.AnswerSet{"q1": "yes"}, nil, false)
	var names []string
	for _, f := range view {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"", "q1", "q2"}, names); diff != "" {
		t.Fatalf("visible fields mismatch (-want +got):\n%s", diff)
	}
	if view[1].Value != "yes" || !view[1].RequireResponse {
		t.Fatalf("q1 not annotated: %+v", view[1])
	}
	if !view[2].RequireResponse || view[2].Value != nil {
		t.Fatalf("q2 not annotated: %+v", view[2])
	}
	if diff := cmp.Diff([]string{"q2"}, pipeline.MissingRequired(view)); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}

	// Mutating the view never reaches the schema.
	view[1].Options.Values = map[string]string{"x": "y"}
	view[1].Description = "changed"
	again := p.View(instrument.AnswerSet{"q1": "yes"}, nil, false)
	if again[1].Description != "" || again[1].Options.Values != nil {
		t.Fatalf("schema mutated through view: %+v", again[1])
	}
}
