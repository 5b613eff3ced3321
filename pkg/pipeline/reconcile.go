package pipeline

import (
	"fmt"

	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/window"
)

// Edit is a single field change. A nil Value resets the field.
type Edit struct {
	Name  string
	Value any
}

// Reconcile returns the answer set that follows prev after applying edit.
// A nil edit is a save snapshot: nothing changes but every derived value is
// recomputed. prev is never modified.
//
// The result layers, later entries winning: the edited answers, the calc
// field overlay, then the age/window meta overlay. The meta overlay is only
// computed when Date_taken is edited or on a snapshot.
func (p *Pipeline) Reconcile(prev instrument.AnswerSet, edit *Edit, ctx Context) (instrument.AnswerSet, error) {
	base := prev.Clone()
	if edit != nil {
		base[edit.Name] = edit.Value
	}

	var meta instrument.AnswerSet
	if edit == nil || edit.Name == instrument.KeyDateTaken {
		meta = p.metaOverlay(base, ctx)
	}

	calculated, err := p.Calculate(p.schema.CalcFields(), base, ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reconcile: %w", err)
	}

	next := base.Clone()
	for name, value := range calculated {
		next[name] = value
	}
	for name, value := range meta {
		next[name] = value
	}
	return next, nil
}

// metaOverlay derives Candidate_Age and Window_Difference. Missing dates
// leave the previous values alone; an unparsable date clears them.
func (p *Pipeline) metaOverlay(data instrument.AnswerSet, ctx Context) instrument.AnswerSet {
	dob := dateString(ctx[ContextDOB])
	taken := dateString(data[instrument.KeyDateTaken])

	result, err := window.Calculate(dob, taken, p.windows)
	if err != nil {
		p.logger.Warn("pipeline: age calculation failed",
			"dob", dob,
			"date_taken", taken,
			"error", err,
		)
		return instrument.AnswerSet{
			instrument.KeyCandidateAge:     nil,
			instrument.KeyWindowDifference: nil,
		}
	}
	return result.Overlay()
}
