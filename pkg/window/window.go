// Package window derives a candidate's age at testing time and how far that
// age falls outside the admissible protocol windows.
package window

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-instrument/pkg/instrument"
)

// ErrInvalidDate reports a date that is not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("window: invalid date")

// Fixed year and month lengths used by the age arithmetic.
const (
	daysPerYear  = 365
	daysPerMonth = 30
)

// Date is a decomposed calendar date.
type Date struct {
	Year  int
	Month int
	Day   int
}

// ParseDate splits a YYYY-MM-DD string into its numeric components.
func ParseDate(value string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
		}
		nums[i] = n
	}
	d := Date{Year: nums[0], Month: nums[1], Day: nums[2]}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return d, nil
}

// Age is the (year, month, day) difference after borrow correction.
type Age struct {
	Years  int
	Months int
	Days   int
}

// AgeBetween subtracts dob from testdate componentwise. A short day count
// borrows a 30 day month; a short month count borrows a 12 month year.
func AgeBetween(dob, testdate Date) Age {
	td := testdate
	if td.Day < dob.Day {
		td.Day += daysPerMonth
		td.Month--
	}
	if td.Month < dob.Month {
		td.Month += 12
		td.Year--
	}
	return Age{
		Years:  td.Year - dob.Year,
		Months: td.Month - dob.Month,
		Days:   td.Day - dob.Day,
	}
}

// InDays returns the age in days, rounded to one decimal.
func (a Age) InDays() float64 {
	return roundTenth(float64(a.Years*daysPerYear + a.Months*daysPerMonth + a.Days))
}

// InMonths returns the age in months, rounded to one decimal.
func (a Age) InMonths() float64 {
	return roundTenth(float64(a.Years*12+a.Months) + float64(a.Days)/daysPerMonth)
}

// Result holds the derived meta values for one dob/testdate pair.
type Result struct {
	Age              Age
	AgeDays          float64
	CandidateAge     float64
	WindowDifference float64
	// InWindow is true when at least one window contains AgeDays.
	InWindow bool
}

// Overlay returns the answers written back by the reconciler.
func (r *Result) Overlay() instrument.AnswerSet {
	if r == nil {
		return nil
	}
	return instrument.AnswerSet{
		instrument.KeyCandidateAge:     r.CandidateAge,
		instrument.KeyWindowDifference: r.WindowDifference,
	}
}

// Calculate computes the candidate age in months and the signed window
// deviation in days. It returns nil, nil when either date is empty.
func Calculate(dob, testdate string, windows []instrument.AgeWindow) (*Result, error) {
	if strings.TrimSpace(dob) == "" || strings.TrimSpace(testdate) == "" {
		return nil, nil
	}
	born, err := ParseDate(dob)
	if err != nil {
		return nil, fmt.Errorf("window: date of birth: %w", err)
	}
	tested, err := ParseDate(testdate)
	if err != nil {
		return nil, fmt.Errorf("window: test date: %w", err)
	}

	age := AgeBetween(born, tested)
	days := age.InDays()
	diff, inWindow := Difference(days, windows)
	return &Result{
		Age:              age,
		AgeDays:          days,
		CandidateAge:     age.InMonths(),
		WindowDifference: diff,
		InWindow:         inWindow,
	}, nil
}

// Difference returns 0 when ageDays lies inside any window. Otherwise it
// returns the signed distance to the nearest bound: negative below a window,
// positive above it. Equal distances keep the earlier window. No windows
// yields 0.
func Difference(ageDays float64, windows []instrument.AgeWindow) (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, w := range windows {
		if w.Contains(ageDays) {
			return 0, true
		}
		var delta float64
		if ageDays < w.AgeMinDays {
			delta = -(w.AgeMinDays - ageDays)
		} else {
			delta = ageDays - w.AgeMaxDays
		}
		if !found || math.Abs(delta) < math.Abs(best) {
			best = delta
			found = true
		}
	}
	return best, false
}

// roundTenth rounds to one decimal place, halves rounding up.
func roundTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}
