package window_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/window"
)

func TestCalculate_EmptyDates(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ dob, test string }{
		{"", "2020-01-01"},
		{"2020-01-01", ""},
		{"  ", "  "},
	} {
		res, err := window.Calculate(tc.dob, tc.test, nil)
		if err != nil || res != nil {
			t.Fatalf("Calculate(%q, %q) = %+v, %v; want nil, nil", tc.dob, tc.test, res, err)
		}
	}
}

func TestCalculate_SameDay(t *testing.T) {
	t.Parallel()

	res, err := window.Calculate("2019-06-30", "2019-06-30", []instrument.AgeWindow{{AgeMinDays: 0, AgeMaxDays: 10}})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if res.CandidateAge != 0 || res.WindowDifference != 0 || !res.InWindow {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = window.Calculate("2019-06-30", "2019-06-30", []instrument.AgeWindow{{AgeMinDays: 5, AgeMaxDays: 10}})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if res.WindowDifference != -5 {
		t.Fatalf("expected -5 below nearest window, got %v", res.WindowDifference)
	}
}

func TestCalculate_BorrowCorrection(t *testing.T) {
	t.Parallel()

	res, err := window.Calculate("2020-01-15", "2020-02-10", nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := window.Age{Years: 0, Months: 0, Days: 25}
	if res.Age != want {
		t.Fatalf("age components = %+v, want %+v", res.Age, want)
	}
	if res.AgeDays != 25 {
		t.Fatalf("age days = %v, want 25", res.AgeDays)
	}
	// 25/30 = 0.833 months, one decimal.
	if res.CandidateAge != 0.8 {
		t.Fatalf("candidate age = %v, want 0.8", res.CandidateAge)
	}
}

func TestCalculate_MonthBorrowCrossesYear(t *testing.T) {
	t.Parallel()

	res, err := window.Calculate("2018-11-20", "2020-02-05", nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// day borrow: 35 - 20 = 15, month 1 -> 13 - 11 = 2, year 2019 - 2018 = 1
	want := window.Age{Years: 1, Months: 2, Days: 15}
	if res.Age != want {
		t.Fatalf("age components = %+v, want %+v", res.Age, want)
	}
	if res.AgeDays != 365+60+15 {
		t.Fatalf("age days = %v", res.AgeDays)
	}
	if res.CandidateAge != 14.5 {
		t.Fatalf("candidate age = %v, want 14.5", res.CandidateAge)
	}
}

func TestDifference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		age     float64
		windows []instrument.AgeWindow
		want    float64
		inside  bool
	}{
		{name: "no windows", age: 100, want: 0},
		{
			name:    "inside inclusive bound",
			age:     90,
			windows: []instrument.AgeWindow{{AgeMinDays: 90, AgeMaxDays: 120}},
			want:    0,
			inside:  true,
		},
		{
			name: "match wins regardless of order",
			age:  100,
			windows: []instrument.AgeWindow{
				{AgeMinDays: 101, AgeMaxDays: 120},
				{AgeMinDays: 60, AgeMaxDays: 100},
				{AgeMinDays: 0, AgeMaxDays: 10},
			},
			want:   0,
			inside: true,
		},
		{
			name:    "above window positive",
			age:     130,
			windows: []instrument.AgeWindow{{AgeMinDays: 90, AgeMaxDays: 120}},
			want:    10,
		},
		{
			name: "nearest bound wins",
			age:  150,
			windows: []instrument.AgeWindow{
				{AgeMinDays: 0, AgeMaxDays: 100},
				{AgeMinDays: 160, AgeMaxDays: 200},
			},
			want: -10,
		},
		{
			name: "tie keeps earlier window",
			age:  150,
			windows: []instrument.AgeWindow{
				{AgeMinDays: 160, AgeMaxDays: 200},
				{AgeMinDays: 0, AgeMaxDays: 140},
			},
			want: -10,
		},
		{
			name: "tie keeps earlier window reversed",
			age:  150,
			windows: []instrument.AgeWindow{
				{AgeMinDays: 0, AgeMaxDays: 140},
				{AgeMinDays: 160, AgeMaxDays: 200},
			},
			want: 10,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, inside := window.Difference(tc.age, tc.windows)
			if got != tc.want || inside != tc.inside {
				t.Fatalf("Difference(%v) = %v, %v; want %v, %v", tc.age, got, inside, tc.want, tc.inside)
			}
		})
	}
}

func TestCalculate_InvalidDate(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ dob, test string }{
		{"2020/01/15", "2020-02-10"},
		{"2020-01-15", "2020-13-01"},
		{"2020-01-15", "2020-aa-01"},
		{"2020-01-00", "2020-02-10"},
	} {
		_, err := window.Calculate(tc.dob, tc.test, nil)
		if !errors.Is(err, window.ErrInvalidDate) {
			t.Fatalf("Calculate(%q, %q) error = %v, want ErrInvalidDate", tc.dob, tc.test, err)
		}
	}
}

func TestResult_Overlay(t *testing.T) {
	t.Parallel()

	var nilResult *window.Result
	if nilResult.Overlay() != nil {
		t.Fatalf("nil result should have nil overlay")
	}

	res := &window.Result{CandidateAge: 3.2, WindowDifference: -4}
	overlay := res.Overlay()
	if overlay[instrument.KeyCandidateAge] != 3.2 || overlay[instrument.KeyWindowDifference] != -4.0 {
		t.Fatalf("unexpected overlay %+v", overlay)
	}
}
