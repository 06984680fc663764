package stage

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the outcome of a stage for one day.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// DayOutcome records what a stage did for one day.
type DayOutcome struct {
	Day    string
	Status Status
	Err    error
}

// Result is the explicit outcome a stage operation returns to the scheduler.
type Result struct {
	Stage string
	Days  []DayOutcome
	// Err is set when the stage could not run at all, independent of any day.
	Err error
}

// Record appends a day outcome. A non-nil err forces StatusFailed.
func (r *Result) Record(day string, status Status, err error) {
	if err != nil {
		status = StatusFailed
	}
	r.Days = append(r.Days, DayOutcome{Day: day, Status: status, Err: err})
}

// Failed reports whether the stage or any day failed.
func (r Result) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, d := range r.Days {
		if d.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Error joins the stage error and every failed day's error.
func (r Result) Error() error {
	var errs []error
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	for _, d := range r.Days {
		if d.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Day, d.Err))
		}
	}
	return errors.Join(errs...)
}

// Counts tallies day outcomes by status.
func (r Result) Counts() map[Status]int {
	counts := make(map[Status]int, 3)
	for _, d := range r.Days {
		counts[d.Status]++
	}
	return counts
}

// Label converts an operation name such as motion_correct into a display
// label ("Motion Correct").
func Label(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
