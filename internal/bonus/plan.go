// Package bonus decides how many daily bonuses are owed and drives the
// recurring checks that apply them.
package bonus

import (
	"time"

	"github.com/dukerupert/tvtime/internal/model"
)

// Kind classifies the outcome of a bonus check.
type Kind string

const (
	FirstRun       Kind = "first_run"
	AlreadyApplied Kind = "already_applied"
	Owed           Kind = "granted"
	None           Kind = "none"
	Failed         Kind = "failed"
)

// Plan is the decision for one check.
type Plan struct {
	Kind Kind
	Days int
}

// Decide computes the bonus owed between last, the date through which the
// bonus has been applied (zero when never checked), and today. Both are
// calendar dates. Days are clamped to maxDays. A last date after today
// means the clock moved backwards and nothing is owed.
func Decide(last, today time.Time, maxDays int) Plan {
	today = model.StartOfDay(today)
	if last.IsZero() {
		return Plan{Kind: FirstRun}
	}
	last = model.StartOfDay(last)
	if last.Equal(today) {
		return Plan{Kind: AlreadyApplied}
	}

	days := model.DaysBetween(last, today)
	if maxDays > 0 && days > maxDays {
		days = maxDays
	}
	if days <= 0 {
		return Plan{Kind: None}
	}
	return Plan{Kind: Owed, Days: days}
}

// Result reports what a bonus check did.
type Result struct {
	Kind    Kind   `json:"result"`
	Days    int    `json:"days"`
	Minutes int    `json:"minutes"`
	Today   string `json:"today"`
	Err     error  `json:"-"`
}

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// UntilMidnight is the wait from now to NextMidnight(now).
func UntilMidnight(now time.Time) time.Duration {
	return NextMidnight(now).Sub(now)
}
