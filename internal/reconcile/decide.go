// Package reconcile decides whether a remote snapshot replaces local state
// and consumes the subscription stream that delivers those snapshots.
package reconcile

import (
	"time"

	"github.com/dukerupert/tvtime/internal/model"
)

// Decision is the outcome for one remote snapshot.
type Decision string

const (
	Accepted          Decision = "accepted"
	IgnoredProcessing Decision = "ignored_processing"
	IgnoredStale      Decision = "ignored_stale"
	IgnoredPending    Decision = "ignored_pending"
	Absent            Decision = "absent"
)

// Input is the local view needed to judge a snapshot. Zero times mean the
// date is absent.
type Input struct {
	Processing bool
	Today      time.Time
	LocalLast  time.Time
	RemoteLast time.Time
}

// Decide judges the children part of a snapshot. A snapshot is dropped
// while a bonus is being applied, and when this device already applied
// today's bonus but the remote has not caught up. Accepting in the latter
// case would roll back the freshly credited balances.
func Decide(in Input) Decision {
	if in.Processing {
		return IgnoredProcessing
	}
	today := model.StartOfDay(in.Today)
	if !in.LocalLast.IsZero() && model.StartOfDay(in.LocalLast).Equal(today) {
		if in.RemoteLast.IsZero() || model.StartOfDay(in.RemoteLast).Before(today) {
			return IgnoredStale
		}
	}
	return Accepted
}

// AdoptLastCheck reports whether the remote last-check date should replace
// the local one. Only a later date that is not in the future is adopted, so
// a grant already made elsewhere is not credited twice.
func AdoptLastCheck(local, remote, today time.Time) bool {
	if remote.IsZero() {
		return false
	}
	remote = model.StartOfDay(remote)
	if remote.After(model.StartOfDay(today)) {
		return false
	}
	return local.IsZero() || remote.After(model.StartOfDay(local))
}
