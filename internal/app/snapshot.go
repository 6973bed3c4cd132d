package app

import (
	"time"

	"github.com/dukerupert/tvtime/internal/metrics"
	"github.com/dukerupert/tvtime/internal/model"
	"github.com/dukerupert/tvtime/internal/reconcile"
)

// SnapshotResult reports the decision taken for each part of a remote
// document.
type SnapshotResult struct {
	Children reconcile.Decision
	Chores   reconcile.Decision
}

// ApplySnapshot reconciles a remote document pushed by the subscription.
// Children are replaced unless a bonus is being applied or the snapshot
// predates today's locally applied bonus. Chores are replaced unless a
// local chore write is still on its way to the remote.
func (a *App) ApplySnapshot(doc *model.Document) reconcile.Decision {
	return a.applySnapshot(doc).Children
}

func (a *App) applySnapshot(doc *model.Document) SnapshotResult {
	res := SnapshotResult{Children: reconcile.Absent, Chores: reconcile.Absent}
	if doc == nil {
		return res
	}

	a.mu.Lock()
	today := a.today()
	remoteLast := a.parseRemoteDate(doc.LastMidnightCheck)

	if doc.Children != nil || doc.LastMidnightCheck != "" {
		res.Children = reconcile.Decide(reconcile.Input{
			Processing: a.processingBonus,
			Today:      today,
			LocalLast:  a.lastCheck,
			RemoteLast: remoteLast,
		})
	}
	if res.Children == reconcile.Accepted {
		if doc.Children != nil {
			a.ledger.ReplaceChildren(doc.Children)
			if err := a.gw.SaveChildrenLocal(a.ledger.Children()); err != nil {
				a.logger.Error("failed to store remote children", "error", err)
			}
		}
		if reconcile.AdoptLastCheck(a.lastCheck, remoteLast, today) {
			a.lastCheck = remoteLast
			if err := a.gw.SaveLastCheckLocal(model.FormatDate(remoteLast)); err != nil {
				a.logger.Error("failed to store remote last midnight check", "error", err)
			}
		}
	}

	if doc.CustomChores != nil {
		if a.gw.PendingChoreWrites() > 0 {
			res.Chores = reconcile.IgnoredPending
		} else {
			res.Chores = reconcile.Accepted
			a.ledger.ReplaceChores(doc.CustomChores)
			if err := a.gw.SaveChoresLocal(a.ledger.Chores()); err != nil {
				a.logger.Error("failed to store remote chores", "error", err)
			}
		}
	}
	a.mu.Unlock()

	if res.Children != reconcile.Absent {
		a.metrics.RecordSnapshot(string(res.Children))
	}
	a.logger.Debug("remote snapshot reconciled", "children", res.Children, "chores", res.Chores)
	if res.Children == reconcile.Accepted || res.Chores == reconcile.Accepted {
		a.notify("family", "synced", "", nil)
	}
	return res
}

// RemoteFailed records a failed remote read or subscription event. Local
// state is untouched.
func (a *App) RemoteFailed(err error) {
	a.metrics.RecordSnapshot(metrics.SnapshotError)
	a.logger.Debug("remote failure recorded", "error", err)
}

func (a *App) parseRemoteDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := model.ParseDate(s, a.cfg.Location)
	if err != nil {
		a.logger.Warn("ignoring malformed remote last midnight check", "value", s, "error", err)
		return time.Time{}
	}
	return t
}
