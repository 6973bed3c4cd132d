package app

import (
	"fmt"
	"time"

	"github.com/dukerupert/tvtime/internal/bonus"
	"github.com/dukerupert/tvtime/internal/model"
)

// CheckDailyBonus credits every person with the bonus owed since the last
// applied date. It is idempotent within a day and safe to call from any
// trigger. An unexpected failure is logged and reported as bonus.Failed
// without leaving the processing flag raised.
func (a *App) CheckDailyBonus() (res bonus.Result) {
	a.mu.Lock()
	a.processingBonus = true
	today := a.today()
	res.Today = model.FormatDate(today)

	defer func() {
		if r := recover(); r != nil {
			res = bonus.Result{Kind: bonus.Failed, Today: model.FormatDate(today), Err: fmt.Errorf("bonus check panicked: %v", r)}
		}
		if res.Kind == bonus.Owed && res.Err == nil {
			a.settleLocked()
		} else if !a.settling {
			a.processingBonus = false
		}
		a.mu.Unlock()

		a.metrics.RecordBonusCheck(string(res.Kind))
		if res.Minutes > 0 {
			a.metrics.RecordBonusMinutes(res.Minutes)
		}
		if res.Kind != bonus.AlreadyApplied {
			a.notify("bonus", "checked", "", map[string]any{"result": string(res.Kind), "days": res.Days})
		}
	}()

	plan := bonus.Decide(a.lastCheck, today, a.cfg.MaxBonusDays)
	res.Kind = plan.Kind
	res.Days = plan.Days

	switch plan.Kind {
	case bonus.FirstRun:
		// Establish today as the baseline; nothing is owed yet.
		if err := a.gw.SaveLastCheck(model.FormatDate(today)); err != nil {
			res.Kind = bonus.Failed
			res.Err = err
			break
		}
		a.lastCheck = today
	case bonus.None:
		a.logger.Warn("last midnight check is in the future, skipping bonus", "last", a.lastCheckString(), "today", res.Today)
	case bonus.Owed:
		res.Minutes = plan.Days * a.cfg.DailyBonus
		before := a.ledger.Children()
		committed := false
		defer func() {
			if !committed {
				a.ledger.ReplaceChildren(before)
			}
		}()

		a.ledger.GrantAll(res.Minutes)
		if err := a.gw.SaveBonus(a.ledger.Children(), model.FormatDate(today)); err != nil {
			res.Kind = bonus.Failed
			res.Err = err
			res.Minutes = 0
			break
		}
		a.lastCheck = today
		committed = true
	}
	return res
}

// ProcessingBonus reports whether remote snapshots are currently ignored.
func (a *App) ProcessingBonus() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processingBonus
}

// settleLocked keeps the processing flag raised for the settle delay so the
// echo of the grant's own remote write cannot roll it back. Each grant
// starts a new generation; only the latest timer lowers the flag.
func (a *App) settleLocked() {
	a.settleGen++
	gen := a.settleGen
	a.settling = true
	time.AfterFunc(a.cfg.SettleDelay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.settleGen != gen {
			return
		}
		a.settling = false
		a.processingBonus = false
	})
}
