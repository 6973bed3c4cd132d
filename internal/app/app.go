// Package app is the application context. It owns the ledger and the
// last-applied bonus date, and runs every mutation on one timeline so
// ledger operations, bonus checks and remote reconciliation never
// interleave.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/tvtime/internal/bonus"
	"github.com/dukerupert/tvtime/internal/gateway"
	"github.com/dukerupert/tvtime/internal/ledger"
	"github.com/dukerupert/tvtime/internal/metrics"
	"github.com/dukerupert/tvtime/internal/model"
	"github.com/dukerupert/tvtime/internal/reconcile"
	"github.com/dukerupert/tvtime/internal/remote"
	"github.com/dukerupert/tvtime/internal/websocket"
)

const (
	DefaultDailyBonus   = 30
	DefaultMaxBonusDays = 365
	DefaultSettleDelay  = 2 * time.Second
	DefaultPollInterval = time.Minute
)

// Notifier tells display clients to re-render.
type Notifier interface {
	Broadcast(msg websocket.Message)
}

type Config struct {
	DailyBonus   int
	MaxBonusDays int
	SettleDelay  time.Duration
	PollInterval time.Duration
	Location     *time.Location
	Now          func() time.Time
}

func (c Config) withDefaults() Config {
	if c.DailyBonus <= 0 {
		c.DailyBonus = DefaultDailyBonus
	}
	if c.MaxBonusDays <= 0 {
		c.MaxBonusDays = DefaultMaxBonusDays
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type App struct {
	cfg      Config
	gw       *gateway.Gateway
	notifier Notifier
	metrics  metrics.Recorder
	logger   *slog.Logger

	scheduler  *bonus.Scheduler
	reconciler *reconcile.Reconciler

	mu     sync.Mutex
	ledger *ledger.Ledger
	// lastCheck is the date through which the daily bonus has been
	// applied. Zero means no check has ever run.
	lastCheck time.Time
	// processingBonus is raised for the duration of a bonus check and
	// stays raised until settleGen's timer fires after a grant.
	processingBonus bool
	settling        bool
	settleGen       uint64
	familyID        string
}

// New loads local state through gw and builds the application context.
func New(cfg Config, gw *gateway.Gateway, notifier Notifier, rec metrics.Recorder, logger *slog.Logger) (*App, error) {
	cfg = cfg.withDefaults()
	if rec == nil {
		rec = metrics.Nop{}
	}

	snap, err := gw.Load()
	if err != nil {
		return nil, fmt.Errorf("load local state: %w", err)
	}
	familyID, err := gw.FamilyID()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		gw:       gw,
		notifier: notifier,
		metrics:  rec,
		logger:   logger,
		familyID: familyID,
	}
	a.ledger = ledger.New(snap.Children, snap.Chores, gw, a.now)
	a.ledger.ReplaceChildren(snap.Children)

	if snap.LastMidnightCheck != "" {
		last, err := model.ParseDate(snap.LastMidnightCheck, cfg.Location)
		if err != nil {
			logger.Warn("ignoring malformed last midnight check", "value", snap.LastMidnightCheck, "error", err)
		} else {
			a.lastCheck = last
		}
	}

	a.scheduler = bonus.NewScheduler(a, cfg.PollInterval, a.now, logger)
	a.reconciler = reconcile.New(a, logger)

	gw.OnModeChange(func(m gateway.Mode) {
		logger.Info("sync mode changed", "mode", m)
		a.notify("status", "changed", "", map[string]any{"mode": string(m)})
	})
	return a, nil
}

// Start brings the device online: the remote writer, the initial remote
// read, the subscription and finally the bonus scheduler.
func (a *App) Start(ctx context.Context) {
	a.gw.Start(ctx)
	if a.gw.HasRemote() {
		a.Sync(ctx)
		a.reconciler.Start(ctx, a.gw.Subscribe(ctx))
	}
	a.scheduler.Start(ctx)
}

// Stop halts background work in the reverse order of Start.
func (a *App) Stop() {
	a.scheduler.Stop()
	a.reconciler.Stop()
	a.gw.Stop()
}

// Sync reads the remote document once. A missing document is seeded from
// local state; an existing one goes through reconciliation.
func (a *App) Sync(ctx context.Context) {
	doc, err := a.gw.Fetch(ctx)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		a.logger.Info("remote document missing, seeding from local state")
		a.mu.Lock()
		snap := gateway.Snapshot{
			Children:          a.ledger.Children(),
			Chores:            a.ledger.Chores(),
			LastMidnightCheck: a.lastCheckString(),
		}
		a.mu.Unlock()
		a.gw.Seed(snap)
	case err != nil:
		a.logger.Warn("remote unavailable, using local data", "error", err)
		a.RemoteFailed(err)
	default:
		a.ApplySnapshot(doc)
	}
}

// Status is the passive sync indicator plus a summary of local state.
type Status struct {
	Mode              gateway.Mode `json:"mode"`
	HasRemote         bool         `json:"has_remote"`
	FamilyID          string       `json:"family_id"`
	Today             string       `json:"today"`
	LastMidnightCheck string       `json:"last_midnight_check,omitempty"`
	ProcessingBonus   bool         `json:"processing_bonus"`
	Children          int          `json:"children"`
	Chores            int          `json:"chores"`
	DailyBonus        int          `json:"daily_bonus"`
}

func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Mode:              a.gw.Mode(),
		HasRemote:         a.gw.HasRemote(),
		FamilyID:          a.familyID,
		Today:             model.FormatDate(a.today()),
		LastMidnightCheck: a.lastCheckString(),
		ProcessingBonus:   a.processingBonus,
		Children:          len(a.ledger.Children()),
		Chores:            len(a.ledger.Chores()),
		DailyBonus:        a.cfg.DailyBonus,
	}
}

// FamilyID is the document the running process is bound to.
func (a *App) FamilyID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.familyID
}

// JoinFamily stores a new family id. It takes effect on the next start.
func (a *App) JoinFamily(id string) error {
	if err := a.gw.SetFamilyID(id); err != nil {
		return err
	}
	a.logger.Info("family id changed, restart to switch documents", "family_id", id)
	return nil
}

func (a *App) now() time.Time {
	return a.cfg.Now().In(a.cfg.Location)
}

func (a *App) today() time.Time {
	return model.StartOfDay(a.now())
}

func (a *App) lastCheckString() string {
	if a.lastCheck.IsZero() {
		return ""
	}
	return model.FormatDate(a.lastCheck)
}

func (a *App) notify(entity, action, id string, extra map[string]any) {
	if a.notifier == nil {
		return
	}
	a.notifier.Broadcast(websocket.NewMessage(entity, action, id, extra))
}
