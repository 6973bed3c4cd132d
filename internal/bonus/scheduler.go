package bonus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Checker runs the idempotent check-and-apply procedure.
type Checker interface {
	CheckDailyBonus() Result
}

// Scheduler invokes the checker from three independent sources: once at
// start, on every poll tick, and at each local midnight. The midnight timer
// fires once at the next midnight and then re-arms every 24 hours. The
// sources are redundant on purpose; a timer that is delayed or clamped in a
// suspended host is covered by the others.
type Scheduler struct {
	mu       sync.RWMutex
	checker  Checker
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a bonus scheduler polling every interval.
func NewScheduler(checker Checker, interval time.Duration, now func() time.Time, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		checker:  checker,
		interval: interval,
		now:      now,
		logger:   logger,
	}
}

// Start begins the scheduler loop. The first check runs before Start returns.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.run("startup")

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		untilMidnight := UntilMidnight(s.now())
		midnight := time.NewTimer(untilMidnight)
		defer midnight.Stop()
		s.logger.Debug("midnight timer armed", "in", untilMidnight)

		var daily *time.Ticker
		var dailyC <-chan time.Time
		defer func() {
			if daily != nil {
				daily.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run("poll")
			case <-midnight.C:
				s.run("midnight")
				daily = time.NewTicker(24 * time.Hour)
				dailyC = daily.C
			case <-dailyC:
				s.run("midnight")
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) run(trigger string) {
	res := s.checker.CheckDailyBonus()
	switch res.Kind {
	case Owed:
		s.logger.Info("daily bonus applied", "trigger", trigger, "days", res.Days, "minutes", res.Minutes)
	case Failed:
		s.logger.Error("daily bonus check failed", "trigger", trigger, "error", res.Err)
	default:
		s.logger.Debug("daily bonus check", "trigger", trigger, "result", res.Kind)
	}
}
