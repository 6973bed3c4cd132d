package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/tvtime/internal/model"
	"github.com/dukerupert/tvtime/internal/remote"
)

// Target applies snapshots and records subscription errors.
type Target interface {
	ApplySnapshot(doc *model.Document) Decision
	RemoteFailed(err error)
}

// Reconciler drains a remote subscription into a Target.
type Reconciler struct {
	mu     sync.RWMutex
	target Target
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a reconciler.
func New(target Target, logger *slog.Logger) *Reconciler {
	return &Reconciler{target: target, logger: logger}
}

// Start consumes events until ctx ends or the channel closes.
func (r *Reconciler) Start(ctx context.Context, events <-chan remote.Event) {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					r.logger.Debug("remote subscription closed")
					return
				}
				r.handle(ev)
			}
		}
	}()
}

// Stop gracefully stops the reconciler.
func (r *Reconciler) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	done := r.done
	r.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (r *Reconciler) handle(ev remote.Event) {
	if ev.Err != nil {
		r.logger.Warn("remote subscription error", "error", ev.Err)
		r.target.RemoteFailed(ev.Err)
		return
	}
	if ev.Snapshot == nil {
		return
	}
	d := r.target.ApplySnapshot(ev.Snapshot)
	r.logger.Debug("remote snapshot", "decision", d)
}
