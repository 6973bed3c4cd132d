// Package gateway is the persistence gateway between the application and its
// two stores: the synchronous device-local key-value store, which is always
// written first, and the best-effort shared remote document.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/tvtime/internal/model"
	"github.com/dukerupert/tvtime/internal/remote"
	"github.com/dukerupert/tvtime/internal/store"
)

const writeQueueSize = 256

// Mode is the passive sync status shown to the user.
type Mode string

const (
	ModeSyncing Mode = "syncing"
	ModeLocal   Mode = "local"
)

// KV is the device-local synchronous key-value store.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// SetMany stores every pair or none of them.
	SetMany(values map[string]string) error
}

// Recorder receives remote write outcomes.
type Recorder interface {
	RecordRemoteWrite(err error)
}

// Snapshot is the family state read back from local storage.
// LastMidnightCheck is the raw stored string and may be malformed.
type Snapshot struct {
	Children          []model.Person
	Chores            []model.Chore
	LastMidnightCheck string
}

type write struct {
	fields model.Fields
	chores bool
}

type Gateway struct {
	kv       KV
	remote   remote.Document
	recorder Recorder
	logger   *slog.Logger
	queue    chan write

	mu            sync.Mutex
	mode          Mode
	pendingChores int
	onMode        func(Mode)
	cancel        context.CancelFunc
	done          chan struct{}
}

// New builds a gateway. A nil doc runs in local mode permanently.
func New(kv KV, doc remote.Document, recorder Recorder, logger *slog.Logger) *Gateway {
	g := &Gateway{
		kv:       kv,
		remote:   doc,
		recorder: recorder,
		logger:   logger,
		queue:    make(chan write, writeQueueSize),
		mode:     ModeLocal,
	}
	return g
}

// OnModeChange registers fn to be called whenever the sync mode flips.
func (g *Gateway) OnModeChange(fn func(Mode)) {
	g.mu.Lock()
	g.onMode = fn
	g.mu.Unlock()
}

func (g *Gateway) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// HasRemote reports whether a remote document is configured.
func (g *Gateway) HasRemote() bool {
	return g.remote != nil
}

// PendingChoreWrites is the number of chore writes queued for the remote
// document that have not completed yet.
func (g *Gateway) PendingChoreWrites() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingChores
}

// Load reads the family state from local storage. Corrupt collections are
// logged and treated as empty.
func (g *Gateway) Load() (Snapshot, error) {
	var snap Snapshot

	raw, ok, err := g.kv.Get(store.KeyChildren)
	if err != nil {
		return snap, fmt.Errorf("load children: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Children); err != nil {
			g.logger.Warn("discarding corrupt children", "error", err)
			snap.Children = nil
		}
	}

	raw, ok, err = g.kv.Get(store.KeyCustomChores)
	if err != nil {
		return snap, fmt.Errorf("load chores: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Chores); err != nil {
			g.logger.Warn("discarding corrupt chores", "error", err)
			snap.Chores = nil
		}
	}

	snap.LastMidnightCheck, _, err = g.kv.Get(store.KeyLastMidnightCheck)
	if err != nil {
		return snap, fmt.Errorf("load last midnight check: %w", err)
	}
	return snap, nil
}

// FamilyID returns the device's family identifier, generating and persisting
// one on first use.
func (g *Gateway) FamilyID() (string, error) {
	return EnsureFamilyID(g.kv)
}

// EnsureFamilyID reads the family identifier from kv, generating and
// persisting one if none is stored. The remote document is opened with it
// before a Gateway exists.
func EnsureFamilyID(kv KV) (string, error) {
	id, ok, err := kv.Get(store.KeyFamilyID)
	if err != nil {
		return "", fmt.Errorf("load family id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = model.NewFamilyID()
	if err := kv.Set(store.KeyFamilyID, id); err != nil {
		return "", fmt.Errorf("save family id: %w", err)
	}
	return id, nil
}

// SetFamilyID overwrites the family identifier. The running process keeps
// using the document it opened; the new id applies on next start.
func (g *Gateway) SetFamilyID(id string) error {
	if id == "" {
		return errors.New("family id is required")
	}
	if err := g.kv.Set(store.KeyFamilyID, id); err != nil {
		return fmt.Errorf("save family id: %w", err)
	}
	return nil
}

func (g *Gateway) SaveChildren(children []model.Person) error {
	if children == nil {
		children = []model.Person{}
	}
	if err := g.SaveChildrenLocal(children); err != nil {
		return err
	}
	g.enqueue(write{fields: model.Fields{Children: &children}})
	return nil
}

func (g *Gateway) SaveChores(chores []model.Chore) error {
	if chores == nil {
		chores = []model.Chore{}
	}
	if err := g.SaveChoresLocal(chores); err != nil {
		return err
	}
	g.enqueue(write{fields: model.Fields{CustomChores: &chores}, chores: true})
	return nil
}

func (g *Gateway) SaveLastCheck(date string) error {
	if err := g.SaveLastCheckLocal(date); err != nil {
		return err
	}
	g.enqueue(write{fields: model.Fields{LastMidnightCheck: &date}})
	return nil
}

// SaveBonus persists a bonus application: children and date in one local
// transaction, then a single remote write carrying both.
func (g *Gateway) SaveBonus(children []model.Person, date string) error {
	if children == nil {
		children = []model.Person{}
	}
	b, err := json.Marshal(children)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", store.KeyChildren, err)
	}
	if err := g.kv.SetMany(map[string]string{
		store.KeyChildren:          string(b),
		store.KeyLastMidnightCheck: date,
	}); err != nil {
		return fmt.Errorf("save bonus: %w", err)
	}
	g.enqueue(write{fields: model.Fields{Children: &children, LastMidnightCheck: &date}})
	return nil
}

// Seed writes the whole local state to the remote document.
func (g *Gateway) Seed(snap Snapshot) {
	children := snap.Children
	if children == nil {
		children = []model.Person{}
	}
	chores := snap.Chores
	if chores == nil {
		chores = []model.Chore{}
	}
	fields := model.Fields{Children: &children, CustomChores: &chores}
	if snap.LastMidnightCheck != "" {
		date := snap.LastMidnightCheck
		fields.LastMidnightCheck = &date
	}
	g.enqueue(write{fields: fields, chores: true})
}

func (g *Gateway) SaveChildrenLocal(children []model.Person) error {
	if children == nil {
		children = []model.Person{}
	}
	return g.setJSON(store.KeyChildren, children)
}

func (g *Gateway) SaveChoresLocal(chores []model.Chore) error {
	if chores == nil {
		chores = []model.Chore{}
	}
	return g.setJSON(store.KeyCustomChores, chores)
}

func (g *Gateway) SaveLastCheckLocal(date string) error {
	if err := g.kv.Set(store.KeyLastMidnightCheck, date); err != nil {
		return fmt.Errorf("save last midnight check: %w", err)
	}
	return nil
}

// Fetch reads the remote document once. Failures flip the gateway to local
// mode and are returned for the caller to log.
func (g *Gateway) Fetch(ctx context.Context) (*model.Document, error) {
	if g.remote == nil {
		return nil, remote.ErrUnavailable
	}
	doc, err := g.remote.Get(ctx)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		g.setMode(ModeSyncing)
		return nil, err
	case err != nil:
		g.setMode(ModeLocal)
		return nil, err
	}
	g.setMode(ModeSyncing)
	return doc, nil
}

// Subscribe opens the remote subscription. Without a remote document the
// returned channel is closed immediately. Error events flip the mode to
// local and snapshot events flip it back to syncing before being forwarded.
func (g *Gateway) Subscribe(ctx context.Context) <-chan remote.Event {
	out := make(chan remote.Event)
	if g.remote == nil {
		close(out)
		return out
	}
	in := g.remote.Subscribe(ctx)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Err != nil {
				g.setMode(ModeLocal)
			} else {
				g.setMode(ModeSyncing)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Start runs the remote writer until ctx is done or Stop is called.
func (g *Gateway) Start(ctx context.Context) {
	g.mu.Lock()
	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	g.mu.Unlock()

	go func() {
		defer close(g.done)
		for {
			select {
			case <-ctx.Done():
				return
			case w := <-g.queue:
				g.push(ctx, w)
			}
		}
	}()
}

// Stop halts the remote writer. Writes still queued are abandoned; local
// storage already holds them.
func (g *Gateway) Stop() {
	g.mu.Lock()
	cancel := g.cancel
	done := g.done
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (g *Gateway) push(ctx context.Context, w write) {
	err := g.remote.Set(ctx, w.fields)
	if w.chores {
		g.mu.Lock()
		g.pendingChores--
		g.mu.Unlock()
	}
	if g.recorder != nil {
		g.recorder.RecordRemoteWrite(err)
	}
	if err != nil {
		if ctx.Err() == nil {
			g.logger.Warn("remote write failed", "error", err)
			g.setMode(ModeLocal)
		}
		return
	}
	g.setMode(ModeSyncing)
}

func (g *Gateway) enqueue(w write) {
	if g.remote == nil {
		return
	}
	if w.chores {
		g.mu.Lock()
		g.pendingChores++
		g.mu.Unlock()
	}
	select {
	case g.queue <- w:
	default:
		g.logger.Warn("remote write queue full, dropping write")
		if w.chores {
			g.mu.Lock()
			g.pendingChores--
			g.mu.Unlock()
		}
	}
}

func (g *Gateway) setMode(m Mode) {
	g.mu.Lock()
	changed := g.mode != m
	g.mode = m
	fn := g.onMode
	g.mu.Unlock()

	if changed && fn != nil {
		fn(m)
	}
}

func (g *Gateway) setJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := g.kv.Set(key, string(b)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
