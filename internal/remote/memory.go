package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukerupert/tvtime/internal/model"
)

const memorySubBuffer = 64

// Memory is an in-process Document. It echoes writes to subscribers the
// way the document service does.
type Memory struct {
	mu       sync.Mutex
	doc      *model.Document
	subs     map[chan Event]struct{}
	failWith error
	writes   []model.Fields
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		subs: make(map[chan Event]struct{}),
		now:  time.Now,
	}
}

// Fail makes every operation return err wrapped in ErrUnavailable until
// Fail(nil) is called. Subscribers receive an error event.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
	if err != nil {
		m.broadcastLocked(Event{Err: fmt.Errorf("%w: %v", ErrUnavailable, err)})
	}
}

func (m *Memory) Get(ctx context.Context) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, m.failWith)
	}
	if m.doc == nil {
		return nil, ErrNotFound
	}
	return m.doc.Clone(), nil
}

func (m *Memory) Set(ctx context.Context, fields model.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, m.failWith)
	}
	if m.doc == nil {
		m.doc = &model.Document{}
	}
	m.doc.Merge(fields)
	now := m.now().UTC()
	m.doc.LastUpdated = &now
	m.writes = append(m.writes, fields)
	m.broadcastLocked(Event{Snapshot: m.doc.Clone()})
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, memorySubBuffer)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	if m.doc != nil && m.failWith == nil {
		ch <- Event{Snapshot: m.doc.Clone()}
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch
}

// Writes returns every merge applied so far, oldest first.
func (m *Memory) Writes() []model.Fields {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Fields, len(m.writes))
	copy(out, m.writes)
	return out
}

// Snapshot returns a copy of the current document, or nil.
func (m *Memory) Snapshot() *model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

func (m *Memory) broadcastLocked(ev Event) {
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full, drop rather than block writers
		}
	}
}
