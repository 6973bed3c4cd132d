// Package remote provides access to the shared family document held by the
// document service. Every failure is reported as ErrUnavailable so callers
// can fall back to local state.
package remote

import (
	"context"
	"errors"

	"github.com/dukerupert/tvtime/internal/model"
)

var (
	// ErrUnavailable wraps any failure to reach or use the document service.
	ErrUnavailable = errors.New("remote unavailable")
	// ErrNotFound is returned by Get when the family document does not exist.
	ErrNotFound = errors.New("remote document not found")
)

// Event is one delivery from a subscription: either a snapshot of the
// document or a transport error.
type Event struct {
	Snapshot *model.Document
	Err      error
}

// Document is a family document addressed by its family identifier.
type Document interface {
	Get(ctx context.Context) (*model.Document, error)
	// Set merges the non-nil fields into the document.
	Set(ctx context.Context, fields model.Fields) error
	// Subscribe delivers the current document, if one exists, and then
	// every change, including echoes of the caller's own writes, until ctx
	// is done. An absent document produces no initial event.
	// The channel is closed when the subscription ends.
	Subscribe(ctx context.Context) <-chan Event
}
