// Package store owns the persisted ledger document. A Backend knows how
// to load and save the whole document; the Ledger front serializes every
// operation behind one process-wide mutex, so each read-modify-write span
// is atomic with respect to all other ledger operations.
//
// Backends: JSON file (default), PostgreSQL (single JSONB row), in-memory
// (tests), and an optional Redis cache wrapping either of them.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/fridgegames/leaderboard-engine/internal/model"
)

// ErrMalformed reports a persisted document that cannot be decoded. The
// store never attempts repair; the error surfaces on every load until the
// document is fixed by hand.
var ErrMalformed = errors.New("store: malformed ledger document")

// Backend loads and saves the full ledger document.
type Backend interface {
	// Load returns the persisted document. When none exists yet, the
	// backend initializes an empty one, persists it, and returns it.
	Load(ctx context.Context) (*model.Document, error)

	// Save serializes doc, fully replacing any previously persisted
	// content.
	Save(ctx context.Context, doc *model.Document) error
}

// Ledger guards a Backend with the global lock. Callers reach the document
// only through View and Update, so the lock cannot leak on any exit path.
type Ledger struct {
	mu      sync.Mutex
	backend Backend
}

// NewLedger wraps backend with the global lock.
func NewLedger(backend Backend) *Ledger {
	return &Ledger{backend: backend}
}

// View loads the document and runs fn with it under the lock. fn must not
// retain the document past its return.
func (l *Ledger) View(ctx context.Context, fn func(doc *model.Document) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.backend.Load(ctx)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update loads the document, runs fn with it under the lock, and saves it
// back when fn reports it dirty. A save failure propagates to the caller
// with the lock released; no retry is attempted.
func (l *Ledger) Update(ctx context.Context, fn func(doc *model.Document) (dirty bool, err error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.backend.Load(ctx)
	if err != nil {
		return err
	}
	dirty, err := fn(doc)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	return l.backend.Save(ctx, doc)
}
