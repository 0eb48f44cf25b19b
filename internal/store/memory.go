package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fridgegames/leaderboard-engine/internal/model"
)

// MemoryBackend keeps the serialized document in memory. Used for tests
// and development; nothing survives a restart. The document round-trips
// through JSON on every load so the backend behaves like the file one,
// lenient field decoding included.
type MemoryBackend struct {
	data []byte

	// FailSaves makes every Save return an error, for exercising
	// persist-failure paths in tests.
	FailSaves bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Seed replaces the stored bytes with raw, bypassing Save. Tests use it to
// plant hand-written documents, malformed ones included.
func (b *MemoryBackend) Seed(raw []byte) {
	b.data = append([]byte(nil), raw...)
}

func (b *MemoryBackend) Load(ctx context.Context) (*model.Document, error) {
	if b.data == nil {
		doc := model.NewDocument()
		if err := b.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	var doc model.Document
	if err := json.Unmarshal(b.data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &doc, nil
}

func (b *MemoryBackend) Save(_ context.Context, doc *model.Document) error {
	if b.FailSaves {
		return fmt.Errorf("store: save failed (test)")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}
	b.data = data
	return nil
}
