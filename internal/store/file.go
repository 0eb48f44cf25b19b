package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fridgegames/leaderboard-engine/internal/model"
)

// FileBackend persists the document as one indented JSON file. Saves are
// staged to a uniquely named temp file in the same directory and renamed
// over the target, so a crash mid-write never leaves a torn document.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend at path, creating the parent
// directory when it does not exist yet.
func NewFileBackend(path string) (*FileBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Load(ctx context.Context) (*model.Document, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		doc := model.NewDocument()
		if err := b.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", b.path, err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, b.path, err)
	}
	return &doc, nil
}

func (b *FileBackend) Save(_ context.Context, doc *model.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", b.path, uuid.New().String())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: replace %s: %w", b.path, err)
	}
	return nil
}
