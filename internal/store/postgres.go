package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fridgegames/leaderboard-engine/internal/model"
)

// PostgresBackend persists the document as one JSONB row. The document
// model stays a single unit of state: every save replaces the whole row,
// exactly like the file backend replaces the whole file.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a PostgreSQL-backed store.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// EnsureSchema creates the backing table when it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS ledger_document (
			id         INT PRIMARY KEY CHECK (id = 1),
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Load(ctx context.Context) (*model.Document, error) {
	var data []byte
	err := b.pool.QueryRow(ctx,
		`SELECT doc FROM ledger_document WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		doc := model.NewDocument()
		if err := b.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load document: %w", err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &doc, nil
}

func (b *PostgresBackend) Save(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}

	_, err = b.pool.Exec(ctx,
		`INSERT INTO ledger_document (id, doc, updated_at)
		 VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		data)
	if err != nil {
		return fmt.Errorf("store: save document: %w", err)
	}
	return nil
}
