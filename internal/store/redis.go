package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fridgegames/leaderboard-engine/internal/model"
)

const documentKey = "leaderboard:document"

// CachedBackend wraps a primary Backend with a Redis document cache.
// Loads are read-through: a cache hit skips the primary entirely; a miss
// reads the primary and repopulates the key. Saves are write-through: the
// primary is written first, then the cache, so the cache never holds a
// document the primary rejected. Cache failures degrade to the primary
// rather than failing the operation.
type CachedBackend struct {
	primary Backend
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedBackend creates a cached wrapper around a primary backend.
func NewCachedBackend(primary Backend, rdb *redis.Client, ttl time.Duration) *CachedBackend {
	return &CachedBackend{primary: primary, rdb: rdb, ttl: ttl}
}

func (b *CachedBackend) Load(ctx context.Context) (*model.Document, error) {
	data, err := b.rdb.Get(ctx, documentKey).Bytes()
	if err == nil {
		var doc model.Document
		if json.Unmarshal(data, &doc) == nil {
			return &doc, nil
		}
		// Junk in the cache: drop it and fall through to the primary.
		b.rdb.Del(ctx, documentKey)
	}

	doc, err := b.primary.Load(ctx)
	if err != nil {
		return nil, err
	}
	b.cache(ctx, doc)
	return doc, nil
}

func (b *CachedBackend) Save(ctx context.Context, doc *model.Document) error {
	if err := b.primary.Save(ctx, doc); err != nil {
		return err
	}
	b.cache(ctx, doc)
	return nil
}

func (b *CachedBackend) cache(ctx context.Context, doc *model.Document) {
	if data, err := json.Marshal(doc); err == nil {
		// A failed Set only costs a cache miss; the TTL bounds staleness.
		b.rdb.Set(ctx, documentKey, data, b.ttl)
	}
}
