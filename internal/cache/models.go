package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts"
	"golang.org/x/sync/singleflight"
)

// ModelCache maps model identifiers to loaded models. Concurrent first
// requests for the same identifier share a single Engine.Load call. Failed
// loads are not remembered.
type ModelCache struct {
	engine tts.Engine

	items map[string]*modelEntry
	group singleflight.Group

	// Synchronization
	mu     sync.RWMutex
	closed bool

	// Metrics
	stats CacheStats
}

type modelEntry struct {
	model    tts.Model
	loadedAt time.Time
	loadTime time.Duration
	hits     int64
}

// NewModelCache creates an empty cache that loads models through engine.
func NewModelCache(engine tts.Engine) *ModelCache {
	return &ModelCache{
		engine: engine,
		items:  make(map[string]*modelEntry),
	}
}

// Get returns the model for modelID, loading it on first use.
func (c *ModelCache) Get(ctx context.Context, modelID string) (tts.Model, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, tts.ErrClosed
	}
	if entry, ok := c.items[modelID]; ok {
		entry.hits++
		c.stats.Hits++
		c.mu.Unlock()
		return entry.model, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	// The load runs detached from the first caller's context so that one
	// disconnecting client does not fail everyone waiting on the same model.
	ch := c.group.DoChan(modelID, func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx), modelID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(tts.Model), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ModelCache) load(ctx context.Context, modelID string) (tts.Model, error) {
	// Another flight may have finished between our miss and this call.
	c.mu.RLock()
	if entry, ok := c.items[modelID]; ok {
		c.mu.RUnlock()
		return entry.model, nil
	}
	c.mu.RUnlock()

	log.Info("Loading model", "model", modelID)
	start := time.Now()
	model, err := c.engine.Load(ctx, modelID)
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.stats.LoadFailures++
		log.Error("Model load failed", "model", modelID, "duration", elapsed, "error", err)
		return nil, fmt.Errorf("unable to load model %s: %w", modelID, err)
	}

	if c.closed {
		_ = model.Close()
		return nil, tts.ErrClosed
	}

	c.items[modelID] = &modelEntry{
		model:    model,
		loadedAt: time.Now(),
		loadTime: elapsed,
	}
	c.stats.Loads++
	c.stats.LastLoad = time.Now()
	c.stats.LoadLatency += elapsed
	log.Info("Model ready", "model", modelID, "duration", elapsed)
	return model, nil
}

// Contains reports whether modelID is loaded.
func (c *ModelCache) Contains(modelID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[modelID]
	return ok
}

// Len returns the number of loaded models.
func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics.
func (c *ModelCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.ItemCount = int64(len(c.items))
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// Entries returns metadata for every loaded model, sorted by identifier.
func (c *ModelCache) Entries() []CacheMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CacheMetadata, 0, len(c.items))
	for key, e := range c.items {
		out = append(out, CacheMetadata{
			Key:      key,
			LoadedAt: e.loadedAt,
			LoadTime: e.loadTime,
			Hits:     e.hits,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close closes every loaded model. Further Get calls fail with tts.ErrClosed.
func (c *ModelCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for key, e := range c.items {
		if err := e.model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", key, err))
		}
	}
	c.items = make(map[string]*modelEntry)
	return errors.Join(errs...)
}
