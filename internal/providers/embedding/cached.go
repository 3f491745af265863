package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/twohreichel/pisovereign/internal/core"
)

// Cached memoizes vectors of an inner embedder keyed by model and text.
type Cached struct {
	inner core.Embedder
	cache *ristretto.Cache
	model string
}

var _ core.Embedder = (*Cached)(nil)

func NewCached(inner core.Embedder, size int) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cached{
		inner: inner,
		cache: cache,
		model: inner.ModelInfo().Model,
	}, nil
}

func (c *Cached) ModelInfo() core.ModelInfo {
	return c.inner.ModelInfo()
}

func (c *Cached) key(text string) string {
	return c.model + "\x00" + text
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.lookup(text); ok {
		return v, nil
	}

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.store(text, v)
	return copyVector(v), nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		missing   []string
		missingAt []int
	)
	for i, text := range texts {
		if v, ok := c.lookup(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("inner embedder returned %d vectors for %d inputs", len(vectors), len(missing))
	}

	for j, v := range vectors {
		c.store(missing[j], v)
		out[missingAt[j]] = copyVector(v)
	}
	return out, nil
}

// Wait blocks until buffered writes are visible to Get.
func (c *Cached) Wait() {
	c.cache.Wait()
}

func (c *Cached) Close() {
	c.cache.Close()
}

func (c *Cached) lookup(text string) ([]float32, bool) {
	raw, ok := c.cache.Get(c.key(text))
	if !ok {
		return nil, false
	}
	v, ok := raw.([]float32)
	if !ok {
		return nil, false
	}
	return copyVector(v), true
}

func (c *Cached) store(text string, v []float32) {
	c.cache.Set(c.key(text), copyVector(v), 1)
}

func copyVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
