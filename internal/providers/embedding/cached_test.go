package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twohreichel/pisovereign/internal/core"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) ModelInfo() core.ModelInfo {
	return core.ModelInfo{Model: "counting", Dimensions: 2}
}

func TestCached_HitsSkipInner(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c, err := NewCached(inner, 100)
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	c.Wait()

	second, err := c.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "counting", c.ModelInfo().Model)
}

func TestCached_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c, err := NewCached(&countingEmbedder{}, 100)
	require.NoError(t, err)
	defer c.Close()

	v, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	c.Wait()
	v[0] = 999

	again, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), again[0])
}

func TestCached_EmbedBatchFillsMisses(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c, err := NewCached(inner, 100)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(ctx, "ab")
	require.NoError(t, err)
	c.Wait()

	out, err := c.EmbedBatch(ctx, []string{"ab", "abc"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float32{2, 1}, out[0])
	assert.Equal(t, []float32{3, 1}, out[1])
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{err: errors.New("boom")}
	c, err := NewCached(inner, 100)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(ctx, "x")
	assert.Error(t, err)
	c.Wait()
	_, err = c.Embed(ctx, "x")
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

type shortBatchEmbedder struct {
	countingEmbedder
	extra int
}

func (s *shortBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := s.countingEmbedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if s.extra < 0 {
		return out[:len(out)+s.extra], nil
	}
	for i := 0; i < s.extra; i++ {
		out = append(out, []float32{0, 0})
	}
	return out, nil
}

func TestCached_EmbedBatchRejectsMismatchedCount(t *testing.T) {
	ctx := context.Background()

	for _, extra := range []int{-1, 1} {
		inner := &shortBatchEmbedder{extra: extra}
		c, err := NewCached(inner, 100)
		require.NoError(t, err)

		out, err := c.EmbedBatch(ctx, []string{"ab", "abc"})
		assert.Error(t, err)
		assert.Nil(t, out)
		c.Close()
	}
}
