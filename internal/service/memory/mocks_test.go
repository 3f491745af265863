package memory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/core"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.embedFn(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) ModelInfo() core.ModelInfo {
	return core.ModelInfo{Model: "mock", Dimensions: 3}
}

// constantEmbedder maps every text to the same vector, so everything merges.
func constantEmbedder() *mockEmbedder {
	return &mockEmbedder{embedFn: func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
}

// keywordEmbedder maps texts onto axes by keyword, so only related texts
// are similar.
func keywordEmbedder() *mockEmbedder {
	return &mockEmbedder{embedFn: func(_ context.Context, text string) ([]float32, error) {
		text = strings.ToLower(text)
		v := []float32{0, 0, 0}
		if strings.Contains(text, "france") || strings.Contains(text, "paris") {
			v[0] = 1
		}
		if strings.Contains(text, "coffee") {
			v[1] = 1
		}
		if v[0] == 0 && v[1] == 0 {
			v[2] = 1
		}
		return v, nil
	}}
}

func failingEmbedder(err error) *mockEmbedder {
	return &mockEmbedder{embedFn: func(context.Context, string) ([]float32, error) {
		return nil, err
	}}
}

const sealedPrefix = "sealed:"

// prefixEncryptor marks ciphertext with a prefix and refuses to open
// anything without it.
type prefixEncryptor struct {
	encryptErr error
}

func (p *prefixEncryptor) IsEnabled() bool { return true }

func (p *prefixEncryptor) EncryptString(_ context.Context, plaintext string) (string, error) {
	if p.encryptErr != nil {
		return "", p.encryptErr
	}
	return sealedPrefix + plaintext, nil
}

func (p *prefixEncryptor) DecryptString(_ context.Context, ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, sealedPrefix) {
		return "", core.ErrDecryptionFailed
	}
	return strings.TrimPrefix(ciphertext, sealedPrefix), nil
}

// mockStore delegates to an inner store unless a func field overrides the
// call.
type mockStore struct {
	core.MemoryStore
	saveFn         func(ctx context.Context, m core.Memory) error
	recordAccessFn func(ctx context.Context, id uuid.UUID) error
	searchFn       func(ctx context.Context, userID uuid.UUID, embedding []float32, limit int, minSimilarity float32) ([]core.SimilarMemory, error)
	decayFn        func(ctx context.Context, rate float32) ([]uuid.UUID, error)
	cleanupFn      func(ctx context.Context, threshold float32) (int, error)
}

func (m *mockStore) Save(ctx context.Context, memory core.Memory) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, memory)
	}
	return m.MemoryStore.Save(ctx, memory)
}

func (m *mockStore) RecordAccess(ctx context.Context, id uuid.UUID) error {
	if m.recordAccessFn != nil {
		return m.recordAccessFn(ctx, id)
	}
	return m.MemoryStore.RecordAccess(ctx, id)
}

func (m *mockStore) SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int, minSimilarity float32) ([]core.SimilarMemory, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, userID, embedding, limit, minSimilarity)
	}
	return m.MemoryStore.SearchSimilar(ctx, userID, embedding, limit, minSimilarity)
}

func (m *mockStore) ApplyDecay(ctx context.Context, rate float32) ([]uuid.UUID, error) {
	if m.decayFn != nil {
		return m.decayFn(ctx, rate)
	}
	return m.MemoryStore.ApplyDecay(ctx, rate)
}

func (m *mockStore) CleanupBelowThreshold(ctx context.Context, threshold float32) (int, error) {
	if m.cleanupFn != nil {
		return m.cleanupFn(ctx, threshold)
	}
	return m.MemoryStore.CleanupBelowThreshold(ctx, threshold)
}

var errBoom = errors.New("boom")
