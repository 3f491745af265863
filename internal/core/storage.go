package core

import (
	"context"

	"github.com/google/uuid"
)

// MemoryStore persists memories and answers similarity queries over them.
// Get returns (nil, nil) for an unknown id; Delete of an unknown id is a no-op.
type MemoryStore interface {
	Save(ctx context.Context, memory Memory) error
	Get(ctx context.Context, id uuid.UUID) (*Memory, error)
	Update(ctx context.Context, memory Memory) error
	Delete(ctx context.Context, id uuid.UUID) error

	// SearchSimilar ranks the user's embedded memories by relevance score,
	// keeping those whose similarity is at least minSimilarity.
	SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int, minSimilarity float32) ([]SimilarMemory, error)

	List(ctx context.Context, query MemoryQuery) ([]Memory, error)
	ListByType(ctx context.Context, userID uuid.UUID, memoryType MemoryType, limit int) ([]Memory, error)

	// ApplyDecay sweeps every stored memory, regardless of owner, and returns
	// the ids that fell below MinImportance. Nothing is deleted.
	ApplyDecay(ctx context.Context, decayRate float32) ([]uuid.UUID, error)
	CleanupBelowThreshold(ctx context.Context, threshold float32) (int, error)

	FindMergeCandidates(ctx context.Context, memory Memory, similarityThreshold float32) ([]SimilarMemory, error)
	Stats(ctx context.Context, userID uuid.UUID) (MemoryStats, error)
	RecordAccess(ctx context.Context, id uuid.UUID) error
}

// MergeCandidateLimit bounds FindMergeCandidates results.
const MergeCandidateLimit = 10

// DefaultEmbeddingModel is recorded alongside stored vectors.
const DefaultEmbeddingModel = "nomic-embed-text"
