// Package inmem is a process-local memory store with the same semantics as
// the relational backends.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	memories map[uuid.UUID]core.Memory
}

var _ core.MemoryStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{memories: make(map[uuid.UUID]core.Memory)}
}

// clone detaches the slices so callers cannot mutate stored state.
func clone(m core.Memory) core.Memory {
	if m.Embedding != nil {
		m.Embedding = append([]float32(nil), m.Embedding...)
	}
	m.Tags = append([]string{}, m.Tags...)
	if m.ConversationID != nil {
		id := *m.ConversationID
		m.ConversationID = &id
	}
	return m
}

func (s *Store) Save(_ context.Context, m core.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[m.ID]; ok {
		return fmt.Errorf("failed to insert memory: duplicate id %s", m.ID)
	}
	s.memories[m.ID] = clone(m)
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, nil
	}
	out := clone(m)
	return &out, nil
}

func (s *Store) Update(_ context.Context, m core.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.memories[m.ID]
	if !ok {
		return nil
	}

	existing.Content = m.Content
	existing.Summary = m.Summary
	existing.Importance = m.Importance
	existing.Type = m.Type
	existing.Tags = m.Tags
	existing.AccessedAt = m.AccessedAt
	existing.AccessCount = m.AccessCount
	if m.HasEmbedding() {
		existing.Embedding = m.Embedding
	}
	s.memories[m.ID] = clone(existing)
	return nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.memories, id)
	return nil
}

func (s *Store) SearchSimilar(_ context.Context, userID uuid.UUID, embedding []float32, limit int, minSimilarity float32) ([]core.SimilarMemory, error) {
	s.mu.RLock()
	candidates := make([]core.Memory, 0)
	for _, m := range s.memories {
		if m.UserID == userID && m.HasEmbedding() {
			candidates = append(candidates, clone(m))
		}
	}
	s.mu.RUnlock()

	return storage.RankSimilar(candidates, embedding, limit, minSimilarity), nil
}

func (s *Store) List(_ context.Context, query core.MemoryQuery) ([]core.Memory, error) {
	s.mu.RLock()
	out := make([]core.Memory, 0)
	for _, m := range s.memories {
		if matches(m, query) {
			out = append(out, clone(m))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].AccessedAt.After(out[j].AccessedAt)
	})

	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func matches(m core.Memory, q core.MemoryQuery) bool {
	if q.UserID != nil && m.UserID != *q.UserID {
		return false
	}
	if q.ConversationID != nil && (m.ConversationID == nil || *m.ConversationID != *q.ConversationID) {
		return false
	}
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if t == m.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.MinImportance != nil && m.Importance < *q.MinImportance {
		return false
	}
	return true
}

func (s *Store) ListByType(ctx context.Context, userID uuid.UUID, memoryType core.MemoryType, limit int) ([]core.Memory, error) {
	return s.List(ctx, core.NewMemoryQuery().ForUser(userID).OfTypes(memoryType).WithLimit(limit))
}

func (s *Store) ApplyDecay(_ context.Context, decayRate float32) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	below := make([]uuid.UUID, 0)
	for id, m := range s.memories {
		days := core.DaysSince(m.AccessedAt, now)
		m.Importance = core.DecayImportance(m.Importance, m.AccessCount, days, decayRate)
		s.memories[id] = m

		if m.Importance < core.MinImportance {
			below = append(below, id)
		}
	}
	return below, nil
}

func (s *Store) CleanupBelowThreshold(_ context.Context, threshold float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, m := range s.memories {
		if m.Importance < threshold {
			delete(s.memories, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) FindMergeCandidates(ctx context.Context, m core.Memory, similarityThreshold float32) ([]core.SimilarMemory, error) {
	if !m.HasEmbedding() {
		return []core.SimilarMemory{}, nil
	}
	return s.SearchSimilar(ctx, m.UserID, m.Embedding, core.MergeCandidateLimit, similarityThreshold)
}

func (s *Store) Stats(_ context.Context, userID uuid.UUID) (core.MemoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		stats core.MemoryStats
		sum   float64
	)
	counts := make(map[core.MemoryType]int)

	for _, m := range s.memories {
		if m.UserID != userID {
			continue
		}
		stats.TotalCount++
		sum += float64(m.Importance)
		counts[m.Type]++
		if m.HasEmbedding() {
			stats.WithEmbeddings++
		}
	}

	if stats.TotalCount > 0 {
		stats.AvgImportance = float32(sum / float64(stats.TotalCount))
	}
	for _, t := range core.AllMemoryTypes() {
		stats.ByType = append(stats.ByType, core.TypeCount{Type: t, Count: counts[t]})
	}
	return stats, nil
}

func (s *Store) RecordAccess(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return nil
	}
	m.RecordAccess()
	s.memories[id] = m
	return nil
}
