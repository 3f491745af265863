package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/pkg/log"
)

const mergeSeparator = "\n\nAdditional context: "

type ServiceConfig struct {
	RAGLimit         int
	RAGThreshold     float32
	MergeThreshold   float32
	MinImportance    float32
	DecayFactor      float32
	EnableEncryption bool
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		RAGLimit:         5,
		RAGThreshold:     0.5,
		MergeThreshold:   0.85,
		MinImportance:    0.1,
		DecayFactor:      0.95,
		EnableEncryption: true,
	}
}

func ServiceConfigFrom(cfg *config.MemoryConfig) ServiceConfig {
	return ServiceConfig{
		RAGLimit:         cfg.RAGLimit,
		RAGThreshold:     cfg.RAGThreshold,
		MergeThreshold:   cfg.MergeThreshold,
		MinImportance:    cfg.MinImportance,
		DecayFactor:      cfg.DecayFactor,
		EnableEncryption: cfg.EnableEncryption,
	}
}

// Service orchestrates embedding, encryption at rest, merge-on-similarity
// and retrieval on top of a MemoryStore. It holds no mutable state.
type Service struct {
	store     core.MemoryStore
	embedder  core.Embedder
	encryptor core.Encryptor
	cfg       ServiceConfig
}

// NewService wires the collaborators. A nil encryptor stores plaintext.
func NewService(store core.MemoryStore, embedder core.Embedder, encryptor core.Encryptor, cfg ServiceConfig) *Service {
	return &Service{
		store:     store,
		embedder:  embedder,
		encryptor: encryptor,
		cfg:       cfg,
	}
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

func (s *Service) encrypting() bool {
	return s.cfg.EnableEncryption && s.encryptor != nil && s.encryptor.IsEnabled()
}

// Store embeds m and either merges it into a near-duplicate of the same
// user or saves it as new. The returned memory is plaintext.
func (s *Service) Store(ctx context.Context, m core.Memory) (core.Memory, error) {
	embedding, err := s.embedder.Embed(ctx, m.Content)
	if err != nil {
		return core.Memory{}, core.Wrap("store", core.ErrEmbeddingFailed, err)
	}
	m.Embedding = embedding

	sealed, err := s.seal(ctx, m)
	if err != nil {
		return core.Memory{}, core.Wrap("store", core.ErrEncryptionFailed, err)
	}

	similar, err := s.store.SearchSimilar(ctx, m.UserID, embedding, 1, s.cfg.MergeThreshold)
	if err != nil {
		return core.Memory{}, core.Wrap("store", core.ErrStorageOperation, err)
	}

	if len(similar) > 0 && similar[0].Similarity >= s.cfg.MergeThreshold {
		log.FromCtx(ctx).Debug().
			Str("existing_id", similar[0].Memory.ID.String()).
			Float32("similarity", similar[0].Similarity).
			Msg("merging near-duplicate memory")
		return s.merge(ctx, similar[0].Memory, m)
	}

	if err := s.store.Save(ctx, sealed); err != nil {
		return core.Memory{}, core.Wrap("store", core.ErrStorageOperation, err)
	}
	return m, nil
}

func (s *Service) merge(ctx context.Context, existing, incoming core.Memory) (core.Memory, error) {
	merged := s.open(ctx, existing)

	merged.Content = merged.Content + mergeSeparator + incoming.Content
	if incoming.Importance > merged.Importance {
		merged.Importance = incoming.Importance
	}
	merged.Tags = unionTags(merged.Tags, incoming.Tags)

	embedding, err := s.embedder.Embed(ctx, merged.Content)
	if err != nil {
		return core.Memory{}, core.Wrap("merge", core.ErrEmbeddingFailed, err)
	}
	merged.Embedding = embedding

	sealed, err := s.seal(ctx, merged)
	if err != nil {
		return core.Memory{}, core.Wrap("merge", core.ErrEncryptionFailed, err)
	}

	if err := s.store.Update(ctx, sealed); err != nil {
		return core.Memory{}, core.Wrap("merge", core.ErrStorageOperation, err)
	}
	return merged, nil
}

// RetrieveContext returns the user's memories most relevant to query, in
// rank order. Access bookkeeping and decryption are best-effort.
func (s *Service) RetrieveContext(ctx context.Context, userID uuid.UUID, query string) ([]core.SimilarMemory, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, core.Wrap("retrieve", core.ErrEmbeddingFailed, err)
	}

	results, err := s.store.SearchSimilar(ctx, userID, embedding, s.cfg.RAGLimit, s.cfg.RAGThreshold)
	if err != nil {
		return nil, core.Wrap("retrieve", core.ErrStorageOperation, err)
	}

	logger := log.FromCtx(ctx)
	for i := range results {
		if err := s.store.RecordAccess(ctx, results[i].Memory.ID); err != nil {
			logger.Warn().Err(err).Str("memory_id", results[i].Memory.ID.String()).Msg("failed to record memory access")
		}
		results[i].Memory = s.open(ctx, results[i].Memory)
	}

	return results, nil
}

func (s *Service) newTyped(ctx context.Context, userID uuid.UUID, content string, t core.MemoryType, importance float32) (core.Memory, error) {
	m := core.NewMemory(userID, content, Summarize(content), t).WithImportance(importance)
	return s.Store(ctx, m)
}

func (s *Service) StoreFact(ctx context.Context, userID uuid.UUID, content string, importance float32) (core.Memory, error) {
	return s.newTyped(ctx, userID, content, core.MemoryTypeFact, importance)
}

func (s *Service) StorePreference(ctx context.Context, userID uuid.UUID, content string, importance float32) (core.Memory, error) {
	return s.newTyped(ctx, userID, content, core.MemoryTypePreference, importance)
}

func (s *Service) StoreCorrection(ctx context.Context, userID uuid.UUID, content string, importance float32) (core.Memory, error) {
	return s.newTyped(ctx, userID, content, core.MemoryTypeCorrection, importance)
}

func (s *Service) StoreToolResult(ctx context.Context, userID uuid.UUID, content string, importance float32) (core.Memory, error) {
	return s.newTyped(ctx, userID, content, core.MemoryTypeToolResult, importance)
}

func (s *Service) StoreContext(ctx context.Context, userID, conversationID uuid.UUID, content string, importance float32) (core.Memory, error) {
	m := core.NewMemory(userID, content, Summarize(content), core.MemoryTypeContext).
		WithConversation(conversationID).
		WithImportance(importance)
	return s.Store(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*core.Memory, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, core.Wrap("get", core.ErrStorageOperation, err)
	}
	if m == nil {
		return nil, nil
	}
	opened := s.open(ctx, *m)
	return &opened, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return core.Wrap("delete", core.ErrStorageOperation, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, query core.MemoryQuery) ([]core.Memory, error) {
	memories, err := s.store.List(ctx, query)
	if err != nil {
		return nil, core.Wrap("list", core.ErrStorageOperation, err)
	}
	for i := range memories {
		memories[i] = s.open(ctx, memories[i])
	}
	return memories, nil
}

func (s *Service) ListByType(ctx context.Context, userID uuid.UUID, t core.MemoryType, limit int) ([]core.Memory, error) {
	return s.List(ctx, core.NewMemoryQuery().ForUser(userID).OfTypes(t).WithLimit(limit))
}

func (s *Service) FindMergeCandidates(ctx context.Context, m core.Memory) ([]core.SimilarMemory, error) {
	candidates, err := s.store.FindMergeCandidates(ctx, m, s.cfg.MergeThreshold)
	if err != nil {
		return nil, core.Wrap("find_merge_candidates", core.ErrStorageOperation, err)
	}
	for i := range candidates {
		candidates[i].Memory = s.open(ctx, candidates[i].Memory)
	}
	return candidates, nil
}

// ApplyDecay runs the system-wide decay sweep with the configured factor.
func (s *Service) ApplyDecay(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.store.ApplyDecay(ctx, s.cfg.DecayFactor)
	if err != nil {
		return ids, core.Wrap("apply_decay", core.ErrStorageOperation, err)
	}
	return ids, nil
}

func (s *Service) CleanupLowImportance(ctx context.Context) (int, error) {
	n, err := s.store.CleanupBelowThreshold(ctx, s.cfg.MinImportance)
	if err != nil {
		return 0, core.Wrap("cleanup", core.ErrStorageOperation, err)
	}
	return n, nil
}

func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (core.MemoryStats, error) {
	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return stats, core.Wrap("stats", core.ErrStorageOperation, err)
	}
	return stats, nil
}

// seal encrypts content and summary together, or neither.
func (s *Service) seal(ctx context.Context, m core.Memory) (core.Memory, error) {
	if !s.encrypting() {
		return m, nil
	}

	content, err := s.encryptor.EncryptString(ctx, m.Content)
	if err != nil {
		return m, err
	}
	summary, err := s.encryptor.EncryptString(ctx, m.Summary)
	if err != nil {
		return m, err
	}

	m.Content = content
	m.Summary = summary
	return m, nil
}

// open decrypts content and summary independently; a field that fails to
// decrypt is returned as stored.
func (s *Service) open(ctx context.Context, m core.Memory) core.Memory {
	if !s.encrypting() {
		return m
	}

	if plain, err := s.encryptor.DecryptString(ctx, m.Content); err == nil {
		m.Content = plain
	} else {
		log.FromCtx(ctx).Debug().Err(err).Str("memory_id", m.ID.String()).Msg("content left as stored")
	}

	if plain, err := s.encryptor.DecryptString(ctx, m.Summary); err == nil {
		m.Summary = plain
	} else {
		log.FromCtx(ctx).Debug().Err(err).Str("memory_id", m.ID.String()).Msg("summary left as stored")
	}

	return m
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, tag := range list {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
