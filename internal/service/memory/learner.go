package memory

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/pkg/log"
)

const (
	DefaultSystemPrompt      = "You are a helpful AI assistant."
	DefaultMinLearningLength = 20

	questionSummaryLength = 100
	answerSummaryLength   = 50
)

type LearningConfig struct {
	EnableRAG         bool
	EnableLearning    bool
	SystemPrompt      string
	MinLearningLength int
	DefaultImportance float32
}

func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		EnableRAG:         true,
		EnableLearning:    true,
		MinLearningLength: DefaultMinLearningLength,
		DefaultImportance: core.DefaultImportance,
	}
}

func LearningConfigFrom(cfg *config.MemoryConfig) LearningConfig {
	lc := DefaultLearningConfig()
	lc.EnableRAG = cfg.EnableRAG
	lc.EnableLearning = cfg.EnableLearning
	return lc
}

// Learner assembles memory-augmented system prompts and turns finished
// question/answer exchanges into Context memories.
type Learner struct {
	service *Service
	cfg     LearningConfig
}

func NewLearner(service *Service, cfg LearningConfig) *Learner {
	return &Learner{service: service, cfg: cfg}
}

// BuildSystemPrompt returns the base prompt, extended with the memories
// relevant to query when RAG is enabled and any were found.
func (l *Learner) BuildSystemPrompt(ctx context.Context, userID uuid.UUID, query string) (string, []core.SimilarMemory, error) {
	base := l.cfg.SystemPrompt
	if base == "" {
		base = DefaultSystemPrompt
	}

	if !l.cfg.EnableRAG {
		return base, nil, nil
	}

	memories, err := l.service.RetrieveContext(ctx, userID, query)
	if err != nil {
		return "", nil, err
	}
	if len(memories) == 0 {
		return base, memories, nil
	}

	return base + "\n\n" + FormatContextForPrompt(memories), memories, nil
}

// LearnFromInteraction stores a finished exchange. Short exchanges are
// skipped and store failures are only logged.
func (l *Learner) LearnFromInteraction(ctx context.Context, userID uuid.UUID, question, answer string) {
	l.learn(ctx, userID, nil, question, answer)
}

// LearnFromConversation is LearnFromInteraction scoped to a conversation.
func (l *Learner) LearnFromConversation(ctx context.Context, userID, conversationID uuid.UUID, question, answer string) {
	l.learn(ctx, userID, &conversationID, question, answer)
}

func (l *Learner) learn(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, question, answer string) {
	logger := log.FromCtx(ctx)

	if !l.cfg.EnableLearning {
		return
	}
	if utf8.RuneCountInString(question) < l.cfg.MinLearningLength || utf8.RuneCountInString(answer) < l.cfg.MinLearningLength {
		logger.Debug().Msg("interaction too short to learn from")
		return
	}

	m := core.NewMemory(userID, fmt.Sprintf("Q: %s\nA: %s", question, answer), interactionSummary(question, answer), core.MemoryTypeContext).
		WithImportance(l.cfg.DefaultImportance)
	if conversationID != nil {
		m = m.WithConversation(*conversationID)
	}

	stored, err := l.service.Store(ctx, m)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to store interaction memory")
		return
	}
	logger.Debug().Str("memory_id", stored.ID.String()).Msg("learned from interaction")
}

func interactionSummary(question, answer string) string {
	return fmt.Sprintf("Q: %s → %s", truncate(question, questionSummaryLength), truncate(answer, answerSummaryLength))
}

func (l *Learner) RememberFact(ctx context.Context, userID uuid.UUID, fact string, importance float32) (core.Memory, error) {
	return l.service.StoreFact(ctx, userID, fact, importance)
}

func (l *Learner) RememberPreference(ctx context.Context, userID uuid.UUID, preference string, importance float32) (core.Memory, error) {
	return l.service.StorePreference(ctx, userID, preference, importance)
}

func (l *Learner) RememberCorrection(ctx context.Context, userID uuid.UUID, correction string, importance float32) (core.Memory, error) {
	return l.service.StoreCorrection(ctx, userID, correction, importance)
}
