package core

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultImportance float32 = 0.5
	MinImportance     float32 = 0.1
	MaxImportance     float32 = 1.0

	// MaxSummaryLength is measured in characters (runes).
	MaxSummaryLength = 200

	similarityWeight    float32 = 0.7
	importanceWeight    float32 = 0.3
	accessBoostPerCount float32 = 0.01
	maxAccessBoost      float32 = 0.1
)

type MemoryType int

const (
	MemoryTypeFact MemoryType = iota
	MemoryTypePreference
	MemoryTypeToolResult
	MemoryTypeCorrection
	MemoryTypeContext
)

var memoryTypes = []MemoryType{
	MemoryTypeFact,
	MemoryTypePreference,
	MemoryTypeToolResult,
	MemoryTypeCorrection,
	MemoryTypeContext,
}

// AllMemoryTypes returns every memory type in a fixed order.
func AllMemoryTypes() []MemoryType {
	out := make([]MemoryType, len(memoryTypes))
	copy(out, memoryTypes)
	return out
}

// Label is the human readable name used in prompts.
func (t MemoryType) Label() string {
	switch t {
	case MemoryTypeFact:
		return "Fact"
	case MemoryTypePreference:
		return "Preference"
	case MemoryTypeToolResult:
		return "Tool Result"
	case MemoryTypeCorrection:
		return "Correction"
	default:
		return "Context"
	}
}

// Token is the persisted form of the type.
func (t MemoryType) Token() string {
	switch t {
	case MemoryTypeFact:
		return "fact"
	case MemoryTypePreference:
		return "preference"
	case MemoryTypeToolResult:
		return "tool_result"
	case MemoryTypeCorrection:
		return "correction"
	default:
		return "context"
	}
}

func (t MemoryType) String() string {
	return t.Label()
}

// ParseMemoryType maps a persisted token back to a type.
// Unknown tokens fall back to Context.
func ParseMemoryType(token string) MemoryType {
	switch token {
	case "fact":
		return MemoryTypeFact
	case "preference":
		return MemoryTypePreference
	case "tool_result":
		return MemoryTypeToolResult
	case "correction":
		return MemoryTypeCorrection
	default:
		return MemoryTypeContext
	}
}

// LookupMemoryType is the strict form of ParseMemoryType for user input.
func LookupMemoryType(token string) (MemoryType, bool) {
	for _, t := range memoryTypes {
		if t.Token() == token {
			return t, true
		}
	}
	return MemoryTypeContext, false
}

// Memory is a single remembered piece of knowledge owned by one user.
type Memory struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ConversationID *uuid.UUID
	Content        string
	Summary        string
	Embedding      []float32
	Importance     float32
	Type           MemoryType
	Tags           []string
	CreatedAt      time.Time
	AccessedAt     time.Time
	AccessCount    uint32
}

func NewMemory(userID uuid.UUID, content, summary string, memoryType MemoryType) Memory {
	now := time.Now().UTC()
	return Memory{
		ID:         uuid.New(),
		UserID:     userID,
		Content:    content,
		Summary:    summary,
		Importance: DefaultImportance,
		Type:       memoryType,
		Tags:       []string{},
		CreatedAt:  now,
		AccessedAt: now,
	}
}

func (m Memory) WithID(id uuid.UUID) Memory {
	m.ID = id
	return m
}

func (m Memory) WithConversation(conversationID uuid.UUID) Memory {
	m.ConversationID = &conversationID
	return m
}

func (m Memory) WithEmbedding(embedding []float32) Memory {
	m.Embedding = embedding
	return m
}

func (m Memory) WithImportance(importance float32) Memory {
	m.Importance = ClampImportance(importance)
	return m
}

func (m Memory) WithTags(tags []string) Memory {
	m.Tags = tags
	return m
}

func (m Memory) WithCreatedAt(t time.Time) Memory {
	m.CreatedAt = t
	return m
}

func (m Memory) WithAccessedAt(t time.Time) Memory {
	m.AccessedAt = t
	return m
}

func (m Memory) WithAccessCount(count uint32) Memory {
	m.AccessCount = count
	return m
}

// RecordAccess bumps the access bookkeeping that feeds the decay boost.
func (m *Memory) RecordAccess() {
	m.AccessedAt = time.Now().UTC()
	if m.AccessCount < math.MaxUint32 {
		m.AccessCount++
	}
}

// ApplyDecay recomputes importance for the time since last access and
// reports whether the memory is still at or above MinImportance.
func (m *Memory) ApplyDecay(rate float32) bool {
	m.Importance = DecayImportance(m.Importance, m.AccessCount, DaysSince(m.AccessedAt, time.Now()), rate)
	return m.Importance >= MinImportance
}

func (m Memory) BelowImportanceThreshold() bool {
	return m.Importance < MinImportance
}

// RelevanceScore weighs similarity 70% and importance 30%.
func (m Memory) RelevanceScore(similarity float32) float32 {
	return similarity*similarityWeight + m.Importance*importanceWeight
}

func (m Memory) HasEmbedding() bool {
	return m.Embedding != nil
}

func (m Memory) EmbeddingDimensions() int {
	return len(m.Embedding)
}

func ClampImportance(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}

// DecayImportance is the decay formula shared by every store:
// importance * e^(-rate*days) plus an access boost capped at 0.1.
func DecayImportance(importance float32, accessCount uint32, days int64, rate float32) float32 {
	factor := math.Exp(-float64(rate) * float64(days))
	boost := float32(accessCount) * accessBoostPerCount
	if boost > maxAccessBoost {
		boost = maxAccessBoost
	}
	decayed := importance*float32(factor) + boost
	if decayed > MaxImportance {
		return MaxImportance
	}
	return decayed
}

// DaysSince returns whole days elapsed between from and now, truncated.
func DaysSince(from, now time.Time) int64 {
	return int64(now.Sub(from) / (24 * time.Hour))
}

// MemoryQuery filters List. Zero values mean "no filter".
type MemoryQuery struct {
	UserID         *uuid.UUID
	ConversationID *uuid.UUID
	Types          []MemoryType
	MinImportance  *float32
	Limit          int
}

func NewMemoryQuery() MemoryQuery {
	return MemoryQuery{}
}

func (q MemoryQuery) ForUser(userID uuid.UUID) MemoryQuery {
	q.UserID = &userID
	return q
}

func (q MemoryQuery) InConversation(conversationID uuid.UUID) MemoryQuery {
	q.ConversationID = &conversationID
	return q
}

func (q MemoryQuery) OfTypes(types ...MemoryType) MemoryQuery {
	q.Types = types
	return q
}

func (q MemoryQuery) WithMinImportance(importance float32) MemoryQuery {
	q.MinImportance = &importance
	return q
}

func (q MemoryQuery) WithLimit(limit int) MemoryQuery {
	q.Limit = limit
	return q
}

// SimilarMemory is a search hit with its cosine similarity to the query.
type SimilarMemory struct {
	Memory     Memory
	Similarity float32
}

func (s SimilarMemory) RelevanceScore() float32 {
	return s.Memory.RelevanceScore(s.Similarity)
}

type TypeCount struct {
	Type  MemoryType
	Count int
}

type MemoryStats struct {
	TotalCount     int
	ByType         []TypeCount
	WithEmbeddings int
	AvgImportance  float32
}

// CountOf returns the per-type count, 0 if absent.
func (s MemoryStats) CountOf(t MemoryType) int {
	for _, tc := range s.ByType {
		if tc.Type == t {
			return tc.Count
		}
	}
	return 0
}
