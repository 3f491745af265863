// Package storage holds the row codec and ranking shared by the memory
// store backends.
package storage

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/pkg/vec"
)

// EncodeTags stores tags as a JSON array string.
func EncodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeTags reads a JSON array string; anything unparseable is empty.
func DecodeTags(raw string) []string {
	tags := []string{}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// timeLayout is RFC 3339 with fixed-width nanoseconds so stored values sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime reads an RFC 3339 timestamp; unparseable values read as now.
func ParseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

// ParseID reads a stored uuid; unparseable values read as a fresh id.
func ParseID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.New()
	}
	return id
}

// ParseOptionalID is ParseID for nullable columns.
func ParseOptionalID(raw *string) *uuid.UUID {
	if raw == nil {
		return nil
	}
	id := ParseID(*raw)
	return &id
}

func FormatOptionalID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// Row is the flat column set shared by the relational backends.
type Row struct {
	ID             string
	UserID         string
	ConversationID *string
	Content        string
	Summary        string
	Importance     float64
	MemoryType     string
	Tags           string
	CreatedAt      string
	AccessedAt     string
	AccessCount    int64
	Embedding      []byte
}

// Memory converts a scanned row into the entity.
func (r Row) Memory() core.Memory {
	m := core.Memory{
		ID:             ParseID(r.ID),
		UserID:         ParseID(r.UserID),
		ConversationID: ParseOptionalID(r.ConversationID),
		Content:        r.Content,
		Summary:        r.Summary,
		Importance:     float32(r.Importance),
		Type:           core.ParseMemoryType(r.MemoryType),
		Tags:           DecodeTags(r.Tags),
		CreatedAt:      ParseTime(r.CreatedAt),
		AccessedAt:     ParseTime(r.AccessedAt),
	}
	if r.AccessCount > 0 {
		m.AccessCount = uint32(r.AccessCount)
	}
	if r.Embedding != nil {
		m.Embedding = vec.Decode(r.Embedding)
	}
	return m
}

// RankSimilar keeps candidates whose cosine similarity to query is at least
// minSimilarity, orders them by relevance score and truncates to limit.
// Candidates without an embedding are skipped.
func RankSimilar(candidates []core.Memory, query []float32, limit int, minSimilarity float32) []core.SimilarMemory {
	results := make([]core.SimilarMemory, 0)
	for _, m := range candidates {
		if !m.HasEmbedding() {
			continue
		}
		sim := vec.Cosine(query, m.Embedding)
		if sim < minSimilarity {
			continue
		}
		results = append(results, core.SimilarMemory{Memory: m, Similarity: sim})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore() > results[j].RelevanceScore()
	})

	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
