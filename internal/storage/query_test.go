package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/twohreichel/pisovereign/internal/core"
)

func TestBuildListQuery(t *testing.T) {
	user := uuid.New()
	conv := uuid.New()

	tests := []struct {
		name     string
		query    core.MemoryQuery
		ph       Placeholder
		contains []string
		absent   []string
		args     int
	}{
		{
			name:     "no filters",
			query:    core.NewMemoryQuery(),
			ph:       QuestionMark,
			contains: []string{"LEFT JOIN memory_embeddings", "ORDER BY m.importance DESC, m.accessed_at DESC"},
			absent:   []string{"WHERE", "LIMIT"},
		},
		{
			name:     "user and limit",
			query:    core.NewMemoryQuery().ForUser(user).WithLimit(10),
			ph:       QuestionMark,
			contains: []string{"WHERE m.user_id = ?", "LIMIT ?"},
			args:     2,
		},
		{
			name: "all filters with dollar placeholders",
			query: core.NewMemoryQuery().
				ForUser(user).
				InConversation(conv).
				OfTypes(core.MemoryTypeFact, core.MemoryTypeCorrection).
				WithMinImportance(0.3).
				WithLimit(5),
			ph: Dollar,
			contains: []string{
				"m.user_id = $1",
				"m.conversation_id = $2",
				"m.memory_type IN ($3, $4)",
				"m.importance >= $5",
				"LIMIT $6",
			},
			args: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := BuildListQuery(tt.query, tt.ph)

			for _, s := range tt.contains {
				assert.Contains(t, query, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, query, s)
			}
			assert.Len(t, args, tt.args)
		})
	}
}

func TestBuildListQuery_TypeTokens(t *testing.T) {
	_, args := BuildListQuery(core.NewMemoryQuery().OfTypes(core.MemoryTypeToolResult), QuestionMark)
	assert.Equal(t, []any{"tool_result"}, args)
}
