package memory

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/twohreichel/pisovereign/internal/core"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantLen int
		suffix  bool
	}{
		{"short", "hello", 5, false},
		{"exactly max", strings.Repeat("a", 200), 200, false},
		{"one over", strings.Repeat("a", 201), 200, true},
		{"far over", strings.Repeat("a", 1000), 200, true},
		{"multibyte", strings.Repeat("ü", 250), 200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.content)
			assert.Equal(t, tt.wantLen, utf8.RuneCountInString(got))
			assert.True(t, utf8.ValidString(got))
			assert.Equal(t, tt.suffix, strings.HasSuffix(got, "..."))
		})
	}

	assert.Equal(t, "hello", Summarize("hello"))
	assert.Equal(t, strings.Repeat("a", 197)+"...", Summarize(strings.Repeat("a", 300)))
}

func TestFormatContextForPrompt(t *testing.T) {
	assert.Equal(t, "", FormatContextForPrompt(nil))

	fact := core.NewMemory(testUser, "Paris is the capital of France", "Paris is the capital of France", core.MemoryTypeFact)
	tool := core.NewMemory(testUser, "weather", "Sunny in Berlin", core.MemoryTypeToolResult)

	got := FormatContextForPrompt([]core.SimilarMemory{
		{Memory: fact, Similarity: 0.923},
		{Memory: tool, Similarity: 0.5},
	})

	want := "Relevant context from memory:\n" +
		"1. [Fact] (relevance: 92%): Paris is the capital of France\n" +
		"2. [Tool Result] (relevance: 50%): Sunny in Berlin\n"
	assert.Equal(t, want, got)
}
