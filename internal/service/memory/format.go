package memory

import (
	"fmt"
	"strings"

	"github.com/twohreichel/pisovereign/internal/core"
)

const (
	summaryEllipsis = "..."
	contextHeader   = "Relevant context from memory:\n"
)

// Summarize keeps content of up to MaxSummaryLength characters and
// otherwise cuts it so that, with the ellipsis, it is exactly that long.
func Summarize(content string) string {
	return truncate(content, core.MaxSummaryLength)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	keep := limit - len(summaryEllipsis)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + summaryEllipsis
}

// FormatContextForPrompt renders retrieved memories as a numbered block
// for a system prompt. No memories yields "".
func FormatContextForPrompt(memories []core.SimilarMemory) string {
	if len(memories) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i, m := range memories {
		fmt.Fprintf(&sb, "%d. [%s] (relevance: %.0f%%): %s\n",
			i+1, m.Memory.Type.Label(), m.Similarity*100, m.Memory.Summary)
	}
	return sb.String()
}
