package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		cfg            ChunkerConfig
		expectedChunks []string
	}{
		{
			name:           "Empty input",
			text:           "",
			cfg:            ChunkerConfigFor(400),
			expectedChunks: nil,
		},
		{
			name:           "Whitespace only",
			text:           "   \n\t   ",
			cfg:            ChunkerConfigFor(400),
			expectedChunks: nil,
		},
		{
			name:           "Single sentence fits",
			text:           "Hello world.",
			cfg:            ChunkerConfig{MaxTokens: 10},
			expectedChunks: []string{"Hello world."},
		},
		{
			name:           "Two sentences fit in one chunk",
			text:           "Hello world. How are you?",
			cfg:            ChunkerConfig{MaxTokens: 10},
			expectedChunks: []string{"Hello world. How are you?"},
		},
		{
			name: "Split by sentence without overlap",
			text: "First sentence. Second sentence.",
			// "First sentence." is [First][ sentence][.]
			cfg: ChunkerConfig{MaxTokens: 3},
			expectedChunks: []string{
				"First sentence.",
				"Second sentence.",
			},
		},
		{
			name: "Split by sentence with overlap",
			text: "Sentence one. Sentence two. Sentence three.",
			cfg:  ChunkerConfig{MaxTokens: 6, OverlapTokens: 3},
			expectedChunks: []string{
				"Sentence one. Sentence two.",
				"Sentence two. Sentence three.",
			},
		},
		{
			name:           "Paragraphs are joined",
			text:           "Para one.\n\nPara two.",
			cfg:            ChunkerConfig{MaxTokens: 10},
			expectedChunks: []string{"Para one. Para two."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := ChunkText(tt.text, tt.cfg)
			require.NoError(t, err)

			got := make([]string, 0, len(chunks))
			for _, c := range chunks {
				got = append(got, c.Text)
			}
			if tt.expectedChunks == nil {
				assert.Empty(t, chunks)
				return
			}
			assert.Equal(t, tt.expectedChunks, got)
		})
	}
}

func TestChunkText_RespectsMaxTokens(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40) +
		strings.Repeat("unbrokenwordwithoutanyspaces", 20)

	chunks, err := ChunkText(text, ChunkerConfigFor(32))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Text)
		assert.LessOrEqual(t, c.TokenSize, 32, "chunk %d", i)
	}
}

func TestChunkText_InvalidConfig(t *testing.T) {
	_, err := ChunkText("Hello world.", ChunkerConfig{})
	assert.Error(t, err)
}

func TestCountTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Hello", 1},
		{"Hello world", 2},
		{"Hello, world!", 4},
		{"", 0},
	}

	for _, tt := range tests {
		got, err := CountTokens(tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t,
		[]string{"Hello world.", "How are you?", "I am fine."},
		splitSentences("Hello world. How are you? I am fine."),
	)
	assert.Equal(t,
		[]string{"你好世界。", "这是一个测试。"},
		splitSentences("你好世界。这是一个测试。"),
	)
	assert.Equal(t, []string{"no terminator"}, splitSentences("no terminator"))
}
