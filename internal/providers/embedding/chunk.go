package embedding

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var (
	tk     *tiktoken.Tiktoken
	tkErr  error
	tkOnce sync.Once
)

type Chunk struct {
	Text      string
	TokenSize int
	Index     int
}

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

// ChunkerConfigFor sizes chunks for a model's input limit with a 1/8 overlap.
func ChunkerConfigFor(maxTokens int) ChunkerConfig {
	return ChunkerConfig{
		MaxTokens:     maxTokens,
		OverlapTokens: maxTokens / 8,
	}
}

// ChunkText splits text on sentence boundaries into chunks of at most
// cfg.MaxTokens tokens. Sentences longer than the limit are sliced by token.
func ChunkText(text string, cfg ChunkerConfig) ([]Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("chunker max tokens must be positive, got %d", cfg.MaxTokens)
	}

	enc, err := getTokenizer()
	if err != nil {
		return nil, err
	}

	sentences := splitSentences(text)

	var (
		chunks        []Chunk
		current       strings.Builder
		currentTokens int
	)

	flush := func() {
		chunks = append(chunks, Chunk{
			Text:      strings.TrimSpace(current.String()),
			TokenSize: currentTokens,
			Index:     len(chunks),
		})
		current.Reset()
		currentTokens = 0
	}

	for i, sentence := range sentences {
		sentenceTokens := countTokens(enc, sentence)

		// Oversized sentence: flush and slice it by tokens
		if sentenceTokens > cfg.MaxTokens {
			if current.Len() > 0 {
				flush()
			}
			for _, sc := range sliceByTokens(enc, sentence, cfg.MaxTokens) {
				sc.Text = strings.TrimSpace(sc.Text)
				sc.Index = len(chunks)
				chunks = append(chunks, sc)
			}
			continue
		}

		if currentTokens+sentenceTokens > cfg.MaxTokens && current.Len() > 0 {
			flush()

			overlap := overlapFromSentences(enc, sentences, i, cfg.OverlapTokens)
			overlapTokens := countTokens(enc, overlap)
			// overlap must leave room for the sentence itself
			if overlapTokens+sentenceTokens <= cfg.MaxTokens {
				current.WriteString(overlap)
				currentTokens = overlapTokens
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += sentenceTokens
	}

	if current.Len() > 0 {
		flush()
	}

	return chunks, nil
}

// CountTokens returns the cl100k_base token count of text.
func CountTokens(text string) (int, error) {
	enc, err := getTokenizer()
	if err != nil {
		return 0, err
	}
	return countTokens(enc, text), nil
}

func sliceByTokens(enc *tiktoken.Tiktoken, text string, maxTokens int) []Chunk {
	tokens := enc.Encode(text, nil, nil)

	var chunks []Chunk
	for i := 0; i < len(tokens); i += maxTokens {
		end := i + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			Text:      enc.Decode(tokens[i:end]),
			TokenSize: end - i,
		})
	}
	return chunks
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true, '…': true,
}

func splitSentences(text string) []string {
	var sentences []string

	for _, para := range splitParagraphs(text) {
		var current strings.Builder
		runes := []rune(para)

		for i, r := range runes {
			current.WriteRune(r)

			if !sentenceEnders[r] {
				continue
			}
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || isCJK(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) == 0 && text != "" {
		return []string{text}
	}
	return sentences
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		// single newlines inside a paragraph are soft wraps
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func getTokenizer() (*tiktoken.Tiktoken, error) {
	tkOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		tk, tkErr = tiktoken.GetEncoding("cl100k_base")
		if tkErr != nil {
			tkErr = fmt.Errorf("failed to load tokenizer: %w", tkErr)
		}
	})
	return tk, tkErr
}

func countTokens(enc *tiktoken.Tiktoken, text string) int {
	if text == "" {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

func overlapFromSentences(enc *tiktoken.Tiktoken, sentences []string, currentIdx, targetTokens int) string {
	if currentIdx == 0 || targetTokens <= 0 {
		return ""
	}

	var overlap []string
	tokens := 0
	for i := currentIdx - 1; i >= 0 && tokens < targetTokens; i-- {
		overlap = append([]string{sentences[i]}, overlap...)
		tokens += countTokens(enc, sentences[i])
	}
	return strings.Join(overlap, " ")
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
