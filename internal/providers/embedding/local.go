package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/pkg/vec"
)

const (
	LocalModelName         = "local-hashing"
	DefaultLocalDimensions = 384

	bigramWeight = 0.5
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "what": {}, "which": {}, "who": {},
}

// Local is a deterministic, offline feature-hashing embedder. Texts sharing
// words land close together; it has no notion of synonyms.
type Local struct {
	dimensions int
}

var _ core.Embedder = (*Local)(nil)

func NewLocal(dimensions int) *Local {
	if dimensions <= 0 {
		dimensions = DefaultLocalDimensions
	}
	return &Local{dimensions: dimensions}
}

func (l *Local) ModelInfo() core.ModelInfo {
	return core.ModelInfo{
		Model:      LocalModelName,
		Dimensions: l.dimensions,
	}
}

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]float32, l.dimensions)
	tokens := tokenize(text)

	for i, tok := range tokens {
		l.add(out, tok, 1)
		if i > 0 {
			l.add(out, tokens[i-1]+" "+tok, bigramWeight)
		}
	}

	vec.Normalize(out)
	return out, nil
}

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// add hashes feature into a bucket; one hash bit picks the sign so
// collisions tend to cancel out.
func (l *Local) add(out []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(l.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	out[idx] += weight
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
