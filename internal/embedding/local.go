package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder is a deterministic feature-hashing embedder for development
// and tests. Words and rune bigrams are hashed into Dimension buckets and the
// result is L2 normalized, so texts sharing words or characters have a
// positive cosine similarity.
type LocalEmbedder struct{}

// NewLocalEmbedder returns a LocalEmbedder.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{}
}

// Embed returns the hashed embedding of text.
func (LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float64, Dimension)
	add := func(feature string, weight float64) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(Dimension))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vec[idx] += weight
	}

	for _, w := range words {
		add("w:"+w, 1)
		runes := []rune(w)
		if len(runes) == 1 {
			add("b:"+w, 0.5)
			continue
		}
		for i := 0; i+1 < len(runes); i++ {
			add("b:"+string(runes[i:i+2]), 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, Dimension)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}
