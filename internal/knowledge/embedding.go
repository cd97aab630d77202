package knowledge

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// localEmbeddingDim is the dimensionality of the offline embedding space.
const localEmbeddingDim = 128

// LocalEmbeddingFunc returns a deterministic, dependency-free embedding
// function: a hashed bag-of-words projected into a fixed-size vector and
// L2-normalized. It is a stand-in for a real embedder; overlapping
// vocabulary still yields meaningful cosine similarity, which is all the
// contextual analyzer needs offline and in tests.
func LocalEmbeddingFunc() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, localEmbeddingDim)
		for _, token := range tokenize(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(token))
			sum := h.Sum32()
			idx := int(sum % localEmbeddingDim)
			// Sign from a higher bit decorrelates colliding tokens.
			sign := float32(1)
			if sum&(1<<16) != 0 {
				sign = -1
			}
			vec[idx] += sign
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm == 0 {
			vec[0] = 1
			return vec, nil
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
		return vec, nil
	}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
