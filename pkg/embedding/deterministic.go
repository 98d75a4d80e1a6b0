package embedding

import (
	"context"
	"math"
	"strings"
)

// DeterministicProvider is the pure-function text→vector fallback of
// spec §4.1: stable across restarts, L2-normalized, dimension D,
// O(|text|·D). Its cosine scores are poor relative to a real sentence
// embedding; the ranker compensates with the keyword-match boost.
type DeterministicProvider struct {
	dim int
}

// NewDeterministicProvider returns a DeterministicProvider producing
// vectors of the given dimension (Dimension in production).
func NewDeterministicProvider(dim int) *DeterministicProvider {
	return &DeterministicProvider{dim: dim}
}

func (p *DeterministicProvider) Embed(_ context.Context, text string) ([]float64, error) {
	return deterministicVector(text, p.dim), nil
}

func (p *DeterministicProvider) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, p.dim)
	}
	return out, nil
}

// deterministicVector implements the reference construction of spec
// §4.1: lowercase the text; for each output index i compute
// vᵢ = tanh(0.001·Σⱼ codepoint(tⱼ)·sin(0.01·(i+1)·(j+1))); L2-normalize.
func deterministicVector(text string, dim int) []float64 {
	lower := strings.ToLower(truncateRunes(text, MaxProductTextRunes))
	runes := []rune(lower)

	v := make([]float64, dim)
	for i := 0; i < dim; i++ {
		var sum float64
		for j, r := range runes {
			sum += float64(r) * math.Sin(0.01*float64(i+1)*float64(j+1))
		}
		v[i] = math.Tanh(0.001 * sum)
	}

	return l2Normalize(v)
}

func l2Normalize(v []float64) []float64 {
	var normSq float64
	for _, x := range v {
		normSq += x * x
	}
	if normSq == 0 {
		// The zero text (or a text whose contributions cancel exactly)
		// has no direction; fall back to a fixed unit vector so the
		// invariant |v|=1 still holds.
		out := make([]float64, len(v))
		if len(out) > 0 {
			out[0] = 1
		}
		return out
	}
	norm := math.Sqrt(normSq)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
