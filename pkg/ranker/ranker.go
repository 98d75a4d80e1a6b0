// Package ranker implements component E: the explainable linear
// re-ranker of spec §4.5. It combines a semantic sub-score (cosine
// similarity plus a keyword-match boost) with rating, price, stock,
// and recency sub-scores under operator-tunable weights, and
// synthesizes a human-readable explanation for every surviving result.
package ranker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/productdiscovery/rankingengine"
	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/embedding"
	"github.com/productdiscovery/rankingengine/pkg/features"
	"github.com/productdiscovery/rankingengine/pkg/repository"
)

// DefaultThreshold is the minimum score θ a candidate must meet to
// survive (spec §4.5).
const DefaultThreshold = 0.1

// Candidate is one product considered for ranking, with its stored
// embedding if one exists (nil triggers the deterministic fallback).
type Candidate struct {
	Product *catalog.Product
	Vector  []float64
}

// SubScores is the per-result score decomposition spec §9 requires as
// one internal result shape.
type SubScores struct {
	Semantic float64
	Rating   float64
	Price    float64
	Stock    float64
	Recency  float64
}

// Result is the single internal result shape spec §9 mandates:
// transports may serialize it differently, but internal code must not
// branch on shape.
type Result struct {
	Product      *catalog.Product
	FinalScore   float64
	SubScores    SubScores
	MatchedTerms []string
	Explanation  string
	Rank         int
}

// Options bundles the per-query parameters beyond the candidate set.
type Options struct {
	Weights   repository.Weights
	Threshold float64 // 0 means DefaultThreshold
	Limit     int
	Now       time.Time // zero means time.Now()
}

// Rank scores candidates against (query, queryVector), filters by
// threshold, sorts by score descending (ties by product id ascending),
// and truncates to opts.Limit. An empty candidate set yields an empty
// result, not an error (spec §4.5).
func Rank(ctx context.Context, query string, queryVector []float64, candidates []Candidate, opts Options, fallback embedding.Provider) ([]Result, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	queryTerms := dedupeTokens(tokenize(query))

	prices := make([]*float64, len(candidates))
	for i, c := range candidates {
		v, _ := c.Product.Price.Float64()
		prices[i] = &v
	}
	priceRange := features.NewPriceRange(prices)

	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		vp := c.Vector
		if len(vp) == 0 {
			var err error
			vp, err = fallback.Embed(ctx, c.Product.SearchableText())
			if err != nil {
				return nil, rankingengine.Wrap(rankingengine.KindInternal, "ranker.rank", err)
			}
		}

		sigma := max0(rankingengine.Cosine(queryVector, vp))
		matched := matchedTerms(queryTerms, c.Product)
		boost := keywordBoost(matched, queryTerms)
		// Clamped to [0,1]: the published formula (spec §6) writes
		// max(0, cos+boost) with no explicit upper cap, but the spec's
		// own S1 worked example computes min(1, cos+boost) — an
		// acknowledged inconsistency (spec §9 Open Questions) resolved
		// here in favor of the worked example.
		sigmaHat := clamp01(sigma + boost)

		sub := SubScores{
			Semantic: sigmaHat,
			Rating:   features.Rating(c.Product.Rating),
			Price:    features.Price(prices[i], priceRange),
			Stock:    features.Stock(c.Product.Availability, c.Product.StockQty),
			Recency:  features.Recency(c.Product.CreatedAt, now),
		}

		score := opts.Weights.Semantic*sub.Semantic +
			opts.Weights.Rating*sub.Rating +
			opts.Weights.Price*sub.Price +
			opts.Weights.Stock*sub.Stock +
			opts.Weights.Recency*sub.Recency

		if score < threshold {
			continue
		}

		results = append(results, Result{
			Product:      c.Product,
			FinalScore:   score,
			SubScores:    sub,
			MatchedTerms: matched,
			Explanation:  explain(sub, matched, c.Product),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Product.ID < results[j].Product.ID
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// tokenize splits on whitespace, lowercases, and drops tokens of
// length ≤ 2 (spec §4.5, §4.8, GLOSSARY "Matched terms").
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// matchedTerms retains queryTerms appearing as substrings of the
// product's lowercased title+description+category, deduplicated in
// query order (spec §4.5).
func matchedTerms(queryTerms []string, p *catalog.Product) []string {
	haystack := strings.ToLower(p.SearchableText())
	matched := make([]string, 0, len(queryTerms))
	for _, term := range queryTerms {
		if strings.Contains(haystack, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

// keywordBoost is b = 0.5·|matched|/|queryTerms| (spec §4.5), 0 when
// queryTerms is empty.
func keywordBoost(matched, queryTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	return 0.5 * float64(len(matched)) / float64(len(queryTerms))
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// explain synthesizes the " • "-joined justification of spec §4.5.
func explain(sub SubScores, matched []string, p *catalog.Product) string {
	var fragments []string

	switch {
	case sub.Semantic > 0.5:
		fragments = append(fragments, fmt.Sprintf("High semantic match (%.0f%%)", sub.Semantic*100))
	case sub.Semantic > 0.3:
		fragments = append(fragments, fmt.Sprintf("Moderate semantic match (%.0f%%)", sub.Semantic*100))
	}

	if len(matched) > 0 {
		n := len(matched)
		if n > 3 {
			n = 3
		}
		fragments = append(fragments, "Matches: "+strings.Join(matched[:n], ", "))
	}

	if p.Rating != nil && *p.Rating >= 4 {
		fragments = append(fragments, fmt.Sprintf("Highly rated (%.1f★)", *p.Rating))
	}

	if sub.Price > 0.7 {
		fragments = append(fragments, "Great value")
	}

	if p.Availability == catalog.InStock {
		fragments = append(fragments, "In stock")
	}

	if len(fragments) == 0 {
		return "Relevant to your search"
	}
	return strings.Join(fragments, " • ")
}
