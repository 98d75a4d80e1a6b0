// Package evaluator implements component H: standard information
// retrieval metrics (nDCG, Recall, Precision, MRR, AP) over a ranked
// result list and a set of relevance judgments, plus an automatic
// judgment synthesizer for use when no human labels exist (spec §4.8).
package evaluator

import (
	"math"
	"sort"
	"strings"
)

// RelevanceThreshold is τ, the minimum judged relevance counted as
// "relevant" for Recall@k and Precision@k (spec §4.8, default τ=1).
const RelevanceThreshold = 1

// ScoredResult is one ranked result, as the ranker (component E)
// produces it.
type ScoredResult struct {
	ProductID  int64
	Position   int
	FinalScore float64
}

// Judgment is a human or synthesized relevance label on a 0–3 scale.
type Judgment struct {
	ProductID int64
	Relevance int
}

// Metrics bundles the IR metrics spec §4.8 defines, all computed for a
// single query against a single cutoff k.
type Metrics struct {
	NDCG      float64
	Recall    float64
	Precision float64
	MRR       float64
	AP        float64
}

// Evaluate computes all of spec §4.8's metrics for results against
// judgments at cutoff k. Products in results but absent from judgments
// are treated as relevance 0.
func Evaluate(results []ScoredResult, judgments []Judgment, k int) Metrics {
	relevance := make(map[int64]int, len(judgments))
	for _, j := range judgments {
		relevance[j.ProductID] = j.Relevance
	}
	return Metrics{
		NDCG:      NDCGAtK(results, relevance, k),
		Recall:    RecallAtK(results, judgments, relevance, k),
		Precision: PrecisionAtK(results, relevance, k),
		MRR:       MRR(results, relevance),
		AP:        AP(results, relevance),
	}
}

// DCGAtK is DCG@k = Σ (2^rel_i − 1) / log2(i+2) over the first
// min(k,|results|) positions (spec §4.8).
func DCGAtK(results []ScoredResult, relevance map[int64]int, k int) float64 {
	n := k
	if n > len(results) {
		n = len(results)
	}
	var dcg float64
	for i := 0; i < n; i++ {
		rel := relevance[results[i].ProductID]
		dcg += (math.Exp2(float64(rel)) - 1) / math.Log2(float64(i)+2)
	}
	return dcg
}

// IDCGAtK is DCG@k computed over all judgments sorted by relevance
// descending (spec §4.8) — the best achievable DCG@k for this judgment
// set, used to normalize NDCGAtK.
func IDCGAtK(relevance map[int64]int, k int) float64 {
	rels := make([]int, 0, len(relevance))
	for _, rel := range relevance {
		rels = append(rels, rel)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rels)))

	n := k
	if n > len(rels) {
		n = len(rels)
	}
	var idcg float64
	for i := 0; i < n; i++ {
		idcg += (math.Exp2(float64(rels[i])) - 1) / math.Log2(float64(i)+2)
	}
	return idcg
}

// NDCGAtK is DCG@k / IDCG@k, or 0 when IDCG@k is 0 (spec §4.8).
func NDCGAtK(results []ScoredResult, relevance map[int64]int, k int) float64 {
	idcg := IDCGAtK(relevance, k)
	if idcg == 0 {
		return 0
	}
	return DCGAtK(results, relevance, k) / idcg
}

// RecallAtK is |relevant ∈ top-k| / |relevant|, 0 when no relevant
// items exist (spec §4.8). "relevant" = relevance ≥ RelevanceThreshold.
func RecallAtK(results []ScoredResult, judgments []Judgment, relevance map[int64]int, k int) float64 {
	totalRelevant := 0
	for _, j := range judgments {
		if j.Relevance >= RelevanceThreshold {
			totalRelevant++
		}
	}
	if totalRelevant == 0 {
		return 0
	}
	n := k
	if n > len(results) {
		n = len(results)
	}
	var hit int
	for i := 0; i < n; i++ {
		if relevance[results[i].ProductID] >= RelevanceThreshold {
			hit++
		}
	}
	return float64(hit) / float64(totalRelevant)
}

// PrecisionAtK is |relevant ∈ top-k| / min(k, |results|) (spec §4.8).
func PrecisionAtK(results []ScoredResult, relevance map[int64]int, k int) float64 {
	n := k
	if n > len(results) {
		n = len(results)
	}
	if n == 0 {
		return 0
	}
	var hit int
	for i := 0; i < n; i++ {
		if relevance[results[i].ProductID] >= RelevanceThreshold {
			hit++
		}
	}
	return float64(hit) / float64(n)
}

// MRR is 1/rank of the first relevant result (1-indexed), else 0
// (spec §4.8).
func MRR(results []ScoredResult, relevance map[int64]int) float64 {
	for i, r := range results {
		if relevance[r.ProductID] >= RelevanceThreshold {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// AP is (1/|relevant|) · Σ precision_at_i over positions of relevant
// results (spec §4.8).
func AP(results []ScoredResult, relevance map[int64]int) float64 {
	var totalRelevant int
	for _, rel := range relevance {
		if rel >= RelevanceThreshold {
			totalRelevant++
		}
	}
	if totalRelevant == 0 {
		return 0
	}
	var sumPrecision float64
	var hit int
	for i, r := range results {
		if relevance[r.ProductID] >= RelevanceThreshold {
			hit++
			sumPrecision += float64(hit) / float64(i+1)
		}
	}
	return sumPrecision / float64(totalRelevant)
}

// JudgeableProduct is the minimal product shape the automatic
// relevance-judgment synthesizer needs (spec §4.8).
type JudgeableProduct struct {
	ProductID int64
	Title     string
	Text      string // title + description + category, lowercased by the caller is not required
}

// SynthesizeJudgments produces automatic relevance judgments for query
// over products, used when no human labels exist (spec §4.8). The
// resulting judgments are an acknowledged weak signal; callers must
// label downstream metrics accordingly.
func SynthesizeJudgments(query string, products []JudgeableProduct) []Judgment {
	queryTerms := tokenize(query)
	out := make([]Judgment, 0, len(products))
	for _, p := range products {
		out = append(out, Judgment{ProductID: p.ProductID, Relevance: judgeOne(queryTerms, p)})
	}
	return out
}

func judgeOne(queryTerms []string, p JudgeableProduct) int {
	if len(queryTerms) == 0 {
		return 0
	}
	haystack := strings.ToLower(p.Text)
	title := strings.ToLower(p.Title)

	var matched int
	exactTitle := false
	for _, term := range queryTerms {
		if strings.Contains(haystack, term) {
			matched++
		}
		if strings.Contains(title, term) {
			exactTitle = true
		}
	}

	ratio := float64(matched) / float64(len(queryTerms))
	switch {
	case ratio >= 0.8 && exactTitle:
		return 3
	case ratio >= 0.5 || exactTitle:
		return 2
	case matched > 0:
		return 1
	default:
		return 0
	}
}

// tokenize splits on whitespace, lowercases, and drops tokens of
// length ≤ 2 (spec §4.8 step 1).
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
