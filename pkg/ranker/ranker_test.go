package ranker

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/embedding"
	"github.com/productdiscovery/rankingengine/pkg/repository"
)

func unitVectorWithCosine(cos float64) []float64 {
	return []float64{cos, math.Sqrt(1 - cos*cos)}
}

func productFixture(id int64, title string, rating float64, price float64, stockQty int, ageDays int, now time.Time) *catalog.Product {
	return &catalog.Product{
		ID:           id,
		Title:        title,
		Description:  "",
		Category:     "",
		Price:        decimal.NewFromFloat(price),
		Rating:       &rating,
		Availability: catalog.InStock,
		StockQty:     stockQty,
		CreatedAt:    now.AddDate(0, 0, -ageDays),
		UpdatedAt:    now,
	}
}

func s1Weights() repository.Weights {
	return repository.Weights{Semantic: 0.5, Rating: 0.2, Price: 0.15, Stock: 0.1, Recency: 0.05}
}

// TestS1SemanticWinOverRating reproduces spec §8 scenario S1 exactly.
func TestS1SemanticWinOverRating(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	productA := productFixture(1, "Sony WH-1000XM5 Wireless Bluetooth Headphones", 4.8, 329.99, 500, 30, now)
	productB := productFixture(2, "Luxury Leather Office Chair", 5.0, 329.99, 500, 30, now)

	candidates := []Candidate{
		{Product: productA, Vector: unitVectorWithCosine(0.88)},
		{Product: productB, Vector: unitVectorWithCosine(0.05)},
	}
	queryVector := []float64{1, 0}

	results, err := Rank(context.Background(), "wireless bluetooth headphones", queryVector, candidates,
		Options{Weights: s1Weights(), Now: now}, embedding.NewDeterministicProvider(2))
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Product.ID != 1 {
		t.Fatalf("expected product A to outrank B, got order %d, %d", results[0].Product.ID, results[1].Product.ID)
	}

	const eps = 1e-3
	if math.Abs(results[0].FinalScore-0.917) > eps {
		t.Errorf("A score = %v, want ~0.917", results[0].FinalScore)
	}
	if math.Abs(results[1].FinalScore-0.450) > eps {
		t.Errorf("B score = %v, want ~0.450", results[1].FinalScore)
	}

	want := []string{"wireless", "bluetooth", "headphones"}
	if len(results[0].MatchedTerms) != len(want) {
		t.Fatalf("matched terms = %v, want %v", results[0].MatchedTerms, want)
	}
	for i, w := range want {
		if results[0].MatchedTerms[i] != w {
			t.Errorf("matched term %d = %q, want %q", i, results[0].MatchedTerms[i], w)
		}
	}
}

func TestRankEmptyCandidatesYieldsEmptyResultNotError(t *testing.T) {
	results, err := Rank(context.Background(), "anything", []float64{1, 0}, nil,
		Options{Weights: s1Weights()}, embedding.NewDeterministicProvider(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestRankFiltersBelowThreshold(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	p := productFixture(1, "Irrelevant Product", 0, 10, 0, 400, now)
	p.Availability = catalog.OutOfStock

	candidates := []Candidate{{Product: p, Vector: unitVectorWithCosine(-1)}}
	results, err := Rank(context.Background(), "totally unrelated query", []float64{1, 0}, candidates,
		Options{Weights: s1Weights(), Now: now}, embedding.NewDeterministicProvider(2))
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected candidate below threshold to be filtered, got %+v", results)
	}
}

func TestRankTieBreaksByProductIDAscending(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	p1 := productFixture(5, "Same Product", 4, 50, 500, 10, now)
	p2 := productFixture(2, "Same Product", 4, 50, 500, 10, now)

	candidates := []Candidate{
		{Product: p1, Vector: unitVectorWithCosine(0.5)},
		{Product: p2, Vector: unitVectorWithCosine(0.5)},
	}
	results, err := Rank(context.Background(), "same product", []float64{1, 0}, candidates,
		Options{Weights: s1Weights(), Now: now}, embedding.NewDeterministicProvider(2))
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Product.ID != 2 || results[1].Product.ID != 5 {
		t.Errorf("tie-break order = [%d,%d], want [2,5]", results[0].Product.ID, results[1].Product.ID)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	p := productFixture(1, "Wireless Mouse", 4.2, 25, 100, 10, now)
	candidates := []Candidate{{Product: p, Vector: unitVectorWithCosine(0.6)}}

	r1, _ := Rank(context.Background(), "wireless mouse", []float64{1, 0}, candidates,
		Options{Weights: s1Weights(), Now: now}, embedding.NewDeterministicProvider(2))
	r2, _ := Rank(context.Background(), "wireless mouse", []float64{1, 0}, candidates,
		Options{Weights: s1Weights(), Now: now}, embedding.NewDeterministicProvider(2))

	if r1[0].FinalScore != r2[0].FinalScore {
		t.Errorf("non-deterministic scores: %v vs %v", r1[0].FinalScore, r2[0].FinalScore)
	}
}

func TestMatchedTermsFiltersShortTokensAndLowercases(t *testing.T) {
	terms := dedupeTokens(tokenize("A Big RED Car to go"))
	want := []string{"big", "red", "car"}
	if len(terms) != len(want) {
		t.Fatalf("terms = %v, want %v", terms, want)
	}
	for i, w := range want {
		if terms[i] != w {
			t.Errorf("term %d = %q, want %q", i, terms[i], w)
		}
	}
}

func TestExplanationFallsBackWhenNoFragmentApplies(t *testing.T) {
	p := &catalog.Product{ID: 1, Title: "x", Availability: catalog.OutOfStock}
	got := explain(SubScores{Semantic: 0.1, Price: 0.2}, nil, p)
	if got != "Relevant to your search" {
		t.Errorf("explanation = %q, want fallback text", got)
	}
}

func TestExplanationIncludesHighSemanticAndMatches(t *testing.T) {
	rating := 4.5
	p := &catalog.Product{ID: 1, Title: "x", Rating: &rating, Availability: catalog.InStock}
	got := explain(SubScores{Semantic: 0.9, Price: 0.8}, []string{"wireless", "bluetooth"}, p)
	for _, frag := range []string{"High semantic match", "Matches: wireless, bluetooth", "Highly rated", "Great value", "In stock"} {
		if !strings.Contains(got, frag) {
			t.Errorf("explanation %q missing fragment %q", got, frag)
		}
	}
}
