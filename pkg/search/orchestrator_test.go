package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/productdiscovery/rankingengine"
	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/embedding"
	"github.com/productdiscovery/rankingengine/pkg/repository"
)

const testDim = 8

func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	repo, err := repository.Open(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustUpsertProduct(t *testing.T, repo repository.Repository, p *catalog.Product) {
	t.Helper()
	if err := repo.UpsertProduct(context.Background(), p); err != nil {
		t.Fatalf("upsert product %d: %v", p.ID, err)
	}
}

func mustUpsertEmbedding(t *testing.T, repo repository.Repository, id int64, vector []float64) {
	t.Helper()
	if err := repo.UpsertEmbedding(context.Background(), &repository.Embedding{ProductID: id, Vector: vector}); err != nil {
		t.Fatalf("upsert embedding %d: %v", id, err)
	}
}

func plainProduct(id int64, title, description, category string) *catalog.Product {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rating := 4.0
	return &catalog.Product{
		ID: id, Title: title, Description: description, Category: category,
		Price: decimal.NewFromFloat(10), Rating: &rating, Availability: catalog.InStock,
		CreatedAt: now, UpdatedAt: now,
	}
}

// stubProvider is a test double for embedding.Provider: it either
// returns a fixed vector or a configured error, never making a network
// call (NetworkProvider cannot be exercised offline).
type stubProvider struct {
	vector []float64
	err    error
	calls  int
}

func (p *stubProvider) Embed(_ context.Context, _ string) ([]float64, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.vector, nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		v, err := p.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func unitVector(dim int, hot int) []float64 {
	v := make([]float64, dim)
	v[hot] = 1
	return v
}

func newOrchestrator(repo repository.Repository, network embedding.Provider) *Orchestrator {
	fallback := embedding.NewDeterministicProvider(testDim)
	return New(repo, network, fallback, zap.NewNop())
}

func TestSearchHappyPathRanksAndPersists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustUpsertProduct(t, repo, plainProduct(1, "Wireless Mouse", "ergonomic wireless optical mouse", "electronics"))
	mustUpsertProduct(t, repo, plainProduct(2, "Desk Lamp", "adjustable led desk lamp", "home"))
	mustUpsertEmbedding(t, repo, 1, unitVector(testDim, 0))
	mustUpsertEmbedding(t, repo, 2, unitVector(testDim, 1))

	network := &stubProvider{vector: unitVector(testDim, 0)}
	o := newOrchestrator(repo, network)

	resp, err := o.Search(ctx, Request{SessionID: "s1", Query: "wireless mouse", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Degraded {
		t.Error("expected a non-degraded response when the network provider succeeds")
	}
	if resp.Fallback != "" {
		t.Errorf("fallback = %q, want empty", resp.Fallback)
	}
	if len(resp.Results) == 0 || resp.Results[0].Product.ID != 1 {
		t.Fatalf("expected product 1 ranked first, got %+v", resp.Results)
	}
	if network.calls == 0 {
		t.Error("expected the network provider to be called")
	}

	logs, err := repo.ListSearchLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list search logs: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != resp.SearchLogID {
		t.Fatalf("expected one persisted search log matching %d, got %+v", resp.SearchLogID, logs)
	}
	if logs[0].ResultCount != len(resp.Results) {
		t.Errorf("logged result count = %d, want %d", logs[0].ResultCount, len(resp.Results))
	}
}

// TestKeywordFallbackOnNoSemanticMatch reproduces spec §8 scenario S5:
// a query with no semantic match but a literal title substring hit.
func TestKeywordFallbackOnNoSemanticMatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustUpsertProduct(t, repo, plainProduct(1, "Unicorn Plush Toy", "soft cuddly unicorn plush gift", "toys"))
	mustUpsertProduct(t, repo, plainProduct(2, "Office Chair", "ergonomic leather office chair", "furniture"))
	mustUpsertEmbedding(t, repo, 1, unitVector(testDim, 2))
	mustUpsertEmbedding(t, repo, 2, unitVector(testDim, 3))

	network := &stubProvider{vector: unitVector(testDim, 5)}
	o := newOrchestrator(repo, network)

	// A MinScore no ranked candidate can clear forces the ranker to
	// zero results; the keyword fallback ignores the score filter and
	// still finds product 1's literal title match.
	minScore := 0.99
	resp, err := o.Search(ctx, Request{SessionID: "s1", Query: "unicorn plush", Filters: Filters{MinScore: &minScore}, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Fallback != "keyword" {
		t.Fatalf("fallback = %q, want %q", resp.Fallback, "keyword")
	}
	if len(resp.Results) != 1 || resp.Results[0].Product.ID != 1 {
		t.Fatalf("expected only product 1 via keyword match, got %+v", resp.Results)
	}
	if resp.Results[0].FinalScore != keywordFallbackScore {
		t.Errorf("score = %v, want %v", resp.Results[0].FinalScore, keywordFallbackScore)
	}

	logs, err := repo.ListSearchLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list search logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Fallback != "keyword" {
		t.Fatalf("expected one persisted keyword-fallback log, got %+v", logs)
	}
}

// TestDegradedEmbeddingFallsBackToDeterministic reproduces spec §8
// scenario S6: the network embedding provider errors, the orchestrator
// serves a degraded response via the deterministic fallback, and a
// later call with a healthy provider is no longer degraded.
func TestDegradedEmbeddingFallsBackToDeterministic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustUpsertProduct(t, repo, plainProduct(1, "Wireless Mouse", "ergonomic wireless optical mouse", "electronics"))
	mustUpsertEmbedding(t, repo, 1, unitVector(testDim, 0))

	failing := &stubProvider{err: errors.New("embedding service unavailable")}
	o := newOrchestrator(repo, failing)

	resp, err := o.Search(ctx, Request{SessionID: "s1", Query: "wireless mouse", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !resp.Degraded {
		t.Error("expected Degraded=true when the network provider errors")
	}

	logs, err := repo.ListSearchLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list search logs: %v", err)
	}
	if len(logs) != 1 || !logs[0].Degraded {
		t.Fatalf("expected the persisted log to record degraded=true, got %+v", logs)
	}

	healthy := &stubProvider{vector: unitVector(testDim, 0)}
	o2 := newOrchestrator(repo, healthy)
	resp2, err := o2.Search(ctx, Request{SessionID: "s1", Query: "wireless mouse", Limit: 10})
	if err != nil {
		t.Fatalf("search (recovered): %v", err)
	}
	if resp2.Degraded {
		t.Error("expected Degraded=false once the network provider recovers")
	}
}

// TestSearchPropagatesHardDeadline confirms a context already expired
// before Search is called surfaces a typed timeout error rather than
// silently falling back.
func TestSearchPropagatesHardDeadline(t *testing.T) {
	repo := newTestRepo(t)
	mustUpsertProduct(t, repo, plainProduct(1, "Wireless Mouse", "ergonomic wireless optical mouse", "electronics"))

	slow := &stubProvider{vector: unitVector(testDim, 0)}
	o := newOrchestrator(repo, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := o.Search(ctx, Request{SessionID: "s1", Query: "mouse", Limit: 10})
	if err == nil {
		t.Fatal("expected an error for an already-expired context")
	}
	if !rankingengine.IsTimeout(err) {
		t.Errorf("err = %v, want a Timeout error", err)
	}
}

// TestSearchRejectsEmptyQuery reproduces spec §7/§8's boundary
// behavior: an empty (or whitespace-only) query must return
// InvalidInput without running the pipeline.
func TestSearchRejectsEmptyQuery(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	network := &stubProvider{vector: unitVector(testDim, 0)}
	o := newOrchestrator(repo, network)

	_, err := o.Search(ctx, Request{SessionID: "s1", Query: "   ", Limit: 10})
	if !rankingengine.IsInvalidInput(err) {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
	if network.calls != 0 {
		t.Errorf("expected no embedding call for an empty query, got %d", network.calls)
	}
}

// TestSearchRejectsOverLengthQuery covers the provider's documented
// 500-Unicode-character maximum (spec §4.2).
func TestSearchRejectsOverLengthQuery(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	network := &stubProvider{vector: unitVector(testDim, 0)}
	o := newOrchestrator(repo, network)

	overLong := make([]rune, MaxQueryLength+1)
	for i := range overLong {
		overLong[i] = 'a'
	}
	_, err := o.Search(ctx, Request{SessionID: "s1", Query: string(overLong), Limit: 10})
	if !rankingengine.IsInvalidInput(err) {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}

func TestLoadIndexServesCandidatesWithoutRepositoryEmbeddingReads(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustUpsertProduct(t, repo, plainProduct(1, "Wireless Mouse", "ergonomic wireless optical mouse", "electronics"))
	mustUpsertEmbedding(t, repo, 1, unitVector(testDim, 0))

	network := &stubProvider{vector: unitVector(testDim, 0)}
	o := newOrchestrator(repo, network)
	if err := o.LoadIndex(ctx); err != nil {
		t.Fatalf("load index: %v", err)
	}
	if o.Index().Len() != 1 {
		t.Fatalf("index len = %d, want 1", o.Index().Len())
	}

	// Delete the embedding from the repository directly; if the
	// orchestrator is truly serving candidates from the pre-loaded
	// index it will still find product 1's vector.
	if err := repo.DeleteEmbedding(ctx, 1); err != nil {
		t.Fatalf("delete embedding: %v", err)
	}

	resp, err := o.Search(ctx, Request{SessionID: "s1", Query: "wireless mouse", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Product.ID != 1 {
		t.Fatalf("expected product 1 served from the preloaded index, got %+v", resp.Results)
	}
}

func TestIndexUpsertAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	o := newOrchestrator(repo, &stubProvider{vector: unitVector(testDim, 0)})

	if err := o.IndexUpsert(ctx, 1, unitVector(testDim, 0)); err != nil {
		t.Fatalf("index upsert: %v", err)
	}
	if o.Index().Len() != 1 {
		t.Fatalf("index len = %d, want 1", o.Index().Len())
	}
	if err := o.IndexDelete(ctx, 1); err != nil {
		t.Fatalf("index delete: %v", err)
	}
	if o.Index().Len() != 0 {
		t.Fatalf("index len = %d, want 0 after delete", o.Index().Len())
	}
}

func TestWeightsCacheServesFromCacheWithinTTL(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	wc := NewWeightsCache(repo)

	w1, err := wc.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w1.Semantic != repository.DefaultWeights().Semantic {
		t.Errorf("w1.Semantic = %v, want %v", w1.Semantic, repository.DefaultWeights().Semantic)
	}

	updated := repository.DefaultWeights()
	updated.Semantic = 0.9
	if _, err := repo.UpdateWeights(ctx, updated); err != nil {
		t.Fatalf("update weights: %v", err)
	}

	w2, err := wc.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w2.Semantic != w1.Semantic {
		t.Errorf("expected the cached (stale) weights before invalidation, got %+v", w2)
	}
}

func TestWeightsCacheInvalidateForcesRefresh(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	wc := NewWeightsCache(repo)

	if _, err := wc.Get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}

	updated := repository.DefaultWeights()
	updated.Semantic = 0.9
	if _, err := repo.UpdateWeights(ctx, updated); err != nil {
		t.Fatalf("update weights: %v", err)
	}
	wc.Invalidate()

	w, err := wc.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Semantic != 0.9 {
		t.Errorf("Semantic = %v, want 0.9 after invalidation", w.Semantic)
	}
}
