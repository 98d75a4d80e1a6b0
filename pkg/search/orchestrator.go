// Package search implements component I: the search orchestrator. It
// sequences embedding, candidate retrieval, ranking, audit logging,
// and the keyword fallback into the single search(query, filters,
// limit) operation of spec §4.9, under the soft/hard deadlines of
// spec §5.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/productdiscovery/rankingengine"
	"github.com/productdiscovery/rankingengine/internal/encoding"
	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/embedding"
	"github.com/productdiscovery/rankingengine/pkg/ranker"
	"github.com/productdiscovery/rankingengine/pkg/repository"
	"github.com/productdiscovery/rankingengine/pkg/vectorindex"
)

// SoftDeadline and HardDeadline are the per-search wall-clock budgets
// of spec §5: the soft deadline bounds how long the orchestrator waits
// on the network embedding call before falling back to the
// deterministic embedding; the hard deadline bounds the whole search.
const (
	SoftDeadline = 500 * time.Millisecond
	HardDeadline = 1500 * time.Millisecond
)

// keywordFallbackScore and its fixed sub-scores are spec §4.9's
// published values for the keyword-fallback path.
const keywordFallbackScore = 0.5

// MinLimit, MaxLimit, and DefaultLimit bound the limit parameter of
// spec §6's search API surface ("limit: 1..50").
const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 20
)

// MaxQueryLength is the longest query the embedding provider accepts
// (spec §4.2: "embed MUST accept queries up to 500 Unicode characters").
const MaxQueryLength = 500

// Filters narrows the candidate set (spec §6).
type Filters struct {
	Category    string
	MinPrice    *float64
	MaxPrice    *float64
	InStockOnly bool
	MinScore    *float64
}

// Request is one search(query, filters, limit) invocation.
type Request struct {
	SessionID string
	Query     string
	Filters   Filters
	Limit     int
}

// Response is the shape spec §6's search API surface commits to.
type Response struct {
	Results        []ranker.Result
	SearchLogID    int64
	ResponseTimeMs int64
	Degraded       bool
	Fallback       string // "", "keyword"
}

// Orchestrator wires the embedding provider, repository, vector index,
// and ranker into the sequence of spec §4.9.
type Orchestrator struct {
	repo     repository.Repository
	network  embedding.Provider
	fallback embedding.Provider
	weights  *WeightsCache
	index    vectorindex.Index
	logger   *zap.Logger
}

// New constructs an Orchestrator. network is the primary (typically
// HTTP-backed) embedding provider; fallback is the deterministic
// provider used when network embedding degrades or a candidate lacks
// a stored vector. The vector index starts empty; call LoadIndex once
// at startup to populate it from the repository (spec §4.2: "the
// Vector Index... rebuilt from these rows at startup").
func New(repo repository.Repository, network, fallback embedding.Provider, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		repo: repo, network: network, fallback: fallback,
		weights: NewWeightsCache(repo), index: vectorindex.NewFlatIndex(), logger: logger,
	}
}

// InvalidateWeightsCache evicts the cached active weights; callers
// MUST invoke this after an admin weights update (spec §5).
func (o *Orchestrator) InvalidateWeightsCache() {
	o.weights.Invalidate()
}

// LoadIndex rebuilds the in-memory vector index from every embedding
// row currently in the repository. Call this once at startup, and
// again after a bulk catalog upload completes.
func (o *Orchestrator) LoadIndex(ctx context.Context) error {
	embeddings, err := o.repo.ListEmbeddings(ctx)
	if err != nil {
		return err
	}
	for _, e := range embeddings {
		if err := o.index.Upsert(ctx, e.ProductID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}

// IndexUpsert updates the in-memory vector index for one product,
// keeping it consistent with a repository write the caller just made
// (spec §4.2: "upserts serialize per product id only").
func (o *Orchestrator) IndexUpsert(ctx context.Context, productID int64, vector []float64) error {
	return o.index.Upsert(ctx, productID, vector)
}

// IndexDelete removes productID from the in-memory vector index.
func (o *Orchestrator) IndexDelete(ctx context.Context, productID int64) error {
	return o.index.Delete(ctx, productID)
}

// Index returns the underlying vector index so a batch-embedding path
// (UploadRunner) can keep it in sync with every write it makes.
func (o *Orchestrator) Index() vectorindex.Index {
	return o.index
}

// Embedder returns the network embedding provider backing this
// orchestrator, so callers that need to run their own batch-embedding
// pass (UploadRunner) can share the same provider and index.
func (o *Orchestrator) Embedder() embedding.Provider {
	return o.network
}

// Search executes the full sequence of spec §4.9.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, HardDeadline)
	defer cancel()

	if err := validateQuery(req.Query); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	vq, degraded, err := o.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, classifyContextErr(ctx, "search.embed", err)
	}

	candidates, err := o.fetchCandidates(ctx, req.Filters)
	if err != nil {
		return nil, classifyContextErr(ctx, "search.fetchCandidates", err)
	}

	w, err := o.weights.Get(ctx)
	if err != nil {
		return nil, classifyContextErr(ctx, "search.activeWeights", err)
	}

	opts := ranker.Options{Weights: w, Limit: limit}
	if req.Filters.MinScore != nil {
		opts.Threshold = *req.Filters.MinScore
	}
	results, err := ranker.Rank(ctx, req.Query, vq, candidates, opts, o.fallback)
	if err != nil {
		return nil, classifyContextErr(ctx, "search.rank", err)
	}

	responseTimeMs := time.Since(start).Milliseconds()
	searchDurationSeconds.Observe(time.Since(start).Seconds())
	if degraded {
		searchDegradedTotal.Inc()
	}

	if len(results) == 0 && hasNonTrivialToken(req.Query) {
		return o.keywordFallback(ctx, req, vq, candidates, start, degraded)
	}

	logID, err := o.persistSearch(ctx, req, vq, len(results), responseTimeMs, degraded, "")
	if err != nil {
		return nil, err
	}
	if err := o.persistExplanations(ctx, logID, results); err != nil {
		return nil, err
	}

	return &Response{Results: results, SearchLogID: logID, ResponseTimeMs: responseTimeMs, Degraded: degraded}, nil
}

// validateQuery enforces spec §7/§8's "Empty query → search returns
// InvalidInput" boundary, alongside the provider's documented maximum
// (spec §4.2).
func validateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return rankingengine.Wrap(rankingengine.KindInvalidInput, "search.validateQuery", errors.New("query must not be empty"))
	}
	if len([]rune(trimmed)) > MaxQueryLength {
		return rankingengine.Wrap(rankingengine.KindInvalidInput, "search.validateQuery", errors.New("query exceeds maximum length"))
	}
	return nil
}

// embedQuery embeds req.Query against the network provider, falling
// back to the deterministic provider if the soft deadline elapses or
// the call errors for a reason other than hard cancellation (spec §5).
func (o *Orchestrator) embedQuery(ctx context.Context, query string) ([]float64, bool, error) {
	softCtx, cancel := context.WithTimeout(ctx, SoftDeadline)
	defer cancel()

	vq, err := o.network.Embed(softCtx, query)
	if err == nil {
		return vq, false, nil
	}
	if ctx.Err() != nil {
		// The hard deadline (or an external cancellation) already
		// fired on the parent; propagate rather than mask it.
		return nil, false, ctx.Err()
	}

	o.logger.Warn("embedding service degraded, using deterministic fallback", zap.Error(err))
	vq, ferr := o.fallback.Embed(ctx, query)
	if ferr != nil {
		return nil, false, ferr
	}
	return vq, true, nil
}

// fetchCandidates loads the bounded candidate set via the repository
// (spec §4.9 step 3) and their stored embeddings from the vector index,
// reading through to the repository on an index miss.
func (o *Orchestrator) fetchCandidates(ctx context.Context, f Filters) ([]ranker.Candidate, error) {
	products, err := o.repo.ListProducts(ctx, repository.ProductFilter{
		Category:    f.Category,
		MinPrice:    f.MinPrice,
		MaxPrice:    f.MaxPrice,
		InStockOnly: f.InStockOnly,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]ranker.Candidate, 0, len(products))
	for _, p := range products {
		vector, ok, err := o.index.Lookup(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Index miss: read through to the repository (the source
			// of truth, spec §4.3) and backfill the index so the next
			// search for this product is served from memory.
			emb, found, err := o.repo.GetEmbedding(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			if found {
				vector = emb.Vector
				if err := o.index.Upsert(ctx, p.ID, vector); err != nil {
					return nil, err
				}
			}
		}
		candidates = append(candidates, ranker.Candidate{Product: p, Vector: vector})
	}
	return candidates, nil
}

// keywordFallback implements spec §4.9 step 6: a substring match over
// title/description/category, fixed score 0.5, logged distinctly.
func (o *Orchestrator) keywordFallback(ctx context.Context, req Request, vq []float64, candidates []ranker.Candidate, start time.Time, degraded bool) (*Response, error) {
	needle := strings.ToLower(strings.TrimSpace(req.Query))
	var results []ranker.Result
	for _, c := range candidates {
		if !strings.Contains(strings.ToLower(c.Product.SearchableText()), needle) {
			continue
		}
		sub := ranker.SubScores{
			Rating:  ratingSubScore(c.Product),
			Price:   0.5,
			Stock:   stockSubScore(c.Product),
			Recency: 0.5,
		}
		results = append(results, ranker.Result{
			Product:     c.Product,
			FinalScore:  keywordFallbackScore,
			SubScores:   sub,
			Explanation: "Matched your search terms",
		})
	}
	limit := req.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	responseTimeMs := time.Since(start).Milliseconds()
	searchFallbackTotal.Inc()

	logID, err := o.persistSearch(ctx, req, vq, len(results), responseTimeMs, degraded, "keyword")
	if err != nil {
		return nil, err
	}
	if err := o.persistExplanations(ctx, logID, results); err != nil {
		return nil, err
	}

	return &Response{Results: results, SearchLogID: logID, ResponseTimeMs: responseTimeMs, Degraded: degraded, Fallback: "keyword"}, nil
}

func ratingSubScore(p *catalog.Product) float64 {
	if p.Rating == nil {
		return 0.5
	}
	return *p.Rating / 5
}

func stockSubScore(p *catalog.Product) float64 {
	switch p.Availability {
	case catalog.InStock:
		return 1
	case catalog.LowStock:
		return 0.5
	default:
		return 0
	}
}

func (o *Orchestrator) persistSearch(ctx context.Context, req Request, vq []float64, resultCount int, responseTimeMs int64, degraded bool, fallback string) (int64, error) {
	filterBag, err := encoding.EncodeFilterBag(filtersToBag(req.Filters))
	if err != nil {
		return 0, rankingengine.Wrap(rankingengine.KindInvalidInput, "search.persistSearch", err)
	}
	return o.repo.CreateSearchLog(ctx, &repository.SearchLog{
		SessionID:      req.SessionID,
		Query:          req.Query,
		QueryVector:    vq,
		ResultCount:    resultCount,
		ResponseTimeMs: responseTimeMs,
		FilterBag:      filterBag,
		Degraded:       degraded,
		Fallback:       fallback,
	})
}

func (o *Orchestrator) persistExplanations(ctx context.Context, logID int64, results []ranker.Result) error {
	if len(results) == 0 {
		return nil
	}
	explanations := make([]*repository.SearchResultExplanation, len(results))
	for i, r := range results {
		explanations[i] = &repository.SearchResultExplanation{
			SearchLogID:   logID,
			ProductID:     r.Product.ID,
			Rank:          r.Rank,
			FinalScore:    r.FinalScore,
			SemanticScore: r.SubScores.Semantic,
			RatingScore:   r.SubScores.Rating,
			PriceScore:    r.SubScores.Price,
			StockScore:    r.SubScores.Stock,
			RecencyScore:  r.SubScores.Recency,
			MatchedTerms:  r.MatchedTerms,
			Explanation:   r.Explanation,
		}
	}
	return o.repo.CreateExplanations(ctx, explanations)
}

func filtersToBag(f Filters) map[string]any {
	bag := map[string]any{"inStockOnly": f.InStockOnly}
	if f.Category != "" {
		bag["category"] = f.Category
	}
	if f.MinPrice != nil {
		bag["minPrice"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		bag["maxPrice"] = *f.MaxPrice
	}
	if f.MinScore != nil {
		bag["minScore"] = *f.MinScore
	}
	return bag
}

// hasNonTrivialToken reports whether query has at least one token
// longer than 2 runes (spec §4.9 step 6's fallback trigger condition).
func hasNonTrivialToken(query string) bool {
	for _, f := range strings.Fields(query) {
		if len([]rune(f)) > 2 {
			return true
		}
	}
	return false
}

// classifyContextErr maps a hard-deadline or cancellation context
// error to its typed kind (spec §5: "a cancelled search MUST ...
// return a typed cancelled error"; "a hard deadline returns a timeout
// error"). Other errors pass through unchanged.
func classifyContextErr(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return rankingengine.Wrap(rankingengine.KindTimeout, op, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return rankingengine.Wrap(rankingengine.KindCancelled, op, err)
	}
	return err
}
