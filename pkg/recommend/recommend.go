// Package recommend implements component F: session-based,
// item-similar, and trending recommendations (spec §4.6).
package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/repository"
	"github.com/productdiscovery/rankingengine/pkg/vectorindex"
)

// interactionWeight is the base weight w per interaction kind (spec §4.6).
var interactionWeight = map[repository.InteractionKind]float64{
	repository.InteractionPurchase:    5,
	repository.InteractionAddToCart:   4,
	repository.InteractionSearchClick: 3,
	repository.InteractionClick:       2,
	repository.InteractionView:        1,
}

// affinityThreshold is the minimum affinity a_c a candidate must clear
// to survive forSession (spec §4.6).
const affinityThreshold = 0.1

// similarThreshold is the minimum cosine similarity a Similar result
// must clear (spec §4.6).
const similarThreshold = 0.3

// Recommendation is the shape common to all three recommendation
// surfaces (spec §9's single-result-shape discipline, generalized).
type Recommendation struct {
	Product *catalog.Product
	Score   float64
	Reason  string
}

// Recommender implements session, item-similar, and trending
// recommendations over a Repository and Vector Index. Session affinity
// runs one similarity scan per interacted vector and sums each
// candidate's weighted cosines; interacted vectors are not averaged
// into a centroid.
type Recommender struct {
	repo  repository.Repository
	index vectorindex.Index
}

// New constructs a Recommender with its own vector index, backfilled
// read-through from the repository as products are touched (the same
// pattern the search orchestrator uses to keep its index warm).
func New(repo repository.Repository) *Recommender {
	return &Recommender{repo: repo, index: vectorindex.NewFlatIndex()}
}

// vectorFor returns id's embedding, reading through the in-memory index
// and backfilling it from the repository on a miss.
func (r *Recommender) vectorFor(ctx context.Context, id int64) ([]float64, bool, error) {
	if v, ok, err := r.index.Lookup(ctx, id); err != nil {
		return nil, false, err
	} else if ok {
		return v, true, nil
	}
	emb, ok, err := r.repo.GetEmbedding(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := r.index.Upsert(ctx, id, emb.Vector); err != nil {
		return nil, false, err
	}
	return emb.Vector, true, nil
}

// ensureIndexed backfills the in-memory index with every product's
// embedding, skipping ids already indexed or lacking one, so a
// subsequent Scan sees the full candidate set.
func (r *Recommender) ensureIndexed(ctx context.Context, products []*catalog.Product) error {
	for _, p := range products {
		if _, ok, err := r.index.Lookup(ctx, p.ID); err != nil {
			return err
		} else if ok {
			continue
		}
		if _, _, err := r.vectorFor(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// ForSessionOptions bundles forSession's parameters (spec §4.6).
type ForSessionOptions struct {
	Limit             int
	ExcludeProductIDs map[int64]struct{}
}

// ForSession computes session-based recommendations from the last 20
// interactions (spec §4.6). Cold start (no interactions, or no
// interacted product has an embedding) returns the featured list.
func (r *Recommender) ForSession(ctx context.Context, sessionID string, opts ForSessionOptions) ([]Recommendation, error) {
	interactions, err := r.repo.RecentInteractions(ctx, sessionID, 20)
	if err != nil {
		return nil, err
	}
	if len(interactions) == 0 {
		return r.coldStart(ctx, opts.Limit)
	}

	n := len(interactions)
	type interactedProduct struct {
		productID int64
		weight    float64
		vector    []float64
	}
	weighted := make(map[int64]*interactedProduct)
	for i, in := range interactions {
		base, ok := interactionWeight[in.Kind]
		if !ok {
			continue
		}
		recencyBoost := 1 + float64(n-i)/float64(n)
		score := base * recencyBoost
		ip, exists := weighted[in.ProductID]
		if !exists {
			weighted[in.ProductID] = &interactedProduct{productID: in.ProductID, weight: score}
		} else if score > ip.weight {
			ip.weight = score
		}
	}

	exclude := opts.ExcludeProductIDs
	if exclude == nil {
		exclude = make(map[int64]struct{})
	}
	interacted := make(map[int64]struct{}, len(weighted))
	var withEmbedding []*interactedProduct
	for id, ip := range weighted {
		interacted[id] = struct{}{}
		exclude[id] = struct{}{}
		vector, ok, err := r.vectorFor(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			ip.vector = vector
			withEmbedding = append(withEmbedding, ip)
		}
	}
	if len(withEmbedding) == 0 {
		return r.coldStart(ctx, opts.Limit)
	}

	candidates, err := r.repo.ListProducts(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, err
	}
	if err := r.ensureIndexed(ctx, candidates); err != nil {
		return nil, err
	}
	productByID := make(map[int64]*catalog.Product, len(candidates))
	for _, c := range candidates {
		productByID[c.ID] = c
	}

	type accumulator struct {
		weightedSum, bestRaw, bestWeighted float64
		bestKind                           repository.InteractionKind
	}
	acc := make(map[int64]*accumulator)
	for _, ip := range withEmbedding {
		matches, err := r.index.Scan(ctx, ip.vector, vectorindex.Filter{}, r.index.Len())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if _, skip := exclude[m.ProductID]; skip {
				continue
			}
			if _, ok := productByID[m.ProductID]; !ok {
				continue
			}
			a, ok := acc[m.ProductID]
			if !ok {
				a = &accumulator{}
				acc[m.ProductID] = a
			}
			a.weightedSum += ip.weight * m.Cosine
			// The reason is attributed to the interaction contributing
			// the most to the affinity sum, not the one with the raw
			// highest cosine (spec §8 S4: add_to_cart wins the reason
			// despite a lower raw cosine than the view interaction,
			// because its weight*cosine contribution is larger).
			if contribution := ip.weight * m.Cosine; contribution > a.bestWeighted {
				a.bestWeighted = contribution
				a.bestRaw = m.Cosine
				for _, in := range interactions {
					if in.ProductID == ip.productID {
						a.bestKind = in.Kind
						break
					}
				}
			}
		}
	}

	type scored struct {
		product        *catalog.Product
		affinity       float64
		bestRawCosine  float64
		bestInteracted repository.InteractionKind
	}
	var out []scored
	for id, a := range acc {
		affinity := a.weightedSum / float64(len(withEmbedding))
		if affinity <= affinityThreshold {
			continue
		}
		out = append(out, scored{product: productByID[id], affinity: affinity, bestRawCosine: a.bestRaw, bestInteracted: a.bestKind})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].affinity != out[j].affinity {
			return out[i].affinity > out[j].affinity
		}
		return out[i].product.ID < out[j].product.ID
	})

	limit := opts.Limit
	if limit <= 0 || limit > len(out) {
		limit = len(out)
	}
	recs := make([]Recommendation, 0, limit)
	for _, s := range out[:limit] {
		recs = append(recs, Recommendation{
			Product: s.product,
			Score:   s.affinity,
			Reason:  sessionReason(s.bestInteracted, s.bestRawCosine),
		})
	}
	return recs, nil
}

// sessionReason synthesizes the reason text of spec §4.6.
func sessionReason(kind repository.InteractionKind, rawCosine float64) string {
	switch kind {
	case repository.InteractionPurchase:
		return "Based on your purchase"
	case repository.InteractionAddToCart:
		return "Similar to items in your cart"
	}
	switch {
	case rawCosine > 0.8:
		return "Very similar to items you viewed"
	case rawCosine > 0.6:
		return "Similar to your interests"
	case rawCosine > 0.4:
		return "Related to your browsing"
	default:
		return "You might like this"
	}
}

// coldStart returns the top-N featured products by rating descending,
// score 1, reason "Popular product" (spec §4.6 S3).
func (r *Recommender) coldStart(ctx context.Context, limit int) ([]Recommendation, error) {
	products, err := r.repo.ListProducts(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, err
	}
	featured := make([]*catalog.Product, 0, len(products))
	for _, p := range products {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	sortByRatingDesc(featured)

	if limit <= 0 || limit > len(featured) {
		limit = len(featured)
	}
	recs := make([]Recommendation, 0, limit)
	for _, p := range featured[:limit] {
		recs = append(recs, Recommendation{Product: p, Score: 1, Reason: "Popular product"})
	}
	return recs, nil
}

// Similar returns products similar to productID (spec §4.6). Without
// an embedding it falls back to same-category products.
func (r *Recommender) Similar(ctx context.Context, productID int64, limit int) ([]Recommendation, error) {
	target, err := r.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	vector, ok, err := r.vectorFor(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r.similarByCategory(ctx, target, limit)
	}

	products, err := r.repo.ListProducts(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, err
	}
	if err := r.ensureIndexed(ctx, products); err != nil {
		return nil, err
	}
	productByID := make(map[int64]*catalog.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	matches, err := r.index.Scan(ctx, vector, vectorindex.Filter{}, r.index.Len())
	if err != nil {
		return nil, err
	}

	type scored struct {
		product *catalog.Product
		cosine  float64
	}
	var out []scored
	for _, m := range matches {
		if m.ProductID == productID {
			continue
		}
		p, ok := productByID[m.ProductID]
		if !ok || m.Cosine <= similarThreshold {
			continue
		}
		out = append(out, scored{product: p, cosine: m.Cosine})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].cosine != out[j].cosine {
			return out[i].cosine > out[j].cosine
		}
		return out[i].product.ID < out[j].product.ID
	})

	if limit <= 0 || limit > len(out) {
		limit = len(out)
	}
	recs := make([]Recommendation, 0, limit)
	for _, s := range out[:limit] {
		recs = append(recs, Recommendation{Product: s.product, Score: s.cosine, Reason: similarReason(s.cosine)})
	}
	return recs, nil
}

// similarReason is the "{X}% similar" reason text of spec §4.6.
func similarReason(cosine float64) string {
	return fmt.Sprintf("%d%% similar", int(cosine*100+0.5))
}

func (r *Recommender) similarByCategory(ctx context.Context, target *catalog.Product, limit int) ([]Recommendation, error) {
	products, err := r.repo.ListProducts(ctx, repository.ProductFilter{Category: target.Category})
	if err != nil {
		return nil, err
	}
	filtered := make([]*catalog.Product, 0, len(products))
	for _, p := range products {
		if p.ID != target.ID {
			filtered = append(filtered, p)
		}
	}
	sortByRatingDesc(filtered)

	if limit <= 0 || limit > len(filtered) {
		limit = len(filtered)
	}
	recs := make([]Recommendation, 0, limit)
	for _, p := range filtered[:limit] {
		recs = append(recs, Recommendation{Product: p, Score: 0.5, Reason: "In the same category"})
	}
	return recs, nil
}

// Trending returns the featured list ordered by rating, session
// independent and cacheable (spec §4.6).
func (r *Recommender) Trending(ctx context.Context, limit int) ([]Recommendation, error) {
	products, err := r.repo.ListProducts(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, err
	}
	featured := make([]*catalog.Product, 0, len(products))
	for _, p := range products {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	sortByRatingDesc(featured)

	if limit <= 0 || limit > len(featured) {
		limit = len(featured)
	}
	recs := make([]Recommendation, 0, limit)
	for i, p := range featured[:limit] {
		recs = append(recs, Recommendation{Product: p, Score: 1 - 0.05*float64(i), Reason: "Trending now"})
	}
	return recs, nil
}

func sortByRatingDesc(products []*catalog.Product) {
	sort.Slice(products, func(i, j int) bool {
		ri, rj := ratingOrZero(products[i]), ratingOrZero(products[j])
		if ri != rj {
			return ri > rj
		}
		return products[i].ID < products[j].ID
	})
}

func ratingOrZero(p *catalog.Product) float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}
