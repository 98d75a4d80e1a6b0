package search

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/productdiscovery/rankingengine/pkg/repository"
)

// weightsCacheTTL is the ≤5s TTL spec §5 calls for on the active
// RankingWeights row.
const weightsCacheTTL = 5 * time.Second

// activeWeightsKey is the cache's sole key: there is only ever one
// active weights row (spec §9's upsert-and-return invariant).
const activeWeightsKey = "active"

// WeightsCache fronts Repository.ActiveWeights with a short TTL so a
// hot search path doesn't hit the database on every request, while
// still picking up an admin update within the TTL window.
type WeightsCache struct {
	repo  repository.Repository
	cache *expirable.LRU[string, repository.Weights]
}

// NewWeightsCache constructs a WeightsCache over repo.
func NewWeightsCache(repo repository.Repository) *WeightsCache {
	return &WeightsCache{
		repo:  repo,
		cache: expirable.NewLRU[string, repository.Weights](1, nil, weightsCacheTTL),
	}
}

// Get returns the active weights, served from cache within the TTL
// window and refreshed from the repository on miss.
func (c *WeightsCache) Get(ctx context.Context) (repository.Weights, error) {
	if w, ok := c.cache.Get(activeWeightsKey); ok {
		weightsCacheHitsTotal.Inc()
		return w, nil
	}
	weightsCacheMissesTotal.Inc()

	w, err := c.repo.ActiveWeights(ctx)
	if err != nil {
		return repository.Weights{}, err
	}
	c.cache.Add(activeWeightsKey, *w)
	return *w, nil
}

// Invalidate evicts the cached weights, forcing the next Get to read
// through to the repository. Call this after any admin write to the
// active weights row (spec §5: "invalidate on update").
func (c *WeightsCache) Invalidate() {
	c.cache.Remove(activeWeightsKey)
}
