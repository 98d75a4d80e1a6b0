package vectorindex

import (
	"context"
	"sync"

	"github.com/coder/hnsw"
	"github.com/productdiscovery/rankingengine"
)

// HNSWIndex is the optional ANN backend spec §4.2 admits as a drop-in
// for the mandatory flat scan, once the catalog's scale makes a linear
// scan too slow. It must preserve cosine ordering within a small
// epsilon; at target scale (10^3-10^5 items) this holds because
// coder/hnsw's graph search converges on the true nearest neighbors
// for reasonable ef values.
//
// A side vectors map is kept as the source of truth for Lookup/Delete
// (coder/hnsw exposes Add/Search/Len but, per the amanmcp store this
// is grounded on, deleting the last node from the graph is unreliable)
// — Delete marks the id lazily orphaned instead of mutating the graph,
// the same workaround amanmcp's HNSWStore documents.
type HNSWIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int64]
	vectors map[int64][]float64
	deleted map[int64]struct{}
}

// NewHNSWIndex constructs an empty HNSWIndex using cosine distance.
func NewHNSWIndex() *HNSWIndex {
	graph := hnsw.NewGraph[int64]()
	graph.Distance = hnsw.CosineDistance
	return &HNSWIndex{
		graph:   graph,
		vectors: make(map[int64][]float64),
		deleted: make(map[int64]struct{}),
	}
}

var _ Index = (*HNSWIndex)(nil)

func (idx *HNSWIndex) Upsert(_ context.Context, productID int64, vector []float64) error {
	if err := validateVector(vector); err != nil {
		return err
	}
	cp := make([]float64, len(vector))
	copy(cp, vector)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.graph.Add(hnsw.MakeNode(productID, toFloat32(vector)))
	idx.vectors[productID] = cp
	delete(idx.deleted, productID)
	return nil
}

func (idx *HNSWIndex) Lookup(_ context.Context, productID int64) ([]float64, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if _, gone := idx.deleted[productID]; gone {
		return nil, false, nil
	}
	v, ok := idx.vectors[productID]
	if !ok {
		return nil, false, nil
	}
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp, true, nil
}

// Delete lazily orphans productID: it stops appearing in Lookup/Scan
// results but its graph node is left in place, matching the workaround
// this is grounded on.
func (idx *HNSWIndex) Delete(_ context.Context, productID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, productID)
	idx.deleted[productID] = struct{}{}
	return nil
}

func (idx *HNSWIndex) Scan(_ context.Context, queryVector []float64, filter Filter, k int) ([]Match, error) {
	if len(queryVector) == 0 {
		return nil, rankingengine.Wrap(rankingengine.KindInvalidInput, "vectorindex.scan", errNonEmpty{})
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph.Len() == 0 {
		return []Match{}, nil
	}

	// Over-fetch so filtering out disallowed/orphaned ids still leaves
	// k candidates when possible.
	fetch := idx.graph.Len()
	if filter.AllowedIDs == nil && fetch > k*4 && k > 0 {
		fetch = k * 4
	}

	query := toFloat32(queryVector)
	nodes := idx.graph.Search(query, fetch)

	matches := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		if _, gone := idx.deleted[n.Key]; gone {
			continue
		}
		if !filter.Allows(n.Key) {
			continue
		}
		v, ok := idx.vectors[n.Key]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			ProductID: n.Key,
			Cosine:    rankingengine.Cosine(queryVector, v),
		})
	}

	sortMatches(matches)
	return truncate(matches, k), nil
}

func (idx *HNSWIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
