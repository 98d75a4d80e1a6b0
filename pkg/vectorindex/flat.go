package vectorindex

import (
	"context"
	"sync"

	"github.com/productdiscovery/rankingengine"
)

// FlatIndex is the mandatory linear cosine scan of spec §4.2, grounded
// on the teacher's SQLiteStore.Search: an in-memory map guarded by a
// RWMutex, upserts serialize per product id, scans are read-only and
// safe to run concurrently (spec §5 "Vector Index is read-mostly;
// concurrent scans are safe").
type FlatIndex struct {
	mu      sync.RWMutex
	vectors map[int64][]float64
}

// NewFlatIndex constructs an empty FlatIndex.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{vectors: make(map[int64][]float64)}
}

var _ Index = (*FlatIndex)(nil)

func (idx *FlatIndex) Upsert(_ context.Context, productID int64, vector []float64) error {
	if err := validateVector(vector); err != nil {
		return err
	}
	cp := make([]float64, len(vector))
	copy(cp, vector)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[productID] = cp
	return nil
}

func (idx *FlatIndex) Lookup(_ context.Context, productID int64) ([]float64, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.vectors[productID]
	if !ok {
		return nil, false, nil
	}
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (idx *FlatIndex) Delete(_ context.Context, productID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, productID)
	return nil
}

func (idx *FlatIndex) Scan(_ context.Context, queryVector []float64, filter Filter, k int) ([]Match, error) {
	if len(queryVector) == 0 {
		return nil, rankingengine.Wrap(rankingengine.KindInvalidInput, "vectorindex.scan", errNonEmpty{})
	}

	idx.mu.RLock()
	matches := make([]Match, 0, len(idx.vectors))
	for id, v := range idx.vectors {
		if !filter.Allows(id) {
			continue
		}
		matches = append(matches, Match{ProductID: id, Cosine: rankingengine.Cosine(queryVector, v)})
	}
	idx.mu.RUnlock()

	sortMatches(matches)
	return truncate(matches, k), nil
}

func (idx *FlatIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}
