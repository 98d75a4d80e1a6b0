// Package vectorindex implements component B: storing and querying
// product embeddings. A linear cosine scan (FlatIndex) is mandatory at
// target scale (spec §4.2); HNSWIndex is an optional drop-in ANN
// backend that must preserve cosine ordering within a small epsilon.
package vectorindex

import (
	"context"
	"sort"

	"github.com/productdiscovery/rankingengine"
)

// Filter restricts a Scan to a subset of product ids that the caller
// computes (for example from category, price-range, and availability
// predicates, spec §4.2). A nil AllowedIDs means no restriction.
type Filter struct {
	AllowedIDs map[int64]struct{}
}

// Allows reports whether id satisfies the filter.
func (f Filter) Allows(id int64) bool {
	if f.AllowedIDs == nil {
		return true
	}
	_, ok := f.AllowedIDs[id]
	return ok
}

// Match is one scored hit from a Scan.
type Match struct {
	ProductID int64
	Cosine    float64
}

// Index stores and queries product embeddings by cosine similarity.
type Index interface {
	// Upsert idempotently replaces the vector stored for productID.
	Upsert(ctx context.Context, productID int64, vector []float64) error
	// Lookup returns the stored vector for productID, or ok=false if none.
	Lookup(ctx context.Context, productID int64) (vector []float64, ok bool, err error)
	// Delete removes the vector stored for productID, if any.
	Delete(ctx context.Context, productID int64) error
	// Scan returns up to k products with the highest cosine similarity
	// to queryVector among those satisfying filter, ties broken by
	// product id ascending.
	Scan(ctx context.Context, queryVector []float64, filter Filter, k int) ([]Match, error)
	// Len reports the number of stored vectors.
	Len() int
}

// sortMatches orders matches by cosine descending, id ascending on ties.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Cosine != matches[j].Cosine {
			return matches[i].Cosine > matches[j].Cosine
		}
		return matches[i].ProductID < matches[j].ProductID
	})
}

func truncate(matches []Match, k int) []Match {
	if k < 0 {
		k = 0
	}
	if len(matches) > k {
		return matches[:k]
	}
	return matches
}

var errEmptyVector = rankingengine.Wrap(rankingengine.KindInvalidInput, "vectorindex", errNonEmpty{})

type errNonEmpty struct{}

func (errNonEmpty) Error() string { return "vector must be non-empty" }

func validateVector(v []float64) error {
	if len(v) == 0 {
		return errEmptyVector
	}
	return nil
}
