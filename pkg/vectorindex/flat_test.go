package vectorindex

import (
	"context"
	"testing"
)

func TestFlatIndexUpsertAndLookup(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()

	if err := idx.Upsert(ctx, 1, []float64{1, 0, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, ok, err := idx.Lookup(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if len(v) != 3 || v[0] != 1 {
		t.Fatalf("lookup returned %v", v)
	}
}

func TestFlatIndexLookupMissing(t *testing.T) {
	idx := NewFlatIndex()
	_, ok, err := idx.Lookup(context.Background(), 99)
	if err != nil || ok {
		t.Fatalf("expected ok=false for missing id, got ok=%v err=%v", ok, err)
	}
}

func TestFlatIndexDelete(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	idx.Upsert(ctx, 1, []float64{1, 0, 0})
	if err := idx.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := idx.Lookup(ctx, 1); ok {
		t.Fatal("expected id to be gone after delete")
	}
}

func TestFlatIndexScanOrdersByCosineThenID(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	idx.Upsert(ctx, 2, []float64{1, 0, 0})
	idx.Upsert(ctx, 1, []float64{1, 0, 0})
	idx.Upsert(ctx, 3, []float64{0, 1, 0})

	matches, err := idx.Scan(ctx, []float64{1, 0, 0}, Filter{}, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("len(matches) = %d, want 3", len(matches))
	}
	// id 1 and id 2 tie on cosine=1, broken by ascending id.
	if matches[0].ProductID != 1 || matches[1].ProductID != 2 {
		t.Fatalf("tie-break order wrong: %+v", matches)
	}
	if matches[2].ProductID != 3 {
		t.Fatalf("expected orthogonal vector last: %+v", matches)
	}
}

func TestFlatIndexScanRespectsFilter(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	idx.Upsert(ctx, 1, []float64{1, 0, 0})
	idx.Upsert(ctx, 2, []float64{1, 0, 0})

	matches, err := idx.Scan(ctx, []float64{1, 0, 0}, Filter{AllowedIDs: map[int64]struct{}{2: {}}}, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(matches) != 1 || matches[0].ProductID != 2 {
		t.Fatalf("filter not applied: %+v", matches)
	}
}

func TestFlatIndexScanTruncatesToK(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		idx.Upsert(ctx, i, []float64{1, 0, 0})
	}
	matches, err := idx.Scan(ctx, []float64{1, 0, 0}, Filter{}, 2)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
}

func TestFlatIndexScanRejectsEmptyQuery(t *testing.T) {
	idx := NewFlatIndex()
	if _, err := idx.Scan(context.Background(), nil, Filter{}, 5); err == nil {
		t.Fatal("expected error for empty query vector")
	}
}

func TestFlatIndexLen(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	idx.Upsert(ctx, 1, []float64{1, 0, 0})
	idx.Upsert(ctx, 2, []float64{0, 1, 0})
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
}
