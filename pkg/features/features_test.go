package features

import (
	"testing"
	"time"

	"github.com/productdiscovery/rankingengine/pkg/catalog"
)

func TestRatingNullIsNeutral(t *testing.T) {
	if got := Rating(nil); got != 0.5 {
		t.Errorf("Rating(nil) = %v, want 0.5", got)
	}
}

func TestRatingNormalizes(t *testing.T) {
	r := 4.8
	if got := Rating(&r); got != 0.96 {
		t.Errorf("Rating(4.8) = %v, want 0.96", got)
	}
}

func TestPriceSingleCandidateIsNeutral(t *testing.T) {
	p := 99.99
	r := NewPriceRange([]*float64{&p})
	if got := Price(&p, r); got != 0.5 {
		t.Errorf("single-candidate price = %v, want 0.5 (spec §8 boundary)", got)
	}
}

func TestPriceUnknownIsNeutral(t *testing.T) {
	a, b := 10.0, 20.0
	r := NewPriceRange([]*float64{&a, &b})
	if got := Price(nil, r); got != 0.5 {
		t.Errorf("Price(nil) = %v, want 0.5", got)
	}
}

func TestPriceCheaperScoresHigher(t *testing.T) {
	cheap, expensive := 10.0, 90.0
	r := NewPriceRange([]*float64{&cheap, &expensive})
	cheapScore := Price(&cheap, r)
	expensiveScore := Price(&expensive, r)
	if cheapScore != 1 {
		t.Errorf("cheapest price score = %v, want 1", cheapScore)
	}
	if expensiveScore != 0 {
		t.Errorf("most expensive price score = %v, want 0", expensiveScore)
	}
}

func TestStockAvailability(t *testing.T) {
	cases := []struct {
		avail catalog.Availability
		qty   int
		want  float64
	}{
		{catalog.OutOfStock, 0, 0},
		{catalog.LowStock, 3, 0.5},
		{catalog.InStock, 0, 0.7},
		{catalog.InStock, 500, 1.0},
		{catalog.InStock, 1000, 1.0},
	}
	for _, c := range cases {
		if got := Stock(c.avail, c.qty); got != c.want {
			t.Errorf("Stock(%s, %d) = %v, want %v", c.avail, c.qty, got, c.want)
		}
	}
}

func TestRecencyPiecewiseBounds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := Recency(now.AddDate(0, 0, -10), now); got != 1 {
		t.Errorf("10 days old = %v, want 1", got)
	}
	if got := Recency(now.AddDate(0, 0, -400), now); got != 0.1 {
		t.Errorf("400 days old = %v, want 0.1", got)
	}
	// Midpoint: 30 + 335/2 = 197.5 days -> 1 - 0.9*0.5 = 0.55
	mid := Recency(now.AddDate(0, 0, -198), now)
	if mid < 0.54 || mid > 0.56 {
		t.Errorf("~198 days old = %v, want ~0.55", mid)
	}
}

func TestRecencyStaysWithinBounds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for days := 0; days <= 500; days += 7 {
		got := Recency(now.AddDate(0, 0, -days), now)
		if got < 0.1 || got > 1 {
			t.Fatalf("Recency at %d days = %v, out of [0.1,1]", days, got)
		}
	}
}
