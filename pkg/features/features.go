// Package features implements component D: the deterministic
// rating/price/stock/recency sub-score normalizers of spec §4.4. Every
// policy is pure and clamped to [0,1] so a logged query can be
// replayed from the persisted product row alone.
package features

import (
	"time"

	"github.com/productdiscovery/rankingengine/pkg/catalog"
)

// Rating returns rating/5 if present, else the neutral 0.5.
func Rating(rating *float64) float64 {
	if rating == nil {
		return 0.5
	}
	return clamp01(*rating / 5)
}

// PriceRange is the query-local min/max over the candidate set's
// prices, computed once per query and reused for every candidate
// (spec §4.4: "relative to the query's shortlist").
type PriceRange struct {
	Min, Max float64
	// HasAny is false when every candidate's price was unknown.
	HasAny bool
}

// NewPriceRange computes the min/max over prices, treating unknown
// prices (nil) as 0 for the purposes of the range, per spec §4.4.
func NewPriceRange(prices []*float64) PriceRange {
	var r PriceRange
	for _, p := range prices {
		v := 0.0
		if p != nil {
			v = *p
		}
		if !r.HasAny {
			r.Min, r.Max = v, v
			r.HasAny = true
			continue
		}
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	return r
}

// Price returns the inverted min-max normalized price: cheaper is
// higher-scoring. Unknown price, or a degenerate (min==max) range,
// yields the neutral 0.5.
func Price(price *float64, r PriceRange) float64 {
	if price == nil {
		return 0.5
	}
	if !r.HasAny || r.Max == r.Min {
		return 0.5
	}
	return clamp01(1 - (*price-r.Min)/(r.Max-r.Min))
}

// Stock maps availability and quantity to a sub-score (spec §4.4).
func Stock(availability catalog.Availability, qty int) float64 {
	switch availability {
	case catalog.OutOfStock:
		return 0
	case catalog.LowStock:
		return 0.5
	case catalog.InStock:
		return clamp01(min(1, 0.7+0.3*float64(qty)/500))
	default:
		return 0.5
	}
}

// recencyFullCreditDays and recencyFloorDays bound the piecewise
// linear decay of spec §4.4.
const (
	recencyFullCreditDays = 30.0
	recencyFloorDays      = 365.0
	recencyFloor          = 0.1
)

// Recency scores a product's age, linear between full credit at 30
// days and the floor at 365 days (spec §4.4).
func Recency(createdAt, now time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	switch {
	case days <= recencyFullCreditDays:
		return 1
	case days >= recencyFloorDays:
		return recencyFloor
	default:
		return clamp01(1 - 0.9*(days-recencyFullCreditDays)/(recencyFloorDays-recencyFullCreditDays))
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
