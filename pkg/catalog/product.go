// Package catalog defines the Product data model of spec §3 and its
// validation invariants.
package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Availability is the closed set of inventory states a product may be in.
type Availability string

const (
	InStock    Availability = "in_stock"
	LowStock   Availability = "low_stock"
	OutOfStock Availability = "out_of_stock"
)

func (a Availability) Valid() bool {
	switch a {
	case InStock, LowStock, OutOfStock:
		return true
	default:
		return false
	}
}

// Product is the catalog entity spec §3 describes.
type Product struct {
	ID    int64
	SKU   string
	Title string

	Description string
	Category    string
	Subcategory string
	Brand       string
	Features    []string

	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	Currency      string

	Rating      *float64
	ReviewCount int

	Availability Availability
	StockQty     int

	ImageRef string
	Featured bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate enforces spec §3's invariants: title non-empty, original
// price ≥ price when both present, rating ∈ [0,5].
func (p *Product) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("product %d: title must be non-empty", p.ID)
	}
	if p.OriginalPrice != nil && p.OriginalPrice.LessThan(p.Price) {
		return fmt.Errorf("product %d: original price %s is less than price %s", p.ID, p.OriginalPrice, p.Price)
	}
	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		return fmt.Errorf("product %d: rating %v out of [0,5]", p.ID, *p.Rating)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %d: price must be non-negative", p.ID)
	}
	if p.Availability != "" && !p.Availability.Valid() {
		return fmt.Errorf("product %d: unknown availability %q", p.ID, p.Availability)
	}
	if p.StockQty < 0 {
		return fmt.Errorf("product %d: stock quantity must be non-negative", p.ID)
	}
	return nil
}

// SearchableText is the text used for deterministic-embedding fallback
// and keyword matching: title, description, and category concatenated.
func (p *Product) SearchableText() string {
	return p.Title + " " + p.Description + " " + p.Category
}
