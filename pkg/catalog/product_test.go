package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateRejectsEmptyTitle(t *testing.T) {
	p := &Product{ID: 1, Price: decimal.NewFromInt(10)}
	if err := p.Validate(); err == nil {
		t.Error("expected error for empty title")
	}
}

func TestValidateRejectsOriginalPriceBelowPrice(t *testing.T) {
	orig := decimal.NewFromFloat(9.99)
	p := &Product{ID: 1, Title: "Widget", Price: decimal.NewFromInt(10), OriginalPrice: &orig}
	if err := p.Validate(); err == nil {
		t.Error("expected error when original price < price")
	}
}

func TestValidateRejectsOutOfRangeRating(t *testing.T) {
	rating := 5.5
	p := &Product{ID: 1, Title: "Widget", Price: decimal.NewFromInt(10), Rating: &rating}
	if err := p.Validate(); err == nil {
		t.Error("expected error for rating > 5")
	}
}

func TestValidateAcceptsWellFormedProduct(t *testing.T) {
	rating := 4.5
	orig := decimal.NewFromFloat(39.99)
	p := &Product{
		ID:            1,
		Title:         "Widget",
		Price:         decimal.NewFromFloat(29.99),
		OriginalPrice: &orig,
		Rating:        &rating,
		Availability:  InStock,
		StockQty:      10,
	}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSearchableText(t *testing.T) {
	p := &Product{Title: "Sony Headphones", Description: "Noise cancelling", Category: "Audio"}
	want := "Sony Headphones Noise cancelling Audio"
	if got := p.SearchableText(); got != want {
		t.Errorf("SearchableText() = %q, want %q", got, want)
	}
}
