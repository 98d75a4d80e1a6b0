package config

import "testing"

func TestParseWeightsValid(t *testing.T) {
	w, err := parseWeights("0.5, 0.2,0.15,0.10,0.05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Semantic != 0.5 || w.Rating != 0.2 || w.Price != 0.15 || w.Stock != 0.10 || w.Recency != 0.05 {
		t.Errorf("parsed weights mismatch: %+v", w)
	}
}

func TestParseWeightsWrongCount(t *testing.T) {
	if _, err := parseWeights("0.5,0.2"); err == nil {
		t.Error("expected error for wrong weight count")
	}
}

func TestParseWeightsNegativeRejected(t *testing.T) {
	if _, err := parseWeights("-0.1,0.2,0.15,0.1,0.05"); err == nil {
		t.Error("expected error for negative weight")
	}
}
