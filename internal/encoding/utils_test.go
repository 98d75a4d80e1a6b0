package encoding

import "testing"

func TestVectorRoundTrip(t *testing.T) {
	v := []float64{0.1, -0.2, 0.3}
	data, err := EncodeVector(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeVector(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(v) {
		t.Fatalf("round trip length mismatch: got %d want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: got %v want %v", i, got[i], v[i])
		}
	}
}

func TestEncodeVectorNil(t *testing.T) {
	if _, err := EncodeVector(nil); err == nil {
		t.Error("expected error encoding nil vector")
	}
}

func TestMatchedTermsRoundTrip(t *testing.T) {
	terms := []string{"wireless", "bluetooth", "headphones"}
	s, err := EncodeMatchedTerms(terms)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeMatchedTerms(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 || got[0] != "wireless" {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestValidateVectorRejectsNonFinite(t *testing.T) {
	zero := 0.0
	nan := zero / zero
	if err := ValidateVector([]float64{nan}); err == nil {
		t.Error("expected error for NaN vector")
	}
}

func TestValidateVectorRejectsEmpty(t *testing.T) {
	if err := ValidateVector(nil); err == nil {
		t.Error("expected error for empty vector")
	}
}

func TestTruncateForAuditShortTextUnchanged(t *testing.T) {
	if got := TruncateForAudit("short text"); got != "short text" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestTruncateForAuditTruncatesLongText(t *testing.T) {
	runes := make([]rune, 1500)
	for i := range runes {
		runes[i] = 'a'
	}
	got := TruncateForAudit(string(runes))
	if len([]rune(got)) != 1000 {
		t.Errorf("len = %d, want 1000", len([]rune(got)))
	}
}
