// Package encoding implements the wire formats this repository commits
// to externally (spec §6): an embedding vector is a JSON array of D
// floats, unit-normalized; a matched-term list is a JSON array of
// lowercased non-empty strings.
package encoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned when vector data is malformed or
// contains a non-finite value.
var ErrInvalidVector = errors.New("invalid vector")

// EncodeVector marshals a vector to its committed JSON array form.
func EncodeVector(vector []float64) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}
	data, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vector: %w", err)
	}
	return data, nil
}

// DecodeVector parses the committed JSON array form back into a vector.
func DecodeVector(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, ErrInvalidVector
	}
	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return vector, nil
}

// EncodeMatchedTerms marshals a matched-term list to its committed JSON
// array form.
func EncodeMatchedTerms(terms []string) (string, error) {
	if terms == nil {
		terms = []string{}
	}
	data, err := json.Marshal(terms)
	if err != nil {
		return "", fmt.Errorf("failed to encode matched terms: %w", err)
	}
	return string(data), nil
}

// DecodeMatchedTerms parses the committed JSON array form back into a
// matched-term list.
func DecodeMatchedTerms(jsonStr string) ([]string, error) {
	if jsonStr == "" {
		return nil, nil
	}
	var terms []string
	if err := json.Unmarshal([]byte(jsonStr), &terms); err != nil {
		return nil, fmt.Errorf("failed to decode matched terms: %w", err)
	}
	return terms, nil
}

// EncodeFilterBag marshals an arbitrary filter map for SearchLog
// audit storage.
func EncodeFilterBag(filters map[string]any) (string, error) {
	if filters == nil {
		filters = map[string]any{}
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter bag: %w", err)
	}
	return string(data), nil
}

// maxAuditRunes is the audit-text truncation length of spec §3.
const maxAuditRunes = 1000

// TruncateForAudit truncates source text to the length an Embedding row
// retains for audit (spec §3).
func TruncateForAudit(text string) string {
	runes := []rune(text)
	if len(runes) <= maxAuditRunes {
		return text
	}
	return string(runes[:maxAuditRunes])
}

// ValidateVector rejects nil, empty, NaN, or infinite vectors.
func ValidateVector(vector []float64) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}
	for _, val := range vector {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ErrInvalidVector
		}
	}
	return nil
}
