// Package config loads the environment variables spec §6 names
// (EMBEDDING_SERVICE_URL, DATABASE_URL, DEFAULT_WEIGHTS) into a single
// bootstrap Config, following the kubilitics-backend pattern of one
// struct populated once at process start via viper.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration surface.
type Config struct {
	EmbeddingServiceURL string
	DatabaseURL         string
	// DefaultWeights, if set, overrides the compiled-in default
	// RankingWeights (0.50, 0.20, 0.15, 0.10, 0.05) materialized when
	// no active weights row exists.
	DefaultWeights *Weights
}

// Weights mirrors the five ranker coefficients (spec §3 RankingWeights)
// for the purpose of env-var overrides only; the authoritative type
// lives in package repository.
type Weights struct {
	Semantic float64
	Rating   float64
	Price    float64
	Stock    float64
	Recency  float64
}

// Load reads configuration from the environment. DATABASE_URL is
// required for non-degraded operation but its absence is not itself a
// load error — callers decide whether to run in degraded mode (spec
// §6 exit code 1 is for genuinely malformed configuration, such as an
// unparsable DEFAULT_WEIGHTS).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("EMBEDDING_SERVICE_URL", "http://localhost:8081/embed")

	cfg := &Config{
		EmbeddingServiceURL: v.GetString("EMBEDDING_SERVICE_URL"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
	}

	if raw := v.GetString("DEFAULT_WEIGHTS"); raw != "" {
		w, err := parseWeights(raw)
		if err != nil {
			return nil, fmt.Errorf("config: DEFAULT_WEIGHTS: %w", err)
		}
		cfg.DefaultWeights = w
	}

	return cfg, nil
}

// parseWeights parses a comma-separated "alpha,beta,gamma,delta,epsilon"
// string into a Weights value.
func parseWeights(raw string) (*Weights, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 5 {
		return nil, fmt.Errorf("expected 5 comma-separated weights, got %d", len(parts))
	}

	vals := make([]float64, 5)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %d: %w", i, err)
		}
		if f < 0 {
			return nil, fmt.Errorf("weight %d: must be non-negative, got %v", i, f)
		}
		vals[i] = f
	}

	return &Weights{
		Semantic: vals[0],
		Rating:   vals[1],
		Price:    vals[2],
		Stock:    vals[3],
		Recency:  vals[4],
	}, nil
}
