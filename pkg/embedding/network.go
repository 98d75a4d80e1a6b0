package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Default timeouts from spec §4.1: 60s on a cold start, 2s once the
// model is warm.
const (
	ColdTimeout = 60 * time.Second
	WarmTimeout = 2 * time.Second
)

// NetworkProvider calls out to a separately deployed sentence-embedding
// service. A gobreaker.CircuitBreaker trips open after repeated
// timeouts so a degraded model doesn't pay the full timeout on every
// request; batch calls additionally retry with bounded backoff so a
// transient failure during catalog import doesn't abandon the whole
// batch (spec §5: "each product upsert within a batch is independently
// retried").
type NetworkProvider struct {
	url        string
	dim        int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	warm       bool
}

// NewNetworkProvider constructs a provider against the given service
// URL. Calls use ColdTimeout until the first successful call; after
// that they use WarmTimeout.
func NewNetworkProvider(url string, dim int, logger *zap.Logger) *NetworkProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "embedding-service",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &NetworkProvider{
		url:        url,
		dim:        dim,
		httpClient: &http.Client{},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float64 `json:"vectors"`
}

func (p *NetworkProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *NetworkProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	timeout := WarmTimeout
	if !p.warm {
		timeout = ColdTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.call(ctx, texts)
	})
	if err != nil {
		p.logger.Warn("embedding service call failed", zap.Error(err), zap.Int("texts", len(texts)))
		return nil, fmt.Errorf("embedding service unavailable: %w", err)
	}

	p.warm = true
	return result.([][]float64), nil
}

// EmbedBatchRetry retries the underlying EmbedBatch with bounded
// exponential backoff, for use by the catalog-upload batch embedding
// path (spec §4.9 "embedding" state).
func (p *NetworkProvider) EmbedBatchRetry(ctx context.Context, texts []string, maxAttempts uint) ([][]float64, error) {
	op := func() ([][]float64, error) {
		vectors, err := p.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		return vectors, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
}

func (p *NetworkProvider) call(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	for i, v := range decoded.Vectors {
		if len(v) != p.dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), p.dim)
		}
		decoded.Vectors[i] = l2Normalize(v)
	}

	return decoded.Vectors, nil
}
