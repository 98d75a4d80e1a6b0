package repository

import (
	"context"
	"time"

	"github.com/productdiscovery/rankingengine/pkg/catalog"
)

// Repository is the transactional boundary of spec §4.3: every public
// write is a single logical transaction, and loss of connectivity
// surfaces as a typed Unavailable error rather than crashing the
// process.
type Repository interface {
	// UpsertProduct idempotently inserts or replaces a product by id.
	UpsertProduct(ctx context.Context, p *catalog.Product) error
	// GetProduct returns a product by id, or a NotFound error.
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	// ListProducts returns products satisfying filter, most-recent-first,
	// bounded by filter.Limit (or a repository default).
	ListProducts(ctx context.Context, filter ProductFilter) ([]*catalog.Product, error)
	// DeleteProduct removes a product by id.
	DeleteProduct(ctx context.Context, id int64) error

	// UpsertEmbedding idempotently replaces the embedding row for a product id.
	UpsertEmbedding(ctx context.Context, e *Embedding) error
	// GetEmbedding returns the embedding for a product id, ok=false if none.
	GetEmbedding(ctx context.Context, productID int64) (*Embedding, bool, error)
	// ListEmbeddings returns all embedding rows, used to rebuild the
	// Vector Index at startup.
	ListEmbeddings(ctx context.Context) ([]*Embedding, error)
	// DeleteEmbedding removes the embedding row for a product id, if any.
	DeleteEmbedding(ctx context.Context, productID int64) error

	// UpsertSession creates a session on first interaction (30-day
	// expiry from now) or returns the existing row unchanged.
	UpsertSession(ctx context.Context, sessionID string, now time.Time) (*Session, error)
	// GetSession returns a session by id, or a NotFound error.
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// TouchSession updates last-active-at to now.
	TouchSession(ctx context.Context, sessionID string) error

	// RecordInteraction appends an interaction event and touches the session.
	RecordInteraction(ctx context.Context, in *Interaction) error
	// RecentInteractions returns up to limit interactions for a session,
	// most-recent-first, ties broken by insertion order (spec §4.7).
	RecentInteractions(ctx context.Context, sessionID string, limit int) ([]*Interaction, error)

	// ActiveWeights returns the single active weight row, materializing
	// and activating the default if none exists (upsert-and-return,
	// spec §9 — never recursive).
	ActiveWeights(ctx context.Context) (*Weights, error)
	// UpdateWeights deactivates the current active row (if any) and
	// inserts w as the new active row, returning it.
	UpdateWeights(ctx context.Context, w Weights) (*Weights, error)

	// CreateSearchLog persists a search log row and returns its assigned id.
	CreateSearchLog(ctx context.Context, log *SearchLog) (int64, error)
	// CreateExplanations persists the per-result explanation rows for a
	// search log, transactionally with respect to the log row.
	CreateExplanations(ctx context.Context, explanations []*SearchResultExplanation) error
	// ListSearchLogs returns the most recent search logs, bounded by limit.
	ListSearchLogs(ctx context.Context, limit int) ([]*SearchLog, error)
	// MarkResultClicked flags a (search log, product) explanation as clicked.
	MarkResultClicked(ctx context.Context, searchLogID, productID int64) error

	// RecordMetric persists one computed evaluation metric.
	RecordMetric(ctx context.Context, m *EvaluationMetric) error
	// ListMetrics returns metrics of the given kind, most-recent-first.
	ListMetrics(ctx context.Context, kind string, limit int) ([]*EvaluationMetric, error)

	// StartCatalogUploadJob creates a job row in state pending.
	StartCatalogUploadJob(ctx context.Context, id, filename string) (*CatalogUploadJob, error)
	// UpdateCatalogUploadJob persists the job's current state. Transitions
	// are the caller's responsibility to keep monotonic (spec §4.9).
	UpdateCatalogUploadJob(ctx context.Context, job *CatalogUploadJob) error
	// GetCatalogUploadJob returns a job by id, or a NotFound error.
	GetCatalogUploadJob(ctx context.Context, id string) (*CatalogUploadJob, error)

	// Close releases the repository's underlying resources.
	Close() error
}
