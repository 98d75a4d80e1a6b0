// Package repository is component C: the sole owner of persisted
// state (spec §4.3) — products, embeddings, sessions, interactions,
// ranking weights, search logs, explanations, evaluation metrics, and
// catalog upload jobs. All other components reach the database only
// through the Repository interface.
package repository

import "time"

// InteractionKind is the closed set of session events spec §3 defines.
type InteractionKind string

const (
	InteractionView         InteractionKind = "view"
	InteractionClick        InteractionKind = "click"
	InteractionSearchClick  InteractionKind = "search_click"
	InteractionAddToCart    InteractionKind = "add_to_cart"
	InteractionPurchase     InteractionKind = "purchase"
)

// Valid reports whether k is one of the closed set of interaction kinds.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionView, InteractionClick, InteractionSearchClick, InteractionAddToCart, InteractionPurchase:
		return true
	}
	return false
}

// CatalogUploadStatus is the monotonic state machine of spec §4.9.
type CatalogUploadStatus string

const (
	UploadPending    CatalogUploadStatus = "pending"
	UploadProcessing CatalogUploadStatus = "processing"
	UploadEmbedding  CatalogUploadStatus = "embedding"
	UploadCompleted  CatalogUploadStatus = "completed"
	UploadFailed     CatalogUploadStatus = "failed"
)

// Embedding is the durable, auditable record backing one product's
// vector. The Vector Index (component B) is a query structure rebuilt
// from these rows at startup; this table is the source of truth.
type Embedding struct {
	ProductID  int64
	Vector     []float64
	SourceText string // truncated to 1000 runes, spec §3
	ModelTag   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Session is an anonymous identity tying interactions together.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session has passed its expiry as of now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Interaction is one append-only session event.
type Interaction struct {
	ID          int64
	SessionID   string
	ProductID   int64
	Kind        InteractionKind
	Query       *string
	Position    *int
	SearchLogID *int64 // the search this interaction resulted from, if any
	CreatedAt   time.Time
}

// Weights is the named tuple of ranker coefficients (spec §3, §6).
type Weights struct {
	ID        int64
	Semantic  float64
	Rating    float64
	Price     float64
	Stock     float64
	Recency   float64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultWeights is materialized when no active row exists at read
// time (spec §3).
func DefaultWeights() Weights {
	return Weights{Semantic: 0.50, Rating: 0.20, Price: 0.15, Stock: 0.10, Recency: 0.05, Active: true}
}

// SearchLog is one executed query, persisted for audit and evaluation.
type SearchLog struct {
	ID             int64
	SessionID      string
	Query          string
	QueryVector    []float64
	ResultCount    int
	ResponseTimeMs int64
	FilterBag      string // JSON, spec §6
	Degraded       bool
	Fallback       string // "", "keyword"
	CreatedAt      time.Time
}

// SearchResultExplanation is one (search log, product) audit row.
type SearchResultExplanation struct {
	ID             int64
	SearchLogID    int64
	ProductID      int64
	Rank           int
	FinalScore     float64
	SemanticScore  float64
	RatingScore    float64
	PriceScore     float64
	StockScore     float64
	RecencyScore   float64
	MatchedTerms   []string
	Explanation    string
	WasClicked     bool
}

// EvaluationMetric is one computed IR metric, optionally tied back to
// a search log.
type EvaluationMetric struct {
	ID          int64
	SearchLogID *int64
	Kind        string // "ndcg@10", "recall@10", "precision@10", "mrr", "ap", "custom"
	Value       float64
	QueryCount  *int
	Note        string
	CreatedAt   time.Time
}

// CatalogUploadJob tracks a batch import for observability (spec §3, §4.9).
type CatalogUploadJob struct {
	ID           string
	Filename     string
	Status       CatalogUploadStatus
	Total        int
	Processed    int
	Embedded     int
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// ProductFilter narrows a candidate-set fetch by category, price range,
// and availability (spec §4.2, §4.9).
type ProductFilter struct {
	Category    string
	MinPrice    *float64
	MaxPrice    *float64
	InStockOnly bool
	Limit       int // 0 means the repository's default bound (5000, spec §4.9)
}
