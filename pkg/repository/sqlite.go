package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // SQLite driver, CGO-free
	"go.uber.org/zap"

	"github.com/productdiscovery/rankingengine"
	"github.com/productdiscovery/rankingengine/internal/encoding"
	"github.com/productdiscovery/rankingengine/pkg/catalog"
)

const timeLayout = time.RFC3339Nano

// defaultCandidateLimit bounds an unfiltered ListProducts call to the
// "5000 most-recent products" candidate set of spec §4.9.
const defaultCandidateLimit = 5000

// SQLiteRepository implements Repository on SQLite via modernc.org/sqlite
// (no CGO) with jmoiron/sqlx for struct scanning, mirroring the
// teacher's own driver choice and connection-pool tuning.
type SQLiteRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open creates (or reopens) a SQLite-backed repository at dsn, creating
// tables if absent. dsn may be a file path or ":memory:" for tests.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Open("sqlite", dsn+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, rankingengine.Wrap(rankingengine.KindUnavailable, "repository.open", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, rankingengine.Wrap(rankingengine.KindUnavailable, "repository.open", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, rankingengine.Wrap(rankingengine.KindInternal, "repository.migrate", err)
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// wrapDBErr classifies a raw database/sql error into the typed kinds
// spec §7 requires: connectivity loss is Unavailable, a missing row is
// NotFound, a unique-constraint violation is Conflict, anything else
// is Internal.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return rankingengine.Wrap(rankingengine.KindNotFound, op, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return rankingengine.Wrap(rankingengine.KindConflict, op, err)
	}
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "connection") || strings.Contains(msg, "closed") {
		return rankingengine.Wrap(rankingengine.KindUnavailable, op, err)
	}
	return rankingengine.Wrap(rankingengine.KindInternal, op, err)
}

// ---- products ----

type productRow struct {
	ID            int64           `db:"id"`
	SKU           sql.NullString  `db:"sku"`
	Title         string          `db:"title"`
	Description   sql.NullString  `db:"description"`
	Category      sql.NullString  `db:"category"`
	Subcategory   sql.NullString  `db:"subcategory"`
	Brand         sql.NullString  `db:"brand"`
	Features      string          `db:"features"`
	Price         string          `db:"price"`
	OriginalPrice sql.NullString  `db:"original_price"`
	Currency      sql.NullString  `db:"currency"`
	Rating        sql.NullFloat64 `db:"rating"`
	ReviewCount   int             `db:"review_count"`
	Availability  string          `db:"availability"`
	StockQty      int             `db:"stock_qty"`
	ImageRef      sql.NullString  `db:"image_ref"`
	Featured      bool            `db:"featured"`
	CreatedAt     string          `db:"created_at"`
	UpdatedAt     string          `db:"updated_at"`
}

func productToRow(p *catalog.Product) (*productRow, error) {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return nil, err
	}
	row := &productRow{
		ID:           p.ID,
		SKU:          sql.NullString{String: p.SKU, Valid: p.SKU != ""},
		Title:        p.Title,
		Description:  sql.NullString{String: p.Description, Valid: p.Description != ""},
		Category:     sql.NullString{String: p.Category, Valid: p.Category != ""},
		Subcategory:  sql.NullString{String: p.Subcategory, Valid: p.Subcategory != ""},
		Brand:        sql.NullString{String: p.Brand, Valid: p.Brand != ""},
		Features:     string(features),
		Price:        p.Price.String(),
		Currency:     sql.NullString{String: p.Currency, Valid: p.Currency != ""},
		ReviewCount:  p.ReviewCount,
		Availability: string(p.Availability),
		StockQty:     p.StockQty,
		ImageRef:     sql.NullString{String: p.ImageRef, Valid: p.ImageRef != ""},
		Featured:     p.Featured,
		CreatedAt:    p.CreatedAt.Format(timeLayout),
		UpdatedAt:    p.UpdatedAt.Format(timeLayout),
	}
	if p.OriginalPrice != nil {
		row.OriginalPrice = sql.NullString{String: p.OriginalPrice.String(), Valid: true}
	}
	if p.Rating != nil {
		row.Rating = sql.NullFloat64{Float64: *p.Rating, Valid: true}
	}
	return row, nil
}

func rowToProduct(row *productRow) (*catalog.Product, error) {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	var features []string
	if row.Features != "" {
		if err := json.Unmarshal([]byte(row.Features), &features); err != nil {
			return nil, fmt.Errorf("parse features: %w", err)
		}
	}
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	p := &catalog.Product{
		ID:           row.ID,
		SKU:          row.SKU.String,
		Title:        row.Title,
		Description:  row.Description.String,
		Category:     row.Category.String,
		Subcategory:  row.Subcategory.String,
		Brand:        row.Brand.String,
		Features:     features,
		Price:        price,
		Currency:     row.Currency.String,
		ReviewCount:  row.ReviewCount,
		Availability: catalog.Availability(row.Availability),
		StockQty:     row.StockQty,
		ImageRef:     row.ImageRef.String,
		Featured:     row.Featured,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
	if row.OriginalPrice.Valid {
		op, err := decimal.NewFromString(row.OriginalPrice.String)
		if err != nil {
			return nil, fmt.Errorf("parse original_price: %w", err)
		}
		p.OriginalPrice = &op
	}
	if row.Rating.Valid {
		rating := row.Rating.Float64
		p.Rating = &rating
	}
	return p, nil
}

func (r *SQLiteRepository) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return rankingengine.Wrap(rankingengine.KindInvalidInput, "repository.upsertProduct", err)
	}
	row, err := productToRow(p)
	if err != nil {
		return rankingengine.Wrap(rankingengine.KindInvalidInput, "repository.upsertProduct", err)
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO products (id, sku, title, description, category, subcategory, brand, features,
			price, original_price, currency, rating, review_count, availability, stock_qty,
			image_ref, featured, created_at, updated_at)
		VALUES (:id, :sku, :title, :description, :category, :subcategory, :brand, :features,
			:price, :original_price, :currency, :rating, :review_count, :availability, :stock_qty,
			:image_ref, :featured, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			sku=excluded.sku, title=excluded.title, description=excluded.description,
			category=excluded.category, subcategory=excluded.subcategory, brand=excluded.brand,
			features=excluded.features, price=excluded.price, original_price=excluded.original_price,
			currency=excluded.currency, rating=excluded.rating, review_count=excluded.review_count,
			availability=excluded.availability, stock_qty=excluded.stock_qty, image_ref=excluded.image_ref,
			featured=excluded.featured, updated_at=excluded.updated_at
	`, row)
	return wrapDBErr("repository.upsertProduct", err)
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, wrapDBErr("repository.getProduct", err)
	}
	return rowToProduct(&row)
}

func (r *SQLiteRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]*catalog.Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	query := `SELECT * FROM products WHERE 1=1`
	args := []interface{}{}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.MinPrice != nil {
		query += ` AND CAST(price AS REAL) >= ?`
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query += ` AND CAST(price AS REAL) <= ?`
		args = append(args, *filter.MaxPrice)
	}
	if filter.InStockOnly {
		query += ` AND availability = ?`
		args = append(args, string(catalog.InStock))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapDBErr("repository.listProducts", err)
	}
	products := make([]*catalog.Product, 0, len(rows))
	for i := range rows {
		p, err := rowToProduct(&rows[i])
		if err != nil {
			r.logger.Warn("skipping malformed product row", zap.Int64("id", rows[i].ID), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return wrapDBErr("repository.deleteProduct", err)
}

// ---- embeddings ----

type embeddingRow struct {
	ProductID  int64  `db:"product_id"`
	Vector     string `db:"vector"`
	SourceText string `db:"source_text"`
	ModelTag   string `db:"model_tag"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func (r *SQLiteRepository) UpsertEmbedding(ctx context.Context, e *Embedding) error {
	if err := encoding.ValidateVector(e.Vector); err != nil {
		return rankingengine.Wrap(rankingengine.KindInvalidInput, "repository.upsertEmbedding", err)
	}
	vec, err := encoding.EncodeVector(e.Vector)
	if err != nil {
		return rankingengine.Wrap(rankingengine.KindInvalidInput, "repository.upsertEmbedding", err)
	}
	now := e.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO embeddings (product_id, vector, source_text, model_tag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			vector=excluded.vector, source_text=excluded.source_text, model_tag=excluded.model_tag,
			updated_at=excluded.updated_at
	`, e.ProductID, string(vec), encoding.TruncateForAudit(e.SourceText), e.ModelTag,
		createdAt.Format(timeLayout), now.Format(timeLayout))
	return wrapDBErr("repository.upsertEmbedding", err)
}

func (r *SQLiteRepository) GetEmbedding(ctx context.Context, productID int64) (*Embedding, bool, error) {
	var row embeddingRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM embeddings WHERE product_id = ?`, productID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapDBErr("repository.getEmbedding", err)
	}
	e, err := embeddingFromRow(&row)
	if err != nil {
		return nil, false, rankingengine.Wrap(rankingengine.KindInternal, "repository.getEmbedding", err)
	}
	return e, true, nil
}

func (r *SQLiteRepository) ListEmbeddings(ctx context.Context) ([]*Embedding, error) {
	var rows []embeddingRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM embeddings`); err != nil {
		return nil, wrapDBErr("repository.listEmbeddings", err)
	}
	out := make([]*Embedding, 0, len(rows))
	for i := range rows {
		e, err := embeddingFromRow(&rows[i])
		if err != nil {
			r.logger.Warn("skipping malformed embedding row", zap.Int64("product_id", rows[i].ProductID), zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func embeddingFromRow(row *embeddingRow) (*Embedding, error) {
	vec, err := encoding.DecodeVector([]byte(row.Vector))
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &Embedding{
		ProductID:  row.ProductID,
		Vector:     vec,
		SourceText: row.SourceText,
		ModelTag:   row.ModelTag,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func (r *SQLiteRepository) DeleteEmbedding(ctx context.Context, productID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM embeddings WHERE product_id = ?`, productID)
	return wrapDBErr("repository.deleteEmbedding", err)
}

// ---- sessions ----

type sessionRow struct {
	ID           string `db:"id"`
	CreatedAt    string `db:"created_at"`
	LastActiveAt string `db:"last_active_at"`
	ExpiresAt    string `db:"expires_at"`
}

func sessionFromRow(row *sessionRow) (*Session, error) {
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, err
	}
	lastActive, err := time.Parse(timeLayout, row.LastActiveAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := time.Parse(timeLayout, row.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &Session{ID: row.ID, CreatedAt: createdAt, LastActiveAt: lastActive, ExpiresAt: expiresAt}, nil
}

// SessionTTL is the default 30-day expiry window of spec §3.
const SessionTTL = 30 * 24 * time.Hour

func (r *SQLiteRepository) UpsertSession(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	var existing sessionRow
	err := r.db.GetContext(ctx, &existing, `SELECT * FROM sessions WHERE id = ?`, sessionID)
	if err == nil {
		return sessionFromRow(&existing)
	}
	if err != sql.ErrNoRows {
		return nil, wrapDBErr("repository.upsertSession", err)
	}

	row := sessionRow{
		ID:           sessionID,
		CreatedAt:    now.Format(timeLayout),
		LastActiveAt: now.Format(timeLayout),
		ExpiresAt:    now.Add(SessionTTL).Format(timeLayout),
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, last_active_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, row.ID, row.CreatedAt, row.LastActiveAt, row.ExpiresAt)
	if err != nil {
		return nil, wrapDBErr("repository.upsertSession", err)
	}
	return sessionFromRow(&row)
}

func (r *SQLiteRepository) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM sessions WHERE id = ?`, sessionID); err != nil {
		return nil, wrapDBErr("repository.getSession", err)
	}
	return sessionFromRow(&row)
}

func (r *SQLiteRepository) TouchSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_active_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), sessionID)
	return wrapDBErr("repository.touchSession", err)
}

// ---- interactions ----

type interactionRow struct {
	ID          int64          `db:"id"`
	SessionID   string         `db:"session_id"`
	ProductID   int64          `db:"product_id"`
	Kind        string         `db:"kind"`
	Query       sql.NullString `db:"query"`
	Position    sql.NullInt64  `db:"position"`
	SearchLogID sql.NullInt64  `db:"search_log_id"`
	CreatedAt   string         `db:"created_at"`
}

func (r *SQLiteRepository) RecordInteraction(ctx context.Context, in *Interaction) error {
	if !in.Kind.Valid() {
		return rankingengine.Wrap(rankingengine.KindInvalidInput, "repository.recordInteraction",
			fmt.Errorf("unknown interaction kind %q", in.Kind))
	}
	now := in.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapDBErr("repository.recordInteraction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, last_active_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_active_at = excluded.last_active_at
	`, in.SessionID, now.Format(timeLayout), now.Format(timeLayout), now.Add(SessionTTL).Format(timeLayout)); err != nil {
		return wrapDBErr("repository.recordInteraction", err)
	}

	var queryVal, posVal, searchLogIDVal interface{}
	if in.Query != nil {
		queryVal = *in.Query
	}
	if in.Position != nil {
		posVal = *in.Position
	}
	if in.SearchLogID != nil {
		searchLogIDVal = *in.SearchLogID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO interactions (session_id, product_id, kind, query, position, search_log_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.SessionID, in.ProductID, string(in.Kind), queryVal, posVal, searchLogIDVal, now.Format(timeLayout)); err != nil {
		return wrapDBErr("repository.recordInteraction", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapDBErr("repository.recordInteraction", err)
	}
	return nil
}

func (r *SQLiteRepository) RecentInteractions(ctx context.Context, sessionID string, limit int) ([]*Interaction, error) {
	var rows []interactionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM interactions WHERE session_id = ? ORDER BY id DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, wrapDBErr("repository.recentInteractions", err)
	}
	out := make([]*Interaction, 0, len(rows))
	for _, row := range rows {
		createdAt, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			continue
		}
		in := &Interaction{
			ID:        row.ID,
			SessionID: row.SessionID,
			ProductID: row.ProductID,
			Kind:      InteractionKind(row.Kind),
			CreatedAt: createdAt,
		}
		if row.Query.Valid {
			q := row.Query.String
			in.Query = &q
		}
		if row.Position.Valid {
			p := int(row.Position.Int64)
			in.Position = &p
		}
		if row.SearchLogID.Valid {
			id := row.SearchLogID.Int64
			in.SearchLogID = &id
		}
		out = append(out, in)
	}
	return out, nil
}

// ---- ranking weights ----

type weightsRow struct {
	ID        int64   `db:"id"`
	Semantic  float64 `db:"semantic"`
	Rating    float64 `db:"rating"`
	Price     float64 `db:"price"`
	Stock     float64 `db:"stock"`
	Recency   float64 `db:"recency"`
	Active    bool    `db:"active"`
	CreatedAt string  `db:"created_at"`
	UpdatedAt string  `db:"updated_at"`
}

func weightsFromRow(row *weightsRow) (*Weights, error) {
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &Weights{
		ID: row.ID, Semantic: row.Semantic, Rating: row.Rating, Price: row.Price,
		Stock: row.Stock, Recency: row.Recency, Active: row.Active,
		CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}

// ActiveWeights implements the upsert-and-return pattern spec §9
// mandates in place of the source's recursive "insert then re-read".
func (r *SQLiteRepository) ActiveWeights(ctx context.Context) (*Weights, error) {
	var row weightsRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM ranking_weights WHERE active = 1 LIMIT 1`)
	if err == nil {
		return weightsFromRow(&row)
	}
	if err != sql.ErrNoRows {
		return nil, wrapDBErr("repository.activeWeights", err)
	}
	return r.UpdateWeights(ctx, DefaultWeights())
}

// UpdateWeights deactivates any current active row and inserts w as
// the sole active row in one transaction, returning the stored row.
func (r *SQLiteRepository) UpdateWeights(ctx context.Context, w Weights) (*Weights, error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapDBErr("repository.updateWeights", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE ranking_weights SET active = 0 WHERE active = 1`); err != nil {
		return nil, wrapDBErr("repository.updateWeights", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO ranking_weights (semantic, rating, price, stock, recency, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, w.Semantic, w.Rating, w.Price, w.Stock, w.Recency, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, wrapDBErr("repository.updateWeights", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapDBErr("repository.updateWeights", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapDBErr("repository.updateWeights", err)
	}

	w.ID = id
	w.Active = true
	w.CreatedAt = now
	w.UpdatedAt = now
	return &w, nil
}

// ---- search logs & explanations ----

func (r *SQLiteRepository) CreateSearchLog(ctx context.Context, log *SearchLog) (int64, error) {
	vec, err := encoding.EncodeVector(log.QueryVector)
	if err != nil {
		return 0, rankingengine.Wrap(rankingengine.KindInvalidInput, "repository.createSearchLog", err)
	}
	now := log.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO search_logs (session_id, query, query_vector, result_count, response_time_ms,
			filter_bag, degraded, fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.SessionID, log.Query, string(vec), log.ResultCount, log.ResponseTimeMs,
		log.FilterBag, log.Degraded, log.Fallback, now.Format(timeLayout))
	if err != nil {
		return 0, wrapDBErr("repository.createSearchLog", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapDBErr("repository.createSearchLog", err)
	}
	return id, nil
}

func (r *SQLiteRepository) CreateExplanations(ctx context.Context, explanations []*SearchResultExplanation) error {
	if len(explanations) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapDBErr("repository.createExplanations", err)
	}
	defer tx.Rollback()

	for _, e := range explanations {
		terms, err := encoding.EncodeMatchedTerms(e.MatchedTerms)
		if err != nil {
			return rankingengine.Wrap(rankingengine.KindInvalidInput, "repository.createExplanations", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_result_explanations (search_log_id, product_id, rank, final_score,
				semantic_score, rating_score, price_score, stock_score, recency_score,
				matched_terms, explanation, was_clicked)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.SearchLogID, e.ProductID, e.Rank, e.FinalScore, e.SemanticScore, e.RatingScore,
			e.PriceScore, e.StockScore, e.RecencyScore, terms, e.Explanation, e.WasClicked); err != nil {
			return wrapDBErr("repository.createExplanations", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapDBErr("repository.createExplanations", err)
	}
	return nil
}

type searchLogRow struct {
	ID             int64  `db:"id"`
	SessionID      string `db:"session_id"`
	Query          string `db:"query"`
	QueryVector    string `db:"query_vector"`
	ResultCount    int    `db:"result_count"`
	ResponseTimeMs int64  `db:"response_time_ms"`
	FilterBag      string `db:"filter_bag"`
	Degraded       bool   `db:"degraded"`
	Fallback       string `db:"fallback"`
	CreatedAt      string `db:"created_at"`
}

func (r *SQLiteRepository) ListSearchLogs(ctx context.Context, limit int) ([]*SearchLog, error) {
	var rows []searchLogRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM search_logs ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, wrapDBErr("repository.listSearchLogs", err)
	}
	out := make([]*SearchLog, 0, len(rows))
	for _, row := range rows {
		vec, err := encoding.DecodeVector([]byte(row.QueryVector))
		if err != nil {
			continue
		}
		createdAt, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			continue
		}
		out = append(out, &SearchLog{
			ID: row.ID, SessionID: row.SessionID, Query: row.Query, QueryVector: vec,
			ResultCount: row.ResultCount, ResponseTimeMs: row.ResponseTimeMs, FilterBag: row.FilterBag,
			Degraded: row.Degraded, Fallback: row.Fallback, CreatedAt: createdAt,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) MarkResultClicked(ctx context.Context, searchLogID, productID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE search_result_explanations SET was_clicked = 1 WHERE search_log_id = ? AND product_id = ?
	`, searchLogID, productID)
	return wrapDBErr("repository.markResultClicked", err)
}

// ---- evaluation metrics ----

func (r *SQLiteRepository) RecordMetric(ctx context.Context, m *EvaluationMetric) error {
	now := m.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var logID, count interface{}
	if m.SearchLogID != nil {
		logID = *m.SearchLogID
	}
	if m.QueryCount != nil {
		count = *m.QueryCount
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evaluation_metrics (search_log_id, kind, value, query_count, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, logID, m.Kind, m.Value, count, m.Note, now.Format(timeLayout))
	return wrapDBErr("repository.recordMetric", err)
}

type metricRow struct {
	ID          int64         `db:"id"`
	SearchLogID sql.NullInt64 `db:"search_log_id"`
	Kind        string        `db:"kind"`
	Value       float64       `db:"value"`
	QueryCount  sql.NullInt64 `db:"query_count"`
	Note        string        `db:"note"`
	CreatedAt   string        `db:"created_at"`
}

func (r *SQLiteRepository) ListMetrics(ctx context.Context, kind string, limit int) ([]*EvaluationMetric, error) {
	var rows []metricRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM evaluation_metrics WHERE kind = ? ORDER BY id DESC LIMIT ?
	`, kind, limit)
	if err != nil {
		return nil, wrapDBErr("repository.listMetrics", err)
	}
	out := make([]*EvaluationMetric, 0, len(rows))
	for _, row := range rows {
		createdAt, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			continue
		}
		m := &EvaluationMetric{ID: row.ID, Kind: row.Kind, Value: row.Value, Note: row.Note, CreatedAt: createdAt}
		if row.SearchLogID.Valid {
			id := row.SearchLogID.Int64
			m.SearchLogID = &id
		}
		if row.QueryCount.Valid {
			c := int(row.QueryCount.Int64)
			m.QueryCount = &c
		}
		out = append(out, m)
	}
	return out, nil
}

// ---- catalog upload jobs ----

type uploadJobRow struct {
	ID           string         `db:"id"`
	Filename     string         `db:"filename"`
	Status       string         `db:"status"`
	Total        int            `db:"total"`
	Processed    int            `db:"processed"`
	Embedded     int            `db:"embedded"`
	ErrorMessage sql.NullString `db:"error_message"`
	StartedAt    sql.NullString `db:"started_at"`
	CompletedAt  sql.NullString `db:"completed_at"`
}

func (r *SQLiteRepository) StartCatalogUploadJob(ctx context.Context, id, filename string) (*CatalogUploadJob, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO catalog_upload_jobs (id, filename, status, total, processed, embedded)
		VALUES (?, ?, ?, 0, 0, 0)
	`, id, filename, string(UploadPending))
	if err != nil {
		return nil, wrapDBErr("repository.startCatalogUploadJob", err)
	}
	return &CatalogUploadJob{ID: id, Filename: filename, Status: UploadPending}, nil
}

func (r *SQLiteRepository) UpdateCatalogUploadJob(ctx context.Context, job *CatalogUploadJob) error {
	var startedAt, completedAt interface{}
	if job.StartedAt != nil {
		startedAt = job.StartedAt.Format(timeLayout)
	}
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.Format(timeLayout)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE catalog_upload_jobs SET filename=?, status=?, total=?, processed=?, embedded=?,
			error_message=?, started_at=?, completed_at=? WHERE id=?
	`, job.Filename, string(job.Status), job.Total, job.Processed, job.Embedded,
		job.ErrorMessage, startedAt, completedAt, job.ID)
	return wrapDBErr("repository.updateCatalogUploadJob", err)
}

func (r *SQLiteRepository) GetCatalogUploadJob(ctx context.Context, id string) (*CatalogUploadJob, error) {
	var row uploadJobRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM catalog_upload_jobs WHERE id = ?`, id); err != nil {
		return nil, wrapDBErr("repository.getCatalogUploadJob", err)
	}
	job := &CatalogUploadJob{
		ID: row.ID, Filename: row.Filename, Status: CatalogUploadStatus(row.Status),
		Total: row.Total, Processed: row.Processed, Embedded: row.Embedded,
		ErrorMessage: row.ErrorMessage.String,
	}
	if row.StartedAt.Valid {
		t, err := time.Parse(timeLayout, row.StartedAt.String)
		if err == nil {
			job.StartedAt = &t
		}
	}
	if row.CompletedAt.Valid {
		t, err := time.Parse(timeLayout, row.CompletedAt.String)
		if err == nil {
			job.CompletedAt = &t
		}
	}
	return job, nil
}

var _ Repository = (*SQLiteRepository)(nil)
