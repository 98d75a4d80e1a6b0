package repository

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id              INTEGER PRIMARY KEY,
	sku             TEXT,
	title           TEXT NOT NULL,
	description     TEXT,
	category        TEXT,
	subcategory     TEXT,
	brand           TEXT,
	features        TEXT,
	price           TEXT NOT NULL,
	original_price  TEXT,
	currency        TEXT,
	rating          REAL,
	review_count    INTEGER NOT NULL DEFAULT 0,
	availability    TEXT NOT NULL,
	stock_qty       INTEGER NOT NULL DEFAULT 0,
	image_ref       TEXT,
	featured        INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku ON products(sku) WHERE sku IS NOT NULL AND sku != '';
CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS embeddings (
	product_id  INTEGER PRIMARY KEY,
	vector      TEXT NOT NULL,
	source_text TEXT,
	model_tag   TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	last_active_at  TEXT NOT NULL,
	expires_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	product_id    INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	query         TEXT,
	position      INTEGER,
	search_log_id INTEGER,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, id DESC);

CREATE TABLE IF NOT EXISTS ranking_weights (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	semantic    REAL NOT NULL,
	rating      REAL NOT NULL,
	price       REAL NOT NULL,
	stock       REAL NOT NULL,
	recency     REAL NOT NULL,
	active      INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_logs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        TEXT NOT NULL,
	query             TEXT NOT NULL,
	query_vector      TEXT,
	result_count      INTEGER NOT NULL,
	response_time_ms  INTEGER NOT NULL,
	filter_bag        TEXT,
	degraded          INTEGER NOT NULL DEFAULT 0,
	fallback          TEXT,
	created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_result_explanations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	search_log_id   INTEGER NOT NULL,
	product_id      INTEGER NOT NULL,
	rank            INTEGER NOT NULL,
	final_score     REAL NOT NULL,
	semantic_score  REAL NOT NULL,
	rating_score    REAL NOT NULL,
	price_score     REAL NOT NULL,
	stock_score     REAL NOT NULL,
	recency_score   REAL NOT NULL,
	matched_terms   TEXT,
	explanation     TEXT,
	was_clicked     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_explanations_log ON search_result_explanations(search_log_id);

CREATE TABLE IF NOT EXISTS evaluation_metrics (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	search_log_id  INTEGER,
	kind           TEXT NOT NULL,
	value          REAL NOT NULL,
	query_count    INTEGER,
	note           TEXT,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_kind ON evaluation_metrics(kind, id DESC);

CREATE TABLE IF NOT EXISTS catalog_upload_jobs (
	id             TEXT PRIMARY KEY,
	filename       TEXT NOT NULL,
	status         TEXT NOT NULL,
	total          INTEGER NOT NULL DEFAULT 0,
	processed      INTEGER NOT NULL DEFAULT 0,
	embedded       INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT,
	started_at     TEXT,
	completed_at   TEXT
);
`
