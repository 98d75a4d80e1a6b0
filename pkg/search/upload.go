package search

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/productdiscovery/rankingengine"
	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/embedding"
	"github.com/productdiscovery/rankingengine/pkg/repository"
	"github.com/productdiscovery/rankingengine/pkg/vectorindex"
)

// uploadBatchSize bounds how many products are embedded per network
// call during a catalog upload (spec §4.9's "embedding" state).
const uploadBatchSize = 64

// uploadMaxRetries is the attempt budget, applied separately to each
// batch's EmbedBatch call and to each product's embedding upsert within
// the batch, before the job is marked failed.
const uploadMaxRetries = 3

// UploadRunner drives one catalog-upload job through the monotonic
// state machine of spec §4.9: pending → processing → embedding →
// completed|failed. The only recoverable re-entry is failed →
// processing, and that always happens via a fresh job id; UploadRunner
// never resumes a failed job in place.
type UploadRunner struct {
	repo     repository.Repository
	embedder embedding.Provider
	index    vectorindex.Index // optional; nil skips index backfill
	logger   *zap.Logger
}

// NewUploadRunner constructs an UploadRunner. embedder is typically the
// network provider; a failed batch is retried against the same
// provider rather than silently degrading to the deterministic one,
// since upload embeddings are persisted and read back at query time.
// index, if non-nil, is kept in sync with every embedding persisted so
// a long-running search process doesn't need to reload it from the
// repository after an upload completes.
func NewUploadRunner(repo repository.Repository, embedder embedding.Provider, index vectorindex.Index, logger *zap.Logger) *UploadRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadRunner{repo: repo, embedder: embedder, index: index, logger: logger}
}

// Run executes the full pending→processing→embedding→completed|failed
// sequence for the products an external loader has already prepared.
// It starts the job, upserts every product (processing), then embeds
// and upserts vectors in bounded batches (embedding), finally recording
// completed or failed. A failure is recorded on the persisted job row
// and also returned, wrapped as KindInternal; an error from updating
// the job row itself is returned as is.
func (u *UploadRunner) Run(ctx context.Context, jobID, filename string, products []*catalog.Product) error {
	job, err := u.repo.StartCatalogUploadJob(ctx, jobID, filename)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	job.Status = repository.UploadProcessing
	job.Total = len(products)
	job.StartedAt = &now
	if err := u.repo.UpdateCatalogUploadJob(ctx, job); err != nil {
		return err
	}

	for _, p := range products {
		if err := u.repo.UpsertProduct(ctx, p); err != nil {
			return u.fail(ctx, job, err)
		}
		job.Processed++
	}
	if err := u.repo.UpdateCatalogUploadJob(ctx, job); err != nil {
		return err
	}

	job.Status = repository.UploadEmbedding
	if err := u.repo.UpdateCatalogUploadJob(ctx, job); err != nil {
		return err
	}

	for start := 0; start < len(products); start += uploadBatchSize {
		end := start + uploadBatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]
		if err := u.embedBatch(ctx, batch); err != nil {
			return u.fail(ctx, job, err)
		}
		job.Embedded += len(batch)
		if err := u.repo.UpdateCatalogUploadJob(ctx, job); err != nil {
			return err
		}
	}

	completedAt := time.Now().UTC()
	job.Status = repository.UploadCompleted
	job.CompletedAt = &completedAt
	return u.repo.UpdateCatalogUploadJob(ctx, job)
}

// embedBatch embeds one chunk with bounded retry and upserts the
// resulting vectors. A batch that never succeeds propagates its last
// error so the caller marks the whole job failed.
func (u *UploadRunner) embedBatch(ctx context.Context, batch []*catalog.Product) error {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.SearchableText()
	}

	op := func() ([][]float64, error) {
		return u.embedder.EmbedBatch(ctx, texts)
	}
	vectors, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uploadMaxRetries),
	)
	if err != nil {
		return err
	}

	for i, p := range batch {
		emb := &repository.Embedding{
			ProductID:  p.ID,
			Vector:     vectors[i],
			SourceText: texts[i],
		}
		upsert := func() (struct{}, error) {
			return struct{}{}, u.repo.UpsertEmbedding(ctx, emb)
		}
		if _, err := backoff.Retry(ctx, upsert,
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(uploadMaxRetries),
		); err != nil {
			return err
		}
		if u.index != nil {
			if err := u.index.Upsert(ctx, p.ID, vectors[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *UploadRunner) fail(ctx context.Context, job *repository.CatalogUploadJob, cause error) error {
	u.logger.Error("catalog upload job failed", zap.String("job_id", job.ID), zap.Error(cause))
	completedAt := time.Now().UTC()
	job.Status = repository.UploadFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &completedAt
	if err := u.repo.UpdateCatalogUploadJob(ctx, job); err != nil {
		return err
	}
	return rankingengine.Wrap(rankingengine.KindInternal, "search.catalogUpload", cause)
}
