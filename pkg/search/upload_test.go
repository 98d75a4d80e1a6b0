package search

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/repository"
)

func TestUploadRunnerCompletesJobAndEmbedsAllProducts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	products := []*catalog.Product{
		plainProduct(1, "Wireless Mouse", "ergonomic wireless optical mouse", "electronics"),
		plainProduct(2, "Desk Lamp", "adjustable led desk lamp", "home"),
	}
	embedder := &stubProvider{vector: unitVector(testDim, 0)}
	runner := NewUploadRunner(repo, embedder, nil, zap.NewNop())

	if err := runner.Run(ctx, "job-1", "catalog.json", products); err != nil {
		t.Fatalf("run: %v", err)
	}

	job, err := repo.GetCatalogUploadJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != repository.UploadCompleted {
		t.Errorf("status = %q, want %q", job.Status, repository.UploadCompleted)
	}
	if job.Total != 2 || job.Processed != 2 || job.Embedded != 2 {
		t.Errorf("counters = %+v, want total=2 processed=2 embedded=2", job)
	}
	if job.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	for _, id := range []int64{1, 2} {
		_, ok, err := repo.GetEmbedding(ctx, id)
		if err != nil {
			t.Fatalf("get embedding %d: %v", id, err)
		}
		if !ok {
			t.Errorf("expected an embedding for product %d", id)
		}
	}
}

func TestUploadRunnerMarksJobFailedOnPersistentEmbeddingError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	products := []*catalog.Product{
		plainProduct(1, "Wireless Mouse", "ergonomic wireless optical mouse", "electronics"),
	}
	embedder := &stubProvider{err: errors.New("embedding service unavailable")}
	runner := NewUploadRunner(repo, embedder, nil, zap.NewNop())

	if err := runner.Run(ctx, "job-2", "catalog.json", products); err == nil {
		t.Fatal("expected an error when embedding never succeeds")
	}

	job, err := repo.GetCatalogUploadJob(ctx, "job-2")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != repository.UploadFailed {
		t.Errorf("status = %q, want %q", job.Status, repository.UploadFailed)
	}
	if job.ErrorMessage == "" {
		t.Error("expected a non-empty error message on the failed job")
	}
	if job.Processed != 1 {
		t.Errorf("processed = %d, want 1 (product upsert succeeds before embedding fails)", job.Processed)
	}
	if job.Embedded != 0 {
		t.Errorf("embedded = %d, want 0", job.Embedded)
	}
}

func TestUploadRunnerEmptyCatalogCompletesImmediately(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	embedder := &stubProvider{vector: unitVector(testDim, 0)}
	runner := NewUploadRunner(repo, embedder, nil, zap.NewNop())

	if err := runner.Run(ctx, "job-3", "empty.json", nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	job, err := repo.GetCatalogUploadJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != repository.UploadCompleted {
		t.Errorf("status = %q, want %q", job.Status, repository.UploadCompleted)
	}
	if job.Total != 0 {
		t.Errorf("total = %d, want 0", job.Total)
	}
}
