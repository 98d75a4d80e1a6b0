package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/productdiscovery/rankingengine/pkg/catalog"
	"github.com/productdiscovery/rankingengine/pkg/repository"
	"github.com/productdiscovery/rankingengine/pkg/search"
)

// newUploadRunnerFor builds an UploadRunner sharing o's embedding
// provider and vector index, so ad-hoc CLI regeneration stays
// consistent with the state a live search process would see.
func newUploadRunnerFor(repo repository.Repository, o *search.Orchestrator) *search.UploadRunner {
	return search.NewUploadRunner(repo, o.Embedder(), o.Index(), zap.NewNop())
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Manage the product catalog",
}

// productDoc is the CLI's JSON input/output shape for a product; it
// exists separately from catalog.Product so the wire format (plain
// strings for prices, no timestamp fields: the CLI stamps created/updated
// times itself) stays independent of the in-process model.
type productDoc struct {
	ID            int64    `json:"id"`
	SKU           string   `json:"sku,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Subcategory   string   `json:"subcategory,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	Features      []string `json:"features,omitempty"`
	Price         string   `json:"price"`
	OriginalPrice string   `json:"originalPrice,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   int      `json:"reviewCount,omitempty"`
	Availability  string   `json:"availability,omitempty"`
	StockQty      int      `json:"stockQty,omitempty"`
	ImageRef      string   `json:"imageRef,omitempty"`
	Featured      bool     `json:"featured,omitempty"`
}

func (d productDoc) toProduct(now time.Time) (*catalog.Product, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return nil, fmt.Errorf("product %d: invalid price %q: %w", d.ID, d.Price, err)
	}
	p := &catalog.Product{
		ID: d.ID, SKU: d.SKU, Title: d.Title, Description: d.Description,
		Category: d.Category, Subcategory: d.Subcategory, Brand: d.Brand, Features: d.Features,
		Price: price, Currency: d.Currency, Rating: d.Rating, ReviewCount: d.ReviewCount,
		Availability: catalog.Availability(d.Availability), StockQty: d.StockQty,
		ImageRef: d.ImageRef, Featured: d.Featured, CreatedAt: now, UpdatedAt: now,
	}
	if d.OriginalPrice != "" {
		op, err := decimal.NewFromString(d.OriginalPrice)
		if err != nil {
			return nil, fmt.Errorf("product %d: invalid originalPrice %q: %w", d.ID, d.OriginalPrice, err)
		}
		p.OriginalPrice = &op
	}
	if p.Availability == "" {
		p.Availability = catalog.InStock
	}
	return p, p.Validate()
}

func readProductDocs(path string) ([]productDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var docs []productDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		var single productDoc
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		docs = []productDoc{single}
	}
	return docs, nil
}

var productsUpsertCmd = &cobra.Command{
	Use:   "upsert <json-file>",
	Short: "Create or update one or more products from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := readProductDocs(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		repo, _, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		now := time.Now().UTC()
		for _, d := range docs {
			p, err := d.toProduct(now)
			if err != nil {
				return err
			}
			if err := repo.UpsertProduct(ctx, p); err != nil {
				return fmt.Errorf("upsert product %d: %w", p.ID, err)
			}
		}
		fmt.Printf("upserted %d product(s)\n", len(docs))
		return nil
	},
}

var productsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a product and its embedding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		o, repo, err := openOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.DeleteEmbedding(ctx, id); err != nil {
			return fmt.Errorf("delete embedding %d: %w", id, err)
		}
		if err := o.IndexDelete(ctx, id); err != nil {
			return fmt.Errorf("delete from vector index %d: %w", id, err)
		}
		if err := repo.DeleteProduct(ctx, id); err != nil {
			return fmt.Errorf("delete product %d: %w", id, err)
		}
		fmt.Printf("deleted product %d\n", id)
		return nil
	},
}

var productsRegenerateEmbeddingCmd = &cobra.Command{
	Use:   "regenerate-embedding <id>",
	Short: "Recompute and store the embedding for a single product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		o, repo, err := openOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		p, err := repo.GetProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("get product %d: %w", id, err)
		}

		runner := newUploadRunnerFor(repo, o)
		if err := runner.Run(ctx, fmt.Sprintf("regen-%d-%d", id, time.Now().UnixNano()), "regenerate-embedding", []*catalog.Product{p}); err != nil {
			return fmt.Errorf("regenerate embedding for product %d: %w", id, err)
		}
		fmt.Printf("regenerated embedding for product %d\n", id)
		return nil
	},
}

var productsRegenerateAllEmbeddingsCmd = &cobra.Command{
	Use:   "regenerate-all-embeddings",
	Short: "Recompute and store embeddings for every product in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		o, repo, err := openOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		products, err := repo.ListProducts(ctx, repository.ProductFilter{})
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}

		runner := newUploadRunnerFor(repo, o)
		jobID := fmt.Sprintf("regen-all-%d", time.Now().UnixNano())
		if err := runner.Run(ctx, jobID, "regenerate-all-embeddings", products); err != nil {
			return fmt.Errorf("regenerate all embeddings: %w", err)
		}
		fmt.Printf("regenerated embeddings for %d product(s), job %s\n", len(products), jobID)
		return nil
	},
}

func parseProductID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid product id %q: %w", s, err)
	}
	return id, nil
}

func init() {
	productsCmd.AddCommand(
		productsUpsertCmd,
		productsDeleteCmd,
		productsRegenerateEmbeddingCmd,
		productsRegenerateAllEmbeddingsCmd,
	)
}
