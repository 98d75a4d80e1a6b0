package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/productdiscovery/rankingengine/internal/logging"
	"github.com/productdiscovery/rankingengine/pkg/embedding"
	"github.com/productdiscovery/rankingengine/pkg/repository"
	"github.com/productdiscovery/rankingengine/pkg/search"
)

var (
	dbPath       string
	embeddingURL string
	debug        bool
	outputJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "rankctl",
	Short: "Administrative CLI for the product-discovery ranking engine",
	Long:  `rankctl manages ranking weights, the product catalog, evaluation metrics, and search logs against a running ranking-engine database.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "rankingengine.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&embeddingURL, "embedding-url", "http://localhost:8081/embed", "Sentence-embedding service URL")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "Verbose (development) logging")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("embedding_url", rootCmd.PersistentFlags().Lookup("embedding-url"))

	rootCmd.AddCommand(weightsCmd, productsCmd, metricsCmd, logsCmd)
}

// openRepo opens the repository at the configured db path.
func openRepo(ctx context.Context) (repository.Repository, *zap.Logger, error) {
	logger, err := logging.New(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	repo, err := repository.Open(ctx, viper.GetString("db"), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, logger, nil
}

// openOrchestrator opens the repository and wraps it in a fully wired
// Orchestrator (network + deterministic embedding providers, vector
// index preloaded from the repository), for commands that need to
// execute a real search rather than touch rows directly.
func openOrchestrator(ctx context.Context) (*search.Orchestrator, repository.Repository, error) {
	repo, logger, err := openRepo(ctx)
	if err != nil {
		return nil, nil, err
	}
	network := embedding.NewNetworkProvider(viper.GetString("embedding_url"), embedding.Dimension, logger)
	fallback := embedding.NewDeterministicProvider(embedding.Dimension)
	o := search.New(repo, network, fallback, logger)
	if err := o.LoadIndex(ctx); err != nil {
		return nil, nil, fmt.Errorf("load vector index: %w", err)
	}
	return o, repo, nil
}
