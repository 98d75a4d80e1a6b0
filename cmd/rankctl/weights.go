package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/productdiscovery/rankingengine/pkg/repository"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect or update the active ranking weights",
}

var weightsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the active ranking weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		repo, _, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		w, err := repo.ActiveWeights(ctx)
		if err != nil {
			return fmt.Errorf("fetch active weights: %w", err)
		}
		return printWeights(w)
	},
}

var weightsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace the active ranking weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		semantic, _ := cmd.Flags().GetFloat64("semantic")
		rating, _ := cmd.Flags().GetFloat64("rating")
		price, _ := cmd.Flags().GetFloat64("price")
		stock, _ := cmd.Flags().GetFloat64("stock")
		recency, _ := cmd.Flags().GetFloat64("recency")

		ctx := context.Background()
		repo, _, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		w, err := repo.UpdateWeights(ctx, repository.Weights{
			Semantic: semantic, Rating: rating, Price: price, Stock: stock, Recency: recency,
		})
		if err != nil {
			return fmt.Errorf("update weights: %w", err)
		}
		// A live search process caches the active weights for up to 5s
		// (spec §5); this CLI runs out-of-process, so there is nothing
		// here to invalidate — the cache's own TTL bounds the staleness.
		return printWeights(w)
	},
}

func printWeights(w *repository.Weights) error {
	if outputJSON {
		data, err := json.MarshalIndent(w, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("semantic=%.3f rating=%.3f price=%.3f stock=%.3f recency=%.3f (id=%d, updated %s)\n",
		w.Semantic, w.Rating, w.Price, w.Stock, w.Recency, w.ID, w.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	return nil
}

func init() {
	weightsUpdateCmd.Flags().Float64("semantic", repository.DefaultWeights().Semantic, "Semantic sub-score weight (alpha)")
	weightsUpdateCmd.Flags().Float64("rating", repository.DefaultWeights().Rating, "Rating sub-score weight (beta)")
	weightsUpdateCmd.Flags().Float64("price", repository.DefaultWeights().Price, "Price sub-score weight (gamma)")
	weightsUpdateCmd.Flags().Float64("stock", repository.DefaultWeights().Stock, "Stock sub-score weight (delta)")
	weightsUpdateCmd.Flags().Float64("recency", repository.DefaultWeights().Recency, "Recency sub-score weight (epsilon)")

	weightsCmd.AddCommand(weightsGetCmd, weightsUpdateCmd)
}
