package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/productdiscovery/rankingengine/pkg/evaluator"
	"github.com/productdiscovery/rankingengine/pkg/repository"
	"github.com/productdiscovery/rankingengine/pkg/search"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute and record information-retrieval evaluation metrics",
}

var metricsQuery string
var metricsLimit int
var metricsK int

var metricsCalculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Run a search and record nDCG/Recall/Precision/MRR/AP against synthesized judgments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsQuery == "" {
			return fmt.Errorf("--query is required")
		}

		ctx := context.Background()
		o, repo, err := openOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		resp, err := o.Search(ctx, search.Request{Query: metricsQuery, Limit: metricsLimit})
		if err != nil {
			return fmt.Errorf("run search: %w", err)
		}

		results := make([]evaluator.ScoredResult, len(resp.Results))
		judgeable := make([]evaluator.JudgeableProduct, len(resp.Results))
		for i, r := range resp.Results {
			results[i] = evaluator.ScoredResult{ProductID: r.Product.ID, Position: r.Rank, FinalScore: r.FinalScore}
			judgeable[i] = evaluator.JudgeableProduct{
				ProductID: r.Product.ID,
				Title:     r.Product.Title,
				Text:      r.Product.Title + " " + r.Product.Description + " " + r.Product.Category,
			}
		}
		judgments := evaluator.SynthesizeJudgments(metricsQuery, judgeable)
		m := evaluator.Evaluate(results, judgments, metricsK)

		logID := resp.SearchLogID
		recorded := map[string]float64{
			fmt.Sprintf("ndcg@%d", metricsK):      m.NDCG,
			fmt.Sprintf("recall@%d", metricsK):    m.Recall,
			fmt.Sprintf("precision@%d", metricsK): m.Precision,
			"mrr": m.MRR,
			"ap":  m.AP,
		}
		for kind, value := range recorded {
			metric := &repository.EvaluationMetric{
				SearchLogID: &logID,
				Kind:        kind,
				Value:       value,
				Note:        "synthesized judgments, query=" + metricsQuery,
			}
			if err := repo.RecordMetric(ctx, metric); err != nil {
				return fmt.Errorf("record metric %s: %w", kind, err)
			}
		}

		if outputJSON {
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("ndcg@%d=%.4f recall@%d=%.4f precision@%d=%.4f mrr=%.4f ap=%.4f (search_log_id=%d)\n",
			metricsK, m.NDCG, metricsK, m.Recall, metricsK, m.Precision, m.MRR, m.AP, logID)
		return nil
	},
}

func init() {
	metricsCalculateCmd.Flags().StringVar(&metricsQuery, "query", "", "Query to search and evaluate (required)")
	metricsCalculateCmd.Flags().IntVar(&metricsLimit, "limit", 20, "Result limit for the evaluated search")
	metricsCalculateCmd.Flags().IntVar(&metricsK, "k", 10, "Cutoff k for nDCG/Recall/Precision")

	metricsCmd.AddCommand(metricsCalculateCmd)
}
