package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect recent search logs",
}

var logsLimit int

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent search logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		repo, _, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		logs, err := repo.ListSearchLogs(ctx, logsLimit)
		if err != nil {
			return fmt.Errorf("list search logs: %w", err)
		}

		if outputJSON {
			data, err := json.MarshalIndent(logs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, l := range logs {
			fmt.Printf("%d\t%s\tsession=%s\tresults=%d\tresponse_ms=%d\tdegraded=%v\tfallback=%q\t%s\n",
				l.ID, l.Query, l.SessionID, l.ResultCount, l.ResponseTimeMs, l.Degraded, l.Fallback,
				l.CreatedAt.Format("2006-01-02T15:04:05Z"))
		}
		return nil
	},
}

func init() {
	logsListCmd.Flags().IntVar(&logsLimit, "limit", 20, "Maximum number of logs to return")
	logsCmd.AddCommand(logsListCmd)
}
