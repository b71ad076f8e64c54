package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

type webhookStats struct {
	Queued        int64   `json:"Queued"`
	Sent          int64   `json:"Sent"`
	Failed        int64   `json:"Failed"`
	Retried       int64   `json:"Retried"`
	CurrentSize   int     `json:"CurrentSize"`
	RateLimitHits int64   `json:"RateLimitHits"`
	Capacity      int     `json:"Capacity"`
}

type queueStatsResponse struct {
	Webhooks map[string]webhookStats `json:"webhooks"`
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show per-webhook dispatch queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ctx.baseURL() + "/queue/stats"
			resp, err := ctx.httpClient().Get(url)
			if err != nil {
				return wrapDialError(err, url)
			}
			defer resp.Body.Close()

			var result queueStatsResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return fmt.Errorf("decode queue stats response: %w", err)
			}

			if ctx.JSONMode() {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			names := make([]string, 0, len(result.Webhooks))
			for name := range result.Webhooks {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				s := result.Webhooks[name]
				rows = append(rows, []string{
					name,
					fmt.Sprintf("%d/%d", s.CurrentSize, s.Capacity),
					fmt.Sprintf("%d", s.Sent),
					fmt.Sprintf("%d", s.Failed),
					fmt.Sprintf("%d", s.Retried),
					fmt.Sprintf("%d", s.RateLimitHits),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(
				[]string{"Webhook", "Queue", "Sent", "Failed", "Retried", "Rate Limited"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}
