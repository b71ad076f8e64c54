package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type syncTriggerResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Trigger a manual reconciliation sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ctx.baseURL() + "/sync"
			resp, err := ctx.httpClient().Post(url, "application/json", nil)
			if err != nil {
				return wrapDialError(err, url)
			}
			defer resp.Body.Close()

			var result syncTriggerResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return fmt.Errorf("decode sync response: %w", err)
			}

			if ctx.JSONMode() {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			out := cmd.OutOrStdout()
			if result.Started {
				fmt.Fprintln(out, "Sync started")
				return nil
			}
			reason := result.Message
			if reason == "" {
				reason = "bridge declined to start a sync"
			}
			fmt.Fprintf(out, "Sync not started: %s\n", reason)
			if resp.StatusCode != http.StatusAccepted {
				return fmt.Errorf("bridge returned status %d", resp.StatusCode)
			}
			return nil
		},
	}
}
