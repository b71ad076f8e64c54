package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

type healthResponse struct {
	Store              string         `json:"store"`
	Jellyfin           string         `json:"jellyfin"`
	LastSyncAgeSeconds float64        `json:"last_sync_age_seconds"`
	QueueDepth         map[string]int `json:"queue_depth_per_webhook"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bridge health and queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ctx.baseURL() + "/healthz"
			resp, err := ctx.httpClient().Get(url)
			if err != nil {
				return wrapDialError(err, url)
			}
			defer resp.Body.Close()

			var health healthResponse
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				return fmt.Errorf("decode health response: %w", err)
			}

			if ctx.JSONMode() {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(health)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(cmd)
			fmt.Fprintln(out, statusLine("store", health.Store, colorize))
			fmt.Fprintln(out, statusLine("jellyfin", health.Jellyfin, colorize))
			fmt.Fprintf(out, "last sync age:        %.0fs\n", health.LastSyncAgeSeconds)

			names := make([]string, 0, len(health.QueueDepth))
			for name := range health.QueueDepth {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, fmt.Sprintf("%d", health.QueueDepth[name])})
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, renderTable([]string{"Webhook", "Queue Depth"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func statusLine(label, value string, colorize bool) string {
	line := fmt.Sprintf("%-20s %s", label+":", value)
	if !colorize {
		return line
	}
	color := ansiGreen
	if value != "ok" {
		color = ansiRed
	}
	return color + line + ansiReset
}

func shouldColorize(cmd *cobra.Command) bool {
	file, ok := cmd.OutOrStdout().(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
