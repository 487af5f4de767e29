package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	pkgsync "github.com/lifelog-labs/lifelog-sync-server/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source]",
	Short: "Run a one-shot sync",
	Long: `Run a one-shot sync for a single source, or for every enabled
source when no source name is given. Exits non-zero if any sync fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	syncCmd.Flags().Bool("force", false, "Sync disabled sources too")
	syncCmd.Flags().String("start", "", "Range start (RFC3339)")
	syncCmd.Flags().String("end", "", "Range end (RFC3339)")
	syncCmd.Flags().String("format", "", "Output format (json)")

	if err := syncCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	configPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	format, _ := cmd.Flags().GetString("format")

	opts := pkgsync.Options{Force: force}
	if raw, _ := cmd.Flags().GetString("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		opts.Start = &start
	}
	if raw, _ := cmd.Flags().GetString("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		opts.End = &end
	}

	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	var results []pkgsync.Result
	if len(args) == 1 {
		results = []pkgsync.Result{rt.manager.SyncSource(ctx, args[0], opts)}
	} else {
		results = rt.manager.SyncAll(ctx, opts)
	}

	if format == "json" {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format results: %w", err)
		}
		fmt.Println(string(output))
	}

	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d syncs failed", failed, len(results))
	}
	return nil
}
