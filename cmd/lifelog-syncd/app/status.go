package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	pkgsync "github.com/lifelog-labs/lifelog-sync-server/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show source status",
	Long: `Show the status of every configured source: health metrics,
available data types, and recent sync results.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	statusCmd.Flags().Bool("check", false, "Also test connectivity for enabled sources")

	if err := statusCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

// statusReport is the document printed by the status command
type statusReport struct {
	Sources []pkgsync.SourceStatus `json:"sources"`
	Totals  pkgsync.Totals         `json:"totals"`
	Health  map[string]string      `json:"health,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	configPath, _ := cmd.Flags().GetString("config")
	check, _ := cmd.Flags().GetBool("check")

	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	report := statusReport{
		Sources: rt.manager.StatusAll(),
		Totals:  rt.manager.Totals(),
	}

	if check {
		report.Health = make(map[string]string)
		for name, err := range rt.manager.HealthCheck(ctx) {
			if err != nil {
				report.Health[name] = err.Error()
			} else {
				report.Health[name] = "ok"
			}
		}
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format status: %w", err)
	}
	fmt.Println(string(output))
	return nil
}
