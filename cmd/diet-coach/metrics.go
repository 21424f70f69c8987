package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"diet-coach/internal/metrics"
)

var (
	usageDays   int
	cleanupDays int
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show daily model usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		usage, err := a.Metrics().GetDailyUsage(cmd.Context(), usageDays)
		if err != nil {
			return err
		}
		if usage == nil {
			usage = []metrics.DailyUsage{}
		}
		return printJSON(cmd.OutOrStdout(), usage)
	},
}

var metricsCleanupCmd = &cobra.Command{
	Use:   "metrics-cleanup",
	Short: "Delete usage records older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanupDays <= 0 {
			return fmt.Errorf("--days must be positive, got %d", cleanupDays)
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Metrics().Cleanup(cmd.Context(), cleanupDays)
		if err != nil {
			return err
		}
		logger.Info("removed old usage records", zap.Int64("count", n), zap.Int("days", cleanupDays))
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", n)
		return nil
	},
}

func init() {
	usageCmd.Flags().IntVar(&usageDays, "days", 7, "Number of days to report")
	metricsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "Keep records newer than this many days")
}
