package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"aiblog/internal/config"
	"aiblog/internal/trends"
)

// NewTrendsCmd creates the trends command that prints the aggregated trend context
func NewTrendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Show the trend context topic selection sees",
		Long: `Fetch the configured trend feeds and print the text handed to topic
selection. Feeds that fail are skipped.

Example:
  aiblog trends`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			text, err := trends.NewAggregator(config.Get().Trends).Context(ctx)
			if err != nil {
				return fmt.Errorf("failed to aggregate trends: %w", err)
			}
			fmt.Println(text)
			return nil
		},
	}
}
