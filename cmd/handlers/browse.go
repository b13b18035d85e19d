package handlers

import (
	"context"

	"github.com/spf13/cobra"

	"aiblog/internal/config"
	"aiblog/internal/persistence"
	"aiblog/internal/tui"
)

// NewBrowseCmd creates the browse command for the terminal post browser
func NewBrowseCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse published posts in the terminal",
		Long: `Open an interactive browser over the content store.

Keys:
  ↑/k ↓/j  move between posts
  tab      cycle all / general / tool posts
  r        reload
  q        quit

Example:
  aiblog browse --limit 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg := config.Get()
			store, err := persistence.Open(ctx, cfg.Store, cfg.Pipeline.ToolCategory)
			if err != nil {
				return err
			}
			defer store.Close()

			return tui.Start(ctx, store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of posts to load")

	return cmd
}
