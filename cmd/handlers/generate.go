package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aiblog/internal/config"
	"aiblog/internal/core"
	"aiblog/internal/pipeline"
	"aiblog/internal/render"
)

type generateOptions struct {
	kind      string
	dryRun    bool
	preview   string
	maxPoints int
	noImage   bool
}

// NewGenerateCmd creates the generate command that runs the pipeline once
func NewGenerateCmd() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and publish one blog post",
		Long: `Run the full generation pipeline once.

A general post picks a topic from current trends, steering away from existing
titles and towards under-used categories. A tool post features one AI tool
that has not been covered yet.

Examples:
  # Generate and publish a general post
  aiblog generate

  # Feature an AI tool of the day
  aiblog generate --kind tool

  # Try the pipeline without publishing and look at the result
  aiblog generate --dry-run --preview post.html

  # Keep research cheap while iterating on prompts
  aiblog generate --dry-run --max-points 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "general", "Post kind: general or tool")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Skip the cover image and do not publish")
	cmd.Flags().StringVar(&opts.preview, "preview", "", "Write an HTML preview of the post to this file")
	cmd.Flags().IntVar(&opts.maxPoints, "max-points", -1, "Research at most N outline points (default from config, 0 = all)")
	cmd.Flags().BoolVar(&opts.noImage, "no-image", false, "Do not generate a cover image")

	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	kind := core.PostKind(opts.kind)
	if kind != core.KindGeneral && kind != core.KindTool {
		return fmt.Errorf("unknown kind %q: use general or tool", opts.kind)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := pipeline.NewBuilder(config.Get())
	if opts.maxPoints >= 0 {
		builder.WithMaxPoints(opts.maxPoints)
	}
	if opts.noImage || opts.dryRun {
		builder.WithoutImages()
	}

	p, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Printf("📝 Generating a %s post", kind)
	if opts.dryRun {
		fmt.Print(" (dry run)")
	}
	fmt.Println("...")

	result, runErr := p.Run(ctx, pipeline.RunOptions{Kind: kind, DryRun: opts.dryRun})
	printRunSummary(result)

	if opts.preview != "" && result.Post != nil {
		page, err := render.PostHTML(*result.Post)
		if err != nil {
			return err
		}
		if err := render.WriteFile(opts.preview, page); err != nil {
			return err
		}
		fmt.Printf("   • Preview written to %s\n", opts.preview)
	}

	return runErr
}

func printRunSummary(r *pipeline.RunResult) {
	if r == nil {
		return
	}
	fmt.Println()
	for _, s := range r.Stages {
		icon := "✓"
		switch s.Outcome {
		case pipeline.OutcomeDegraded:
			icon = "⚠️"
		case pipeline.OutcomeFailed:
			icon = "✗"
		case pipeline.OutcomeSkipped:
			icon = "-"
		}
		line := fmt.Sprintf("   %s %-9s %8s", icon, s.Name, s.Duration.Round(time.Millisecond))
		if s.Detail != "" {
			line += "  " + s.Detail
		}
		fmt.Println(line)
	}
	fmt.Println()

	switch r.Outcome {
	case pipeline.RunPublished:
		fmt.Printf("✅ Published %q as /%s\n", r.Post.Title, r.Post.Slug)
	case pipeline.RunDryRun:
		fmt.Printf("✅ Dry run finished: %q would be /%s\n", r.Post.Title, r.Post.Slug)
	case pipeline.RunNotPersisted:
		fmt.Printf("⚠️  %q was generated but not published\n", r.Post.Title)
	default:
		fmt.Printf("❌ Run failed: %s\n", r.Error)
	}
	if r.Post != nil {
		fmt.Printf("   • Read time: %d min | Tags: %s | Research: %d points (%d failed)\n",
			r.Post.ReadTime, strings.Join(r.Post.Tags, ", "), r.Findings, r.FailedFindings)
	}
	fmt.Printf("   • Run %s took %s\n", r.RunID, r.Duration.Round(time.Millisecond))
}
