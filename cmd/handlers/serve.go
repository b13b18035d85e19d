package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aiblog/internal/config"
	"aiblog/internal/logger"
	"aiblog/internal/metrics"
	"aiblog/internal/pipeline"
	"aiblog/internal/scheduler"
	"aiblog/internal/server"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port     int
		host     string
		schedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the run scheduler",
		Long: `Start the aiblog HTTP server.

The server provides:
  • POST /api/runs to trigger a run (requires ADMIN_API_KEY). Set
    "refresh_trends": true to refetch the trend feeds first
  • GET  /api/runs and /api/runs/{id} to follow runs
  • GET  /api/runs/{id}/preview for an HTML preview of the generated post
  • GET  /api/posts to list published posts
  • /health and /metrics for monitoring

When schedule.enabled is set (or --schedule is passed) a post is also
generated on the schedule.cron expression, in UTC.

Examples:
  # Start server on default port 8080
  aiblog serve

  # Start on custom port with the daily schedule
  aiblog serve --port 3000 --schedule

  # Trigger a tool post
  curl -X POST -H "Authorization: Bearer $ADMIN_API_KEY" \
    -d '{"kind":"tool"}' http://localhost:8080/api/runs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, schedule)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "Enable scheduled runs regardless of config")

	return cmd
}

func runServe(ctx context.Context, port int, host string, schedule bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Get()
	log.Info("Starting HTTP server")

	cfg := config.Get()

	// Override server config from flags if provided
	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	m := metrics.New()
	p, err := pipeline.NewBuilder(cfg).WithMetrics(m).Build(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := server.New(p, p.Store(), m, serverCfg)

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	if schedule || cfg.Schedule.Enabled {
		sched, err := scheduler.New(p, cfg.Schedule)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		sched.OnResult(srv.Runs().Record)
		sched.Start(runCtx)
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("Scheduler shutdown failed", "error", err.Error())
			}
		}()
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return err
		}
		// A scheduled run still in flight is aborted here
		cancelRuns()

		log.Info("Server stopped successfully")
	}

	return nil
}
