// Package scheduler runs the pipeline on a cron schedule. Runs never overlap:
// a tick that fires while a run is in progress is rescheduled.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"aiblog/internal/config"
	"aiblog/internal/core"
	"aiblog/internal/logger"
	"aiblog/internal/pipeline"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*pipeline.RunResult, error)
}

// ResultFunc receives every finished scheduled run.
type ResultFunc func(result *pipeline.RunResult, err error)

// Scheduler owns the cron job that triggers scheduled runs
type Scheduler struct {
	cron   gocron.Scheduler
	job    gocron.Job
	runner Runner
	kind   core.PostKind
	log    *slog.Logger

	mu       sync.Mutex
	ctx      context.Context
	onResult ResultFunc
}

// New creates a scheduler for cfg.Cron. It does not start until Start.
func New(runner Runner, cfg config.Schedule) (*Scheduler, error) {
	return newScheduler(runner, core.PostKind(cfg.Kind), gocron.CronJob(cfg.Cron, false))
}

func newScheduler(runner Runner, kind core.PostKind, definition gocron.JobDefinition) (*Scheduler, error) {
	if kind == "" {
		kind = core.KindGeneral
	}
	if kind != core.KindGeneral && kind != core.KindTool {
		return nil, fmt.Errorf("unknown schedule kind: %s", kind)
	}

	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		cron:   cron,
		runner: runner,
		kind:   kind,
		ctx:    context.Background(),
		log:    logger.Get().With("component", "scheduler"),
	}

	s.job, err = cron.NewJob(
		definition,
		gocron.NewTask(s.runOnce),
		gocron.WithName("generate-"+string(kind)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return s, nil
}

// OnResult registers a callback for finished runs
func (s *Scheduler) OnResult(fn ResultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// Start begins firing the job. Runs inherit ctx, so cancelling it aborts an
// in-flight run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	next, _ := s.job.NextRun()
	s.log.Info("Scheduler started", "kind", string(s.kind), "next_run", next)
}

// Stop shuts the scheduler down and waits for a running job to return.
func (s *Scheduler) Stop() error {
	s.log.Info("Stopping scheduler")
	return s.cron.Shutdown()
}

// NextRun returns when the job fires next
func (s *Scheduler) NextRun() (time.Time, error) {
	return s.job.NextRun()
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx, onResult := s.ctx, s.onResult
	s.mu.Unlock()

	s.log.Info("Scheduled run triggered", "kind", string(s.kind))
	result, err := s.runner.Run(ctx, pipeline.RunOptions{Kind: s.kind})
	if err != nil {
		s.log.Error("Scheduled run failed", "error", err.Error())
	}
	if onResult != nil {
		onResult(result, err)
	}
}
