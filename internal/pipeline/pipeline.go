package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"aiblog/internal/citations"
	"aiblog/internal/core"
	"aiblog/internal/deadline"
	"aiblog/internal/logger"
	"aiblog/internal/metrics"
	"aiblog/internal/persistence"
	"aiblog/internal/refine"
	"aiblog/internal/textutil"
	"aiblog/internal/topic"
)

// ErrGenerationFailure wraps every fatal-to-run cause. A run that fails this
// way produces no post.
var ErrGenerationFailure = errors.New("post generation failed")

// Stage names, in execution order
const (
	StageContext  = "context"
	StageTopic    = "topic"
	StageOutline  = "outline"
	StageResearch = "research"
	StageDraft    = "draft"
	StageRefine   = "refine"
	StagePolish   = "polish"
	StageMetadata = "metadata"
	StageValidate = "validate"
	StageImage    = "image"
	StagePersist  = "persist"
)

// Outcome is the result of a single stage.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// Run outcomes
const (
	RunPublished    = "published"
	RunNotPersisted = "not_persisted"
	RunDryRun       = "dry_run"
	RunFailed       = "failed"
)

// Config holds pipeline configuration
type Config struct {
	StageTimeout time.Duration // Budget for a single stage, 0 disables it
	Author       string        // Constant author written on every post
	ToolCategory string        // Category title reserved for tool posts
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		StageTimeout: 10 * time.Minute,
		Author:       "AI Blog Bot",
		ToolCategory: "AI Tool of the Day",
	}
}

// Components are the stage implementations a pipeline runs. Trends, Images
// and Metrics are optional.
type Components struct {
	Trends   TrendSource
	Topics   TopicSelector
	Outline  OutlineGenerator
	Research Researcher
	Draft    DraftGenerator
	Refine   Refiner
	Polish   Polisher
	Metadata MetadataExtractor
	Markdown MarkdownValidator
	Images   ImageGenerator
	Store    persistence.ContentStore
	Metrics  *metrics.Metrics
}

// Pipeline runs one post generation end to end, strictly in sequence
type Pipeline struct {
	c      Components
	config *Config
	log    *slog.Logger
}

// New creates a pipeline from its components
func New(c Components, config *Config) (*Pipeline, error) {
	if config == nil {
		config = DefaultConfig()
	}
	var missing []string
	for name, ok := range map[string]bool{
		"topic selector":     c.Topics != nil,
		"outline generator":  c.Outline != nil,
		"researcher":         c.Research != nil,
		"draft generator":    c.Draft != nil,
		"refiner":            c.Refine != nil,
		"polisher":           c.Polish != nil,
		"metadata extractor": c.Metadata != nil,
		"markdown validator": c.Markdown != nil,
		"content store":      c.Store != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("pipeline is missing components: %s", strings.Join(missing, ", "))
	}
	return &Pipeline{c: c, config: config, log: logger.Get().With("component", "pipeline")}, nil
}

// Store returns the content store the pipeline reads from and writes to.
func (p *Pipeline) Store() persistence.ContentStore {
	return p.c.Store
}

// Close releases the content store.
func (p *Pipeline) Close() error {
	return p.c.Store.Close()
}

// RunOptions configures a single run
type RunOptions struct {
	RunID  string        // Generated when empty
	Kind   core.PostKind // general (default) or tool
	DryRun bool          // Skip image upload and persistence

	RefreshTrends bool // Drop cached trend context before the run
}

// StageReport records how one stage went
type StageReport struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Outcome  Outcome       `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// RunResult is everything a run produced, including a failed one
type RunResult struct {
	RunID            string              `json:"run_id"`
	Kind             core.PostKind       `json:"kind"`
	DryRun           bool                `json:"dry_run"`
	Topic            core.TopicSelection `json:"topic"`
	ToolName         string              `json:"tool_name,omitempty"`
	Outline          string              `json:"outline,omitempty"`
	Findings         int                 `json:"findings"`
	FailedFindings   int                 `json:"failed_findings"`
	Citations        citations.Report    `json:"citations"`
	RefineStop       refine.StopReason   `json:"refine_stop,omitempty"`
	RefineIterations int                 `json:"refine_iterations"`
	Metadata         core.PostMetadata   `json:"metadata"`
	Post             *core.Post          `json:"post,omitempty"`
	Persisted        bool                `json:"persisted"`
	Outcome          string              `json:"outcome"`
	Error            string              `json:"error,omitempty"`
	Stages           []StageReport       `json:"stages"`
	StartedAt        time.Time           `json:"started_at"`
	Duration         time.Duration       `json:"duration"`
}

// runState carries stage outputs from one stage to the next.
type runState struct {
	trendContext string
	titles       []string
	counts       []core.CategoryCount
	toolNames    []string
	categories   []core.Category
	ledger       citations.Ledger
	content      string
	category     *int64
}

// Run executes every stage in order. The returned result is never nil; err
// wraps ErrGenerationFailure when a fatal stage failed or a stage panicked.
// A post that could not be persisted is not an error.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (result *RunResult, err error) {
	kind := opts.Kind
	if kind == "" {
		kind = core.KindGeneral
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	result = &RunResult{
		RunID:     runID,
		Kind:      kind,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
	}
	log := p.log.With("run_id", result.RunID, "kind", string(kind))
	finish := p.c.Metrics.RunStarted(string(kind))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Pipeline panicked", "panic", fmt.Sprint(r))
			err = fmt.Errorf("%w: panic: %v", ErrGenerationFailure, r)
		}
		result.Duration = time.Since(result.StartedAt)
		if err != nil {
			result.Outcome = RunFailed
			result.Error = err.Error()
			log.Error("Run failed", "error", err.Error(), "duration", result.Duration)
		} else {
			log.Info("Run finished", "outcome", result.Outcome, "duration", result.Duration)
		}
		finish(result.Outcome)
	}()

	if kind != core.KindGeneral && kind != core.KindTool {
		return result, fmt.Errorf("%w: unknown post kind %q", ErrGenerationFailure, kind)
	}

	if r, ok := p.c.Trends.(TrendRefresher); ok && opts.RefreshTrends {
		r.Invalidate()
		log.Info("Trend cache dropped")
	}

	log.Info("Run started", "dry_run", opts.DryRun)
	err = p.run(ctx, result, log)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, result *RunResult, log *slog.Logger) error {
	st := &runState{}

	p.stage(ctx, result, log, StageContext, func(ctx context.Context) (Outcome, string, error) {
		return p.gatherContext(ctx, result.Kind, st)
	})

	err := p.stage(ctx, result, log, StageTopic, func(ctx context.Context) (Outcome, string, error) {
		if result.Kind == core.KindTool {
			selection, tool, err := p.c.Topics.SelectTool(ctx, topic.ToolInput{
				TrendContext:  st.trendContext,
				UsedToolNames: st.toolNames,
			})
			if err != nil {
				return OutcomeFailed, "", err
			}
			result.Topic, result.ToolName = selection, tool
			return OutcomeOK, tool + ": " + selection.Title, nil
		}
		selection, err := p.c.Topics.Select(ctx, topic.Input{
			TrendContext:   st.trendContext,
			ExistingTitles: st.titles,
			CategoryCounts: st.counts,
		})
		if err != nil {
			return OutcomeFailed, "", err
		}
		result.Topic = selection
		return OutcomeOK, selection.Title, nil
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(result.Topic.Title) == "" {
		return fmt.Errorf("%w: topic selection returned an empty title", ErrGenerationFailure)
	}

	err = p.stage(ctx, result, log, StageOutline, func(ctx context.Context) (Outcome, string, error) {
		outline, err := p.c.Outline.Generate(ctx, result.Topic)
		if err != nil {
			return OutcomeFailed, "", err
		}
		if strings.TrimSpace(outline) == "" {
			return OutcomeFailed, "", errors.New("empty outline")
		}
		result.Outline = outline
		return OutcomeOK, fmt.Sprintf("%d chars", len(outline)), nil
	})
	if err != nil {
		return err
	}

	p.stage(ctx, result, log, StageResearch, func(ctx context.Context) (Outcome, string, error) {
		findings := p.c.Research.Research(ctx, result.Outline, result.Topic.Title)
		st.ledger = citations.NewLedger(findings)
		for _, f := range findings.Ordered() {
			if f.IsError() {
				result.FailedFindings++
			}
		}
		result.Findings = findings.Len()
		p.c.Metrics.CountFindings(result.Findings-result.FailedFindings, result.FailedFindings)

		detail := fmt.Sprintf("%d findings, %d failed", result.Findings, result.FailedFindings)
		if result.Findings == 0 || result.FailedFindings > 0 {
			return OutcomeDegraded, detail, nil
		}
		return OutcomeOK, detail, nil
	})

	err = p.stage(ctx, result, log, StageDraft, func(ctx context.Context) (Outcome, string, error) {
		text, err := p.c.Draft.Generate(ctx, result.Topic, result.Outline, st.ledger)
		if err != nil {
			return OutcomeFailed, "", err
		}
		if strings.TrimSpace(text) == "" {
			return OutcomeFailed, "", errors.New("empty draft")
		}
		st.content = text
		report := st.ledger.Validate(text)
		if !report.OK() {
			return OutcomeDegraded, citationDetail(report), nil
		}
		return OutcomeOK, fmt.Sprintf("%d citation markers", report.MarkerCount), nil
	})
	if err != nil {
		return err
	}

	p.stage(ctx, result, log, StageRefine, func(ctx context.Context) (Outcome, string, error) {
		res := p.c.Refine.Refine(ctx, refine.Input{
			Draft:        st.content,
			Title:        result.Topic.Title,
			TopicContext: result.Topic.HookDescription,
		})
		if strings.TrimSpace(res.Content) != "" {
			st.content = res.Content
		}
		result.RefineStop, result.RefineIterations = res.StopReason, res.Iterations
		p.c.Metrics.ObserveRefine(string(res.StopReason), res.Iterations)

		detail := fmt.Sprintf("%s after %d iterations, %d revisions", res.StopReason, res.Iterations, res.Revisions)
		switch res.StopReason {
		case refine.StopEvaluatorError, refine.StopRevisionError, refine.StopEmptyRevision:
			return OutcomeDegraded, detail, nil
		}
		return OutcomeOK, detail, nil
	})

	p.stage(ctx, result, log, StagePolish, func(ctx context.Context) (Outcome, string, error) {
		polished, err := p.c.Polish.Polish(ctx, st.content)
		if err != nil {
			return OutcomeDegraded, "kept refined draft: " + err.Error(), nil
		}
		if strings.TrimSpace(polished) == "" {
			return OutcomeDegraded, "empty polish, kept refined draft", nil
		}
		st.content = polished
		return OutcomeOK, "", nil
	})

	err = p.stage(ctx, result, log, StageMetadata, func(ctx context.Context) (Outcome, string, error) {
		toolID, haveTool := categoryID(st.categories, p.config.ToolCategory)

		offered := st.categories
		if result.Kind == core.KindGeneral {
			offered = withoutCategory(st.categories, p.config.ToolCategory)
		}
		meta, err := p.c.Metadata.Extract(ctx, st.content, offered)
		if err != nil {
			return OutcomeFailed, "", err
		}
		result.Metadata = meta
		category := meta.Category
		st.category = &category

		switch {
		case result.Kind == core.KindTool && !haveTool:
			return OutcomeDegraded, fmt.Sprintf("tool category %q not found, kept category %d", p.config.ToolCategory, meta.Category), nil
		case result.Kind == core.KindTool:
			result.Metadata.Category = toolID
			st.category = &toolID
		case haveTool && meta.Category == toolID:
			// General posts never land in the tool listing
			st.category = nil
			return OutcomeDegraded, "model picked the tool category for a general post, saved without category", nil
		}
		return OutcomeOK, meta.Title, nil
	})
	if err != nil {
		return err
	}

	p.stage(ctx, result, log, StageValidate, func(ctx context.Context) (Outcome, string, error) {
		st.content = p.c.Markdown.Validate(ctx, st.content)
		result.Citations = st.ledger.Validate(st.content)
		if !result.Citations.OK() {
			return OutcomeDegraded, citationDetail(result.Citations), nil
		}
		return OutcomeOK, fmt.Sprintf("%d citation markers", result.Citations.MarkerCount), nil
	})

	result.Post = p.buildPost(result, st)

	if result.DryRun {
		p.skip(result, log, StageImage, "dry run")
	} else if p.c.Images == nil {
		p.skip(result, log, StageImage, "no image generator")
	} else {
		p.stage(ctx, result, log, StageImage, func(ctx context.Context) (Outcome, string, error) {
			url := p.c.Images.Generate(ctx, result.Metadata.ImagePrompt, result.Post.Title)
			if url == "" {
				return OutcomeDegraded, "no image, post saved without one", nil
			}
			result.Post.ImageURL = &url
			return OutcomeOK, url, nil
		})
	}

	if result.DryRun {
		p.skip(result, log, StagePersist, "dry run")
		result.Outcome = RunDryRun
		return nil
	}

	p.stage(ctx, result, log, StagePersist, func(ctx context.Context) (Outcome, string, error) {
		inserted, err := p.c.Store.InsertPost(ctx, result.Post)
		switch {
		case err != nil:
			p.c.Metrics.CountPersist("error")
			return OutcomeDegraded, "insert failed: " + err.Error(), nil
		case !inserted:
			p.c.Metrics.CountPersist("duplicate")
			return OutcomeDegraded, "slug already exists: " + result.Post.Slug, nil
		}
		p.c.Metrics.CountPersist("inserted")
		result.Persisted = true
		return OutcomeOK, result.Post.Slug, nil
	})

	if result.Persisted {
		result.Outcome = RunPublished
	} else {
		result.Outcome = RunNotPersisted
	}
	return nil
}

// gatherContext reads the trend blob and the store data topic selection and
// metadata extraction weigh. Every failure here only degrades the run.
func (p *Pipeline) gatherContext(ctx context.Context, kind core.PostKind, st *runState) (Outcome, string, error) {
	var problems []string

	if p.c.Trends == nil {
		problems = append(problems, "no trend source")
	} else if text, err := p.c.Trends.Context(ctx); err != nil {
		problems = append(problems, "trends: "+err.Error())
	} else {
		st.trendContext = text
	}

	var err error
	if kind == core.KindTool {
		if st.toolNames, err = p.c.Store.ListToolNames(ctx); err != nil {
			problems = append(problems, "tool names: "+err.Error())
		}
	} else {
		if st.titles, err = p.c.Store.ListPostTitles(ctx); err != nil {
			problems = append(problems, "titles: "+err.Error())
		}
		if st.counts, err = p.c.Store.CategoryPostCounts(ctx); err != nil {
			problems = append(problems, "category counts: "+err.Error())
		}
	}
	if st.categories, err = p.c.Store.ListCategories(ctx); err != nil {
		problems = append(problems, "categories: "+err.Error())
	}

	if len(problems) > 0 {
		return OutcomeDegraded, strings.Join(problems, "; "), nil
	}
	return OutcomeOK, fmt.Sprintf("%d chars of trends, %d categories", len(st.trendContext), len(st.categories)), nil
}

func (p *Pipeline) buildPost(result *RunResult, st *runState) *core.Post {
	meta := result.Metadata
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = result.Topic.Title
	}
	post := &core.Post{
		Title:           title,
		Slug:            textutil.Slugify(title),
		Description:     meta.MetaDescription,
		Content:         st.content,
		Category:        st.category,
		ReadTime:        meta.ReadTimeMinutes,
		Tags:            meta.Tags,
		ResearchDetails: st.ledger.Details(),
		Author:          p.config.Author,
		Status:          core.StatusPublished,
	}
	if result.ToolName != "" {
		tool := result.ToolName
		post.ToolName = &tool
	}
	return post
}

// stage runs fn under the stage budget and records its report. Only a
// failed outcome returns an error.
func (p *Pipeline) stage(ctx context.Context, result *RunResult, log *slog.Logger, name string, fn func(ctx context.Context) (Outcome, string, error)) error {
	start := time.Now()
	stageCtx, cancel := p.stageContext(ctx)
	defer cancel()

	outcome, detail, err := fn(stageCtx)
	timedOut := false
	if err != nil {
		outcome, detail = OutcomeFailed, err.Error()
		timedOut = deadline.IsExceeded(err)
	}
	d := time.Since(start)

	result.Stages = append(result.Stages, StageReport{Name: name, Duration: d, Outcome: outcome, Detail: detail, TimedOut: timedOut})
	p.c.Metrics.ObserveStage(name, string(outcome), d)

	switch {
	case timedOut:
		log.Error("Stage timed out", "stage", name, "duration", d, "timeout", p.config.StageTimeout, "error", detail)
		return fmt.Errorf("%w: %s: %w", ErrGenerationFailure, name, err)
	case outcome == OutcomeFailed:
		log.Error("Stage failed", "stage", name, "duration", d, "error", detail)
		return fmt.Errorf("%w: %s: %w", ErrGenerationFailure, name, stageError(err, detail))
	case outcome == OutcomeDegraded:
		log.Warn("Stage degraded", "stage", name, "duration", d, "detail", detail)
	default:
		log.Info("Stage complete", "stage", name, "duration", d, "detail", detail)
	}
	return nil
}

func (p *Pipeline) skip(result *RunResult, log *slog.Logger, name, reason string) {
	result.Stages = append(result.Stages, StageReport{Name: name, Outcome: OutcomeSkipped, Detail: reason})
	p.c.Metrics.ObserveStage(name, string(OutcomeSkipped), 0)
	log.Info("Stage skipped", "stage", name, "reason", reason)
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.config.StageTimeout)
}

func stageError(err error, detail string) error {
	if err != nil {
		return err
	}
	return errors.New(detail)
}

func categoryID(categories []core.Category, title string) (int64, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Title, title) {
			return c.ID, true
		}
	}
	return 0, false
}

func withoutCategory(categories []core.Category, title string) []core.Category {
	out := make([]core.Category, 0, len(categories))
	for _, c := range categories {
		if !strings.EqualFold(c.Title, title) {
			out = append(out, c)
		}
	}
	return out
}

func citationDetail(r citations.Report) string {
	var parts []string
	if len(r.Unknown) > 0 {
		parts = append(parts, "unknown ids "+strings.Join(r.Unknown, ","))
	}
	if len(r.ErrorCited) > 0 {
		parts = append(parts, "cites failed research "+strings.Join(r.ErrorCited, ","))
	}
	return strings.Join(parts, "; ")
}
