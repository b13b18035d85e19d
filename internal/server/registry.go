package server

import (
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"aiblog/internal/core"
	"aiblog/internal/pipeline"
)

// DefaultRunRetention is how long finished runs stay queryable.
const DefaultRunRetention = 24 * time.Hour

// RunStatus is the lifecycle state of a run
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusFinished RunStatus = "finished"
	StatusFailed   RunStatus = "failed"
)

// RunRecord is a run as the API reports it
type RunRecord struct {
	ID         string              `json:"id"`
	Kind       core.PostKind       `json:"kind"`
	DryRun     bool                `json:"dry_run"`
	Status     RunStatus           `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Error      string              `json:"error,omitempty"`
	Result     *pipeline.RunResult `json:"result,omitempty"`
}

// RunRegistry keeps recent runs in memory with expiry
type RunRegistry struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewRunRegistry creates a registry that forgets runs after retention
func NewRunRegistry(retention time.Duration) *RunRegistry {
	return &RunRegistry{cache: cache.New(retention, retention/4)}
}

// Begin records a run that has just started
func (r *RunRegistry) Begin(id string, opts pipeline.RunOptions) RunRecord {
	kind := opts.Kind
	if kind == "" {
		kind = core.KindGeneral
	}
	rec := RunRecord{ID: id, Kind: kind, DryRun: opts.DryRun, Status: StatusRunning, StartedAt: time.Now()}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.SetDefault(id, rec)
	return rec
}

// Record stores a finished run, creating the record when the run was not
// started through Begin.
func (r *RunRegistry) Record(result *pipeline.RunResult, err error) {
	if result == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := RunRecord{ID: result.RunID, Kind: result.Kind, DryRun: result.DryRun, StartedAt: result.StartedAt}
	if v, ok := r.cache.Get(result.RunID); ok {
		rec = v.(RunRecord)
	}
	finished := time.Now()
	rec.FinishedAt = &finished
	rec.Result = result
	rec.Status = StatusFinished
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
	r.cache.SetDefault(result.RunID, rec)
}

// Get returns a run by id
func (r *RunRegistry) Get(id string) (RunRecord, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return RunRecord{}, false
	}
	return v.(RunRecord), true
}

// List returns every retained run, newest first
func (r *RunRegistry) List() []RunRecord {
	items := r.cache.Items()
	out := make([]RunRecord, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(RunRecord))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
