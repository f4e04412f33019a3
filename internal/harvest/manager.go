package harvest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/observability"
)

// maxRetainedRuns bounds how many finished runs a Manager keeps in memory.
const maxRetainedRuns = 100

// RunStatus is the lifecycle state of a managed run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s != RunRunning
}

// RunState is a point-in-time view of a managed run.
type RunState struct {
	RunID      string       `json:"run_id"`
	Status     RunStatus    `json:"status"`
	Query      domain.Query `json:"query"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Records    int          `json:"canonical_records"`
	Duplicates int          `json:"duplicates_merged"`
	// Error holds persistence or publishing failures of a finished run.
	Error string `json:"error,omitempty"`
}

type managedRun struct {
	run    *Run
	cancel context.CancelFunc

	state  RunState
	corpus *domain.Corpus
}

// Manager executes harvests in the background for long-running services.
// It bounds the number of concurrent runs and keeps recent results in memory.
type Manager struct {
	runner    *Runner
	defaults  Defaults
	maxActive int
	logger    zerolog.Logger
	now       func() time.Time

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*managedRun
	active int
}

// NewManager creates a Manager. maxActive <= 0 means one run at a time.
func NewManager(runner *Runner, defaults Defaults, maxActive int, logger zerolog.Logger) *Manager {
	if maxActive <= 0 {
		maxActive = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner:    runner,
		defaults:  defaults,
		maxActive: maxActive,
		logger:    observability.WithComponent(logger, "run_manager"),
		now:       time.Now,
		baseCtx:   ctx,
		cancelAll: cancel,
		runs:      make(map[string]*managedRun),
	}
}

// StartHarvest resolves req and starts it in the background. The run
// outlives ctx; use Cancel to stop it.
func (m *Manager) StartHarvest(_ context.Context, req Request) (string, error) {
	q, err := req.Query(m.defaults, m.now())
	if err != nil {
		return "", err
	}
	return m.Submit(q)
}

// Submit starts q in the background and returns its run ID. It fails with
// domain.ErrTooManyRuns when maxActive runs are already executing.
func (m *Manager) Submit(q domain.Query) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.baseCtx.Err() != nil {
		return "", fmt.Errorf("manager is shut down: %w", domain.ErrRunCancelled)
	}
	if m.active >= m.maxActive {
		return "", fmt.Errorf("%w: limit is %d", domain.ErrTooManyRuns, m.maxActive)
	}

	run, err := m.runner.Start(q)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	mr := &managedRun{
		run:    run,
		cancel: cancel,
		state: RunState{
			RunID:     run.ID(),
			Status:    RunRunning,
			Query:     q,
			StartedAt: m.now().UTC(),
		},
	}
	m.runs[run.ID()] = mr
	m.active++
	m.evictLocked()

	m.wg.Add(1)
	go m.execute(ctx, mr)

	m.logger.Info().Str("run_id", run.ID()).Int("active_runs", m.active).Msg("harvest submitted")
	return run.ID(), nil
}

func (m *Manager) execute(ctx context.Context, mr *managedRun) {
	defer m.wg.Done()
	defer mr.cancel()

	c, err := mr.run.Execute(ctx)
	finished := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--

	mr.state.FinishedAt = &finished
	switch {
	case c == nil:
		mr.state.Status = RunFailed
	case c.Metadata.Cancelled:
		mr.state.Status = RunCancelled
	default:
		mr.state.Status = RunCompleted
	}
	if err != nil {
		mr.state.Error = err.Error()
	}
	if c != nil {
		mr.corpus = c
		mr.state.Records = c.Len()
	}
	mr.state.Duplicates = mr.run.Aggregator().Duplicates()
}

// evictLocked drops the oldest finished runs beyond maxRetainedRuns.
func (m *Manager) evictLocked() {
	if len(m.runs) <= maxRetainedRuns {
		return
	}
	var finished []*managedRun
	for _, mr := range m.runs {
		if mr.state.Status.IsTerminal() {
			finished = append(finished, mr)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].state.StartedAt.Before(finished[j].state.StartedAt)
	})
	for _, mr := range finished {
		if len(m.runs) <= maxRetainedRuns {
			break
		}
		delete(m.runs, mr.state.RunID)
	}
}

// Status returns the state of a run, with live counts while it executes.
func (m *Manager) Status(runID string) (RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, ok := m.runs[runID]
	if !ok {
		return RunState{}, domain.NewNotFoundError("run", runID)
	}
	state := mr.state
	if state.Status == RunRunning {
		agg := mr.run.Aggregator()
		state.Records = agg.Len()
		state.Duplicates = agg.Duplicates()
	}
	return state, nil
}

// List returns every retained run, newest first.
func (m *Manager) List() []RunState {
	m.mu.Lock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	states := make([]RunState, 0, len(ids))
	for _, id := range ids {
		if s, err := m.Status(id); err == nil {
			states = append(states, s)
		}
	}
	sort.Slice(states, func(i, j int) bool {
		if !states[i].StartedAt.Equal(states[j].StartedAt) {
			return states[i].StartedAt.After(states[j].StartedAt)
		}
		return states[i].RunID < states[j].RunID
	})
	return states
}

// Corpus returns the sealed corpus of a finished run.
func (m *Manager) Corpus(runID string) (*domain.Corpus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, ok := m.runs[runID]
	if !ok {
		return nil, domain.NewNotFoundError("run", runID)
	}
	if mr.state.Status == RunRunning {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunInProgress)
	}
	if mr.corpus == nil {
		return nil, domain.NewNotFoundError("corpus", runID)
	}
	return mr.corpus, nil
}

// Cancel stops a running harvest. The run still seals a partial corpus.
// Cancelling a finished run is a no-op.
func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, ok := m.runs[runID]
	if !ok {
		return domain.NewNotFoundError("run", runID)
	}
	if mr.state.Status == RunRunning {
		m.logger.Info().Str("run_id", runID).Msg("cancelling harvest")
		mr.cancel()
	}
	return nil
}

// Active returns the number of executing runs.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown cancels every running harvest and waits for them to seal, or
// for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.cancelAll()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs to finish: %w", ctx.Err())
	}
}
