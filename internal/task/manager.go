package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jiazeyu1987/hospitalscan/internal/dedup"
	"github.com/jiazeyu1987/hospitalscan/internal/extract"
	"github.com/jiazeyu1987/hospitalscan/internal/logger"
	"github.com/jiazeyu1987/hospitalscan/internal/verify"
)

// Default manager settings.
const (
	// DefaultReaperAge is how long terminal tasks stay in the registry.
	DefaultReaperAge = 24 * time.Hour

	// DefaultPausePollInterval is how often a paused worker re-checks its
	// status.
	DefaultPausePollInterval = 200 * time.Millisecond
)

// Sentinel errors returned by lifecycle operations.
var (
	ErrNotFound          = errors.New("task not found")
	ErrAlreadyRunning    = errors.New("task is already running")
	ErrInvalidTransition = errors.New("invalid task state transition")
)

// URLVerifier scores a URL. Satisfied by verify.Verifier.
type URLVerifier interface {
	Verify(ctx context.Context, rawURL string) verify.Result
}

// CandidateExtractor parses HTML into tender candidates. Satisfied by
// extract.Extractor.
type CandidateExtractor interface {
	Candidates(html, sourceURL string) []extract.Candidate
}

// Options holds manager settings.
type Options struct {
	// ReaperAge is the age past which terminal tasks are reaped.
	ReaperAge time.Duration

	// PausePollInterval is the paused-worker re-check interval.
	PausePollInterval time.Duration
}

// withDefaults fills zero fields with defaults.
func (o Options) withDefaults() Options {
	if o.ReaperAge <= 0 {
		o.ReaperAge = DefaultReaperAge
	}
	if o.PausePollInterval <= 0 {
		o.PausePollInterval = DefaultPausePollInterval
	}
	return o
}

// Deps are the manager's collaborators. Verifier, Extractor and Deduper
// are required; Targets may be nil when every task carries explicit URLs;
// a nil Store falls back to an in-memory one.
type Deps struct {
	Verifier  URLVerifier
	Extractor CandidateExtractor
	Deduper   *dedup.Deduper
	Targets   TargetSource
	Fetcher   Fetcher
	Store     Store
	Logger    logger.Interface
	Clock     func() time.Time
}

// Manager owns the task registry and the workers executing tasks. One
// mutex guards all registry access; it is never held across a fetch.
type Manager struct {
	opts Options
	deps Deps

	mu    sync.Mutex
	tasks map[string]*record

	logger logger.Interface
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(opts Options, deps Deps) (*Manager, error) {
	if deps.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if deps.Deduper == nil {
		return nil, errors.New("deduper is required")
	}
	if deps.Store == nil {
		deps.Store = NewMemoryStore()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOp()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Manager{
		opts:   opts.withDefaults(),
		deps:   deps,
		tasks:  make(map[string]*record),
		logger: deps.Logger.WithComponent("task"),
		now:    deps.Clock,
	}, nil
}

// Submit validates the config and registers a pending task. The raw config
// map is decoded into the task type's typed config; unknown task types and
// malformed configs are rejected here, before any state is created.
func (m *Manager) Submit(taskType Type, rawConfig map[string]any) (string, error) {
	cfg, err := decodeConfig(taskType, rawConfig)
	if err != nil {
		return "", err
	}

	if len(targetURLs(cfg)) == 0 && m.deps.Targets == nil {
		return "", errNoTargets
	}

	id := uuid.NewString()

	m.mu.Lock()
	m.tasks[id] = &record{
		id:       id,
		taskType: taskType,
		status:   StatusPending,
		config:   cfg,
	}
	m.mu.Unlock()

	m.logger.Info("task submitted", "task_id", id, "type", string(taskType))

	return id, nil
}

// Start launches a worker for the task. Valid from pending and from the
// terminal states (restart); starting a running or paused task fails.
func (m *Manager) Start(id string) error {
	m.mu.Lock()

	rec, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("start %s: %w", id, ErrNotFound)
	}

	switch rec.status {
	case StatusRunning:
		m.mu.Unlock()
		return fmt.Errorf("start %s: %w", id, ErrAlreadyRunning)
	case StatusPaused:
		m.mu.Unlock()
		return fmt.Errorf("start %s from paused: %w", id, ErrInvalidTransition)
	}

	rec.status = StatusRunning
	rec.progress = 0
	rec.errDetail = ""
	rec.result = nil
	rec.startedAt = m.now()
	rec.endedAt = time.Time{}
	rec.done = make(chan struct{})

	taskType, cfg, done := rec.taskType, rec.config, rec.done
	m.mu.Unlock()

	m.logger.Info("task started", "task_id", id, "type", string(taskType))

	go m.run(id, taskType, cfg, done)

	return nil
}

// Stop transitions a running task to stopped and stamps its end time. The
// worker observes the change at its next checkpoint; cancellation is
// cooperative and bounded by one unit of work.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("stop %s: %w", id, ErrNotFound)
	}
	if rec.status != StatusRunning {
		return fmt.Errorf("stop %s from %s: %w", id, rec.status, ErrInvalidTransition)
	}

	rec.status = StatusStopped
	rec.endedAt = m.now()

	return nil
}

// Pause suspends a running task at its next checkpoint.
func (m *Manager) Pause(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("pause %s: %w", id, ErrNotFound)
	}
	if rec.status != StatusRunning {
		return fmt.Errorf("pause %s from %s: %w", id, rec.status, ErrInvalidTransition)
	}

	rec.status = StatusPaused

	return nil
}

// Resume returns a paused task to running.
func (m *Manager) Resume(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("resume %s: %w", id, ErrNotFound)
	}
	if rec.status != StatusPaused {
		return fmt.Errorf("resume %s from %s: %w", id, rec.status, ErrInvalidTransition)
	}

	rec.status = StatusRunning

	return nil
}

// Get returns a snapshot of the task.
func (m *Manager) Get(id string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return View{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}

	return rec.snapshot(), nil
}

// List returns snapshots of every registered task.
func (m *Manager) List() []View {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make([]View, 0, len(m.tasks))
	for _, rec := range m.tasks {
		views = append(views, rec.snapshot())
	}
	return views
}

// ListRunning returns snapshots of tasks currently running or paused.
func (m *Manager) ListRunning() []View {
	m.mu.Lock()
	defer m.mu.Unlock()

	var views []View
	for _, rec := range m.tasks {
		if rec.status == StatusRunning || rec.status == StatusPaused {
			views = append(views, rec.snapshot())
		}
	}
	return views
}

// RunningCount returns the number of live tasks of the given type. Used by
// the scheduler to enforce per-job instance caps.
func (m *Manager) RunningCount(taskType Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.tasks {
		if rec.taskType == taskType && (rec.status == StatusRunning || rec.status == StatusPaused) {
			count++
		}
	}
	return count
}

// Wait blocks until the task's worker exits or the context is done. Tasks
// that never started return immediately.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("wait %s: %w", id, ErrNotFound)
	}
	done := rec.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReapExpired removes terminal tasks whose end time is older than the
// reaper age. Returns the number of tasks removed.
func (m *Manager) ReapExpired() int {
	cutoff := m.now().Add(-m.opts.ReaperAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, rec := range m.tasks {
		if rec.status.Terminal() && !rec.endedAt.IsZero() && rec.endedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("reaped expired tasks", "removed", removed)
	}

	return removed
}

// statusOf reads a task's status under the lock.
func (m *Manager) statusOf(id string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return StatusStopped
	}
	return rec.status
}

// setProgress updates a task's progress if it is still live.
func (m *Manager) setProgress(id string, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.tasks[id]; ok && !rec.status.Terminal() {
		rec.progress = progress
	}
}
