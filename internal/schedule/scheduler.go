// Package schedule runs recurring jobs against the task manager. Jobs fire
// on fixed intervals or cron expressions; a per-job live-instance cap makes
// over-cap firings skip rather than queue.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jiazeyu1987/hospitalscan/internal/logger"
	"github.com/jiazeyu1987/hospitalscan/internal/task"
)

// Run statuses recorded per job.
const (
	RunStatusIdle    = "idle"
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusSkipped = "skipped"
	RunStatusError   = "error"
)

// Sentinel errors.
var (
	ErrJobExists   = errors.New("job already registered")
	ErrJobNotFound = errors.New("job not found")
)

// TaskRunner is the slice of the task manager the scheduler needs.
// Satisfied by *task.Manager.
type TaskRunner interface {
	Submit(taskType task.Type, rawConfig map[string]any) (string, error)
	Start(id string) error
	Wait(ctx context.Context, id string) error
	Get(id string) (task.View, error)
}

// Trigger describes when a job fires: a fixed interval, or a standard
// five-field cron expression when Every is zero.
type Trigger struct {
	Every time.Duration
	Cron  string
}

// spec renders the trigger as a cron spec string.
func (t Trigger) spec() string {
	if t.Every > 0 {
		return "@every " + t.Every.String()
	}
	return t.Cron
}

func (t Trigger) validate() error {
	if t.Every <= 0 && t.Cron == "" {
		return errors.New("trigger needs an interval or a cron expression")
	}
	return nil
}

// JobSpec declares a recurring job.
type JobSpec struct {
	ID           string
	Trigger      Trigger
	TaskType     task.Type
	TaskConfig   map[string]any
	MaxInstances int

	// Replace removes any existing job with the same id before
	// registering this one.
	Replace bool
}

// RunState is a job's last-run record, kept independently of task state.
type RunState struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// JobView is a read-only snapshot of a registered job.
type JobView struct {
	ID           string    `json:"id"`
	Trigger      string    `json:"trigger"`
	TaskType     task.Type `json:"task_type,omitempty"`
	MaxInstances int       `json:"max_instances"`
	Paused       bool      `json:"paused"`
	NextRun      time.Time `json:"next_run,omitempty"`
	LastRun      RunState  `json:"last_run"`
}

// job is the scheduler-internal record.
type job struct {
	spec    JobSpec
	entryID cron.EntryID
	handler func(context.Context) error
	paused  bool
	active  int
	lastRun RunState
}

// Scheduler owns the job table. One mutex guards it; firing never holds
// the lock across a task execution.
type Scheduler struct {
	cron   *cron.Cron
	runner TaskRunner
	logger logger.Interface
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a Scheduler. A nil clock means time.Now.
func New(runner TaskRunner, log logger.Interface, clock func() time.Time) *Scheduler {
	if log == nil {
		log = logger.NewNoOp()
	}
	if clock == nil {
		clock = time.Now
	}

	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		logger: log.WithComponent("schedule"),
		now:    clock,
		jobs:   make(map[string]*job),
	}
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops firing and waits for in-flight firings to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RegisterJob adds a task-running job. Registering an existing id fails
// unless the spec sets Replace, in which case the prior job is removed
// first.
func (s *Scheduler) RegisterJob(spec JobSpec) error {
	if spec.ID == "" {
		return errors.New("job id is required")
	}
	if !spec.TaskType.Valid() {
		return fmt.Errorf("job %s: unknown task type %q", spec.ID, spec.TaskType)
	}
	return s.register(spec, nil)
}

// RegisterFunc adds a job running an arbitrary handler instead of a task.
// Used for maintenance work such as reaping and report generation.
func (s *Scheduler) RegisterFunc(id string, trigger Trigger, handler func(context.Context) error) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	return s.register(JobSpec{ID: id, Trigger: trigger, MaxInstances: 1, Replace: true}, handler)
}

func (s *Scheduler) register(spec JobSpec, handler func(context.Context) error) error {
	if err := spec.Trigger.validate(); err != nil {
		return fmt.Errorf("job %s: %w", spec.ID, err)
	}
	if spec.MaxInstances <= 0 {
		spec.MaxInstances = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[spec.ID]; ok {
		if !spec.Replace {
			return fmt.Errorf("job %s: %w", spec.ID, ErrJobExists)
		}
		s.cron.Remove(existing.entryID)
		delete(s.jobs, spec.ID)
	}

	id := spec.ID
	entryID, err := s.cron.AddFunc(spec.Trigger.spec(), func() { s.fire(id) })
	if err != nil {
		return fmt.Errorf("job %s: register trigger %q: %w", spec.ID, spec.Trigger.spec(), err)
	}

	s.jobs[spec.ID] = &job{
		spec:    spec,
		entryID: entryID,
		handler: handler,
		lastRun: RunState{Status: RunStatusIdle, UpdatedAt: s.now()},
	}

	s.logger.Info("job registered",
		"job_id", spec.ID,
		"trigger", spec.Trigger.spec(),
		"max_instances", spec.MaxInstances,
	)

	return nil
}

// RemoveJob deletes a job.
func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrJobNotFound)
	}

	s.cron.Remove(j.entryID)
	delete(s.jobs, id)

	return nil
}

// PauseJob makes subsequent firings no-ops until resumed.
func (s *Scheduler) PauseJob(id string) error {
	return s.setPaused(id, true)
}

// ResumeJob re-enables a paused job.
func (s *Scheduler) ResumeJob(id string) error {
	return s.setPaused(id, false)
}

func (s *Scheduler) setPaused(id string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	j.paused = paused

	return nil
}

// ListJobs returns snapshots of every registered job.
func (s *Scheduler) ListJobs() []JobView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]JobView, 0, len(s.jobs))
	for _, j := range s.jobs {
		views = append(views, s.viewLocked(j))
	}
	return views
}

// GetJob returns one job's snapshot.
func (s *Scheduler) GetJob(id string) (JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return JobView{}, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	return s.viewLocked(j), nil
}

func (s *Scheduler) viewLocked(j *job) JobView {
	view := JobView{
		ID:           j.spec.ID,
		Trigger:      j.spec.Trigger.spec(),
		TaskType:     j.spec.TaskType,
		MaxInstances: j.spec.MaxInstances,
		Paused:       j.paused,
		LastRun:      j.lastRun,
	}
	if entry := s.cron.Entry(j.entryID); entry.Valid() {
		view.NextRun = entry.Next
	}
	return view
}

// RunNow fires a job immediately, synchronously, subject to the same
// paused and instance-cap rules as a scheduled firing.
func (s *Scheduler) RunNow(id string) error {
	s.mu.Lock()
	_, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s: %w", id, ErrJobNotFound)
	}

	s.fire(id)
	return nil
}

// fire executes one firing of a job. Over-cap and paused firings are
// skipped, never queued.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if j.paused {
		s.mu.Unlock()
		return
	}
	if j.active >= j.spec.MaxInstances {
		j.lastRun = RunState{
			Status:    RunStatusSkipped,
			Message:   fmt.Sprintf("instance cap %d reached", j.spec.MaxInstances),
			UpdatedAt: s.now(),
		}
		s.mu.Unlock()
		s.logger.Warn("job firing skipped, instance cap reached", "job_id", id)
		return
	}
	j.active++
	spec, handler := j.spec, j.handler
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if j, ok := s.jobs[id]; ok {
			j.active--
		}
		s.mu.Unlock()
	}()

	if handler != nil {
		s.runHandler(id, handler)
		return
	}
	s.runTask(id, spec)
}

// runHandler executes a func job.
func (s *Scheduler) runHandler(id string, handler func(context.Context) error) {
	s.setLastRun(id, RunState{Status: RunStatusRunning, UpdatedAt: s.now()})

	if err := handler(context.Background()); err != nil {
		s.setLastRun(id, RunState{Status: RunStatusError, Message: err.Error(), UpdatedAt: s.now()})
		s.logger.Error("job handler failed", "job_id", id, "error", err.Error())
		return
	}

	s.setLastRun(id, RunState{Status: RunStatusOK, UpdatedAt: s.now()})
}

// runTask submits and runs one task for a task job, then records the
// task's outcome as the job's last-run state.
func (s *Scheduler) runTask(id string, spec JobSpec) {
	taskID, err := s.runner.Submit(spec.TaskType, spec.TaskConfig)
	if err != nil {
		s.setLastRun(id, RunState{Status: RunStatusError, Message: err.Error(), UpdatedAt: s.now()})
		s.logger.Error("job task submission failed", "job_id", id, "error", err.Error())
		return
	}

	if err := s.runner.Start(taskID); err != nil {
		s.setLastRun(id, RunState{Status: RunStatusError, Message: err.Error(), UpdatedAt: s.now()})
		return
	}

	s.setLastRun(id, RunState{
		Status:    RunStatusRunning,
		Message:   "task " + taskID,
		UpdatedAt: s.now(),
	})

	if err := s.runner.Wait(context.Background(), taskID); err != nil {
		s.setLastRun(id, RunState{Status: RunStatusError, Message: err.Error(), UpdatedAt: s.now()})
		return
	}

	view, err := s.runner.Get(taskID)
	if err != nil {
		s.setLastRun(id, RunState{Status: RunStatusError, Message: err.Error(), UpdatedAt: s.now()})
		return
	}

	state := RunState{Status: RunStatusOK, Result: view.Result, UpdatedAt: s.now()}
	if view.Error != "" {
		state.Status = RunStatusError
		state.Message = view.Error
	}
	s.setLastRun(id, state)
}

// setLastRun records a job's run state under the lock.
func (s *Scheduler) setLastRun(id string, state RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[id]; ok {
		j.lastRun = state
	}
}
