// Package task owns the lifecycle of crawl tasks: submission, cooperative
// execution on worker goroutines, pause/resume/stop transitions, and an
// age-based reaper for terminal tasks. It is the only component in the
// pipeline with external side effects; the engines it calls are pure.
package task

import (
	"time"
)

// Type identifies what a task does when started.
type Type string

const (
	// TypeDiscovery verifies candidate hospital URLs for authenticity.
	TypeDiscovery Type = "discovery"

	// TypeTenderMonitor extracts tender candidates from known sources.
	TypeTenderMonitor Type = "tender_monitor"

	// TypeHospitalScan verifies a hospital site and then extracts from it.
	TypeHospitalScan Type = "hospital_scan"
)

// Valid reports whether the type is one the manager can execute.
func (t Type) Valid() bool {
	switch t {
	case TypeDiscovery, TypeTenderMonitor, TypeHospitalScan:
		return true
	default:
		return false
	}
}

// Status represents a task's lifecycle state.
type Status int32

const (
	// StatusPending means the task is submitted but not started.
	StatusPending Status = iota

	// StatusRunning means a worker is executing the task.
	StatusRunning

	// StatusPaused means execution is suspended at a checkpoint.
	StatusPaused

	// StatusStopped means the task finished or was stopped.
	StatusStopped

	// StatusError means execution failed.
	StatusError
)

// String returns the string representation of a status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusError
}

// record is the manager-internal task state. All access goes through the
// manager's mutex; workers never hold a pointer to it across a fetch.
type record struct {
	id        string
	taskType  Type
	status    Status
	progress  int
	config    Config
	startedAt time.Time
	endedAt   time.Time
	result    map[string]any
	errDetail string

	// done is closed when the worker goroutine exits.
	done chan struct{}
}

// View is a read-only snapshot of a task handed to callers.
type View struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// snapshot copies the record into a View. Caller must hold the manager lock.
func (r *record) snapshot() View {
	view := View{
		ID:        r.id,
		Type:      r.taskType,
		Status:    r.status.String(),
		Progress:  r.progress,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		Error:     r.errDetail,
	}

	if r.result != nil {
		view.Result = make(map[string]any, len(r.result))
		for key, value := range r.result {
			view.Result[key] = value
		}
	}

	return view
}
