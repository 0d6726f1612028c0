// Package jobs implements the regeneration job manager.
//
// Jobs are deduplicated by target key: while a job for a key is queued
// or running, another trigger for the same key joins it instead of
// starting duplicate work. Jobs run to completion or failure (there is
// no job cancellation) and are immutable once terminal.
package jobs

import (
	"fmt"
	"time"

	"github.com/farce1/handover-sub002/internal/protocol"
)

// State is a job lifecycle state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Active reports whether the state still occupies its dedupe key.
func (s State) Active() bool { return s == StateQueued || s == StateRunning }

// Target names what a job regenerates. An empty Doc means the whole
// documentation set.
type Target struct {
	Doc string `json:"doc,omitempty"`
}

// Key returns the stable dedupe key for the target.
func (t Target) Key() string {
	if t.Doc == "" {
		return "docs:all"
	}
	return "doc:" + t.Doc
}

func (t Target) String() string {
	if t.Doc == "" {
		return "all documents"
	}
	return "document " + t.Doc
}

// Failure describes a terminal failure in caller-actionable terms.
type Failure struct {
	Code        string `json:"code"`
	Reason      string `json:"reason"`
	Remediation string `json:"remediation"`
}

// Job is an immutable snapshot of one regeneration job.
type Job struct {
	ID         string     `json:"jobId"`
	Target     Target     `json:"target"`
	State      State      `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	TerminalAt *time.Time `json:"terminalAt,omitempty"`
	Failure    *Failure   `json:"failure,omitempty"`
}

// Lifecycle is the coarse progress summary derived purely from state.
type Lifecycle struct {
	ProgressPercent int    `json:"progressPercent"`
	Summary         string `json:"summary"`
}

// LifecycleOf derives the progress summary for a job.
func LifecycleOf(j Job) Lifecycle {
	switch j.State {
	case StateQueued:
		return Lifecycle{5, fmt.Sprintf("Regeneration of %s is queued.", j.Target)}
	case StateRunning:
		return Lifecycle{50, fmt.Sprintf("Regeneration of %s is running.", j.Target)}
	case StateCompleted:
		return Lifecycle{100, fmt.Sprintf("Regeneration of %s completed.", j.Target)}
	case StateFailed:
		return Lifecycle{100, fmt.Sprintf("Regeneration of %s failed.", j.Target)}
	}
	return Lifecycle{0, "Unknown state."}
}

func jobNotFound(id string) *protocol.Error {
	return protocol.NotFound(
		"job_not_found",
		fmt.Sprintf("no job with id %q", id),
		"Job ids are returned by regenerate_docs; trigger a new regeneration if the job was evicted.",
		nil,
	)
}
