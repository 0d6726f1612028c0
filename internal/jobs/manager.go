package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/farce1/handover-sub002/internal/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExecuteFunc performs the actual regeneration for a target. It is
// injected; the manager knows nothing about how documents are rebuilt.
type ExecuteFunc func(ctx context.Context, target Target) error

// Archive records terminal jobs for history across restarts. Optional.
type Archive interface {
	SaveJob(j Job) error
	LoadJob(id string) (*Job, error)
}

// TriggerOutcome is the result of a trigger call.
type TriggerOutcome struct {
	Job Job
	// Joined is true when an active job for the same target key already
	// existed and the trigger attached to it instead of starting new work.
	Joined bool
	Key    string
}

// Manager deduplicates and tracks regeneration jobs.
type Manager struct {
	mu          sync.Mutex
	jobs        map[string]*record
	activeByKey map[string]string // target key -> active job id

	exec    ExecuteFunc
	archive Archive
	log     *zap.Logger
	now     func() time.Time

	// baseCtx scopes job execution to the server's lifetime rather than
	// any single request: a triggering client may disconnect while the
	// job keeps running.
	baseCtx context.Context
	wg      sync.WaitGroup
}

type record struct {
	mu  sync.Mutex
	job Job
}

// NewManager creates a job manager around the injected execute
// callback. Jobs are executed on goroutines scoped to baseCtx.
// archive may be nil; log must not be.
func NewManager(baseCtx context.Context, exec ExecuteFunc, archive Archive, log *zap.Logger) *Manager {
	return &Manager{
		jobs:        make(map[string]*record),
		activeByKey: make(map[string]string),
		exec:        exec,
		archive:     archive,
		log:         log,
		now:         time.Now,
		baseCtx:     baseCtx,
	}
}

// Trigger starts (or joins) the regeneration job for target. If an
// active job already holds the target's dedupe key, that job is
// returned with Joined=true and no new work starts, so retried triggers
// are side-effect free.
func (m *Manager) Trigger(target Target) TriggerOutcome {
	key := target.Key()

	m.mu.Lock()
	if id, ok := m.activeByKey[key]; ok {
		rec := m.jobs[id]
		m.mu.Unlock()
		return TriggerOutcome{Job: rec.snapshot(), Joined: true, Key: key}
	}

	now := m.now()
	rec := &record{job: Job{
		ID:        uuid.NewString(),
		Target:    target,
		State:     StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	m.jobs[rec.job.ID] = rec
	m.activeByKey[key] = rec.job.ID
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.Info("regeneration job queued",
		zap.String("job_id", rec.job.ID), zap.String("target", key))
	go m.run(rec, key)

	return TriggerOutcome{Job: rec.snapshot(), Joined: false, Key: key}
}

// GetStatus returns a job's snapshot, falling back to the archive for
// jobs from earlier runs.
func (m *Manager) GetStatus(jobID string) (Job, error) {
	m.mu.Lock()
	rec, ok := m.jobs[jobID]
	m.mu.Unlock()
	if ok {
		return rec.snapshot(), nil
	}
	if m.archive != nil {
		j, err := m.archive.LoadJob(jobID)
		if err != nil {
			m.log.Warn("job archive lookup failed", zap.String("job_id", jobID), zap.Error(err))
		} else if j != nil {
			return *j, nil
		}
	}
	return Job{}, jobNotFound(jobID)
}

// Wait blocks until every in-flight job has finished. Used at shutdown.
func (m *Manager) Wait() { m.wg.Wait() }

// run drives one job through queued -> running -> terminal, releasing
// the dedupe key when the job leaves the active states.
func (m *Manager) run(rec *record, key string) {
	defer m.wg.Done()

	started := m.now()
	rec.mu.Lock()
	rec.job.State = StateRunning
	rec.job.StartedAt = &started
	rec.job.UpdatedAt = started
	target := rec.job.Target
	rec.mu.Unlock()

	err := m.safeExec(target)

	done := m.now()
	rec.mu.Lock()
	rec.job.UpdatedAt = done
	rec.job.TerminalAt = &done
	if err != nil {
		rec.job.State = StateFailed
		rec.job.Failure = failureFrom(err)
	} else {
		rec.job.State = StateCompleted
	}
	snap := rec.job
	rec.mu.Unlock()

	m.mu.Lock()
	if m.activeByKey[key] == snap.ID {
		delete(m.activeByKey, key)
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("regeneration job failed",
			zap.String("job_id", snap.ID), zap.String("target", key), zap.Error(err))
	} else {
		m.log.Info("regeneration job completed",
			zap.String("job_id", snap.ID), zap.String("target", key),
			zap.Duration("took", done.Sub(started)))
	}

	if m.archive != nil {
		if aerr := m.archive.SaveJob(snap); aerr != nil {
			m.log.Warn("job archive write failed", zap.String("job_id", snap.ID), zap.Error(aerr))
		}
	}
}

// safeExec runs the callback, converting a panic into an error so a
// broken regenerator can never take the server down or leave the job
// stuck in running.
func (m *Manager) safeExec(target Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = protocol.ExecutionFailed(
				"regeneration_panic",
				"the regeneration callback panicked",
				"Check the server logs and retry via regenerate_docs.",
				nil,
			)
			m.log.Error("regeneration callback panicked", zap.Any("panic", r))
		}
	}()
	return m.exec(m.baseCtx, target)
}

// failureFrom converts an execution error into a structured failure.
// A protocol error keeps its own code and action; anything else gets
// the generic regeneration failure shape.
func failureFrom(err error) *Failure {
	var pe *protocol.Error
	if errors.As(err, &pe) {
		return &Failure{Code: pe.Code, Reason: pe.Message, Remediation: pe.Action}
	}
	return &Failure{
		Code:        "regeneration_failed",
		Reason:      err.Error(),
		Remediation: "Fix the underlying cause, then trigger regenerate_docs again; poll with regenerate_docs_status.",
	}
}

func (r *record) snapshot() Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}
