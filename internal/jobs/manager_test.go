package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farce1/handover-sub002/internal/protocol"
	"go.uber.org/zap"
)

func TestTarget_Key(t *testing.T) {
	if got := (Target{}).Key(); got != "docs:all" {
		t.Errorf("default target key = %q", got)
	}
	if got := (Target{Doc: "overview"}).Key(); got != "doc:overview" {
		t.Errorf("doc target key = %q", got)
	}
}

func TestTrigger_RunsToCompletion(t *testing.T) {
	done := make(chan Target, 1)
	m := NewManager(context.Background(), func(ctx context.Context, target Target) error {
		done <- target
		return nil
	}, nil, zap.NewNop())

	out := m.Trigger(Target{Doc: "api"})
	if out.Joined {
		t.Error("first trigger should not join")
	}
	if out.Job.State != StateQueued && out.Job.State != StateRunning {
		t.Errorf("fresh job state = %s", out.Job.State)
	}
	if out.Key != "doc:api" {
		t.Errorf("key = %q", out.Key)
	}

	if got := <-done; got.Doc != "api" {
		t.Errorf("callback target = %+v", got)
	}
	m.Wait()

	j, err := m.GetStatus(out.Job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if j.State != StateCompleted {
		t.Errorf("state = %s, want completed", j.State)
	}
	if j.StartedAt == nil || j.TerminalAt == nil {
		t.Error("startedAt and terminalAt must be recorded")
	}
	if j.Failure != nil {
		t.Errorf("unexpected failure: %+v", j.Failure)
	}
}

func TestTrigger_DedupJoinsActiveJob(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(context.Background(), func(ctx context.Context, target Target) error {
		<-release
		return nil
	}, nil, zap.NewNop())

	first := m.Trigger(Target{})
	second := m.Trigger(Target{})

	if second.Job.ID != first.Job.ID {
		t.Errorf("duplicate trigger created a new job: %s vs %s", second.Job.ID, first.Job.ID)
	}
	if !second.Joined {
		t.Error("duplicate trigger should report joined = true")
	}

	close(release)
	m.Wait()

	// Once terminal, the key is free again: a new trigger gets a new
	// job (its exec returns immediately on the closed channel).
	third := m.Trigger(Target{})
	if third.Joined || third.Job.ID == first.Job.ID {
		t.Errorf("post-terminal trigger should start fresh, got joined=%v id=%s", third.Joined, third.Job.ID)
	}
	m.Wait()
}

func TestTrigger_DistinctTargetsIndependent(t *testing.T) {
	var mu sync.Mutex
	running := map[string]chan struct{}{
		"doc:a": make(chan struct{}),
		"doc:b": make(chan struct{}),
	}
	m := NewManager(context.Background(), func(ctx context.Context, target Target) error {
		mu.Lock()
		ch := running[target.Key()]
		mu.Unlock()
		<-ch
		return nil
	}, nil, zap.NewNop())

	a := m.Trigger(Target{Doc: "a"})
	b := m.Trigger(Target{Doc: "b"})

	if a.Joined || b.Joined {
		t.Error("distinct targets must not join each other")
	}
	if a.Job.ID == b.Job.ID {
		t.Error("distinct targets must get distinct jobs")
	}

	// Finishing b while a is still blocked proves they do not serialize.
	close(running["doc:b"])
	waitForState(t, m, b.Job.ID, StateCompleted)

	ja, err := m.GetStatus(a.Job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ja.State.Active() == false {
		t.Errorf("job a should still be active, got %s", ja.State)
	}

	close(running["doc:a"])
	m.Wait()
}

func TestRun_FailureCaptured(t *testing.T) {
	m := NewManager(context.Background(), func(ctx context.Context, target Target) error {
		return errors.New("renderer exited with status 2")
	}, nil, zap.NewNop())

	out := m.Trigger(Target{})
	m.Wait()

	j, err := m.GetStatus(out.Job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if j.State != StateFailed {
		t.Fatalf("state = %s, want failed", j.State)
	}
	if j.Failure == nil || j.Failure.Code != "regeneration_failed" {
		t.Errorf("failure = %+v", j.Failure)
	}
	if j.Failure.Remediation == "" {
		t.Error("failure must carry remediation")
	}
}

func TestRun_ProtocolErrorKeepsCode(t *testing.T) {
	m := NewManager(context.Background(), func(ctx context.Context, target Target) error {
		return protocol.ExecutionFailed("regen_not_configured",
			"no regeneration command configured",
			"Set HANDOVER_REGEN_CMD and restart.", nil)
	}, nil, zap.NewNop())

	out := m.Trigger(Target{})
	m.Wait()

	j, _ := m.GetStatus(out.Job.ID)
	if j.Failure == nil || j.Failure.Code != "regen_not_configured" {
		t.Errorf("failure = %+v, want preserved code", j.Failure)
	}
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	m := NewManager(context.Background(), func(ctx context.Context, target Target) error {
		panic("boom")
	}, nil, zap.NewNop())

	out := m.Trigger(Target{})
	m.Wait()

	j, _ := m.GetStatus(out.Job.ID)
	if j.State != StateFailed || j.Failure == nil || j.Failure.Code != "regeneration_panic" {
		t.Errorf("panic should yield a failed job with regeneration_panic, got %+v", j)
	}
}

func TestGetStatus_Unknown(t *testing.T) {
	m := NewManager(context.Background(), func(ctx context.Context, target Target) error { return nil }, nil, zap.NewNop())
	if _, err := m.GetStatus("nope"); !protocol.IsKind(err, protocol.KindNotFound) {
		t.Errorf("unknown job should be not_found, got %v", err)
	}
}

func TestLifecycleOf(t *testing.T) {
	cases := []struct {
		state   State
		percent int
	}{
		{StateQueued, 5},
		{StateRunning, 50},
		{StateCompleted, 100},
		{StateFailed, 100},
	}
	for _, tc := range cases {
		lc := LifecycleOf(Job{State: tc.state, Target: Target{}})
		if lc.ProgressPercent != tc.percent {
			t.Errorf("%s: percent = %d, want %d", tc.state, lc.ProgressPercent, tc.percent)
		}
		if lc.Summary == "" {
			t.Errorf("%s: summary must be non-empty", tc.state)
		}
	}
}

func waitForState(t *testing.T, m *Manager, id string, want State) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		j, err := m.GetStatus(id)
		if err != nil {
			t.Fatal(err)
		}
		if j.State == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached %s (now %s)", id, want, j.State)
		case <-time.After(2 * time.Millisecond):
		}
	}
}
