package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/farce1/handover-sub002/internal/jobs"
	"github.com/farce1/handover-sub002/internal/pipeline"
	"github.com/farce1/handover-sub002/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// --- test helpers ---

func getResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("result content is %T, want text", result.Content[0])
	}
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(getResultText(t, result)), &m); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, getResultText(t, result))
	}
	return m
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func testSessionManager(answer session.AnswerFunc) *session.Manager {
	return session.NewManager(answer, nil, session.DefaultConfig(), zap.NewNop())
}

func simpleAnswer(ctx context.Context, req session.Request, emit session.EmitFunc) (*session.Result, error) {
	if err := emit(session.EventStage, map[string]any{"stage": "search"}); err != nil {
		return nil, err
	}
	if err := emit(session.EventToken, map[string]any{"text": "hello"}); err != nil {
		return nil, err
	}
	return &session.Result{Answer: "hello"}, nil
}

// --- qa_stream_* tools ---

func TestQAStartTool_Flow(t *testing.T) {
	sm := testSessionManager(simpleAnswer)
	start := NewQAStartTool(sm)

	if start.Definition().Name != "qa_stream_start" {
		t.Errorf("name = %q", start.Definition().Name)
	}

	result, err := start.Handle(context.Background(), callReq(map[string]any{
		"query":     "what is this",
		"sessionId": "s1",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got %s", getResultText(t, result))
	}

	resp := decodeResult(t, result)
	if resp["ok"] != true || resp["sessionId"] != "s1" || resp["state"] != "completed" {
		t.Errorf("resp = %v", resp)
	}
	// stage + token + final
	if resp["lastSequence"].(float64) != 3 {
		t.Errorf("lastSequence = %v", resp["lastSequence"])
	}
	if resp["result"].(map[string]any)["answer"] != "hello" {
		t.Errorf("result = %v", resp["result"])
	}
}

func TestQAStartTool_MissingQuery(t *testing.T) {
	start := NewQAStartTool(testSessionManager(simpleAnswer))
	result, err := start.Handle(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("missing query should be an error result")
	}
	resp := decodeResult(t, result)
	werr := resp["error"].(map[string]any)
	if werr["code"] != "invalid_argument" || werr["field"] != "query" {
		t.Errorf("error = %v", werr)
	}
	if werr["action"] == "" {
		t.Error("error must carry an action")
	}
}

func TestQAStatusAndResumeTools(t *testing.T) {
	sm := testSessionManager(simpleAnswer)
	if _, err := sm.Start(context.Background(), session.Request{Query: "q"}, "s2", nil); err != nil {
		t.Fatal(err)
	}

	status := NewQAStatusTool(sm)
	result, err := status.Handle(context.Background(), callReq(map[string]any{
		"sessionId":       "s2",
		"lastAckSequence": 1,
	}))
	if err != nil {
		t.Fatal(err)
	}
	resp := decodeResult(t, result)
	if resp["state"] != "completed" {
		t.Errorf("state = %v", resp["state"])
	}
	if n := len(resp["events"].([]any)); n != 2 {
		t.Errorf("status returned %d events after ack 1, want 2", n)
	}

	resume := NewQAResumeTool(sm)
	result, err = resume.Handle(context.Background(), callReq(map[string]any{
		"sessionId":       "s2",
		"lastAckSequence": 0,
	}))
	if err != nil {
		t.Fatal(err)
	}
	resp = decodeResult(t, result)
	events := resp["events"].([]any)
	if len(events) != 3 {
		t.Errorf("resume from 0 returned %d events, want 3", len(events))
	}
	for i, raw := range events {
		if seq := raw.(map[string]any)["seq"].(float64); seq != float64(i+1) {
			t.Errorf("event %d seq = %v", i, seq)
		}
	}

	// Out-of-range ack is a structured sequence mismatch.
	result, err = resume.Handle(context.Background(), callReq(map[string]any{
		"sessionId":       "s2",
		"lastAckSequence": 99,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("out-of-range resume should be an error result")
	}
	resp = decodeResult(t, result)
	if resp["error"].(map[string]any)["code"] != "sequence_mismatch" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestQAStatusTool_UnknownSession(t *testing.T) {
	status := NewQAStatusTool(testSessionManager(simpleAnswer))
	result, err := status.Handle(context.Background(), callReq(map[string]any{"sessionId": "ghost"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("unknown session should be an error result")
	}
	if code := decodeResult(t, result)["error"].(map[string]any)["code"]; code != "session_not_found" {
		t.Errorf("code = %v", code)
	}
}

func TestQACancelTool_Idempotent(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sm := testSessionManager(func(ctx context.Context, req session.Request, emit session.EmitFunc) (*session.Result, error) {
		_ = emit(session.EventToken, nil)
		close(started)
		<-release
		if err := emit(session.EventToken, nil); err != nil {
			return nil, err
		}
		return &session.Result{Answer: "x"}, nil
	})

	go func() {
		_, _ = sm.Start(context.Background(), session.Request{Query: "q"}, "c1", nil)
	}()
	<-started
	defer close(release)

	cancel := NewQACancelTool(sm)
	result, err := cancel.Handle(context.Background(), callReq(map[string]any{
		"sessionId": "c1",
		"reason":    "switching topics",
	}))
	if err != nil {
		t.Fatal(err)
	}
	resp := decodeResult(t, result)
	if resp["state"] != "cancelled" || resp["cancelledAt"] == nil {
		t.Errorf("resp = %v", resp)
	}
	first := resp["lastSequence"].(float64)

	result, err = cancel.Handle(context.Background(), callReq(map[string]any{"sessionId": "c1"}))
	if err != nil {
		t.Fatal(err)
	}
	resp = decodeResult(t, result)
	if resp["state"] != "cancelled" || resp["lastSequence"].(float64) != first {
		t.Errorf("repeat cancel changed state: %v", resp)
	}
}

// --- regenerate_docs tools ---

func TestRegenerateTools_TriggerJoinStatus(t *testing.T) {
	release := make(chan struct{})
	jm := jobs.NewManager(context.Background(), func(ctx context.Context, target jobs.Target) error {
		<-release
		return nil
	}, nil, zap.NewNop())

	trigger := NewRegenerateTool(jm)
	result, err := trigger.Handle(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	resp := decodeResult(t, result)
	jobID := resp["jobId"].(string)
	dedupe := resp["dedupe"].(map[string]any)
	if dedupe["joined"] != false || dedupe["key"] != "docs:all" {
		t.Errorf("dedupe = %v", dedupe)
	}
	next := resp["next"].(map[string]any)
	if next["tool"] != "regenerate_docs_status" || next["pollAfterMs"] == nil {
		t.Errorf("next = %v", next)
	}

	// Duplicate trigger joins the active job.
	result, err = trigger.Handle(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	resp = decodeResult(t, result)
	if resp["jobId"] != jobID || resp["dedupe"].(map[string]any)["joined"] != true {
		t.Errorf("duplicate trigger = %v", resp)
	}

	close(release)
	jm.Wait()

	status := NewRegenerateStatusTool(jm)
	waitForTerminal(t, status, jobID)
}

func waitForTerminal(t *testing.T, status *RegenerateStatusTool, jobID string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		result, err := status.Handle(context.Background(), callReq(map[string]any{"jobId": jobID}))
		if err != nil {
			t.Fatal(err)
		}
		resp := decodeResult(t, result)
		if resp["state"] == "completed" {
			lc := resp["lifecycle"].(map[string]any)
			if lc["progressPercent"].(float64) != 100 {
				t.Errorf("lifecycle = %v", lc)
			}
			if resp["terminalAt"] == nil {
				t.Error("terminal job must carry terminalAt")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never completed: %v", resp)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestRegenerateStatusTool_FailureShape(t *testing.T) {
	jm := jobs.NewManager(context.Background(), func(ctx context.Context, target jobs.Target) error {
		return context.DeadlineExceeded
	}, nil, zap.NewNop())

	out := jm.Trigger(jobs.Target{Doc: "overview"})
	jm.Wait()

	status := NewRegenerateStatusTool(jm)
	result, err := status.Handle(context.Background(), callReq(map[string]any{"jobId": out.Job.ID}))
	if err != nil {
		t.Fatal(err)
	}
	resp := decodeResult(t, result)
	if resp["state"] != "failed" {
		t.Fatalf("state = %v", resp["state"])
	}
	failure := resp["failure"].(map[string]any)
	if failure["code"] != "regeneration_failed" || failure["remediation"] == "" {
		t.Errorf("failure = %v", failure)
	}
}

func TestRegenerateStatusTool_UnknownJob(t *testing.T) {
	jm := jobs.NewManager(context.Background(), func(ctx context.Context, target jobs.Target) error { return nil }, nil, zap.NewNop())
	status := NewRegenerateStatusTool(jm)

	result, err := status.Handle(context.Background(), callReq(map[string]any{"jobId": "nope"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("unknown job should be an error result")
	}
	if code := decodeResult(t, result)["error"].(map[string]any)["code"]; code != "job_not_found" {
		t.Errorf("code = %v", code)
	}
}

// --- semantic_search tool ---

type fakeSearcher struct{ results []pipeline.SearchResult }

func (f fakeSearcher) Search(query string, limit int, types []string) []pipeline.SearchResult {
	if len(f.results) > limit {
		return f.results[:limit]
	}
	return f.results
}

func TestSearchTool(t *testing.T) {
	tool := NewSearchTool(fakeSearcher{results: []pipeline.SearchResult{
		{URI: "handover://docs/auth", Name: "auth", Type: "docs", Score: 7},
		{URI: "handover://docs/overview", Name: "overview", Type: "docs", Score: 2},
	}})

	result, err := tool.Handle(context.Background(), callReq(map[string]any{
		"query": "auth",
		"limit": 1,
	}))
	if err != nil {
		t.Fatal(err)
	}
	resp := decodeResult(t, result)
	if resp["ok"] != true || resp["total"].(float64) != 1 {
		t.Errorf("resp = %v", resp)
	}
	if !strings.Contains(getResultText(t, result), "handover://docs/auth") {
		t.Error("results should carry resource URIs")
	}
}

func TestSearchTool_EmptyQuery(t *testing.T) {
	tool := NewSearchTool(fakeSearcher{})
	result, err := tool.Handle(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("empty query should be an error result")
	}
}
