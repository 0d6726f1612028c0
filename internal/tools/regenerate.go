package tools

import (
	"context"

	"github.com/farce1/handover-sub002/internal/jobs"
	"github.com/mark3labs/mcp-go/mcp"
)

// Suggested poll interval returned in `next` guidance for active jobs.
const pollAfterMs = 1500

// RegenerateTool handles regenerate_docs: trigger (or join) the
// regeneration job for a target. Duplicate triggers while a job is
// active join it instead of starting redundant work, so agents can
// retry after timeouts without side effects.
type RegenerateTool struct {
	jobs *jobs.Manager
}

// NewRegenerateTool creates a RegenerateTool around the job manager.
func NewRegenerateTool(m *jobs.Manager) *RegenerateTool {
	return &RegenerateTool{jobs: m}
}

// Definition returns the MCP tool definition for registration.
func (t *RegenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("regenerate_docs",
		mcp.WithDescription(
			"Regenerate the documentation set (or a single document). Asynchronous: "+
				"returns a jobId immediately; poll regenerate_docs_status for completion. "+
				"Triggering the same target while a job is active joins the existing job.",
		),
		mcp.WithString("target",
			mcp.Description("Document id to regenerate (e.g. 'overview'). Omit to regenerate everything."),
		),
	)
}

// Handle processes the regenerate_docs tool call.
func (t *RegenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := jobs.Target{Doc: req.GetString("target", "")}

	out := t.jobs.Trigger(target)

	reason := "created a new regeneration job"
	if out.Joined {
		reason = "an active job for this target already exists; joined it"
	}

	return jsonResult(map[string]any{
		"ok":        true,
		"jobId":     out.Job.ID,
		"state":     out.Job.State,
		"target":    out.Job.Target,
		"createdAt": out.Job.CreatedAt,
		"dedupe": map[string]any{
			"joined": out.Joined,
			"key":    out.Key,
			"reason": reason,
		},
		"next": nextGuidance(out.Job),
	}), nil
}

// nextGuidance tells the caller how to follow the job.
func nextGuidance(j jobs.Job) map[string]any {
	next := map[string]any{
		"tool":    "regenerate_docs_status",
		"message": "Poll regenerate_docs_status with this jobId until the job is terminal.",
	}
	if j.State.Active() {
		next["pollAfterMs"] = pollAfterMs
	} else {
		next["message"] = "The job is terminal; no further polling needed."
	}
	return next
}
