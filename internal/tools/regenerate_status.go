package tools

import (
	"context"

	"github.com/farce1/handover-sub002/internal/jobs"
	"github.com/mark3labs/mcp-go/mcp"
)

// RegenerateStatusTool handles regenerate_docs_status: full job state
// plus a derived lifecycle summary.
type RegenerateStatusTool struct {
	jobs *jobs.Manager
}

// NewRegenerateStatusTool creates a RegenerateStatusTool around the job
// manager.
func NewRegenerateStatusTool(m *jobs.Manager) *RegenerateStatusTool {
	return &RegenerateStatusTool{jobs: m}
}

// Definition returns the MCP tool definition for registration.
func (t *RegenerateStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("regenerate_docs_status",
		mcp.WithDescription(
			"Check a regeneration job. Returns the job's state, timestamps, a coarse "+
				"lifecycle summary, and (for failed jobs) a structured failure with remediation.",
		),
		mcp.WithString("jobId",
			mcp.Required(),
			mcp.Description("The job id returned by regenerate_docs."),
		),
	)
}

// Handle processes the regenerate_docs_status tool call.
func (t *RegenerateStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")

	j, err := t.jobs.GetStatus(jobID)
	if err != nil {
		return errorResult(err), nil
	}

	resp := map[string]any{
		"ok":        true,
		"jobId":     j.ID,
		"state":     j.State,
		"target":    j.Target,
		"createdAt": j.CreatedAt,
		"updatedAt": j.UpdatedAt,
		"lifecycle": jobs.LifecycleOf(j),
		"next":      nextGuidance(j),
	}
	if j.StartedAt != nil {
		resp["startedAt"] = j.StartedAt
	}
	if j.TerminalAt != nil {
		resp["terminalAt"] = j.TerminalAt
	}
	if j.Failure != nil {
		resp["failure"] = j.Failure
	}
	return jsonResult(resp), nil
}
