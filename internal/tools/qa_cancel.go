package tools

import (
	"context"

	"github.com/farce1/handover-sub002/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// QACancelTool handles qa_stream_cancel. Cancelling a running session
// commits the terminal cancelled state; cancelling a terminal session
// is a no-op that returns the existing state, so retries are safe.
type QACancelTool struct {
	sessions *session.Manager
}

// NewQACancelTool creates a QACancelTool around the session manager.
func NewQACancelTool(sessions *session.Manager) *QACancelTool {
	return &QACancelTool{sessions: sessions}
}

// Definition returns the MCP tool definition for registration.
func (t *QACancelTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_stream_cancel",
		mcp.WithDescription(
			"Cancel a running question-answering session. Idempotent: cancelling an "+
				"already-terminal session returns its state unchanged.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session id to cancel."),
		),
		mcp.WithString("reason",
			mcp.Description("Optional human-readable cancellation reason, recorded in the event log."),
		),
	)
}

// Handle processes the qa_stream_cancel tool call.
func (t *QACancelTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("sessionId", "")
	reason := req.GetString("reason", "")

	snap, err := t.sessions.Cancel(sessionID, reason)
	if err != nil {
		return errorResult(err), nil
	}

	resp := map[string]any{
		"ok":           true,
		"sessionId":    snap.ID,
		"state":        snap.Status,
		"lastSequence": snap.LastSequence,
	}
	if snap.CancelledAt != nil {
		resp["cancelledAt"] = snap.CancelledAt
	}
	return jsonResult(resp), nil
}
