package tools

import (
	"context"

	"github.com/farce1/handover-sub002/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// QAResumeTool handles qa_stream_resume: replay of every event after
// the acknowledged sequence. Works identically for running and terminal
// sessions; an ack beyond the log is rejected with sequence_mismatch.
type QAResumeTool struct {
	sessions *session.Manager
}

// NewQAResumeTool creates a QAResumeTool around the session manager.
func NewQAResumeTool(sessions *session.Manager) *QAResumeTool {
	return &QAResumeTool{sessions: sessions}
}

// Definition returns the MCP tool definition for registration.
func (t *QAResumeTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_stream_resume",
		mcp.WithDescription(
			"Resume a question-answering session after a disconnect. Replays every "+
				"event with sequence > lastAckSequence, in order, without duplicates. "+
				"Fails with sequence_mismatch if lastAckSequence is beyond the session's log.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session id to resume."),
		),
		mcp.WithNumber("lastAckSequence",
			mcp.Required(),
			mcp.Description("Highest event sequence already received (0 for none)."),
		),
	)
}

// Handle processes the qa_stream_resume tool call.
func (t *QAResumeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("sessionId", "")
	lastAck := int64(req.GetInt("lastAckSequence", -1))

	events, snap, stop, err := t.sessions.Resume(sessionID, lastAck, nil)
	if err != nil {
		return errorResult(err), nil
	}
	stop()

	if events == nil {
		events = []session.Event{}
	}
	return jsonResult(map[string]any{
		"ok":           true,
		"sessionId":    snap.ID,
		"state":        snap.Status,
		"lastSequence": snap.LastSequence,
		"events":       events,
	}), nil
}
