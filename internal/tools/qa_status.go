package tools

import (
	"context"

	"github.com/farce1/handover-sub002/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// QAStatusTool handles qa_stream_status: a cheap poll of a session's
// state plus any events past the caller's acknowledged sequence.
type QAStatusTool struct {
	sessions *session.Manager
}

// NewQAStatusTool creates a QAStatusTool around the session manager.
func NewQAStatusTool(sessions *session.Manager) *QAStatusTool {
	return &QAStatusTool{sessions: sessions}
}

// Definition returns the MCP tool definition for registration.
func (t *QAStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_stream_status",
		mcp.WithDescription(
			"Check the state of a question-answering session. Returns the current "+
				"state and lastSequence, plus the events after lastAckSequence when given. "+
				"lastSequence never decreases across calls.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session id returned by qa_stream_start."),
		),
		mcp.WithNumber("lastAckSequence",
			mcp.Description("Highest event sequence already received. Omit for state only."),
		),
	)
}

// Handle processes the qa_stream_status tool call.
func (t *QAStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("sessionId", "")
	lastAck := int64(req.GetInt("lastAckSequence", -1))

	snap, err := t.sessions.Snapshot(sessionID)
	if err != nil {
		return errorResult(err), nil
	}

	// Status is an observation, not a replay: an out-of-range ack just
	// means no new events, unlike qa_stream_resume which rejects it.
	events := []session.Event{}
	if lastAck >= 0 && lastAck <= snap.LastSequence {
		for _, e := range snap.Events {
			if e.Seq > lastAck {
				events = append(events, e)
			}
		}
	}

	return jsonResult(map[string]any{
		"ok":           true,
		"sessionId":    snap.ID,
		"state":        snap.Status,
		"lastSequence": snap.LastSequence,
		"events":       events,
	}), nil
}
