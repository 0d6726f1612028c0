package tools

import (
	"context"

	"github.com/farce1/handover-sub002/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// QAStartTool handles the qa_stream_start MCP tool: it runs one
// question-answering exchange and returns the session's full event log
// alongside the result (when the exchange finishes within the call).
type QAStartTool struct {
	sessions *session.Manager
}

// NewQAStartTool creates a QAStartTool around the session manager.
func NewQAStartTool(sessions *session.Manager) *QAStartTool {
	return &QAStartTool{sessions: sessions}
}

// Definition returns the MCP tool definition for registration.
func (t *QAStartTool) Definition() mcp.Tool {
	return mcp.NewTool("qa_stream_start",
		mcp.WithDescription(
			"Start a question-answering exchange over the generated documentation. "+
				"The exchange is resumable: if the call is interrupted, use qa_stream_status "+
				"and qa_stream_resume with the returned sessionId to pick up where it stopped.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer against the documentation set."),
		),
		mcp.WithString("sessionId",
			mcp.Description("Caller-supplied session id. Omit to have one generated. Must not collide with an existing session."),
		),
		mcp.WithNumber("topK",
			mcp.Description("How many documents to consider (default 5)."),
		),
		mcp.WithArray("types",
			mcp.Description("Restrict the search to resource types: 'docs' and/or 'analysis'."),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the qa_stream_start tool call.
func (t *QAStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	sessionID := req.GetString("sessionId", "")
	topK := req.GetInt("topK", 0)
	types := req.GetStringSlice("types", nil)

	snap, err := t.sessions.Start(ctx, session.Request{
		Query: query,
		TopK:  topK,
		Types: types,
	}, sessionID, nil)
	if err != nil {
		return errorResult(err), nil
	}

	resp := map[string]any{
		"ok":           true,
		"sessionId":    snap.ID,
		"state":        snap.Status,
		"lastSequence": snap.LastSequence,
		"events":       snap.Events,
	}
	if snap.Result != nil {
		resp["result"] = snap.Result
	}
	return jsonResult(resp), nil
}
