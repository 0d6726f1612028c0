package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// RefreshPrompt handles the handover-refresh MCP prompt. It instructs
// the AI to regenerate the documentation set and follow the job to
// completion.
type RefreshPrompt struct{}

// NewRefreshPrompt creates a RefreshPrompt.
func NewRefreshPrompt() *RefreshPrompt {
	return &RefreshPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *RefreshPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("handover-refresh",
		mcp.WithPromptDescription(
			"Regenerate the handover documentation after code changes and wait for completion.",
		),
	)
}

// Handle processes the handover-refresh prompt request.
func (p *RefreshPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Regenerate the handover documentation",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please refresh the handover documentation:\n\n" +
						"1. Run `regenerate_docs` (no target regenerates everything) and keep the jobId\n" +
						"2. If the response says dedupe.joined = true, an identical job was already running; " +
						"that is fine, just follow it\n" +
						"3. Poll `regenerate_docs_status` with the jobId, waiting next.pollAfterMs between calls, " +
						"until the state is completed or failed\n" +
						"4. On failure, show me the failure code, reason, and remediation",
				),
			},
		},
	}, nil
}
