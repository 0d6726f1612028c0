// Package prompts implements MCP prompt handlers for the handover
// server.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// AskPrompt handles the handover-ask MCP prompt. It guides the AI
// through a resumable question-answering exchange against the docs.
type AskPrompt struct{}

// NewAskPrompt creates an AskPrompt.
func NewAskPrompt() *AskPrompt {
	return &AskPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *AskPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("handover-ask",
		mcp.WithPromptDescription(
			"Ask a question about the codebase using the generated handover "+
				"documentation, with automatic recovery if the exchange is interrupted.",
		),
		mcp.WithArgument("question",
			mcp.ArgumentDescription("The question to answer"),
		),
	)
}

// Handle processes the handover-ask prompt request.
func (p *AskPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	question := "the architecture of this codebase"
	if args := req.Params.Arguments; args != nil {
		if q, ok := args["question"]; ok && q != "" {
			question = q
		}
	}

	return &mcp.GetPromptResult{
		Description: "Answer a question from the handover documentation",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Answer this question using the handover documentation: %s\n\n"+
						"Please:\n"+
						"1. Run `qa_stream_start` with the question as query and keep the returned sessionId\n"+
						"2. If the call is interrupted or times out, run `qa_stream_status` with the sessionId, "+
						"then `qa_stream_resume` with the highest sequence you received; never restart from scratch\n"+
						"3. Read the sources listed in the result via their handover:// URIs for details\n"+
						"4. Present the answer with the source URIs cited",
					question,
				)),
			},
		},
	}, nil
}
