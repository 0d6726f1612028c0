// Package tools implements the MCP tool handlers of the protocol
// facade.
//
// Each tool is a struct that receives its dependencies (DIP) and
// exposes Definition() plus a Handle method compatible with mcp-go.
// Responses are JSON with an `ok` discriminator; every failure is the
// structured {code, message, action} shape. Tool-level failures are
// returned as error results with a nil Go error; real errors are
// reserved for infrastructure faults.
//
// Design principles:
// - SRP: each file = one tool
// - OCP: new tools are added without modifying existing ones
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/farce1/handover-sub002/internal/protocol"
	"github.com/mark3labs/mcp-go/mcp"
)

// jsonResult marshals a success payload into a text result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encoding response: %w", err))
	}
	return mcp.NewToolResultText(string(data))
}

// errorResult normalizes any error into the wire shape and flags the
// result as an error. Raw Go errors come out as execution failures, so
// nothing crosses the boundary unnormalized.
func errorResult(err error) *mcp.CallToolResult {
	payload := map[string]any{
		"ok":    false,
		"error": protocol.Wire(err),
	}
	data, mErr := json.MarshalIndent(payload, "", "  ")
	if mErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf(`{"ok":false,"error":{"code":"internal_error","message":%q,"action":"Retry the call."}}`, err.Error()))
	}
	return mcp.NewToolResultError(string(data))
}
