package tools

import (
	"context"

	"github.com/farce1/handover-sub002/internal/pipeline"
	"github.com/farce1/handover-sub002/internal/protocol"
	"github.com/mark3labs/mcp-go/mcp"
)

// Bounds for the semantic_search result count.
const (
	defaultSearchLimit = 5
	maxSearchLimit     = 25
)

// Searcher is the search capability the tool depends on. The default
// implementation is pipeline.Searcher; an embedding-backed ranker can
// replace it without touching this file.
type Searcher interface {
	Search(query string, limit int, types []string) []pipeline.SearchResult
}

// SearchTool handles semantic_search over the documentation catalog.
type SearchTool struct {
	searcher Searcher
}

// NewSearchTool creates a SearchTool around the searcher.
func NewSearchTool(searcher Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

// Definition returns the MCP tool definition for registration.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("semantic_search",
		mcp.WithDescription(
			"Search the generated documentation and analysis fragments. Returns scored "+
				"results with resource URIs readable via the handover:// resources.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default 5, max 25)."),
		),
		mcp.WithArray("types",
			mcp.Description("Restrict to resource types: 'docs' and/or 'analysis'."),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the semantic_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return errorResult(protocol.InvalidInput("query", "query must be a non-empty string")), nil
	}

	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	types := req.GetStringSlice("types", nil)

	results := t.searcher.Search(query, limit, types)
	if results == nil {
		results = []pipeline.SearchResult{}
	}

	return jsonResult(map[string]any{
		"ok":      true,
		"query":   query,
		"limit":   limit,
		"total":   len(results),
		"results": results,
	}), nil
}
