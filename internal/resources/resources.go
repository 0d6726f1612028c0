// Package resources exposes the document catalog over MCP resources.
//
// Two URI namespaces are served: handover://docs/<id> (markdown
// documents) and handover://analysis/<id> (raw JSON analysis
// fragments). Contents are re-read from disk on every read, so a
// completed regeneration is visible immediately. A third resource,
// handover://catalog, returns the cursor-paginated index.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/farce1/handover-sub002/internal/catalog"
	"github.com/farce1/handover-sub002/internal/protocol"
	"github.com/mark3labs/mcp-go/mcp"
)

// CatalogURI is the index resource listing everything else.
const CatalogURI = "handover://catalog"

// Handler serves resource reads from the catalog.
type Handler struct {
	cat *catalog.Catalog
}

// NewHandler creates a resource Handler over the catalog.
func NewHandler(cat *catalog.Catalog) *Handler {
	return &Handler{cat: cat}
}

// Static returns one MCP resource definition per catalog entry, for
// resources/list. The catalog index is read-only after startup, so
// static registration is exact.
func (h *Handler) Static() []mcp.Resource {
	entries := h.cat.Entries()
	out := make([]mcp.Resource, 0, len(entries))
	for _, e := range entries {
		out = append(out, mcp.NewResource(
			e.URI,
			e.Name,
			mcp.WithMIMEType(e.MIMEType),
		))
	}
	return out
}

// DocTemplate matches the docs namespace, including ids not present at
// startup (reads of those return the structured not-found payload).
func (h *Handler) DocTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		catalog.DocsScheme+"{id}",
		"Generated documentation",
		mcp.WithTemplateDescription("One generated markdown document from the handover set."),
		mcp.WithTemplateMIMEType("text/markdown"),
	)
}

// AnalysisTemplate matches the analysis namespace.
func (h *Handler) AnalysisTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		catalog.AnalysisScheme+"{id}",
		"Raw analysis fragment",
		mcp.WithTemplateDescription("One raw JSON fragment of the static-analysis result."),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// CatalogTemplate matches the paginated index resource.
func (h *Handler) CatalogTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		CatalogURI+"{?cursor,limit}",
		"Resource catalog",
		mcp.WithTemplateDescription(
			"Cursor-paginated index of every handover resource. "+
				"Pass the returned nextCursor to fetch the following page."),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleRead serves one document or analysis fragment by URI. An
// unknown URI yields a structured not-found payload enumerating the
// available URIs rather than a protocol fault.
func (h *Handler) HandleRead(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, entry, err := h.cat.Read(req.Params.URI)
	if err != nil {
		if protocol.IsKind(err, protocol.KindNotFound) {
			return errorContents(req.Params.URI, err), nil
		}
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: entry.MIMEType,
			Text:     string(data),
		},
	}, nil
}

// HandleCatalog serves the paginated index. cursor and limit arrive as
// query parameters on the resource URI.
func (h *Handler) HandleCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cursor, limit, err := catalogParams(req.Params.URI)
	if err != nil {
		return errorContents(req.Params.URI, err), nil
	}

	p, err := h.cat.List(cursor, limit)
	if err != nil {
		return errorContents(req.Params.URI, err), nil
	}

	payload := map[string]any{
		"ok":    true,
		"items": p.Items,
		"total": len(h.cat.Entries()),
	}
	if p.NextCursor != "" {
		payload["nextCursor"] = p.NextCursor
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding catalog page: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func catalogParams(uri string) (cursor string, limit int, err error) {
	u, perr := url.Parse(uri)
	if perr != nil {
		return "", 0, protocol.InvalidInput("uri", "catalog URI is not parseable")
	}
	q := u.Query()
	cursor = q.Get("cursor")
	if raw := q.Get("limit"); raw != "" {
		n, aerr := strconv.Atoi(raw)
		if aerr != nil || n < 1 {
			return "", 0, protocol.InvalidInput("limit", "limit must be a positive integer")
		}
		limit = n
	}
	return cursor, limit, nil
}

// errorContents wraps a structured error as a JSON resource body so the
// client always gets the {code, message, action} shape.
func errorContents(uri string, err error) []mcp.ResourceContents {
	payload := map[string]any{
		"ok":    false,
		"error": protocol.Wire(err),
	}
	data, _ := json.MarshalIndent(payload, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}
}
