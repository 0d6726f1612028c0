// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"

	"github.com/farce1/handover-sub002/internal/archive"
	"github.com/farce1/handover-sub002/internal/catalog"
	"github.com/farce1/handover-sub002/internal/config"
	"github.com/farce1/handover-sub002/internal/jobs"
	"github.com/farce1/handover-sub002/internal/pipeline"
	"github.com/farce1/handover-sub002/internal/prompts"
	"github.com/farce1/handover-sub002/internal/resources"
	"github.com/farce1/handover-sub002/internal/session"
	"github.com/farce1/handover-sub002/internal/tools"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Server bundles the MCP server with the catalog the serve commands
// need for preflight.
type Server struct {
	MCP     *server.MCPServer
	Catalog *catalog.Catalog
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// ctx scopes background job execution: cancelling it tells in-flight
// regeneration commands to stop. The returned cleanup function waits
// for in-flight jobs and closes the archive; it is always non-nil and
// must be called on shutdown (typically via defer).
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, func(), error) {
	// --- Create shared dependencies ---

	cat, err := catalog.New(cfg.DocsDir, cfg.AnalysisDir)
	if err != nil {
		return nil, noop, fmt.Errorf("building resource catalog: %w", err)
	}

	// The archive is an independent subsystem: if it fails to open, the
	// server still works; evicted sessions just become unresumable and
	// job history does not survive restarts.
	var store *archive.Store
	if cfg.ArchivePath != "" {
		store, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			log.Warn("archive disabled", zap.String("path", cfg.ArchivePath), zap.Error(err))
			store = nil
		}
	}
	// Typed nils must not reach the managers' interface fields.
	var sessionArchive session.Archive
	var jobArchive jobs.Archive
	if store != nil {
		sessionArchive = store
		jobArchive = store
	}

	searcher := pipeline.NewSearcher(cat)

	sessions := session.NewManager(
		pipeline.Answer(searcher),
		sessionArchive,
		session.Config{TTL: cfg.SessionTTL, MaxRetained: cfg.MaxSessions},
		log,
	)
	jobManager := jobs.NewManager(ctx, pipeline.Regenerator(cfg.RegenCommand), jobArchive, log)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"handover",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register QA streaming tools ---

	qaStart := tools.NewQAStartTool(sessions)
	s.AddTool(qaStart.Definition(), qaStart.Handle)

	qaStatus := tools.NewQAStatusTool(sessions)
	s.AddTool(qaStatus.Definition(), qaStatus.Handle)

	qaResume := tools.NewQAResumeTool(sessions)
	s.AddTool(qaResume.Definition(), qaResume.Handle)

	qaCancel := tools.NewQACancelTool(sessions)
	s.AddTool(qaCancel.Definition(), qaCancel.Handle)

	// --- Register regeneration tools ---

	regen := tools.NewRegenerateTool(jobManager)
	s.AddTool(regen.Definition(), regen.Handle)

	regenStatus := tools.NewRegenerateStatusTool(jobManager)
	s.AddTool(regenStatus.Definition(), regenStatus.Handle)

	// --- Register search tool ---

	search := tools.NewSearchTool(searcher)
	s.AddTool(search.Definition(), search.Handle)

	// --- Register prompts ---

	askPrompt := prompts.NewAskPrompt()
	s.AddPrompt(askPrompt.Definition(), askPrompt.Handle)

	refreshPrompt := prompts.NewRefreshPrompt()
	s.AddPrompt(refreshPrompt.Definition(), refreshPrompt.Handle)

	// --- Register resources ---
	//
	// Each catalog entry is registered statically for resources/list;
	// the templates serve reads, including not-found payloads for ids
	// the catalog does not know.

	resourceHandler := resources.NewHandler(cat)
	for _, res := range resourceHandler.Static() {
		s.AddResource(res, resourceHandler.HandleRead)
	}
	s.AddResourceTemplate(resourceHandler.DocTemplate(), resourceHandler.HandleRead)
	s.AddResourceTemplate(resourceHandler.AnalysisTemplate(), resourceHandler.HandleRead)
	s.AddResourceTemplate(resourceHandler.CatalogTemplate(), resourceHandler.HandleCatalog)

	cleanup := func() {
		jobManager.Wait()
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warn("archive close", zap.Error(err))
			}
		}
	}
	return &Server{MCP: s, Catalog: cat}, cleanup, nil
}

// noop is a no-op cleanup function returned on construction failure.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use the handover server effectively.
func serverInstructions() string {
	return `You have access to a handover documentation server for this codebase.

## ANSWERING QUESTIONS

Use qa_stream_start for questions about the codebase. The exchange is
resumable:
- Keep the returned sessionId.
- If a call is interrupted or times out, DO NOT restart. Call
  qa_stream_status with the sessionId, then qa_stream_resume with the
  highest event sequence you already received. Resume never duplicates
  or reorders events.
- Cancel an exchange you no longer need with qa_stream_cancel; calling
  it twice is safe.

## SEARCHING

semantic_search returns scored hits with handover:// URIs. Read those
URIs as resources for the full content. Two namespaces exist:
- handover://docs/<id>: generated markdown documents
- handover://analysis/<id>: raw JSON analysis fragments
handover://catalog lists everything, paginated via nextCursor.

## REGENERATING DOCUMENTATION

After code changes, run regenerate_docs. It is asynchronous and
idempotent per target: retrying while a job is active joins the
existing job (dedupe.joined = true) instead of duplicating work. Poll
regenerate_docs_status with the returned jobId, waiting
next.pollAfterMs between polls, until the state is terminal. Failed
jobs carry a failure object with code, reason, and remediation; show
the remediation to the user.

## ERRORS

Every failure has {code, message, action}. Follow the action field; it
says exactly what to do next.`
}
