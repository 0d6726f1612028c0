// Handover: codebase documentation MCP server.
//
// Serves generated handover documentation to AI coding tools over MCP:
// resumable question-answering sessions, deduplicated regeneration
// jobs, semantic search, and the document/analysis resource catalog.
//
// Usage:
//
//	handover serve        # Start MCP server (stdio transport)
//	handover serve-http   # Start MCP server (streamable HTTP transport)
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farce1/handover-sub002/internal/config"
	"github.com/farce1/handover-sub002/internal/httpsec"
	"github.com/farce1/handover-sub002/internal/preflight"
	handoverserver "github.com/farce1/handover-sub002/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(false); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve-http":
		if err := run(true); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("handover v%s\n", handoverserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(httpTransport bool) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	// Logs go to stderr so the stdio MCP transport on stdout stays clean.
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, cleanup, err := handoverserver.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Fail fast before accepting any connection: the full document set
	// must exist, and a non-loopback HTTP bind must be authenticated.
	if err := preflight.VerifyServePrerequisites(s.Catalog); err != nil {
		return err
	}
	if httpTransport {
		if err := preflight.VerifyHTTPSecurityPrerequisites(cfg.BindHost(), cfg.AuthToken); err != nil {
			return err
		}
		return serveHTTP(ctx, cancel, cfg, s, log)
	}

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return server.ServeStdio(s.MCP)
}

func serveHTTP(ctx context.Context, cancel context.CancelFunc, cfg config.Config, s *handoverserver.Server, log *zap.Logger) error {
	streamable := server.NewStreamableHTTPServer(s.MCP)

	mux := http.NewServeMux()
	mux.Handle("/mcp", httpsec.Wrap(httpsec.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		Token:          cfg.AuthToken,
	}, streamable))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	}()

	log.Info("serving MCP over HTTP",
		zap.String("addr", cfg.HTTPAddr),
		zap.Bool("auth", cfg.AuthToken != ""),
		zap.Strings("allowed_origins", cfg.AllowedOrigins))

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Handover v%s - codebase documentation MCP server

Usage:
  handover serve        Start the MCP server (stdio transport)
  handover serve-http   Start the MCP server (streamable HTTP transport)
  handover version      Print the version

Environment:
  %s       Bearer token for the HTTP transport (required on non-loopback binds)
  %s  Comma-separated Origin allow-list, or '*'
  %s        host:port for serve-http (default 127.0.0.1:8321)
  %s         Generated markdown directory (default handover/docs)
  %s     Raw analysis directory (default handover/analysis)
  %s     SQLite archive path; set empty to disable
  %s        Command run by regeneration jobs
  %s      Terminal session retention (default 1h)
  %s     Max retained terminal sessions (default 256)

Configuration (stdio):
  {
    "mcpServers": {
      "handover": {
        "command": "handover",
        "args": ["serve"]
      }
    }
  }
`, handoverserver.Version,
		config.EnvAuthToken, config.EnvAllowedOrigins, config.EnvHTTPAddr,
		config.EnvDocsDir, config.EnvAnalysisDir, config.EnvArchivePath,
		config.EnvRegenCommand, config.EnvSessionTTL, config.EnvMaxSessions)
}
