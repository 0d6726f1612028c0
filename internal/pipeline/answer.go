package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/farce1/handover-sub002/internal/session"
)

// Answer builds the default session.AnswerFunc: search the catalog,
// stream the assembled answer as token events, return the final result.
// Stage and progress events mark the coarse phases so a resuming client
// can tell where the exchange was interrupted.
func Answer(searcher *Searcher) session.AnswerFunc {
	return func(ctx context.Context, req session.Request, emit session.EmitFunc) (*session.Result, error) {
		if err := emit(session.EventStage, map[string]any{"stage": "search"}); err != nil {
			return nil, err
		}

		topK := req.TopK
		if topK <= 0 {
			topK = 5
		}
		hits := searcher.Search(req.Query, topK, req.Types)
		if err := emit(session.EventProgress, map[string]any{
			"stage":   "search",
			"matches": len(hits),
		}); err != nil {
			return nil, err
		}

		if err := emit(session.EventStage, map[string]any{"stage": "compose"}); err != nil {
			return nil, err
		}

		var b strings.Builder
		sources := make([]string, 0, len(hits))
		if len(hits) == 0 {
			b.WriteString("No documentation matched the question. Try different terms, or regenerate the docs if the codebase changed.")
		} else {
			fmt.Fprintf(&b, "Found %d relevant source(s) for %q:\n", len(hits), req.Query)
			for _, h := range hits {
				sources = append(sources, h.URI)
				fmt.Fprintf(&b, "- %s", h.URI)
				if h.Snippet != "" {
					fmt.Fprintf(&b, ": %s", h.Snippet)
				}
				b.WriteString("\n")
			}
		}
		answer := b.String()

		for _, line := range strings.SplitAfter(answer, "\n") {
			if line == "" {
				continue
			}
			if err := emit(session.EventToken, map[string]any{"text": line}); err != nil {
				return nil, err
			}
		}

		return &session.Result{Answer: answer, Sources: sources}, nil
	}
}
