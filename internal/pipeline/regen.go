package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/farce1/handover-sub002/internal/jobs"
	"github.com/farce1/handover-sub002/internal/protocol"
)

// Regenerator builds the jobs.ExecuteFunc that rebuilds documentation
// by running the configured external command. command is split on
// whitespace; for single-document targets the document id is appended
// as the final argument.
//
// With no command configured the job fails with a structured
// remediation instead of pretending to regenerate.
func Regenerator(command string) jobs.ExecuteFunc {
	return func(ctx context.Context, target jobs.Target) error {
		argv := strings.Fields(command)
		if len(argv) == 0 {
			return protocol.ExecutionFailed(
				"regen_not_configured",
				"no regeneration command is configured",
				"Set HANDOVER_REGEN_CMD to the documentation generator command and restart the server.",
				nil,
			)
		}
		if target.Doc != "" {
			argv = append(argv, target.Doc)
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return protocol.ExecutionFailed(
				"regeneration_failed",
				fmt.Sprintf("regeneration command failed: %v: %s", err, tail(out, 400)),
				"Fix the generator, then trigger regenerate_docs again.",
				err,
			)
		}
		return nil
	}
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	// Advance to a rune boundary so the cut never splits a multi-byte
	// character.
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "…" + s[start:]
}
