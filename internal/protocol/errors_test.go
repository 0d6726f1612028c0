package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestWireNormalizesRawErrors(t *testing.T) {
	w := Wire(errors.New("disk on fire"))

	if w.Code != "internal_error" {
		t.Errorf("code = %q, want internal_error", w.Code)
	}
	if w.Message != "disk on fire" {
		t.Errorf("message = %q", w.Message)
	}
	if w.Action == "" {
		t.Error("action should never be empty")
	}
}

func TestWirePreservesStructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "invalid input",
			err:      InvalidInput("query", "query must not be empty"),
			wantCode: "invalid_argument",
		},
		{
			name:     "not found with alternatives",
			err:      NotFound("doc_not_found", "no such document", "Pick a listed URI.", []string{"handover://docs/a"}),
			wantCode: "doc_not_found",
		},
		{
			name:     "sequence mismatch",
			err:      SequenceMismatch("s1", 9, 4),
			wantCode: "sequence_mismatch",
		},
		{
			name:     "wrapped structured error",
			err:      fmt.Errorf("handling call: %w", SecurityRejected("origin_forbidden", "origin not allowed", "Add the origin to the allow-list.")),
			wantCode: "origin_forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Wire(tt.err)
			if w.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", w.Code, tt.wantCode)
			}
			if w.Action == "" {
				t.Error("action should never be empty")
			}
		})
	}
}

func TestWireCarriesFieldAndAlternatives(t *testing.T) {
	w := Wire(InvalidInput("limit", "limit must be positive"))
	if w.Field != "limit" {
		t.Errorf("field = %q, want limit", w.Field)
	}

	w = Wire(NotFound("doc_not_found", "nope", "list first", []string{"handover://docs/a", "handover://docs/b"}))
	if len(w.Uris) != 2 {
		t.Errorf("availableUris = %v, want 2 entries", w.Uris)
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", SequenceMismatch("s1", 3, 1))

	if !IsKind(err, KindSequenceMismatch) {
		t.Error("wrapped sequence mismatch not detected")
	}
	if IsKind(err, KindNotFound) {
		t.Error("kind mismatch should be false")
	}
	if IsKind(errors.New("plain"), KindExecutionFailed) {
		t.Error("plain errors have no kind")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := ExecutionFailed("regeneration_failed", "command failed", "Check the command.", cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
}
