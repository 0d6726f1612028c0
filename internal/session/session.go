// Package session implements the resumable question-answering session
// manager.
//
// Each session owns a dense, append-only event log: sequence numbers
// start at 1 and never skip, so a client that acknowledged sequence N
// can always resume with exactly the events in (N, lastSequence]. Live
// forwarding is a subscriber notified on each append; replay is a pure
// read of the log slice. The answer pipeline itself is an injected
// function; this package never knows how answers are produced.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/farce1/handover-sub002/internal/protocol"
)

// Status is a session lifecycle state. Every status except
// StatusRunning is terminal.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool { return s != StatusRunning }

// EventKind tags one entry in a session's event log.
type EventKind string

const (
	EventToken     EventKind = "token"
	EventProgress  EventKind = "progress"
	EventStage     EventKind = "stage"
	EventFinal     EventKind = "final"
	EventCancelled EventKind = "cancelled"
	EventError     EventKind = "error"
)

// Event is one sequenced entry in the session log.
type Event struct {
	Seq     int64          `json:"seq"`
	Kind    EventKind      `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// Request carries the question-answering inputs through to the injected
// answer function.
type Request struct {
	Query string   `json:"query"`
	TopK  int      `json:"topK,omitempty"`
	Types []string `json:"types,omitempty"`
}

// Result is the final payload of a completed exchange.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// EmitFunc appends one event to the owning session. It returns an error
// once the session has left the running state (or the context was
// cancelled); the answer function must stop producing events then.
type EmitFunc func(kind EventKind, payload map[string]any) error

// AnswerFunc is the injected question-answering exchange. It streams
// intermediate events through emit and returns the final result. The
// context is the cancellation signal for the whole exchange.
type AnswerFunc func(ctx context.Context, req Request, emit EmitFunc) (*Result, error)

// Snapshot is an immutable copy of a session's observable state.
type Snapshot struct {
	ID           string     `json:"sessionId"`
	Status       Status     `json:"state"`
	LastSequence int64      `json:"lastSequence"`
	Events       []Event    `json:"events"`
	Result       *Result    `json:"result,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
}

func notFound(id string) *protocol.Error {
	return protocol.NotFound(
		"session_not_found",
		fmt.Sprintf("no session with id %q", id),
		"Start a new exchange with qa_stream_start; session ids are returned from there.",
		nil,
	)
}

func mismatch(id string, ack, last int64) *protocol.Error {
	return protocol.SequenceMismatch(id, ack, last)
}

func invalidQuery() *protocol.Error {
	return protocol.InvalidInput("query", "query must be a non-empty string")
}

func invalidAck() *protocol.Error {
	return protocol.InvalidInput("lastAckSequence", "lastAckSequence must be a non-negative integer")
}

func alreadyExists(id string) *protocol.Error {
	return &protocol.Error{
		Kind:    protocol.KindInputInvalid,
		Code:    "session_exists",
		Message: fmt.Sprintf("a session with id %q already exists", id),
		Action:  "Omit sessionId to get a generated one, or resume the existing session with qa_stream_resume.",
		Field:   "sessionId",
	}
}
