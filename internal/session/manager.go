package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Archive persists terminal sessions evicted from memory so resume
// remains a pure replay after eviction. Implementations must tolerate
// saving the same session twice.
type Archive interface {
	SaveSession(snap Snapshot) error
	LoadSession(id string) (*Snapshot, error)
}

// Config tunes session retention. Sessions in a terminal state older
// than TTL are evicted on the next sweep; when more than MaxRetained
// terminal sessions exist, the oldest are evicted first. Running
// sessions are never evicted.
type Config struct {
	TTL         time.Duration
	MaxRetained int
}

// DefaultConfig retains terminal sessions for an hour, capped at 256.
func DefaultConfig() Config {
	return Config{TTL: time.Hour, MaxRetained: 256}
}

// Manager owns every session's lifecycle. All mutation happens inside
// the manager; callers only ever see snapshots.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*state

	answer  AnswerFunc
	archive Archive // optional
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

// state is the mutable record behind one session. Its own mutex guards
// the log so different sessions never contend with each other.
type state struct {
	mu sync.Mutex

	id          string
	status      Status
	events      []Event
	lastSeq     int64
	result      *Result
	cancelledAt *time.Time
	touchedAt   time.Time

	subs    map[int]func(Event)
	nextSub int
}

// NewManager creates a session manager around the injected answer
// function. archive may be nil; log must not be.
func NewManager(answer AnswerFunc, archive Archive, cfg Config, log *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = DefaultConfig().MaxRetained
	}
	return &Manager{
		sessions: make(map[string]*state),
		answer:   answer,
		archive:  archive,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

var errSessionTerminal = errors.New("session is no longer running")

// Start runs one question-answering exchange. The event log fills as
// the answer function emits; each event is also forwarded to onEvent
// (may be nil). If ctx is cancelled mid-exchange the session commits a
// terminal cancelled state; an answer error commits failed; otherwise a
// final event is appended and the session completes. The returned
// snapshot reflects the session at return time.
func (m *Manager) Start(ctx context.Context, req Request, sessionID string, onEvent func(Event)) (*Snapshot, error) {
	if req.Query == "" {
		return nil, invalidQuery()
	}

	st, err := m.register(sessionID)
	if err != nil {
		return nil, err
	}

	var unsub func()
	if onEvent != nil {
		_, unsub = st.subscribe(onEvent)
		defer unsub()
	}

	emit := func(kind EventKind, payload map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return st.append(m.now(), kind, payload)
	}

	m.log.Debug("session started", zap.String("session_id", st.id), zap.String("query", req.Query))
	result, runErr := m.answer(ctx, req, emit)

	switch {
	case ctx.Err() != nil:
		reason := "client disconnected"
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			reason = cause.Error()
		}
		m.finishCancelled(st, reason)
	case runErr != nil:
		m.finishFailed(st, runErr)
	default:
		m.finishCompleted(st, result)
	}

	snap := st.snapshot()
	return &snap, nil
}

// GetState returns the session's status and last sequence number.
func (m *Manager) GetState(id string) (Status, int64, error) {
	snap, err := m.lookup(id)
	if err != nil {
		return "", 0, err
	}
	return snap.Status, snap.LastSequence, nil
}

// Resume replays every event with sequence > lastAck. When the session
// is still running and onEvent is non-nil, the replayed events are also
// sent through onEvent and the subscription stays live until the
// returned stop function is called (stop is a no-op for terminal
// sessions). Replay and subscription are taken under one lock, and live
// deliveries are gated until the replay has been forwarded, so the
// subscriber sees no gap, duplicate, or reordering across the hand-off.
func (m *Manager) Resume(id string, lastAck int64, onEvent func(Event)) ([]Event, Snapshot, func(), error) {
	noStop := func() {}
	if lastAck < 0 {
		return nil, Snapshot{}, noStop, invalidAck()
	}

	m.mu.Lock()
	st, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		// Evicted sessions are terminal; archived resume is pure replay.
		snap, err := m.fromArchive(id)
		if err != nil {
			return nil, Snapshot{}, noStop, err
		}
		events, err := replaySlice(*snap, lastAck)
		if err != nil {
			return nil, Snapshot{}, noStop, err
		}
		forward(onEvent, events)
		return events, *snap, noStop, nil
	}

	st.mu.Lock()
	if lastAck > st.lastSeq {
		ack, last := lastAck, st.lastSeq
		st.mu.Unlock()
		return nil, Snapshot{}, noStop, mismatch(id, ack, last)
	}
	events := make([]Event, 0, st.lastSeq-lastAck)
	for _, e := range st.events {
		if e.Seq > lastAck {
			events = append(events, e)
		}
	}
	stop := noStop
	var open func()
	if onEvent != nil && st.status == StatusRunning {
		var gated func(Event)
		gated, open = gate(onEvent)
		_, stop = st.subscribeLocked(gated)
	}
	snap := st.snapshotLocked()
	st.touchedAt = m.now()
	st.mu.Unlock()

	forward(onEvent, events)
	if open != nil {
		open()
	}
	return events, snap, stop, nil
}

// Cancel transitions a running session to cancelled and returns the
// updated snapshot. Cancelling a terminal session returns its existing
// state unchanged, so retries are safe.
func (m *Manager) Cancel(id, reason string) (Snapshot, error) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		snap, err := m.fromArchive(id)
		if err != nil {
			return Snapshot{}, err
		}
		return *snap, nil
	}

	if reason == "" {
		reason = "cancelled by caller"
	}
	m.finishCancelled(st, reason)
	return st.snapshot(), nil
}

// Snapshot returns the current observable state of a session.
func (m *Manager) Snapshot(id string) (Snapshot, error) {
	snap, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return *snap, nil
}

// Sweep evicts stale terminal sessions per the retention config,
// archiving each one before removal. It returns the number evicted.
// Sweep also runs automatically before each new session registers.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

func (m *Manager) register(sessionID string) (*state, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()

	if _, ok := m.sessions[sessionID]; ok {
		return nil, alreadyExists(sessionID)
	}
	st := &state{
		id:        sessionID,
		status:    StatusRunning,
		touchedAt: m.now(),
		subs:      make(map[int]func(Event)),
	}
	m.sessions[sessionID] = st
	return st, nil
}

func (m *Manager) lookup(id string) (*Snapshot, error) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		snap := st.snapshot()
		return &snap, nil
	}
	return m.fromArchive(id)
}

func (m *Manager) fromArchive(id string) (*Snapshot, error) {
	if m.archive != nil {
		snap, err := m.archive.LoadSession(id)
		if err != nil {
			m.log.Warn("archive lookup failed", zap.String("session_id", id), zap.Error(err))
		} else if snap != nil {
			return snap, nil
		}
	}
	return nil, notFound(id)
}

// finishCancelled commits the cancelled terminal state exactly once.
// If cancellation races with natural completion, whichever transition
// ran first wins and the other is a no-op.
func (m *Manager) finishCancelled(st *state, reason string) {
	now := m.now()
	st.mu.Lock()
	if st.status != StatusRunning {
		st.mu.Unlock()
		return
	}
	ev := st.appendLocked(now, EventCancelled, map[string]any{"reason": reason})
	st.status = StatusCancelled
	st.cancelledAt = &now
	subs := st.subsLocked()
	st.mu.Unlock()

	// The terminal event still reaches live subscribers; it is their
	// signal to stop following.
	for _, fn := range subs {
		fn(ev)
	}
	m.log.Info("session cancelled", zap.String("session_id", st.id), zap.String("reason", reason))
}

func (m *Manager) finishFailed(st *state, cause error) {
	now := m.now()
	st.mu.Lock()
	if st.status != StatusRunning {
		st.mu.Unlock()
		return
	}
	ev := st.appendLocked(now, EventError, map[string]any{
		"code":   "answer_failed",
		"reason": cause.Error(),
	})
	st.status = StatusFailed
	subs := st.subsLocked()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
	m.log.Warn("session failed", zap.String("session_id", st.id), zap.Error(cause))
}

func (m *Manager) finishCompleted(st *state, result *Result) {
	now := m.now()
	st.mu.Lock()
	if st.status != StatusRunning {
		st.mu.Unlock()
		return
	}
	payload := map[string]any{}
	if result != nil {
		payload["answer"] = result.Answer
		if len(result.Sources) > 0 {
			payload["sources"] = result.Sources
		}
	}
	ev := st.appendLocked(now, EventFinal, payload)
	st.status = StatusCompleted
	st.result = result
	last := st.lastSeq
	subs := st.subsLocked()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
	m.log.Debug("session completed", zap.String("session_id", st.id), zap.Int64("events", last))
}

// sweepLocked evicts under m.mu. Terminal sessions past TTL go first;
// if the terminal count still exceeds MaxRetained, the oldest go next.
func (m *Manager) sweepLocked() int {
	cutoff := m.now().Add(-m.cfg.TTL)
	before := len(m.sessions)

	type candidate struct {
		st      *state
		touched time.Time
	}
	var terminal []candidate
	for _, st := range m.sessions {
		st.mu.Lock()
		isTerminal := st.status.Terminal()
		touched := st.touchedAt
		st.mu.Unlock()
		if !isTerminal {
			continue
		}
		if touched.Before(cutoff) {
			m.evictLocked(st)
			continue
		}
		terminal = append(terminal, candidate{st, touched})
	}

	if len(terminal) > m.cfg.MaxRetained {
		sort.Slice(terminal, func(i, j int) bool {
			return terminal[i].touched.Before(terminal[j].touched)
		})
		for _, c := range terminal[:len(terminal)-m.cfg.MaxRetained] {
			m.evictLocked(c.st)
		}
	}
	return before - len(m.sessions)
}

func (m *Manager) evictLocked(st *state) {
	if m.archive != nil {
		if err := m.archive.SaveSession(st.snapshot()); err != nil {
			m.log.Warn("session archive failed, keeping in memory",
				zap.String("session_id", st.id), zap.Error(err))
			return
		}
	}
	delete(m.sessions, st.id)
}

// --- per-session state ---

func (st *state) append(now time.Time, kind EventKind, payload map[string]any) error {
	st.mu.Lock()
	if st.status != StatusRunning {
		st.mu.Unlock()
		return errSessionTerminal
	}
	ev := st.appendLocked(now, kind, payload)
	subs := st.subsLocked()
	st.mu.Unlock()

	// One emitter per session, so calling outside the lock cannot
	// reorder events for a subscriber.
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (st *state) appendLocked(now time.Time, kind EventKind, payload map[string]any) Event {
	st.lastSeq++
	ev := Event{Seq: st.lastSeq, Kind: kind, Payload: payload, At: now}
	st.events = append(st.events, ev)
	st.touchedAt = now
	return ev
}

// subsLocked snapshots the subscriber list for notification outside the
// lock.
func (st *state) subsLocked() []func(Event) {
	subs := make([]func(Event), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (st *state) subscribe(fn func(Event)) (int, func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.subscribeLocked(fn)
}

func (st *state) subscribeLocked(fn func(Event)) (int, func()) {
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	return id, func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

func (st *state) snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked()
}

func (st *state) snapshotLocked() Snapshot {
	events := make([]Event, len(st.events))
	copy(events, st.events)
	return Snapshot{
		ID:           st.id,
		Status:       st.status,
		LastSequence: st.lastSeq,
		Events:       events,
		Result:       st.result,
		CancelledAt:  st.cancelledAt,
	}
}

// --- helpers ---

func replaySlice(snap Snapshot, lastAck int64) ([]Event, error) {
	if lastAck > snap.LastSequence {
		return nil, mismatch(snap.ID, lastAck, snap.LastSequence)
	}
	events := make([]Event, 0, snap.LastSequence-lastAck)
	for _, e := range snap.Events {
		if e.Seq > lastAck {
			events = append(events, e)
		}
	}
	return events, nil
}

// gate holds back live deliveries to fn until open is called, then
// flushes the held events in order and passes everything after that
// straight through. A subscriber registered mid-replay would otherwise
// race a concurrent append and see a new event before the older
// replayed ones. All deliveries serialize on the gate's mutex.
func gate(fn func(Event)) (gated func(Event), open func()) {
	var mu sync.Mutex
	var pending []Event
	opened := false

	gated = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if !opened {
			pending = append(pending, e)
			return
		}
		fn(e)
	}
	open = func() {
		mu.Lock()
		defer mu.Unlock()
		opened = true
		for _, e := range pending {
			fn(e)
		}
		pending = nil
	}
	return gated, open
}

func forward(onEvent func(Event), events []Event) {
	if onEvent == nil {
		return
	}
	for _, e := range events {
		onEvent(e)
	}
}
