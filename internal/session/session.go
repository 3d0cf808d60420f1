// Package session tracks in-flight capture sessions. The store is an
// explicit object owned by whichever component starts sessions — there is
// no ambient global registry. Entries linger for a short grace period
// after completion so late duplicate notifications can be ignored, and
// are removed immediately on terminal failure.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/scrollshot/internal/caperr"
	"github.com/hazyhaar/scrollshot/internal/encoder"
)

// Status is the lifecycle stage of a session.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// State is the mutable record of one capture session. All mutation goes
// through Store methods; reads get a copy via Snapshot.
type State struct {
	ID        string
	StartedAt time.Time
	Status    Status
	Stage     string // current pipeline stage, informational
	Progress  int    // 0–100, monotonically non-decreasing
	Err       *caperr.Error
	Output    *encoder.Output // set on completion; the only thing that outlives the session

	cancel func()
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	Status    Status          `json:"status"`
	Stage     string          `json:"stage,omitempty"`
	Progress  int             `json:"progress"`
	Error     string          `json:"error,omitempty"`
	Severity  string          `json:"severity,omitempty"`
	Fallback  bool            `json:"fallback_available,omitempty"`
	Output    *encoder.Output `json:"-"`
}

// Store is the session registry. The only cross-session shared structure
// in the engine.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
	grace    time.Duration
	logger   *slog.Logger

	// now and after are swappable for tests.
	now   func() time.Time
	after func(time.Duration, func()) *time.Timer
}

// NewStore creates a Store. Completed sessions are evicted after grace;
// zero means 30 seconds.
func NewStore(grace time.Duration, logger *slog.Logger) *Store {
	if grace <= 0 {
		grace = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*State),
		grace:    grace,
		logger:   logger,
		now:      time.Now,
		after:    time.AfterFunc,
	}
}

// Create registers a new running session. cancel, if non-nil, is invoked
// by Cancel.
func (s *Store) Create(id string, cancel func()) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &State{
		ID:        id,
		StartedAt: s.now(),
		Status:    StatusRunning,
		cancel:    cancel,
	}
	s.sessions[id] = st
	return st
}

// Get returns a snapshot of the session, or false if unknown (possibly
// already evicted).
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotLocked(st), true
}

// SetProgress updates a session's progress and stage. Progress is clamped
// monotonic: a lower value than already reported is ignored.
func (s *Store) SetProgress(id string, pct int, stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok || st.Status != StatusRunning {
		return
	}
	if pct > st.Progress {
		if pct > 100 {
			pct = 100
		}
		st.Progress = pct
	}
	if stage != "" {
		st.Stage = stage
	}
}

// Complete marks the session finished with its output and schedules
// eviction after the grace period.
func (s *Store) Complete(id string, out *encoder.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return
	}
	st.Status = StatusComplete
	st.Progress = 100
	st.Output = out
	s.evictAfterGraceLocked(id)
}

// Fail marks the session failed and removes it immediately — failed
// sessions yield no artifact and nothing to poll.
func (s *Store) Fail(id string, ce *caperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return
	}
	st.Status = StatusFailed
	st.Err = ce
	s.logger.Warn("session: failed",
		"session_id", id,
		"kind", ce.Kind.String(),
		"severity", ce.Severity.String(),
		"fallback_available", ce.Fallback)
	delete(s.sessions, id)
}

// Cancel requests cancellation of a running session. In-flight external
// calls are not forcibly aborted; their results are discarded.
func (s *Store) Cancel(id string) bool {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok || st.Status != StatusRunning {
		s.mu.Unlock()
		return false
	}
	st.Status = StatusCanceled
	cancel := st.cancel
	s.evictAfterGraceLocked(id)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// Remove evicts a session immediately.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) evictAfterGraceLocked(id string) {
	s.after(s.grace, func() { s.Remove(id) })
}

func snapshotLocked(st *State) Snapshot {
	snap := Snapshot{
		ID:        st.ID,
		StartedAt: st.StartedAt,
		Status:    st.Status,
		Stage:     st.Stage,
		Progress:  st.Progress,
		Output:    st.Output,
	}
	if st.Err != nil {
		snap.Error = st.Err.UserMessage
		snap.Severity = st.Err.Severity.String()
		snap.Fallback = st.Err.Fallback
	}
	return snap
}
