package taskspec

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/qcheck/taskbot/plugin/ai"
	engineerrors "github.com/qcheck/taskbot/server/internal/errors"
	"github.com/qcheck/taskbot/store"
)

// Session is one conversation assembling one task. All mutation happens
// under the registry's per-session in-flight guard; a session never has two
// requests interleaved.
type Session struct {
	ID       string
	Owner    string
	Timezone string
	State    SessionState
	Spec     *TaskSpec
	History  []ai.Message

	CreatedTaskID int64
	LastActive    time.Time

	inflight bool
}

// Loc returns the session's timezone, falling back to UTC.
func (s *Session) Loc() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// sessionSnapshot is the persisted form of an in-progress session.
type sessionSnapshot struct {
	Owner    string       `json:"owner"`
	Timezone string       `json:"timezone"`
	State    SessionState `json:"state"`
	Spec     *TaskSpec    `json:"spec"`
	History  []ai.Message `json:"history"`
}

// SessionStore is the interface for session snapshot persistence.
type SessionStore interface {
	UpsertPendingSession(ctx context.Context, upsert *store.PendingSession) (*store.PendingSession, error)
	GetPendingSession(ctx context.Context, find *store.FindPendingSession) (*store.PendingSession, error)
	DeletePendingSession(ctx context.Context, delete *store.DeletePendingSession) error
	DeletePendingSessionsBefore(ctx context.Context, beforeTs int64) (int64, error)
}

// Registry owns the live sessions. It serializes access per session,
// snapshots progress to the store, and fails sessions idle past the
// configured timeout.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store       SessionStore
	idleTimeout time.Duration
	now         func() time.Time

	done chan struct{}
	once sync.Once
}

// NewRegistry creates a registry. store may be nil, disabling snapshots.
func NewRegistry(sessionStore SessionStore, idleTimeout time.Duration) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	r := &Registry{
		sessions:    make(map[string]*Session),
		store:       sessionStore,
		idleTimeout: idleTimeout,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	go r.janitor()
	return r
}

// Acquire returns the session for id, creating or restoring it if needed,
// with exclusive rights to mutate it until release is called. A session
// with a request already in flight is rejected, never interleaved.
func (r *Registry) Acquire(ctx context.Context, id, owner, timezone string) (*Session, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = shortuuid.New()
	}
	session, ok := r.sessions[id]
	if !ok {
		session = r.restoreLocked(ctx, id)
	}
	if session == nil {
		session = &Session{
			ID:       id,
			Owner:    owner,
			Timezone: timezone,
			State:    StateCollecting,
			Spec:     NewTaskSpec(),
		}
		r.sessions[id] = session
	}

	if session.inflight {
		return nil, nil, engineerrors.New(engineerrors.ErrCodeSessionBusy,
			"a previous message for this session is still being processed")
	}
	session.inflight = true
	session.LastActive = r.now()

	release := func() {
		r.mu.Lock()
		session.inflight = false
		r.mu.Unlock()
	}
	return session, release, nil
}

// restoreLocked loads a snapshot from the store, if any.
func (r *Registry) restoreLocked(ctx context.Context, id string) *Session {
	if r.store == nil {
		return nil
	}
	persisted, err := r.store.GetPendingSession(ctx, &store.FindPendingSession{UID: &id})
	if err != nil || persisted == nil {
		return nil
	}
	var snapshot sessionSnapshot
	if err := json.Unmarshal([]byte(persisted.Payload), &snapshot); err != nil {
		slog.Warn("discarding unreadable session snapshot", "session_id", id, "error", err)
		return nil
	}
	session := &Session{
		ID:       id,
		Owner:    snapshot.Owner,
		Timezone: snapshot.Timezone,
		State:    snapshot.State,
		Spec:     snapshot.Spec,
		History:  snapshot.History,
	}
	if session.Spec == nil {
		session.Spec = NewTaskSpec()
	}
	r.sessions[id] = session
	return session
}

// Snapshot persists the session's progress. Terminal sessions are removed
// from both the store and the registry instead.
func (r *Registry) Snapshot(ctx context.Context, session *Session) {
	if session.State.Terminal() {
		r.mu.Lock()
		delete(r.sessions, session.ID)
		r.mu.Unlock()
		if r.store != nil {
			if err := r.store.DeletePendingSession(ctx, &store.DeletePendingSession{UID: session.ID}); err != nil {
				slog.Warn("failed to delete session snapshot", "session_id", session.ID, "error", err)
			}
		}
		return
	}

	if r.store == nil {
		return
	}
	payload, err := json.Marshal(sessionSnapshot{
		Owner:    session.Owner,
		Timezone: session.Timezone,
		State:    session.State,
		Spec:     session.Spec,
		History:  session.History,
	})
	if err != nil {
		slog.Warn("failed to serialize session snapshot", "session_id", session.ID, "error", err)
		return
	}
	if _, err := r.store.UpsertPendingSession(ctx, &store.PendingSession{
		UID:       session.ID,
		OwnerUser: session.Owner,
		State:     string(session.State),
		Payload:   string(payload),
	}); err != nil {
		slog.Warn("failed to persist session snapshot", "session_id", session.ID, "error", err)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the janitor.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *Registry) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.expireIdle()
		}
	}
}

// expireIdle fails sessions that have been inactive past the timeout and
// purges their snapshots.
func (r *Registry) expireIdle() {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	expired := []*Session{}
	for id, session := range r.sessions {
		if !session.inflight && session.LastActive.Before(cutoff) {
			session.State = StateFailed
			delete(r.sessions, id)
			expired = append(expired, session)
		}
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, session := range expired {
		slog.Info("session expired after inactivity", "session_id", session.ID, "owner", session.Owner)
		if r.store != nil {
			if err := r.store.DeletePendingSession(ctx, &store.DeletePendingSession{UID: session.ID}); err != nil {
				slog.Warn("failed to delete expired session snapshot", "session_id", session.ID, "error", err)
			}
		}
	}
	if r.store != nil {
		// Snapshots orphaned by a previous process go too.
		if _, err := r.store.DeletePendingSessionsBefore(ctx, cutoff.Unix()); err != nil {
			slog.Warn("failed to purge stale session snapshots", "error", err)
		}
	}
}
