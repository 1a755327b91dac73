package taskspec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qcheck/taskbot/plugin/ai"
	"github.com/qcheck/taskbot/plugin/ai/extract"
	engineerrors "github.com/qcheck/taskbot/server/internal/errors"
	"github.com/qcheck/taskbot/server/internal/observability"
	"github.com/qcheck/taskbot/server/middleware"
	"github.com/qcheck/taskbot/server/service/directory"
	"github.com/qcheck/taskbot/store"
)

// maxHistoryMessages bounds the conversation context sent to extraction.
const maxHistoryMessages = 40

// Extractor is the interface to the language-understanding adapter.
type Extractor interface {
	Extract(ctx context.Context, history []ai.Message, latest string, tz *time.Location) (*extract.Draft, error)
}

// Committer persists a completed spec. Called exactly once per finalized
// spec; never retried, since the call is side-effecting.
type Committer interface {
	Commit(ctx context.Context, spec *TaskSpec, tz *time.Location, creator string) (int64, error)
}

// TaskStore is the interface for the pre-commit duplicate check.
type TaskStore interface {
	TaskNameExists(ctx context.Context, mainController, taskName string) (bool, error)
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	SessionID     string       `json:"session_id"`
	Text          string       `json:"text"`
	State         SessionState `json:"state"`
	CreatedTaskID int64        `json:"created_task_id,omitempty"`
}

// Engine drives sessions from first message to a created task.
type Engine struct {
	extractor Extractor
	resolver  directory.Service
	committer Committer
	tasks     TaskStore
	registry  *Registry
	limiter   *middleware.RateLimiter
	now       func() time.Time
}

// NewEngine wires the engine. tasks and limiter may be nil, disabling the
// pre-commit duplicate check and rate limiting respectively.
func NewEngine(extractor Extractor, resolver directory.Service, committer Committer, tasks TaskStore, registry *Registry, limiter *middleware.RateLimiter) *Engine {
	return &Engine{
		extractor: extractor,
		resolver:  resolver,
		committer: committer,
		tasks:     tasks,
		registry:  registry,
		limiter:   limiter,
		now:       time.Now,
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// PostMessage processes one user message against a session. An empty
// sessionID starts a fresh session; the returned Reply carries the ID to
// use on subsequent turns.
func (e *Engine) PostMessage(ctx context.Context, sessionID, user, text, timezone string) (*Reply, error) {
	if e.limiter != nil && !e.limiter.Allow(user) {
		return nil, engineerrors.New(engineerrors.ErrCodeRateLimitExceeded,
			"too many messages, please wait a moment before trying again")
	}

	session, release, err := e.registry.Acquire(ctx, sessionID, user, timezone)
	if err != nil {
		return nil, err
	}
	defer release()

	rc := observability.NewRequestContext(slog.Default(), session.ID, user)
	ctx = observability.WithRequestContext(ctx, rc)
	rc.Info("processing turn", slog.String(observability.LogFieldState, string(session.State)))

	if session.State.Terminal() {
		return &Reply{
			SessionID:     session.ID,
			Text:          "This conversation is already finished, start a new one to create another task.",
			State:         session.State,
			CreatedTaskID: session.CreatedTaskID,
		}, nil
	}

	reply := e.step(ctx, session, text)
	session.History = append(session.History, ai.UserMessage(text), ai.AssistantMessage(reply.Text))
	if len(session.History) > maxHistoryMessages {
		session.History = session.History[len(session.History)-maxHistoryMessages:]
	}

	e.registry.Snapshot(ctx, session)
	rc.Info("turn processed",
		slog.String(observability.LogFieldState, string(session.State)),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return reply, nil
}

// step advances the state machine by one message and returns the reply.
func (e *Engine) step(ctx context.Context, session *Session, text string) *Reply {
	if session.State == StateAwaitingConfirmation {
		if answer, recognized := parseConfirmation(text); recognized {
			if answer {
				return e.finalize(ctx, session)
			}
			session.State = StateCollecting
			return e.reply(session, "Okay, I won't create it yet. What should I change?")
		}
		// Not a plain yes/no: it may still be an affirmative outside the
		// lexicon ("yes please") or a correction; extraction decides.
		session.State = StateCollecting
		return e.collect(ctx, session, text, true)
	}

	return e.collect(ctx, session, text, false)
}

func (e *Engine) collect(ctx context.Context, session *Session, text string, confirming bool) *Reply {
	rc := requestLogger(ctx, session)

	draft, err := e.extractor.Extract(ctx, session.History, text, session.Loc())
	if err != nil {
		switch extract.KindOf(err) {
		case extract.Unavailable:
			rc.Error("extraction unavailable", err)
			session.State = StateFailed
			return e.reply(session, "I'm having trouble reaching the language service, so I have to stop here. The task was NOT created.")
		case extract.Malformed:
			rc.Warn("extraction malformed", slog.String(observability.LogFieldErrorCode, string(engineerrors.ErrCodeExtractionMalformed)))
			return e.reply(session, "I couldn't make sense of that, could you rephrase it?")
		case extract.TooLong:
			return e.reply(session, fmt.Sprintf("That message is too long for me to process, could you keep it under %d characters?", extract.MaxInputLength))
		case extract.NoSignal:
			return e.askNext(session, "I didn't catch any task details there. ")
		default:
			rc.Error("extraction failed", err)
			session.State = StateFailed
			return e.reply(session, "Something went wrong on my side. The task was NOT created.")
		}
	}

	// The summary lexicon misses phrasings like "yes please"; extraction
	// marks those with Confirmed instead of field content.
	if confirming && draft.Confirmed != nil {
		if !*draft.Confirmed {
			return e.reply(session, "Okay, I won't create it yet. What should I change?")
		}
		if draft.OnlyConfirmation() {
			return e.finalize(ctx, session)
		}
		// Affirmative bundled with corrections: apply them and re-summarize.
	}

	if err := e.applyDraft(ctx, session.Spec, draft, e.now(), session.Loc()); err != nil {
		var engineErr *engineerrors.EngineError
		if errors.As(err, &engineErr) && engineErr.UserRecoverable() {
			rc.Warn("draft field rejected", slog.String(observability.LogFieldErrorCode, string(engineErr.Code)))
			return e.reply(session, engineErr.Message)
		}
		rc.Error("draft normalization failed", err)
		session.State = StateFailed
		return e.reply(session, "Something went wrong on my side. The task was NOT created.")
	}

	// A task's owning group defaults to the requester when the directory
	// knows them as a group; an explicit "managed by X" in any turn
	// overrides it. Requesters resolving to a person still get asked.
	if session.Spec.MainController == nil && session.Owner != "" {
		if identity, err := e.resolver.ResolveGroup(ctx, session.Owner); err == nil {
			session.Spec.MainController = identity
		}
	}

	if !session.Spec.Complete() {
		return e.askNext(session, "")
	}

	// Catch duplicate names before confirmation so the user renames early
	// instead of after confirming. The commit-time check remains the
	// authority.
	if e.tasks != nil {
		exists, err := e.tasks.TaskNameExists(ctx, session.Spec.MainController.CanonicalName, session.Spec.TaskName)
		if err != nil {
			rc.Warn("duplicate pre-check failed", slog.String(observability.LogFieldErrorCode, string(engineerrors.ErrCodePersistenceFailed)))
		} else if exists {
			name := session.Spec.TaskName
			session.Spec.Clear(FieldTaskName)
			return e.reply(session, fmt.Sprintf("%s already has a task called %q. What should this one be called instead?",
				session.Spec.MainController.CanonicalName, name))
		}
	}

	session.State = StateAwaitingConfirmation
	return e.reply(session, Summarize(session.Spec))
}

// finalize commits the confirmed spec. Distinguished persistence errors
// reopen collection on the offending field; anything else fails the session.
func (e *Engine) finalize(ctx context.Context, session *Session) *Reply {
	rc := requestLogger(ctx, session)
	session.State = StateFinalizing

	id, err := e.committer.Commit(ctx, session.Spec, session.Loc(), session.Owner)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateTaskName):
			name := session.Spec.TaskName
			session.Spec.Clear(FieldTaskName)
			session.State = StateCollecting
			return e.reply(session, fmt.Sprintf("A task called %q already exists for %s. What should this one be called instead?",
				name, session.Spec.MainController.CanonicalName))
		case errors.Is(err, store.ErrOwnerGroupNotFound):
			owner := session.Spec.MainController.CanonicalName
			session.Spec.Clear(FieldMainController)
			session.State = StateCollecting
			return e.reply(session, fmt.Sprintf("The group %q no longer exists in the directory. Which group should own this task?", owner))
		default:
			rc.Error("persistence failed", err)
			session.State = StateFailed
			return e.reply(session, "Saving the task failed and I can't safely retry it. The task was NOT created.")
		}
	}

	session.State = StateComplete
	session.CreatedTaskID = id
	rc.Info("task created", slog.Int64("task_id", id))
	return e.reply(session, fmt.Sprintf("Done! Created task #%d: %s.", id, session.Spec.TaskName))
}

// requestLogger returns the request-scoped logger, or a fresh one when the
// call arrived without it.
func requestLogger(ctx context.Context, session *Session) *observability.RequestContext {
	if rc, ok := observability.FromContext(ctx); ok {
		return rc
	}
	return observability.NewRequestContext(slog.Default(), session.ID, session.Owner)
}

// askNext prompts for the highest-priority missing field.
func (e *Engine) askNext(session *Session, prefix string) *Reply {
	missing := session.Spec.MissingFields()
	if len(missing) == 0 {
		session.State = StateAwaitingConfirmation
		return e.reply(session, Summarize(session.Spec))
	}
	return e.reply(session, prefix+ClarificationFor(missing[0]))
}

func (e *Engine) reply(session *Session, text string) *Reply {
	return &Reply{
		SessionID:     session.ID,
		Text:          text,
		State:         session.State,
		CreatedTaskID: session.CreatedTaskID,
	}
}
