// Package extract wraps the external language-understanding call and
// normalizes its output into draft task fields. All of the service's
// non-determinism is contained here; every other engine component consumes
// plain Draft values and can be tested against recorded drafts.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qcheck/taskbot/plugin/ai"
)

const (
	// MaxInputLength bounds a single user message.
	MaxInputLength = 5000
)

// Extractor converts conversation turns into Draft fields.
type Extractor struct {
	llm ai.LLMService
	now func() time.Time
}

// NewExtractor creates an extractor on top of the given LLM service.
func NewExtractor(llm ai.LLMService) *Extractor {
	return &Extractor{
		llm: llm,
		now: time.Now,
	}
}

// WithClock overrides the clock used for prompt context. Test hook.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

const systemPromptTemplate = `You extract task-creation parameters from user messages. Today: %s (timezone %s).

Output Schema (JSON only):
{
  "task_name": "short task title without date/time words",
  "main_controller": "owning group name",
  "controllers": ["additional controlling group names"],
  "assignees": ["person or group names"],
  "due_date": "date exactly as the user phrased it (e.g. 'next friday', 'tomorrow', '2025-06-30')",
  "due_time": "time exactly as the user phrased it (e.g. '2pm', 'end of day')",
  "soft_due_date": "earliest acceptable date, as phrased",
  "final_due_date": "hard deadline date, as phrased",
  "items": ["checklist line items"],
  "recurrence": "recurrence exactly as phrased (e.g. 'every 2 weeks'), omit for one-time tasks",
  "business_days": "as_is | shift_forward | shift_backward",
  "confidential": boolean,
  "add_to_priority_list": boolean,
  "is_reminder": boolean,
  "reminder_date": "reminder date as phrased",
  "reminder_offset_hours": integer,
  "confirmed": boolean
}

Rules:
1. Include ONLY fields you can infer from the latest message with confidence. Omit everything else. Never guess, never fill defaults.
2. If the task title is quoted, use exactly the quoted text.
3. 'remind me ...' means is_reminder=true. Do not invent assignees from it.
4. Keep dates and times as the user phrased them; do not resolve relative dates yourself.
5. 'with checkboxes for: a, b, c' and similar enumerations populate items.
6. 'managed by X' or 'controlled by X' populates controllers.
7. 'skip weekends' means business_days="shift_forward".
8. If the latest message is purely a yes/no answer to a pending confirmation, set only "confirmed".
9. Respond with the JSON object and nothing else.`

const strictRepromptSuffix = `

Your previous answer was not valid JSON. Respond again with ONLY the JSON object: no prose, no code fences, no trailing text.`

// Extract sends the conversation to the language-understanding service and
// returns the draft fields inferred from the latest message.
//
// Transport failures surface as Unavailable (the underlying client already
// retried with backoff; the call has no side effect). A response that cannot
// be parsed triggers exactly one stricter re-prompt before Malformed. An
// empty result is NoSignal.
func (e *Extractor) Extract(ctx context.Context, history []ai.Message, latest string, tz *time.Location) (*Draft, error) {
	latest = strings.TrimSpace(latest)
	if latest == "" {
		return nil, &Error{Kind: NoSignal}
	}
	if len(latest) > MaxInputLength {
		return nil, &Error{Kind: TooLong, Cause: fmt.Errorf("%d characters, limit %d", len(latest), MaxInputLength)}
	}
	if tz == nil {
		tz = time.UTC
	}

	systemPrompt := fmt.Sprintf(systemPromptTemplate, e.now().In(tz).Format("2006-01-02"), tz.String())

	response, err := e.chat(ctx, systemPrompt, history, latest)
	if err != nil {
		return nil, &Error{Kind: Unavailable, Cause: err}
	}

	draft, parseErr := parseDraft(response)
	if parseErr != nil {
		slog.Debug("extraction response not parseable, re-prompting strictly", "error", parseErr)
		response, err = e.chat(ctx, systemPrompt+strictRepromptSuffix, history, latest)
		if err != nil {
			return nil, &Error{Kind: Unavailable, Cause: err}
		}
		draft, parseErr = parseDraft(response)
		if parseErr != nil {
			return nil, &Error{Kind: Malformed, Cause: parseErr}
		}
	}

	if draft.IsEmpty() {
		return nil, &Error{Kind: NoSignal}
	}
	return draft, nil
}

func (e *Extractor) chat(ctx context.Context, systemPrompt string, history []ai.Message, latest string) (string, error) {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.SystemPrompt(systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, ai.UserMessage(latest))
	return e.llm.Chat(ctx, messages)
}

// parseDraft extracts the JSON object from a possibly chatty response.
func parseDraft(response string) (*Draft, error) {
	jsonStr := strings.TrimSpace(response)
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")

	// Models sometimes wrap the object in prose despite instructions.
	start := strings.Index(jsonStr, "{")
	end := strings.LastIndex(jsonStr, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	jsonStr = jsonStr[start : end+1]

	var draft Draft
	if err := json.Unmarshal([]byte(jsonStr), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return &draft, nil
}
