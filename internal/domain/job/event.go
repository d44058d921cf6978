package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Webhook event types the receiver acts on. Anything else is logged and
// acknowledged without side effects.
const (
	EventCompleted = "conversion.completed"
	EventFailed    = "conversion.failed"
)

// ErrMissingEvent marks an envelope without a usable event field.
var ErrMissingEvent = errors.New("missing event field")

// WebhookEvent is one inbound push notification announcing a job's terminal
// state. Received once, processed once, discarded.
type WebhookEvent struct {
	Type     string
	JobID    string
	Result   *Result
	Failure  *Failure
	Metadata map[string]any
}

// ParseWebhookEvent decodes a raw webhook body. A body that is not a JSON
// object or lacks the event field is rejected; an unrecognized event type is
// not an error here, classification belongs to the receiver.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var env struct {
		Event    string         `json:"event"`
		JobID    string         `json:"job_id"`
		Result   *Result        `json:"result"`
		Error    *Failure       `json:"error"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return WebhookEvent{}, fmt.Errorf("parse webhook envelope: %w", err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return WebhookEvent{}, ErrMissingEvent
	}
	return WebhookEvent{
		Type:     env.Event,
		JobID:    env.JobID,
		Result:   env.Result,
		Failure:  env.Error,
		Metadata: env.Metadata,
	}, nil
}

// Job converts an event into the job snapshot the dispatch path consumes.
func (e WebhookEvent) Job() Job {
	j := Job{ID: e.JobID, Metadata: e.Metadata}
	switch e.Type {
	case EventCompleted:
		j.State = StateCompleted
		j.RawState = string(StateCompleted)
		j.Result = e.Result
	case EventFailed:
		j.State = StateFailed
		j.RawState = string(StateFailed)
		j.Failure = e.Failure
	default:
		j.State = StateUnknown
		j.RawState = e.Type
	}
	return j
}
