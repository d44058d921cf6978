package job

import (
	"errors"
	"time"
)

// State describes where a remote conversion job is in its lifecycle.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
	// StateUnknown covers any status string the server reports that the
	// client does not recognize. Unknown keeps the original string in
	// Job.RawState and is treated as still-running by callers.
	StateUnknown State = "unknown"
)

// ParseState maps a server-reported status string onto a State. It never
// fails: anything unrecognized becomes StateUnknown.
func ParseState(raw string) State {
	switch State(raw) {
	case StateQueued, StateProcessing, StateCompleted, StateFailed, StateCancelled:
		return State(raw)
	default:
		return StateUnknown
	}
}

// Terminal reports whether no further transitions can occur from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Result holds the output of a completed job. Present iff the job completed.
type Result struct {
	DownloadURL   string    `json:"download_url"`
	Format        string    `json:"format"`
	FileSizeBytes int64     `json:"file_size"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Failure holds the server-reported reason a job failed. Present iff the job
// failed.
type Failure struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Job is an immutable snapshot of one unit of remote conversion work. Each
// status fetch produces a fresh snapshot; nothing mutates a Job in place.
type Job struct {
	ID           string
	State        State
	RawState     string
	SourceFormat string
	TargetFormat string
	Result       *Result
	Failure      *Failure
	Metadata     map[string]any
}

// Terminal reports whether the job reached a final state.
func (j Job) Terminal() bool {
	return j.State.Terminal()
}

// Validate enforces the snapshot invariants: a result exists exactly when the
// job completed, a failure exists exactly when it failed.
func (j Job) Validate() error {
	if (j.Result != nil) != (j.State == StateCompleted) {
		return errors.New("job result must be present exactly when state is completed")
	}
	if (j.Failure != nil) != (j.State == StateFailed) {
		return errors.New("job failure must be present exactly when state is failed")
	}
	return nil
}

// Metadata keys the notification path recognizes. Everything else in the
// metadata map is an opaque correlation token echoed back by the server.
const (
	MetaRecipientAddress = "recipient_address"
	MetaCorrelationID    = "correlation_id"
	MetaUserID           = "user_id"
)

// MetaString returns the string value for key, or "" when absent or not a
// string.
func (j Job) MetaString(key string) string {
	if j.Metadata == nil {
		return ""
	}
	v, _ := j.Metadata[key].(string)
	return v
}

// OutcomeKey is the identifier handed to a persistence hook: the correlation
// id when the submitter supplied one, the job id otherwise.
func (j Job) OutcomeKey() string {
	if cid := j.MetaString(MetaCorrelationID); cid != "" {
		return cid
	}
	return j.ID
}
