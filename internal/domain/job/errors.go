package job

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a job or resource the server no longer knows about.
// Not retryable.
var ErrNotFound = errors.New("not found")

// Error codes the remote API uses for conditions callers branch on.
const (
	CodeJobAlreadyCompleted = "JOB_ALREADY_COMPLETED"
	CodeJobAlreadyCancelled = "JOB_ALREADY_CANCELLED"
	CodeJobNotFound         = "JOB_NOT_FOUND"
	CodeJobNotCompleted     = "JOB_NOT_COMPLETED"
	CodeFileAlreadyDeleted  = "FILE_ALREADY_DELETED"
	CodeFileNotFound        = "FILE_NOT_FOUND"
	CodeSystemError         = "SYSTEM_ERROR"
)

// APIError is a structured rejection decoded from the server's error
// envelope. Generally not retryable; callers branch on Code.
type APIError struct {
	Code    string
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: %s", e.Message)
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// HasCode reports whether err is an APIError carrying the given code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// TransportError marks a request that never produced a decodable server
// response: connection refused, DNS failure, broken stream. Retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports an exhausted local polling budget. The server-side job
// may still be running; polling the same id can resume later.
type TimeoutError struct {
	JobID        string
	AttemptsMade int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s still running after %d polls", e.JobID, e.AttemptsMade)
}

// DownloadError reports a failed result fetch. Independent of job state and
// retryable.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// MalformedResponseError reports a server response that decoded but violates
// the contract, e.g. a partially populated immediate result.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed server response: %s", e.Reason)
}

// ChunkUploadError reports the first chunk that failed during an upload
// session. The session is aborted; no later chunk is attempted.
type ChunkUploadError struct {
	Index int
	Err   error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("chunk %d upload failed: %v", e.Index, e.Err)
}

func (e *ChunkUploadError) Unwrap() error { return e.Err }
