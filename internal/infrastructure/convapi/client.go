package convapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"convcli/internal/domain/job"
	"github.com/sirupsen/logrus"
)

const errorBodyLimit = 64 << 10

// Client is the outbound adapter for the remote conversion API. The bearer
// token is a per-call argument, not client state, so one client can serve
// callers with different keys.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     *logrus.Logger
}

// NewClient creates a conversion API adapter rooted at baseURL.
func NewClient(baseURL string, log *logrus.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

// FetchStatus returns a fresh snapshot of the job. 404 maps to
// job.ErrNotFound, any other rejection to *job.APIError, and a request that
// never produced a response to *job.TransportError.
func (c *Client) FetchStatus(ctx context.Context, token, id string) (job.Job, error) {
	resp, err := c.do(ctx, "fetch status", http.MethodGet, "/v2/jobs/"+url.PathEscape(id), token, "", nil)
	if err != nil {
		return job.Job{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return job.Job{}, fmt.Errorf("job %s: %w", id, job.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return job.Job{}, c.decodeAPIError(resp)
	}

	var wire jobWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return job.Job{}, &job.MalformedResponseError{Reason: fmt.Sprintf("decode job snapshot: %v", err)}
	}
	j := wire.toJob()
	if j.ID == "" {
		j.ID = id
	}
	if err := j.Validate(); err != nil {
		return job.Job{}, &job.MalformedResponseError{Reason: err.Error()}
	}
	return j, nil
}

// Cancel asks the server to stop the job. Rejections such as
// JOB_ALREADY_COMPLETED surface as *job.APIError; callers branch on the code.
func (c *Client) Cancel(ctx context.Context, token, id string) error {
	resp, err := c.do(ctx, "cancel job", http.MethodPost, "/v2/jobs/"+url.PathEscape(id)+"/cancel", token, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// DeleteResult permanently removes a completed job's stored output.
func (c *Client) DeleteResult(ctx context.Context, token, id string) error {
	resp, err := c.do(ctx, "delete result", http.MethodDelete, "/v2/jobs/"+url.PathEscape(id)+"/result", token, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type jobWire struct {
	ID           string         `json:"id"`
	JobID        string         `json:"job_id"`
	Status       string         `json:"status"`
	SourceFormat string         `json:"source_format"`
	TargetFormat string         `json:"target_format"`
	Result       *job.Result    `json:"result"`
	Error        *job.Failure   `json:"error"`
	Metadata     map[string]any `json:"metadata"`
}

func (w jobWire) toJob() job.Job {
	id := w.ID
	if id == "" {
		id = w.JobID
	}
	return job.Job{
		ID:           id,
		State:        job.ParseState(w.Status),
		RawState:     w.Status,
		SourceFormat: w.SourceFormat,
		TargetFormat: w.TargetFormat,
		Result:       w.Result,
		Failure:      w.Error,
		Metadata:     w.Metadata,
	}
}

func (c *Client) do(ctx context.Context, op, method, path, token, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &job.TransportError{Op: op, Err: err}
	}
	return resp, nil
}

// decodeAPIError turns a >=400 response into *job.APIError, preserving the
// server-supplied code and message when the error envelope decodes.
func (c *Client) decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	var env struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return &job.APIError{Code: env.Error.Code, Message: env.Error.Message, Details: env.Error.Details}
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(resp.StatusCode)
	}
	return &job.APIError{Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet)}
}
