package convapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"convcli/internal/domain/job"
)

// ConvertRequest submits raw file bytes for conversion.
type ConvertRequest struct {
	Filename     string
	Data         io.Reader
	SourceFormat string
	TargetFormat string
	Metadata     map[string]any
}

// ConvertURLRequest asks the server to fetch the source itself.
type ConvertURLRequest struct {
	SourceURL    string
	SourceFormat string
	TargetFormat string
	Metadata     map[string]any
}

// Convert submits file bytes via multipart POST. The returned Job is either
// Queued (carrying only the server-assigned id) or, on a cache hit, already
// Completed with an embedded result.
func (c *Client) Convert(ctx context.Context, token string, req ConvertRequest) (job.Job, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.Filename)
	if err != nil {
		return job.Job{}, err
	}
	if _, err := io.Copy(part, req.Data); err != nil {
		return job.Job{}, fmt.Errorf("read source file: %w", err)
	}
	if err := writeSubmissionFields(w, req.SourceFormat, req.TargetFormat, req.Metadata); err != nil {
		return job.Job{}, err
	}
	if err := w.Close(); err != nil {
		return job.Job{}, err
	}

	resp, err := c.do(ctx, "submit conversion", http.MethodPost, "/v2/convert", token, w.FormDataContentType(), &buf)
	if err != nil {
		return job.Job{}, err
	}
	return c.decodeSubmission(resp, req.Metadata)
}

// ConvertURL submits a source URL for server-side fetch and conversion.
func (c *Client) ConvertURL(ctx context.Context, token string, req ConvertURLRequest) (job.Job, error) {
	payload := map[string]any{
		"url":           req.SourceURL,
		"target_format": req.TargetFormat,
	}
	if req.SourceFormat != "" {
		payload["source_format"] = req.SourceFormat
	}
	if req.Metadata != nil {
		payload["metadata"] = req.Metadata
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return job.Job{}, err
	}
	resp, err := c.do(ctx, "submit url conversion", http.MethodPost, "/v2/convert-url", token, "application/json", bytes.NewReader(body))
	if err != nil {
		return job.Job{}, err
	}
	return c.decodeSubmission(resp, req.Metadata)
}

func writeSubmissionFields(w *multipart.Writer, sourceFormat, targetFormat string, metadata map[string]any) error {
	if err := w.WriteField("target_format", targetFormat); err != nil {
		return err
	}
	if sourceFormat != "" {
		if err := w.WriteField("source_format", sourceFormat); err != nil {
			return err
		}
	}
	if metadata != nil {
		meta, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if err := w.WriteField("metadata", string(meta)); err != nil {
			return err
		}
	}
	return nil
}

type submissionWire struct {
	JobID        string      `json:"job_id"`
	Status       string      `json:"status"`
	SourceFormat string      `json:"source_format"`
	TargetFormat string      `json:"target_format"`
	Result       *job.Result `json:"result"`
}

// decodeSubmission handles both submission outcomes: an accepted job id and
// the cache-hit fast path where the response already embeds a finished
// result. A partially populated immediate result is rejected rather than
// guessed at.
func (c *Client) decodeSubmission(resp *http.Response, metadata map[string]any) (job.Job, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return job.Job{}, c.decodeAPIError(resp)
	}

	var wire submissionWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return job.Job{}, &job.MalformedResponseError{Reason: fmt.Sprintf("decode submission response: %v", err)}
	}

	base := job.Job{
		ID:           wire.JobID,
		SourceFormat: wire.SourceFormat,
		TargetFormat: wire.TargetFormat,
		Metadata:     metadata,
	}

	if wire.Result != nil {
		if wire.Result.DownloadURL == "" || wire.Result.Format == "" || wire.Result.FileSizeBytes <= 0 {
			return job.Job{}, &job.MalformedResponseError{Reason: "immediate result is partially populated"}
		}
		base.State = job.StateCompleted
		base.RawState = string(job.StateCompleted)
		base.Result = wire.Result
		c.log.WithField("job_id", base.ID).Debug("submission served from cache")
		return base, nil
	}

	if wire.JobID == "" {
		return job.Job{}, &job.MalformedResponseError{Reason: "submission response carries neither job_id nor result"}
	}

	base.State = job.StateQueued
	base.RawState = string(job.StateQueued)
	if wire.Status != "" {
		base.State = job.ParseState(wire.Status)
		base.RawState = wire.Status
	}
	if base.State == job.StateCompleted {
		return job.Job{}, &job.MalformedResponseError{Reason: "completed submission without result"}
	}
	c.log.WithField("job_id", base.ID).Debug("conversion job accepted")
	return base, nil
}
