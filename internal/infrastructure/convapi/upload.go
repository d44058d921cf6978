package convapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"convcli/internal/domain/job"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultChunkSize is used when an UploadRequest does not set one.
const DefaultChunkSize = 5 << 20

// UploadRequest describes a chunked upload session for a file too large to
// submit in one multipart request.
type UploadRequest struct {
	Filename     string
	Data         io.Reader
	Size         int64
	ChunkSize    int64
	SourceFormat string
	TargetFormat string
	Metadata     map[string]any
}

// UploadFile runs a full chunked upload session: open, upload every chunk
// strictly in index order, then complete. A failure at chunk k aborts the
// session immediately; chunk k+1 is never attempted. The completion call is
// only issued once every chunk has been acknowledged, and its response is
// decoded exactly like a direct submission (job id or cache hit).
func (c *Client) UploadFile(ctx context.Context, token string, req UploadRequest) (job.Job, error) {
	if req.Size <= 0 {
		return job.Job{}, errors.New("upload size must be positive")
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	totalChunks := (req.Size + chunkSize - 1) / chunkSize

	sessionID, err := c.openUploadSession(ctx, token, req, totalChunks)
	if err != nil {
		return job.Job{}, err
	}

	remaining := req.Size
	for index := int64(0); index < totalChunks; index++ {
		n := chunkSize
		if remaining < n {
			n = remaining
		}
		if err := c.uploadChunk(ctx, token, sessionID, int(index), io.LimitReader(req.Data, n)); err != nil {
			return job.Job{}, &job.ChunkUploadError{Index: int(index), Err: err}
		}
		remaining -= n
		c.log.WithFields(logrus.Fields{"session": sessionID, "chunk": index, "total": totalChunks}).Debug("chunk acknowledged")
	}

	resp, err := c.do(ctx, "complete upload", http.MethodPost, "/v2/upload/"+url.PathEscape(sessionID)+"/complete", token, "", nil)
	if err != nil {
		return job.Job{}, err
	}
	return c.decodeSubmission(resp, req.Metadata)
}

func (c *Client) openUploadSession(ctx context.Context, token string, req UploadRequest, totalChunks int64) (string, error) {
	payload := map[string]any{
		"filename":      req.Filename,
		"file_size":     req.Size,
		"total_chunks":  totalChunks,
		"target_format": req.TargetFormat,
		// Local handle for the session before the server assigns one.
		"client_ref": uuid.NewString(),
	}
	if req.SourceFormat != "" {
		payload["source_format"] = req.SourceFormat
	}
	if req.Metadata != nil {
		payload["metadata"] = req.Metadata
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, "open upload session", http.MethodPost, "/v2/upload", token, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.decodeAPIError(resp)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &job.MalformedResponseError{Reason: fmt.Sprintf("decode upload session: %v", err)}
	}
	if out.SessionID == "" {
		return "", &job.MalformedResponseError{Reason: "upload session response missing session_id"}
	}
	return out.SessionID, nil
}

func (c *Client) uploadChunk(ctx context.Context, token, sessionID string, index int, data io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("chunk", fmt.Sprintf("chunk-%d", index))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return fmt.Errorf("read chunk: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	path := fmt.Sprintf("/v2/upload/%s/chunks/%d", url.PathEscape(sessionID), index)
	resp, err := c.do(ctx, "upload chunk", http.MethodPost, path, token, w.FormDataContentType(), &buf)
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
