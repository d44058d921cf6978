package convapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"convcli/internal/domain/job"
	"github.com/sirupsen/logrus"
)

// uploadServer fakes the chunk-session endpoints and records call order.
type uploadServer struct {
	mu          sync.Mutex
	opened      bool
	chunkOrder  []int
	completed   bool
	failAtChunk int // -1 disables
	openPayload map[string]any
}

func newUploadServer() *uploadServer {
	return &uploadServer{failAtChunk: -1}
}

func (s *uploadServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.URL.Path == "/v2/upload" && r.Method == http.MethodPost:
			s.opened = true
			_ = json.NewDecoder(r.Body).Decode(&s.openPayload)
			_, _ = w.Write([]byte(`{"session_id":"sess-1"}`))
		case strings.HasPrefix(r.URL.Path, "/v2/upload/sess-1/chunks/"):
			var index int
			if _, err := fmt.Sscanf(r.URL.Path, "/v2/upload/sess-1/chunks/%d", &index); err != nil {
				t.Errorf("bad chunk path %s", r.URL.Path)
			}
			if index == s.failAtChunk {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"code":"CHUNK_REJECTED","message":"checksum mismatch"}}`))
				return
			}
			s.chunkOrder = append(s.chunkOrder, index)
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/v2/upload/sess-1/complete":
			s.completed = true
			_, _ = w.Write([]byte(`{"job_id":"j1"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func uploadTestClient(t *testing.T, s *uploadServer) *Client {
	t.Helper()
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(srv.URL, log)
}

func TestUploadFile_ChunkCountAndOrder(t *testing.T) {
	s := newUploadServer()
	c := uploadTestClient(t, s)

	// 10 bytes with chunk size 4: ceil(10/4) = 3 chunks.
	j, err := c.UploadFile(context.Background(), "tok", UploadRequest{
		Filename:     "big.bin",
		Data:         strings.NewReader("0123456789"),
		Size:         10,
		ChunkSize:    4,
		TargetFormat: "pdf",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if j.ID != "j1" || j.State != job.StateQueued {
		t.Fatalf("unexpected job: %+v", j)
	}

	if len(s.chunkOrder) != 3 {
		t.Fatalf("expected exactly 3 chunk calls, got %v", s.chunkOrder)
	}
	for i, index := range s.chunkOrder {
		if index != i {
			t.Fatalf("chunks must arrive in index order, got %v", s.chunkOrder)
		}
	}
	if !s.completed {
		t.Fatalf("completion call missing")
	}
	if s.openPayload["total_chunks"].(float64) != 3 {
		t.Fatalf("session must announce total chunks, got %v", s.openPayload["total_chunks"])
	}
	if ref, _ := s.openPayload["client_ref"].(string); ref == "" {
		t.Fatalf("session must carry a client-side handle")
	}
}

func TestUploadFile_ExactMultipleOfChunkSize(t *testing.T) {
	s := newUploadServer()
	c := uploadTestClient(t, s)

	if _, err := c.UploadFile(context.Background(), "tok", UploadRequest{
		Filename: "big.bin", Data: strings.NewReader("01234567"), Size: 8, ChunkSize: 4, TargetFormat: "pdf",
	}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(s.chunkOrder) != 2 {
		t.Fatalf("8 bytes at chunk size 4 is exactly 2 chunks, got %v", s.chunkOrder)
	}
}

func TestUploadFile_AbortsOnChunkFailure(t *testing.T) {
	s := newUploadServer()
	s.failAtChunk = 1
	c := uploadTestClient(t, s)

	_, err := c.UploadFile(context.Background(), "tok", UploadRequest{
		Filename: "big.bin", Data: strings.NewReader("0123456789"), Size: 10, ChunkSize: 4, TargetFormat: "pdf",
	})

	var chunkErr *job.ChunkUploadError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkUploadError, got %v", err)
	}
	if chunkErr.Index != 1 {
		t.Fatalf("failure must name the failed index, got %d", chunkErr.Index)
	}
	if !job.HasCode(err, "CHUNK_REJECTED") {
		t.Fatalf("server rejection must stay inspectable, got %v", err)
	}

	// Only chunk 0 succeeded; chunk 2 never attempted; no completion call.
	if len(s.chunkOrder) != 1 || s.chunkOrder[0] != 0 {
		t.Fatalf("expected only chunk 0 acknowledged, got %v", s.chunkOrder)
	}
	if s.completed {
		t.Fatalf("completion must not run after an aborted sequence")
	}
}

func TestUploadFile_RejectsNonPositiveSize(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	c := NewClient("http://127.0.0.1:1", log)

	if _, err := c.UploadFile(context.Background(), "tok", UploadRequest{
		Filename: "x", Data: strings.NewReader(""), Size: 0,
	}); err == nil {
		t.Fatalf("expected error for zero size")
	}
}
