package job

import (
	"errors"
	"testing"
)

func TestParseWebhookEvent_Completed(t *testing.T) {
	body := []byte(`{"event":"conversion.completed","job_id":"j1","result":{"download_url":"https://x/f","format":"pdf","file_size":100,"expires_at":"2025-01-01T00:00:00Z"},"metadata":{"correlation_id":"c9"}}`)
	ev, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Type != EventCompleted || ev.JobID != "j1" {
		t.Fatalf("unexpected envelope: %+v", ev)
	}
	if ev.Result == nil || ev.Result.DownloadURL != "https://x/f" || ev.Result.FileSizeBytes != 100 {
		t.Fatalf("unexpected result: %+v", ev.Result)
	}

	j := ev.Job()
	if j.State != StateCompleted || j.Result == nil || j.Failure != nil {
		t.Fatalf("unexpected job: %+v", j)
	}
	if err := j.Validate(); err != nil {
		t.Fatalf("completed event job should satisfy invariants: %v", err)
	}
	if j.OutcomeKey() != "c9" {
		t.Fatalf("expected metadata to flow through, got %q", j.OutcomeKey())
	}
}

func TestParseWebhookEvent_Failed(t *testing.T) {
	body := []byte(`{"event":"conversion.failed","job_id":"j2","error":{"message":"conversion engine crashed","code":"SYSTEM_ERROR"}}`)
	ev, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	j := ev.Job()
	if j.State != StateFailed || j.Failure == nil || j.Failure.Code != CodeSystemError {
		t.Fatalf("unexpected job: %+v", j)
	}
	if err := j.Validate(); err != nil {
		t.Fatalf("failed event job should satisfy invariants: %v", err)
	}
}

func TestParseWebhookEvent_MissingEvent(t *testing.T) {
	for _, body := range []string{`{}`, `{"event":"  "}`, `{"job_id":"j1"}`} {
		if _, err := ParseWebhookEvent([]byte(body)); !errors.Is(err, ErrMissingEvent) {
			t.Fatalf("body %s: expected ErrMissingEvent, got %v", body, err)
		}
	}
}

func TestParseWebhookEvent_NotJSON(t *testing.T) {
	_, err := ParseWebhookEvent([]byte("not json"))
	if err == nil || errors.Is(err, ErrMissingEvent) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestWebhookEvent_UnknownTypeProducesUnknownJob(t *testing.T) {
	ev, err := ParseWebhookEvent([]byte(`{"event":"conversion.started","job_id":"j3"}`))
	if err != nil {
		t.Fatalf("unknown event type must still parse: %v", err)
	}
	j := ev.Job()
	if j.State != StateUnknown || j.RawState != "conversion.started" {
		t.Fatalf("unexpected job: %+v", j)
	}
}
