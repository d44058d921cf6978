package dispatch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"convcli/internal/domain/job"
	"github.com/sirupsen/logrus"
)

type stubDownloader struct {
	calls []string
	err   error
}

func (d *stubDownloader) Download(_ context.Context, url, dest string) error {
	d.calls = append(d.calls, url+" -> "+dest)
	return d.err
}

type sentMail struct {
	to           string
	subject      string
	highPriority bool
}

type stubMailer struct {
	sent []sentMail
	err  error
}

func (m *stubMailer) Send(_ context.Context, to, subject, _ string, highPriority bool) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, highPriority: highPriority})
	return m.err
}

type recordedOutcome struct {
	key, status, resultURL, errorMessage string
}

type stubHook struct {
	records []recordedOutcome
	err     error
}

func (h *stubHook) RecordOutcome(_ context.Context, key, status, resultURL, errorMessage string) error {
	h.records = append(h.records, recordedOutcome{key, status, resultURL, errorMessage})
	return h.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func completedJob(meta map[string]any) job.Job {
	return job.Job{
		ID:       "j1",
		State:    job.StateCompleted,
		Result:   &job.Result{DownloadURL: "https://x/f", Format: "pdf", FileSizeBytes: 100, ExpiresAt: time.Now().Add(time.Hour)},
		Metadata: meta,
	}
}

func TestJobCompleted_RunsAllSideEffects(t *testing.T) {
	dl := &stubDownloader{}
	mail := &stubMailer{}
	hook := &stubHook{}
	svc := NewService(Config{AutoDownload: true, OutputDir: "/tmp/out"}, dl, mail, hook, testLogger())

	svc.JobCompleted(context.Background(), completedJob(map[string]any{
		job.MetaRecipientAddress: "user@example.com",
		job.MetaCorrelationID:    "req-7",
	}))

	if len(dl.calls) != 1 {
		t.Fatalf("expected one download, got %v", dl.calls)
	}
	if len(mail.sent) != 1 || mail.sent[0].to != "user@example.com" || mail.sent[0].highPriority {
		t.Fatalf("unexpected mail: %+v", mail.sent)
	}
	if len(hook.records) != 1 {
		t.Fatalf("expected one hook record, got %v", hook.records)
	}
	rec := hook.records[0]
	if rec.key != "req-7" || rec.status != "completed" || rec.resultURL != "https://x/f" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestJobCompleted_FailingEffectsDoNotBlockOthers(t *testing.T) {
	dl := &stubDownloader{err: errors.New("disk full")}
	mail := &stubMailer{err: errors.New("smtp down")}
	hook := &stubHook{}
	svc := NewService(Config{AutoDownload: true, OutputDir: "/tmp/out"}, dl, mail, hook, testLogger())

	svc.JobCompleted(context.Background(), completedJob(map[string]any{job.MetaRecipientAddress: "u@x"}))

	if len(dl.calls) != 1 || len(mail.sent) != 1 {
		t.Fatalf("expected both effects attempted: dl=%v mail=%v", dl.calls, mail.sent)
	}
	if len(hook.records) != 1 {
		t.Fatalf("hook must still run after earlier failures, got %v", hook.records)
	}
}

func TestJobCompleted_NoOptionalCollaborators(t *testing.T) {
	svc := NewService(Config{}, nil, nil, nil, testLogger())
	// Must not panic with nil mailer, hook, downloader.
	svc.JobCompleted(context.Background(), completedJob(nil))
}

func TestJobCompleted_NoDownloadWhenDisabled(t *testing.T) {
	dl := &stubDownloader{}
	svc := NewService(Config{AutoDownload: false}, dl, nil, nil, testLogger())
	svc.JobCompleted(context.Background(), completedJob(nil))
	if len(dl.calls) != 0 {
		t.Fatalf("download should be skipped when disabled, got %v", dl.calls)
	}
}

func TestJobCompleted_DefaultRecipientFallback(t *testing.T) {
	mail := &stubMailer{}
	svc := NewService(Config{DefaultRecipient: "fallback@example.com"}, nil, mail, nil, testLogger())

	svc.JobCompleted(context.Background(), completedJob(nil))
	if len(mail.sent) != 1 || mail.sent[0].to != "fallback@example.com" {
		t.Fatalf("expected configured fallback recipient, got %+v", mail.sent)
	}

	mail.sent = nil
	svc.JobCompleted(context.Background(), completedJob(map[string]any{job.MetaRecipientAddress: "meta@example.com"}))
	if len(mail.sent) != 1 || mail.sent[0].to != "meta@example.com" {
		t.Fatalf("metadata recipient must win over fallback, got %+v", mail.sent)
	}
}

func TestJobFailed_RecipientAndHook(t *testing.T) {
	mail := &stubMailer{}
	hook := &stubHook{}
	svc := NewService(Config{}, nil, mail, hook, testLogger())

	svc.JobFailed(context.Background(), job.Job{
		ID:      "j2",
		State:   job.StateFailed,
		Failure: &job.Failure{Message: "bad input", Code: "INVALID_SOURCE"},
		Metadata: map[string]any{
			job.MetaRecipientAddress: "user@example.com",
			job.MetaCorrelationID:    "req-9",
		},
	})

	if len(mail.sent) != 1 || mail.sent[0].highPriority {
		t.Fatalf("expected one normal-priority failure mail, got %+v", mail.sent)
	}
	if len(hook.records) != 1 || hook.records[0].status != "failed" || hook.records[0].errorMessage != "bad input" {
		t.Fatalf("unexpected hook record: %+v", hook.records)
	}
}

func TestJobFailed_HookNeedsCorrelationID(t *testing.T) {
	hook := &stubHook{}
	svc := NewService(Config{}, nil, nil, hook, testLogger())

	svc.JobFailed(context.Background(), job.Job{
		ID:      "j2",
		State:   job.StateFailed,
		Failure: &job.Failure{Message: "bad input"},
	})

	if len(hook.records) != 0 {
		t.Fatalf("failure hook requires a correlation id, got %v", hook.records)
	}
}

func TestJobFailed_SystemErrorSendsAdminAlert(t *testing.T) {
	mail := &stubMailer{}
	svc := NewService(Config{AdminRecipient: "ops@example.com"}, nil, mail, nil, testLogger())

	svc.JobFailed(context.Background(), job.Job{
		ID:      "j3",
		State:   job.StateFailed,
		Failure: &job.Failure{Message: "backend exploded", Code: job.CodeSystemError},
	})

	if len(mail.sent) != 1 {
		t.Fatalf("expected one admin alert, got %+v", mail.sent)
	}
	if mail.sent[0].to != "ops@example.com" || !mail.sent[0].highPriority {
		t.Fatalf("admin alert must be high priority to the admin recipient: %+v", mail.sent[0])
	}
}

func TestJobFailed_NoAdminAlertForOrdinaryFailures(t *testing.T) {
	mail := &stubMailer{}
	svc := NewService(Config{AdminRecipient: "ops@example.com"}, nil, mail, nil, testLogger())

	svc.JobFailed(context.Background(), job.Job{
		ID:      "j4",
		State:   job.StateFailed,
		Failure: &job.Failure{Message: "unsupported format", Code: "UNSUPPORTED_CONVERSION"},
	})

	if len(mail.sent) != 0 {
		t.Fatalf("no alert expected for non-system errors, got %+v", mail.sent)
	}
}
