package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"convcli/internal/domain/job"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type eventDispatcher interface {
	JobCompleted(ctx context.Context, j job.Job)
	JobFailed(ctx context.Context, j job.Job)
}

type auditAppender interface {
	Append(data map[string]any) error
}

// Handler receives push notifications from the conversion backend. It is
// stateless and safe under re-delivery: the same event twice produces two
// audit entries and repeats its side effects.
type Handler struct {
	dispatcher eventDispatcher
	audit      auditAppender
	log        *logrus.Logger
}

// NewHandler wires the webhook endpoint with its dispatcher and audit log.
func NewHandler(dispatcher eventDispatcher, audit auditAppender, log *logrus.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, audit: audit, log: log}
}

// HandleWebhook handles POST /webhook. The raw payload is audit-logged
// before anything else, malformed input included, so a forensic trail always
// exists. Side-effect failures never change the HTTP response.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))

	h.appendAudit(body)

	if readErr != nil {
		h.log.Warnf("webhook body read failed: %v", readErr)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable request body"})
		return
	}

	ev, err := job.ParseWebhookEvent(body)
	if err != nil {
		h.log.Warnf("webhook rejected: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	switch ev.Type {
	case job.EventCompleted:
		j := ev.Job()
		if j.Result == nil {
			h.log.WithField("job_id", j.ID).Error("completed event without result, no side effects")
			break
		}
		h.log.WithFields(logrus.Fields{
			"job_id":       j.ID,
			"download_url": j.Result.DownloadURL,
			"format":       j.Result.Format,
		}).Info("webhook: conversion completed")
		h.dispatcher.JobCompleted(r.Context(), j)
	case job.EventFailed:
		j := ev.Job()
		fields := logrus.Fields{"job_id": j.ID}
		if j.Failure != nil {
			fields["message"] = j.Failure.Message
			fields["code"] = j.Failure.Code
		}
		h.log.WithFields(fields).Error("webhook: conversion failed")
		h.dispatcher.JobFailed(r.Context(), j)
	default:
		h.log.WithFields(logrus.Fields{"event": ev.Type, "job_id": ev.JobID}).Warn("ignoring unrecognized webhook event")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) appendAudit(body []byte) {
	data := map[string]any{"source": "webhook"}
	if json.Valid(body) {
		data["payload"] = json.RawMessage(body)
	} else {
		data["payload"] = string(body)
	}
	if err := h.audit.Append(data); err != nil {
		h.log.Errorf("audit append failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
