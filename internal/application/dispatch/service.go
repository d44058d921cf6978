package dispatch

import (
	"context"
	"fmt"
	"path/filepath"

	"convcli/internal/domain/job"
	"github.com/sirupsen/logrus"
)

// Config selects which side effects the dispatcher performs.
type Config struct {
	AutoDownload bool
	OutputDir    string
	// DefaultRecipient is notified when the job metadata names no one.
	DefaultRecipient string
	AdminRecipient   string
}

// Service routes the side effects of a terminal job: result download,
// recipient notification, admin alerting and the persistence hook. Every
// effect is independently fault-isolated; one failing never blocks the
// others, and nothing propagates back to the trigger.
type Service struct {
	cfg       Config
	downloads Downloader
	mail      Mailer
	hook      PersistenceHook
	log       *logrus.Logger
}

// NewService creates a dispatcher. mail and hook may be nil; the matching
// side effects become no-ops.
func NewService(cfg Config, downloads Downloader, mail Mailer, hook PersistenceHook, log *logrus.Logger) *Service {
	return &Service{cfg: cfg, downloads: downloads, mail: mail, hook: hook, log: log}
}

// JobCompleted runs the completion side effects for a terminal snapshot.
func (s *Service) JobCompleted(ctx context.Context, j job.Job) {
	entry := s.log.WithFields(logrus.Fields{"job_id": j.ID, "state": j.State})
	if j.Result == nil {
		entry.Error("completed job without result, skipping side effects")
		return
	}
	entry.WithFields(logrus.Fields{
		"download_url": j.Result.DownloadURL,
		"format":       j.Result.Format,
		"file_size":    j.Result.FileSizeBytes,
	}).Info("conversion completed")

	if s.cfg.AutoDownload && s.downloads != nil {
		dest := s.resultPath(j)
		if err := s.downloads.Download(ctx, j.Result.DownloadURL, dest); err != nil {
			entry.Errorf("auto-download failed: %v", err)
		} else {
			entry.WithField("path", dest).Info("result downloaded")
		}
	}

	if to := s.recipient(j); to != "" && s.mail != nil {
		subject := fmt.Sprintf("Conversion %s completed", j.ID)
		body := fmt.Sprintf("Your conversion finished.\n\nJob: %s\nFormat: %s\nDownload: %s\nExpires: %s\n",
			j.ID, j.Result.Format, j.Result.DownloadURL, j.Result.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
		if err := s.mail.Send(ctx, to, subject, body, false); err != nil {
			entry.Errorf("recipient notification failed: %v", err)
		}
	}

	if s.hook != nil {
		if err := s.hook.RecordOutcome(ctx, j.OutcomeKey(), string(job.StateCompleted), j.Result.DownloadURL, ""); err != nil {
			entry.Errorf("persistence hook failed: %v", err)
		}
	}
}

// JobFailed runs the failure side effects for a terminal snapshot.
func (s *Service) JobFailed(ctx context.Context, j job.Job) {
	entry := s.log.WithFields(logrus.Fields{"job_id": j.ID, "state": j.State})
	message, code := "conversion failed", ""
	if j.Failure != nil {
		message, code = j.Failure.Message, j.Failure.Code
	}
	entry.WithFields(logrus.Fields{"message": message, "code": code}).Error("conversion failed")

	if to := s.recipient(j); to != "" && s.mail != nil {
		subject := fmt.Sprintf("Conversion %s failed", j.ID)
		body := fmt.Sprintf("Your conversion failed.\n\nJob: %s\nReason: %s\n", j.ID, message)
		if err := s.mail.Send(ctx, to, subject, body, false); err != nil {
			entry.Errorf("recipient notification failed: %v", err)
		}
	}

	if code == job.CodeSystemError && s.cfg.AdminRecipient != "" && s.mail != nil {
		subject := fmt.Sprintf("[ALERT] system error on conversion %s", j.ID)
		body := fmt.Sprintf("The conversion backend reported a system error.\n\nJob: %s\nMessage: %s\n", j.ID, message)
		if err := s.mail.Send(ctx, s.cfg.AdminRecipient, subject, body, true); err != nil {
			entry.Errorf("admin alert failed: %v", err)
		}
	}

	if s.hook != nil && j.MetaString(job.MetaCorrelationID) != "" {
		if err := s.hook.RecordOutcome(ctx, j.OutcomeKey(), string(job.StateFailed), "", message); err != nil {
			entry.Errorf("persistence hook failed: %v", err)
		}
	}
}

func (s *Service) recipient(j job.Job) string {
	if to := j.MetaString(job.MetaRecipientAddress); to != "" {
		return to
	}
	return s.cfg.DefaultRecipient
}

func (s *Service) resultPath(j job.Job) string {
	name := j.ID
	if name == "" {
		name = "result"
	}
	if j.Result.Format != "" {
		name += "." + j.Result.Format
	}
	return filepath.Join(s.cfg.OutputDir, name)
}
