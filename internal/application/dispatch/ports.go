package dispatch

import "context"

// Downloader is an application port for streaming a finished result to disk.
type Downloader interface {
	Download(ctx context.Context, url, destPath string) error
}

// Mailer is an application port for outbound notifications. Delivery is
// best-effort; implementations report errors but the dispatcher never
// propagates them.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string, highPriority bool) error
}

// PersistenceHook is an optional externally registered outcome sink. A nil
// hook is a no-op, not an error.
type PersistenceHook interface {
	RecordOutcome(ctx context.Context, key, status, resultURL, errorMessage string) error
}
