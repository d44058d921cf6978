package poll

import (
	"context"

	"convcli/internal/domain/job"
)

// StatusFetcher is an application port for fetching fresh job snapshots.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, token, id string) (job.Job, error)
}
