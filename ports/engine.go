package ports

import (
	"context"

	"rbpscan/domain/sanger"
)

// AnalysisEngine computes per-sample editing percentages for a job. The
// invocation mechanism (local subprocess, remote service) is an adapter
// detail; failures are reported as run-level errors from internal/errors.
type AnalysisEngine interface {
	Run(ctx context.Context, job sanger.JobRequest) ([]sanger.ResultRecord, error)
}
