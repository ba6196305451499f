package ports

import (
	"context"

	"rbpscan/domain/core"
	"rbpscan/domain/sanger"
)

// FileStager persists uploaded trace files for the lifetime of one run
type FileStager interface {
	// Stage writes every file under a run-scoped location and returns the
	// manifest in input order. Any failure aborts the whole batch.
	Stage(ctx context.Context, runID core.RunID, files []sanger.UploadedFile) ([]sanger.StagedFile, error)

	// RunDir returns the scratch directory reserved for a run
	RunDir(runID core.RunID) string

	// Cleanup removes everything staged for a run. It is best-effort.
	Cleanup(ctx context.Context, runID core.RunID) error
}
