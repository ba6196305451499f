package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"rbpscan/domain/core"
	"rbpscan/domain/sanger"
	"rbpscan/internal"
	"rbpscan/internal/analysis"
	"rbpscan/internal/errors"
	"rbpscan/ports"

	"golang.org/x/sync/semaphore"
)

// InvalidFilesMessage is returned when an upload breaks the upload policy
const InvalidFilesMessage = "Some files are invalid. Please upload .ab1 files under 10MB."

// UploadPolicy bounds what a single run accepts
type UploadPolicy struct {
	MaxFileBytes      int64
	MaxFiles          int
	AllowedExtensions []string
}

// DefaultUploadPolicy accepts up to 96 .ab1 traces of at most 10 MiB each
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxFileBytes:      10 << 20,
		MaxFiles:          96,
		AllowedExtensions: []string{".ab1"},
	}
}

// Check validates a batch of uploads. An empty batch is allowed.
func (p UploadPolicy) Check(files []sanger.UploadedFile) error {
	if p.MaxFiles > 0 && len(files) > p.MaxFiles {
		return errors.InvalidInput(fmt.Sprintf("Too many files: at most %d per analysis.", p.MaxFiles))
	}
	for _, f := range files {
		if !p.allowed(f.Name) || (p.MaxFileBytes > 0 && int64(len(f.Content)) > p.MaxFileBytes) {
			return errors.InvalidInput(InvalidFilesMessage)
		}
	}
	return nil
}

func (p UploadPolicy) allowed(name string) bool {
	if len(p.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range p.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// AnalysisRequest is one caller submission
type AnalysisRequest struct {
	Files         []sanger.UploadedFile
	GuideSequence string
	// Groups holds raw labels aligned with Files; nil labels every file "default"
	Groups []string
	// Replicates are advisory; they are recomputed from Groups
	Replicates []int
}

// AnalysisResult is the outcome of a completed run
type AnalysisResult struct {
	RunID     core.RunID                `json:"runId"`
	Results   []sanger.ResultRecord     `json:"results"`
	Rows      []analysis.SampleRow      `json:"rows"`
	Groups    []analysis.GroupAggregate `json:"groups"`
	Chart     analysis.ChartDataset     `json:"chart"`
	RuntimeMs int64                     `json:"runtimeMs"`

	analysis *analysis.Analysis
}

// ExportData returns the tables rendered by exporters
func (r *AnalysisResult) ExportData() ports.ExportData {
	if r.analysis != nil {
		return r.analysis.ExportData()
	}
	return analysis.BuildExportData(r.Rows, r.Groups)
}

// ServiceConfig tunes run admission and scratch handling
type ServiceConfig struct {
	MaxConcurrentRuns int
	// QueueTimeout bounds how long a run waits for a free slot
	QueueTimeout time.Duration
	KeepScratch  bool
	Upload       UploadPolicy
}

// AnalysisService runs the Sanger editing pipeline: resolve labels, stage
// files, invoke the engine, aggregate.
type AnalysisService struct {
	stager ports.FileStager
	engine ports.AnalysisEngine
	config ServiceConfig
	runs   *semaphore.Weighted
	logger *internal.Logger
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(stager ports.FileStager, engine ports.AnalysisEngine, config ServiceConfig, logger *internal.Logger) *AnalysisService {
	if config.MaxConcurrentRuns < 1 {
		config.MaxConcurrentRuns = 1
	}
	if config.QueueTimeout <= 0 {
		config.QueueTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &AnalysisService{
		stager: stager,
		engine: engine,
		config: config,
		runs:   semaphore.NewWeighted(int64(config.MaxConcurrentRuns)),
		logger: logger,
	}
}

// ResolveLabels turns raw labels into the run's (group, replicate) pairs.
// A nil groups slice labels every file with the default group; otherwise it
// must have one entry per file.
func ResolveLabels(fileNames []string, groups []string) ([]sanger.SampleMetadata, []sanger.ResolvedLabel, error) {
	if groups != nil && len(groups) != len(fileNames) {
		return nil, nil, errors.InvalidInput(fmt.Sprintf("Expected %d group labels, got %d.", len(fileNames), len(groups)))
	}
	samples := make([]sanger.SampleMetadata, len(fileNames))
	for i, name := range fileNames {
		samples[i] = sanger.SampleMetadata{FileName: name}
		if groups != nil {
			samples[i].RawGroupLabel = groups[i]
		}
	}
	return samples, sanger.Resolve(samples), nil
}

// Analyze executes one run end to end. Scratch files are removed before it
// returns unless KeepScratch is set.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	start := time.Now()
	if err := s.config.Upload.Check(req.Files); err != nil {
		return nil, err
	}

	names := make([]string, len(req.Files))
	for i, f := range req.Files {
		names[i] = f.Name
	}
	samples, labels, err := ResolveLabels(names, req.Groups)
	if err != nil {
		return nil, err
	}
	s.checkReplicates(req.Replicates, labels)

	release, err := s.admit(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	runID := core.NewRunID()
	log := s.logger.With("run", runID.String())
	log.Info("[AnalysisService] starting run with %d files", len(req.Files))

	if !s.config.KeepScratch {
		defer func() {
			if err := s.stager.Cleanup(context.WithoutCancel(ctx), runID); err != nil {
				log.Warn("[AnalysisService] scratch cleanup failed: %v", err)
			}
		}()
	}

	staged, err := s.stager.Stage(ctx, runID, req.Files)
	if err != nil {
		log.Error("[AnalysisService] staging failed: %v", err)
		return nil, err
	}

	job, err := sanger.BuildJobRequest(staged, labels, req.GuideSequence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build job request")
	}
	job.WorkDir = s.stager.RunDir(runID)

	records, err := s.engine.Run(ctx, job)
	if err != nil {
		if diag := errors.Diagnostics(err); diag != "" {
			log.Error("[AnalysisService] engine failed: %v\n%s", err, diag)
		} else {
			log.Error("[AnalysisService] engine failed: %v", err)
		}
		return nil, err
	}

	result := buildResult(runID, samples, labels, staged, records)
	result.RuntimeMs = time.Since(start).Milliseconds()
	failed := 0
	for _, row := range result.Rows {
		if row.Value == nil {
			failed++
		}
	}
	log.Info("[AnalysisService] run finished in %dms: %d samples, %d without value", result.RuntimeMs, len(result.Rows), failed)
	return result, nil
}

// Reanalyze rebuilds the derived views from previously decoded records
// without running the engine.
func (s *AnalysisService) Reanalyze(samples []sanger.SampleMetadata, records []sanger.ResultRecord) *AnalysisResult {
	return buildResult("", samples, sanger.Resolve(samples), nil, records)
}

func buildResult(runID core.RunID, samples []sanger.SampleMetadata, labels []sanger.ResolvedLabel, staged []sanger.StagedFile, records []sanger.ResultRecord) *AnalysisResult {
	a := analysis.NewAnalysis(samples, labels, staged, records)
	groups := a.Aggregate()
	if records == nil {
		records = []sanger.ResultRecord{}
	}
	return &AnalysisResult{
		RunID:    runID,
		Results:  records,
		Rows:     a.Rows(),
		Groups:   groups,
		Chart:    analysis.BuildChart(groups),
		analysis: a,
	}
}

// admit reserves a run slot, waiting at most QueueTimeout
func (s *AnalysisService) admit(ctx context.Context) (func(), error) {
	if s.runs.TryAcquire(1) {
		return func() { s.runs.Release(1) }, nil
	}
	s.logger.Debug("[AnalysisService] all %d run slots busy, queueing", s.config.MaxConcurrentRuns)

	waitCtx, cancel := context.WithTimeout(ctx, s.config.QueueTimeout)
	defer cancel()
	if err := s.runs.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "request cancelled while queued")
		}
		return nil, errors.Busy("Analysis capacity exhausted. Please retry shortly.")
	}
	return func() { s.runs.Release(1) }, nil
}

func (s *AnalysisService) checkReplicates(supplied []int, labels []sanger.ResolvedLabel) {
	if supplied == nil {
		return
	}
	if len(supplied) != len(labels) {
		s.logger.Warn("[AnalysisService] ignoring %d supplied replicates for %d files", len(supplied), len(labels))
		return
	}
	for i, rep := range supplied {
		if rep != labels[i].Replicate {
			s.logger.Warn("[AnalysisService] supplied replicate %d for file %d replaced by %d", rep, i, labels[i].Replicate)
		}
	}
}
