package engine

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"rbpscan/domain/sanger"
	"rbpscan/internal"
	"rbpscan/internal/errors"
)

// ResultPathEnv names the environment variable through which an engine in
// file output mode learns where to write its result array.
const ResultPathEnv = "RBPSCAN_RESULT_PATH"

const (
	jobFileName    = "job.json"
	resultFileName = "result.json"
)

// SubprocessConfig describes how to launch a local engine process
type SubprocessConfig struct {
	Command    string
	Args       []string
	Dir        string
	Timeout    time.Duration
	FileOutput bool
	// WaitDelay bounds how long Wait blocks on open pipes after the process is killed
	WaitDelay time.Duration
}

// SubprocessEngine runs the analysis engine as a child process. The job file
// path is appended as the last argument.
type SubprocessEngine struct {
	config SubprocessConfig
	logger *internal.Logger
}

// NewSubprocessEngine creates a subprocess engine
func NewSubprocessEngine(config SubprocessConfig, logger *internal.Logger) *SubprocessEngine {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}
	if config.WaitDelay <= 0 {
		config.WaitDelay = 5 * time.Second
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SubprocessEngine{config: config, logger: logger}
}

// invocation is the raw outcome of one engine process
type invocation struct {
	stdout   string
	stderr   string
	exitCode int
	elapsed  time.Duration
}

// Run writes the job request, executes the engine and decodes its output
func (e *SubprocessEngine) Run(ctx context.Context, job sanger.JobRequest) ([]sanger.ResultRecord, error) {
	dir := job.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "rbpscan-job-")
		if err != nil {
			return nil, errors.EngineLaunchError(fmt.Errorf("failed to create job directory: %w", err))
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, errors.EngineLaunchError(fmt.Errorf("failed to encode job request: %w", err))
	}
	jobPath := filepath.Join(dir, jobFileName)
	if err := os.WriteFile(jobPath, payload, 0o644); err != nil {
		return nil, errors.EngineLaunchError(fmt.Errorf("failed to write job request: %w", err))
	}

	resultPath := ""
	if e.config.FileOutput {
		resultPath = filepath.Join(dir, resultFileName)
	}

	inv, err := e.invoke(ctx, jobPath, resultPath)
	if err != nil {
		return nil, err
	}

	if inv.exitCode != 0 {
		e.logger.Error("[SubprocessEngine] engine exited with code %d after %s: %s", inv.exitCode, inv.elapsed, strings.TrimSpace(inv.stderr))
		return Decode(inv.stdout, inv.exitCode, inv.stderr)
	}
	if inv.stderr != "" {
		e.logger.Debug("[SubprocessEngine] engine stderr: %s", strings.TrimSpace(inv.stderr))
	}
	e.logger.Info("[SubprocessEngine] engine finished %d files in %s", len(job.StagedFiles), inv.elapsed)

	if resultPath != "" {
		if data, err := os.ReadFile(resultPath); err == nil && len(bytes.TrimSpace(data)) > 0 {
			return DecodePayload(string(bytes.TrimSpace(data)))
		}
		e.logger.Debug("[SubprocessEngine] no result file at %s, using last stdout line", resultPath)
	}
	return Decode(inv.stdout, inv.exitCode, inv.stderr)
}

// invoke runs the engine to completion. Wait returns only after both output
// streams are fully copied, so the decoder never sees a prefix.
func (e *SubprocessEngine) invoke(ctx context.Context, jobPath, resultPath string) (invocation, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	args := append(append([]string{}, e.config.Args...), jobPath)
	cmd := exec.CommandContext(cmdCtx, e.config.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = e.config.WaitDelay
	if strings.TrimSpace(e.config.Dir) != "" {
		cmd.Dir = e.config.Dir
	}
	if resultPath != "" {
		cmd.Env = append(os.Environ(), ResultPathEnv+"="+resultPath)
	}

	e.logger.Debug("[SubprocessEngine] running %s %s", e.config.Command, strings.Join(args, " "))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return invocation{}, errors.EngineLaunchError(err)
	}

	err := cmd.Wait()
	inv := invocation{
		stdout:  stdout.String(),
		stderr:  stderr.String(),
		elapsed: time.Since(start),
	}
	if err == nil {
		return inv, nil
	}

	if stderrors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		e.logger.Error("[SubprocessEngine] engine killed after %s timeout", e.config.Timeout)
		return inv, errors.EngineTimeout(e.config.Timeout)
	}
	if ctx.Err() != nil {
		return inv, errors.Wrap(ctx.Err(), "engine run cancelled")
	}
	inv.exitCode = extractExitCode(err)
	return inv, nil
}

func extractExitCode(err error) int {
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code != 0 {
			return code
		}
	}
	return -1
}
