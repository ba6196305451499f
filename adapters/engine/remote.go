package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rbpscan/domain/sanger"
	"rbpscan/internal"
	"rbpscan/internal/errors"

	"github.com/hashicorp/go-retryablehttp"
)

// RemoteConfig describes an engine reachable over HTTP
type RemoteConfig struct {
	URL          string
	Retries      int
	Timeout      time.Duration
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// RemoteEngine posts the job and its trace files to an engine service. A 2xx
// response is treated as a clean exit and its body as stdout; any other
// status is a failed run with the body kept as diagnostics.
type RemoteEngine struct {
	config RemoteConfig
	client *retryablehttp.Client
	logger *internal.Logger
}

// retryLogger adapts the service logger to retryablehttp.LeveledLogger
type retryLogger struct {
	logger *internal.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error("[RemoteEngine] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("[RemoteEngine] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace("[RemoteEngine] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn("[RemoteEngine] %s %v", msg, keysAndValues)
}

// NewRemoteEngine creates a remote engine client
func NewRemoteEngine(config RemoteConfig, logger *internal.Logger) *RemoteEngine {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.RetryWaitMin <= 0 {
		config.RetryWaitMin = time.Second
	}
	if config.RetryWaitMax <= 0 {
		config.RetryWaitMax = 30 * time.Second
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	client := retryablehttp.NewClient()
	client.RetryMax = config.Retries
	client.RetryWaitMin = config.RetryWaitMin
	client.RetryWaitMax = config.RetryWaitMax
	client.Logger = &retryLogger{logger: logger}
	client.CheckRetry = retryRefusedConnections
	// Hand the last response back so non-2xx bodies reach the decoder
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &RemoteEngine{config: config, client: client, logger: logger}
}

// retryRefusedConnections retries only when the connection could not be
// opened. Once the engine has received the job, every outcome is final.
func retryRefusedConnections(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil || err == nil {
		return false, nil
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// Run uploads the job and decodes the engine's reply
func (e *RemoteEngine) Run(ctx context.Context, job sanger.JobRequest) ([]sanger.ResultRecord, error) {
	body, contentType, err := e.buildBody(job)
	if err != nil {
		return nil, errors.EngineLaunchError(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, e.config.URL, body)
	if err != nil {
		return nil, errors.EngineLaunchError(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if stderrors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.EngineTimeout(e.config.Timeout)
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "engine run cancelled")
		}
		return nil, errors.EngineLaunchError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if stderrors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, errors.EngineTimeout(e.config.Timeout)
		}
		return nil, errors.EngineExecutionError(resp.StatusCode, fmt.Sprintf("failed to read engine response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Error("[RemoteEngine] %s returned %d after %s", e.config.URL, resp.StatusCode, time.Since(start))
		return Decode(string(data), resp.StatusCode, strings.TrimSpace(string(data)))
	}
	e.logger.Info("[RemoteEngine] engine finished %d files in %s", len(job.StagedFiles), time.Since(start))
	return Decode(string(data), 0, "")
}

// buildBody encodes the job as the "job" field and every staged trace as a
// "files" part named after its staged base name, which is also the fileName
// the job refers to.
func (e *RemoteEngine) buildBody(job sanger.JobRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	jobJSON, err := job.WireWithNames(func(f sanger.StagedFile) string {
		return filepath.Base(f.StoragePath)
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode job request: %w", err)
	}
	if err := w.WriteField("job", string(jobJSON)); err != nil {
		return nil, "", err
	}

	for _, f := range job.StagedFiles {
		part, err := w.CreateFormFile("files", filepath.Base(f.StoragePath))
		if err != nil {
			return nil, "", err
		}
		src, err := os.Open(f.StoragePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open staged file %s: %w", f.OriginalName, err)
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read staged file %s: %w", f.OriginalName, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
