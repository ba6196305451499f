package engine

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"rbpscan/domain/sanger"
	"rbpscan/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func stagedJob(t *testing.T) sanger.JobRequest {
	job := testJob(t)
	for i, f := range job.StagedFiles {
		require.NoError(t, os.WriteFile(f.StoragePath, []byte{'t', byte('0' + i)}, 0o644))
	}
	return job
}

func remoteEngine(url string, retries int) *RemoteEngine {
	return NewRemoteEngine(RemoteConfig{
		URL:          url,
		Retries:      retries,
		Timeout:      5 * time.Second,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, nil)
}

func TestRemoteEngineRun(t *testing.T) {
	var gotJob string
	var gotFiles []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotJob = r.FormValue("job")
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if !assert.NoError(t, err) {
				continue
			}
			data, _ := io.ReadAll(f)
			f.Close()
			gotFiles = append(gotFiles, fh.Filename+":"+string(data))
		}
		io.WriteString(w, "processing\n"+twoRecords+"\n")
	}))
	defer server.Close()

	records, err := remoteEngine(server.URL, 0).Run(context.Background(), stagedJob(t))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	assert.Equal(t, []string{"000_s1.ab1:t0", "001_s2.ab1:t1"}, gotFiles)
	assert.Equal(t, "001_s2.ab1", gjson.Get(gotJob, "parsed_data.1.fileName").String())
	assert.Equal(t, "A", gjson.Get(gotJob, "groups.0").String())
}

func TestRemoteEngineDoesNotRetryEngineFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"internal error", http.StatusInternalServerError},
		{"unavailable", http.StatusServiceUnavailable},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(test.status)
				io.WriteString(w, "engine crashed")
			}))
			defer server.Close()

			_, err := remoteEngine(server.URL, 3).Run(context.Background(), stagedJob(t))
			require.Error(t, err)
			assert.Equal(t, errors.CodeEngineExecution, errors.GetCode(err))
			assert.Equal(t, "engine crashed", errors.Diagnostics(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestRetryRefusedConnections(t *testing.T) {
	ctx := context.Background()
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	readErr := &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}

	retry, err := retryRefusedConnections(ctx, nil, dialErr)
	assert.NoError(t, err)
	assert.True(t, retry)

	retry, _ = retryRefusedConnections(ctx, nil, readErr)
	assert.False(t, retry)

	retry, _ = retryRefusedConnections(ctx, &http.Response{StatusCode: http.StatusBadGateway}, nil)
	assert.False(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = retryRefusedConnections(cancelled, nil, dialErr)
	assert.False(t, retry)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteEngineNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, "guide sequence not found in reference")
	}))
	defer server.Close()

	_, err := remoteEngine(server.URL, 2).Run(context.Background(), stagedJob(t))
	require.Error(t, err)
	assert.Equal(t, errors.CodeEngineExecution, errors.GetCode(err))
	assert.Equal(t, "guide sequence not found in reference", errors.Diagnostics(err))
}

func TestRemoteEngineTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := remoteEngine(url, 0).Run(context.Background(), stagedJob(t))
	require.Error(t, err)
	assert.Equal(t, errors.CodeEngineLaunch, errors.GetCode(err))
}

func TestRemoteEngineMissingStagedFile(t *testing.T) {
	job := testJob(t)
	job.StagedFiles[0].StoragePath = filepath.Join(t.TempDir(), "gone.ab1")

	_, err := remoteEngine("http://127.0.0.1:1", 0).Run(context.Background(), job)
	assert.Equal(t, errors.CodeEngineLaunch, errors.GetCode(err))
}
