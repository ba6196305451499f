package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"rbpscan/domain/sanger"
	"rbpscan/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const twoRecords = `[{"File":"s1","Group":"A","Replicate":1,"Mean_edit":12.5},{"File":"s2","Group":"A","Replicate":2,"Mean_edit":30}]`

// shellEngine runs script under /bin/sh; the job path arrives as $1.
func shellEngine(t *testing.T, script string, mutate ...func(*SubprocessConfig)) *SubprocessEngine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for the engine")
	}
	config := SubprocessConfig{
		Command:   "/bin/sh",
		Args:      []string{"-c", script, "engine"},
		Timeout:   10 * time.Second,
		WaitDelay: time.Second,
	}
	for _, m := range mutate {
		m(&config)
	}
	return NewSubprocessEngine(config, nil)
}

func testJob(t *testing.T) sanger.JobRequest {
	dir := t.TempDir()
	return sanger.JobRequest{
		StagedFiles: []sanger.StagedFile{
			{OriginalName: "s1.ab1", StoragePath: filepath.Join(dir, "000_s1.ab1")},
			{OriginalName: "s2.ab1", StoragePath: filepath.Join(dir, "001_s2.ab1")},
		},
		GuideSequence: "ACGTACGTACGTACGTACGT",
		Groups:        []string{"A", "A"},
		Replicates:    []int{1, 2},
		WorkDir:       dir,
	}
}

func TestSubprocessEngineRun(t *testing.T) {
	engine := shellEngine(t, `echo "Loading libraries"; test -s "$1" || exit 9; echo '`+twoRecords+`'`)
	job := testJob(t)

	records, err := engine.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s2", records[1].File)

	written, err := os.ReadFile(filepath.Join(job.WorkDir, jobFileName))
	require.NoError(t, err)
	parsed := gjson.ParseBytes(written)
	assert.Equal(t, "ACGTACGTACGTACGTACGT", parsed.Get("guide_seq").String())
	assert.Equal(t, job.StagedFiles[0].StoragePath, parsed.Get("parsed_data.0.fileName").String())
	assert.Equal(t, "2", parsed.Get("replicates.1").String())
}

func TestSubprocessEngineCapturesLargeOutput(t *testing.T) {
	script := `i=0; while [ $i -lt 20000 ]; do echo "progress line $i"; echo "warn $i" >&2; i=$((i+1)); done; echo '` + twoRecords + `'`
	engine := shellEngine(t, script)

	records, err := engine.Run(context.Background(), testJob(t))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSubprocessEngineNonZeroExit(t *testing.T) {
	engine := shellEngine(t, `echo '`+twoRecords+`'; echo "package not found" >&2; exit 3`)

	_, err := engine.Run(context.Background(), testJob(t))
	require.Error(t, err)
	assert.Equal(t, errors.CodeEngineExecution, errors.GetCode(err))
	assert.Contains(t, errors.Diagnostics(err), "package not found")
}

func TestSubprocessEngineInvalidOutput(t *testing.T) {
	engine := shellEngine(t, `echo '[{"File":"s1"'`)

	_, err := engine.Run(context.Background(), testJob(t))
	assert.Equal(t, errors.CodeInvalidOutput, errors.GetCode(err))
}

func TestSubprocessEngineTimeout(t *testing.T) {
	engine := shellEngine(t, `exec sleep 5`, func(c *SubprocessConfig) {
		c.Timeout = 200 * time.Millisecond
	})

	start := time.Now()
	_, err := engine.Run(context.Background(), testJob(t))
	require.Error(t, err)
	assert.Equal(t, errors.CodeEngineTimeout, errors.GetCode(err))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestSubprocessEngineLaunchFailure(t *testing.T) {
	engine := shellEngine(t, "", func(c *SubprocessConfig) {
		c.Command = filepath.Join(t.TempDir(), "missing-engine")
		c.Args = nil
	})

	_, err := engine.Run(context.Background(), testJob(t))
	require.Error(t, err)
	assert.Equal(t, errors.CodeEngineLaunch, errors.GetCode(err))
}

func TestSubprocessEngineResultFile(t *testing.T) {
	script := `echo "not json"; printf '%s' '` + twoRecords + `' > "$` + ResultPathEnv + `"`
	engine := shellEngine(t, script, func(c *SubprocessConfig) { c.FileOutput = true })

	records, err := engine.Run(context.Background(), testJob(t))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSubprocessEngineResultFileFallsBackToStdout(t *testing.T) {
	script := `: > "$` + ResultPathEnv + `"; echo '` + twoRecords + `'`
	engine := shellEngine(t, script, func(c *SubprocessConfig) { c.FileOutput = true })

	records, err := engine.Run(context.Background(), testJob(t))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSubprocessEngineWithoutWorkDir(t *testing.T) {
	engine := shellEngine(t, `echo '[]'`)
	job := testJob(t)
	job.WorkDir = ""

	records, err := engine.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, records)
}
