package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rbpscan/domain/core"
	"rbpscan/domain/sanger"
	"rbpscan/internal"
	"rbpscan/internal/errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StorageConfig holds configuration for scratch storage
type StorageConfig struct {
	BasePath  string // Root of all run directories
	Workers   int    // Parallel writes per batch
	ChunkSize int    // Copy buffer size
}

// DefaultStorageConfig returns sensible defaults
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		BasePath:  filepath.Join(os.TempDir(), "rbpscan"),
		Workers:   4,
		ChunkSize: 1024 * 1024,
	}
}

// LocalFileStorage stages uploads on the local filesystem, one directory per run
type LocalFileStorage struct {
	config *StorageConfig
	logger *internal.Logger
	now    func() time.Time
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(config *StorageConfig, logger *internal.Logger) *LocalFileStorage {
	if config == nil {
		config = DefaultStorageConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1024 * 1024
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &LocalFileStorage{config: config, logger: logger, now: time.Now}
}

// NewLocalFileStorageWithPath creates a new local file storage with a simple path
func NewLocalFileStorageWithPath(basePath string) *LocalFileStorage {
	config := DefaultStorageConfig()
	config.BasePath = basePath
	return NewLocalFileStorage(config, nil)
}

// RunDir returns the scratch directory reserved for a run
func (s *LocalFileStorage) RunDir(runID core.RunID) string {
	return filepath.Join(s.config.BasePath, runID.String())
}

// Stage writes all files of a run in parallel and returns the manifest in input order
func (s *LocalFileStorage) Stage(ctx context.Context, runID core.RunID, files []sanger.UploadedFile) ([]sanger.StagedFile, error) {
	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.StagingError(fmt.Errorf("failed to create run directory: %w", err))
	}

	staged := make([]sanger.StagedFile, len(files))
	var (
		mu      sync.Mutex
		written []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, s.uniqueName(i, f.Name))
			if err := s.write(path, f.Content); err != nil {
				return fmt.Errorf("failed to stage %s: %w", f.Name, err)
			}
			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			staged[i] = sanger.StagedFile{OriginalName: f.Name, StoragePath: path}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.removeAll(written)
		return nil, errors.StagingError(err)
	}

	s.logger.Debug("[LocalFileStorage] staged %d files for run %s in %s", len(files), runID, dir)
	return staged, nil
}

// Cleanup removes a run directory. Missing directories are not an error.
func (s *LocalFileStorage) Cleanup(ctx context.Context, runID core.RunID) error {
	dir := s.RunDir(runID)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("[LocalFileStorage] cleanup of %s failed: %v", dir, err)
		return fmt.Errorf("failed to clean up run directory: %w", err)
	}
	return nil
}

// uniqueName combines the upload index, a timestamp and a random suffix so
// rapid or concurrent uploads of the same name never collide.
func (s *LocalFileStorage) uniqueName(index int, original string) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("%03d_%s_%s_%s", index, timestamp, uuid.New().String()[:8], SanitizeFileName(original))
}

func (s *LocalFileStorage) write(path string, content []byte) error {
	destFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	buf := make([]byte, s.config.ChunkSize)
	if _, err := io.CopyBuffer(destFile, bytes.NewReader(content), buf); err != nil {
		destFile.Close()
		os.Remove(path)
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := destFile.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to flush file: %w", err)
	}
	return nil
}

func (s *LocalFileStorage) removeAll(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("[LocalFileStorage] could not remove partial upload %s: %v", p, err)
		}
	}
}

// SanitizeFileName keeps a display name usable as a path component
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "upload"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
