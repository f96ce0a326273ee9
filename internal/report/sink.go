package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

const filePerms = 0o644

// Sink persists a finished report.
type Sink interface {
	Save(ctx context.Context, report Report) error
}

// FileSink writes the report as indented JSON, replacing the previous file
// atomically.
type FileSink struct {
	path   string
	logger *zap.Logger
}

func NewFileSink(dir, name string, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{path: filepath.Join(dir, name), logger: logger}
}

// Path returns the destination file.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Save(_ context.Context, report Report) error {
	content, err := Marshal(report)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	// atomic.WriteFile does not set permissions on new files.
	if err := os.Chmod(s.path, filePerms); err != nil {
		return fmt.Errorf("set report file permissions: %w", err)
	}
	s.logger.Info("report saved", zap.String("path", s.path), zap.String("run_id", report.RunID))
	return nil
}

// Marshal encodes a report as indented JSON with a trailing newline.
func Marshal(report Report) ([]byte, error) {
	content, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(content, '\n'), nil
}
