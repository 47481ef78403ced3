package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	currentLogName     = "audit.ndjson"
	rotatedLogPattern  = "audit-*.ndjson"
	rotatedTimeLayout  = "20060102-150405.000000000"
	defaultMaxLogSize  = 100 * 1024 * 1024
	defaultMaxLogFiles = 10
)

// FileLoggerConfig configures the file sink
type FileLoggerConfig struct {
	Dir      string
	MaxSize  int64
	MaxFiles int
}

// DefaultFileLoggerConfig returns the default file sink configuration
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		Dir:      "/var/log/integrationhub/audit",
		MaxSize:  defaultMaxLogSize,
		MaxFiles: defaultMaxLogFiles,
	}
}

// FileLogger appends events as NDJSON to a size-rotated file
type FileLogger struct {
	dir      string
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File
	size    int64
	encoder *json.Encoder
	now     func() time.Time
}

// NewFileLogger opens the current log file in dir, creating the directory if needed
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	l := &FileLogger{
		dir:      config.Dir,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
		now:      time.Now,
	}
	if l.maxSize <= 0 {
		l.maxSize = defaultMaxLogSize
	}
	if l.maxFiles <= 0 {
		l.maxFiles = defaultMaxLogFiles
	}

	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(filepath.Join(l.dir, currentLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}
	l.file = f
	l.size = info.Size()
	l.encoder = json.NewEncoder(countingWriter{l})
	return nil
}

type countingWriter struct {
	l *FileLogger
}

func (w countingWriter) Write(p []byte) (int, error) {
	n, err := w.l.file.Write(p)
	w.l.size += int64(n)
	return n, err
}

func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log file: %w", err)
	}
	l.file = nil

	rotated := filepath.Join(l.dir, fmt.Sprintf("audit-%s.ndjson", l.now().UTC().Format(rotatedTimeLayout)))
	if err := os.Rename(filepath.Join(l.dir, currentLogName), rotated); err != nil {
		return fmt.Errorf("failed to rename audit log file: %w", err)
	}
	if err := l.prune(); err != nil {
		return err
	}
	return l.open()
}

// prune keeps the newest maxFiles rotated files
func (l *FileLogger) prune() error {
	files, err := filepath.Glob(filepath.Join(l.dir, rotatedLogPattern))
	if err != nil {
		return fmt.Errorf("failed to list rotated audit logs: %w", err)
	}
	if len(files) <= l.maxFiles {
		return nil
	}
	sort.Strings(files)
	for _, f := range files[:len(files)-l.maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove rotated audit log %s: %w", f, err)
		}
	}
	return nil
}

// Log appends one event, rotating first if the file has reached its size limit
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log file is closed")
	}
	if l.size >= l.maxSize {
		if err := l.rotate(); err != nil {
			return err
		}
	}
	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// Close closes the current file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
