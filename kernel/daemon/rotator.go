// Package daemon implements the C18 Daemon Log Rotator: a size-triggered
// file rotator with optional gzip compression and retention cleanup,
// written to by the adjacent structured-logging sink.
package daemon

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// LogRotationConfig configures a LogRotator.
type LogRotationConfig struct {
	MaxSize  int64 // bytes
	MaxFiles int
	Compress bool
	BasePath string
}

// DefaultLogRotationConfig mirrors the original's defaults.
func DefaultLogRotationConfig() LogRotationConfig {
	return LogRotationConfig{
		MaxSize:  10 * 1024 * 1024,
		MaxFiles: 5,
		Compress: false,
		BasePath: "/var/log/kerneld.log",
	}
}

// LogRotator manages a single append-mode log file, rotating it by
// timestamp-suffixed rename once a write would exceed MaxSize.
type LogRotator struct {
	cfg LogRotationConfig

	mu          sync.Mutex
	file        *os.File
	currentSize int64
}

// NewLogRotator builds a rotator from cfg, applying defaults for zero
// fields.
func NewLogRotator(cfg LogRotationConfig) *LogRotator {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultLogRotationConfig().MaxSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultLogRotationConfig().MaxFiles
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultLogRotationConfig().BasePath
	}
	return &LogRotator{cfg: cfg}
}

// Open creates the parent directory if needed, opens the log file in
// append mode, and records its current size.
func (r *LogRotator) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked()
}

func (r *LogRotator) openLocked() error {
	if dir := filepath.Dir(r.cfg.BasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return kerrors.Fatal("failed to create log directory", err)
		}
	}

	file, err := os.OpenFile(r.cfg.BasePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return kerrors.Fatal("failed to open log file", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return kerrors.Fatal("failed to stat log file", err)
	}

	r.file = file
	r.currentSize = info.Size()
	return nil
}

// Write rotates the file first if appending data would exceed MaxSize,
// then appends data and flushes.
func (r *LogRotator) Write(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openLocked(); err != nil {
			return err
		}
	}

	if r.currentSize+int64(len(data)) > r.cfg.MaxSize {
		if err := r.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := r.file.Write(data)
	if err != nil {
		return kerrors.Transient("log_write", err)
	}
	if err := r.file.Sync(); err != nil {
		return kerrors.Transient("log_write", err)
	}
	r.currentSize += int64(n)
	return nil
}

// rotateLocked renames the current file with a YYYYMMDD_HHMMSS suffix,
// optionally compresses it, cleans up old rotations, and reopens a fresh
// file. Caller must hold r.mu.
func (r *LogRotator) rotateLocked() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	timestamp := time.Now().Format("20060102_150405")
	rotatedPath := fmt.Sprintf("%s.%s", r.cfg.BasePath, timestamp)

	if err := os.Rename(r.cfg.BasePath, rotatedPath); err != nil {
		return kerrors.Fatal("failed to rotate log file", err)
	}

	if r.cfg.Compress {
		if err := compressFile(rotatedPath); err != nil {
			return err
		}
	}

	if err := r.cleanupOldFilesLocked(); err != nil {
		return err
	}

	return r.openLocked()
}

func compressFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return kerrors.Fatal("failed to open rotated log file", err)
	}
	defer in.Close()

	outPath := path + ".gz"
	out, err := os.Create(outPath)
	if err != nil {
		return kerrors.Fatal("failed to create compressed log file", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return kerrors.Fatal("failed to compress rotated log file", err)
	}
	if err := gw.Close(); err != nil {
		return kerrors.Fatal("failed to compress rotated log file", err)
	}

	in.Close()
	if err := os.Remove(path); err != nil {
		return kerrors.Fatal("failed to remove uncompressed log file", err)
	}
	return nil
}

// CleanupOldFiles keeps at most MaxFiles rotated files, deleting the
// oldest by modification time.
func (r *LogRotator) CleanupOldFiles() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupOldFilesLocked()
}

func (r *LogRotator) cleanupOldFilesLocked() error {
	dir := filepath.Dir(r.cfg.BasePath)
	if dir == "" {
		dir = "."
	}
	base := filepath.Base(r.cfg.BasePath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return kerrors.Fatal("failed to list log directory", err)
	}

	type rotated struct {
		path    string
		modTime time.Time
	}
	var files []rotated
	for _, e := range entries {
		name := e.Name()
		if name == base || !strings.HasPrefix(name, base) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, rotated{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	excess := len(files) - r.cfg.MaxFiles
	for i := 0; i < excess; i++ {
		if err := os.Remove(files[i].path); err != nil {
			return kerrors.Fatal("failed to remove old log file", err)
		}
	}
	return nil
}

// Close flushes and closes the current file handle.
func (r *LogRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
