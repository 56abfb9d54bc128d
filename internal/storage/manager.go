package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the download directory: naming, deletion and the periodic sweep.
//
// The sweep runs on a single goroutine driven by a ticker, so two sweeps never
// overlap; a tick that fires while a sweep is still running is simply delivered
// once the current sweep returns.
type Manager struct {
	cfg      *model.StorageConfig
	now      func() time.Time
	quitChan chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewManager creates a new storage manager
func NewManager(cfg *model.StorageConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		now:      time.Now,
		quitChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// EnsureDir creates path and any missing parents. It is a no-op when path exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// GenerateName returns a new file name with the given extension.
// Names start with a nanosecond timestamp and carry a random suffix, so rapid
// sequential calls in one process never collide.
func GenerateName(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("video_%d_%s.%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
}

// Delete removes a file. Deleting a file that does not exist is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Start sweeps the download directory once, then on every cleanup interval
// until Stop is called
func (m *Manager) Start() {
	if m.started.CompareAndSwap(false, true) {
		go m.cleanupRoutine()
	}
}

// Stop stops the cleanup routine and waits for an in-flight sweep to finish
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.quitChan)
	})
	if m.started.Load() {
		<-m.done
	}
}

func (m *Manager) cleanupRoutine() {
	defer close(m.done)

	logger.Logger.Info("Auto cleanup enabled",
		zap.String("dir", m.cfg.DownloadDir),
		zap.Duration("file_ttl", m.cfg.FileTTL),
		zap.Duration("interval", m.cfg.CleanupInterval))

	m.Sweep(m.cfg.DownloadDir, m.cfg.FileTTL)

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quitChan:
			logger.Logger.Info("Storage cleanup routine stopped")
			return
		case <-ticker.C:
			m.Sweep(m.cfg.DownloadDir, m.cfg.FileTTL)
		}
	}
}

// Sweep deletes every regular file in dir whose modification time is older than
// maxAge and returns how many were removed. Per-file errors are logged and skipped.
func (m *Manager) Sweep(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Logger.Error("Failed to read download directory", zap.String("dir", dir), zap.Error(err))
		}
		return 0
	}

	now := m.now()
	deletedCount := 0
	errorCount := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// removed concurrently
			if !errors.Is(err, fs.ErrNotExist) {
				errorCount++
			}
			continue
		}

		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}

		if err := Delete(path); err != nil {
			logger.Logger.Error("Failed to remove file", zap.String("path", path), zap.Error(err))
			errorCount++
			continue
		}
		logger.Logger.Debug("File removed by cleanup", zap.String("path", path))
		deletedCount++
	}

	if deletedCount > 0 || errorCount > 0 {
		logger.Logger.Info("Storage cleanup completed",
			zap.Int("deleted_count", deletedCount),
			zap.Int("error_count", errorCount))
	}

	return deletedCount
}

// Delete removes a file from the download directory
func (m *Manager) Delete(path string) error {
	if err := Delete(path); err != nil {
		logger.Logger.Error("Failed to cleanup file", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// ValidateFileSize checks if file size is within limits
func (m *Manager) ValidateFileSize(sizeBytes int64) bool {
	return sizeBytes <= m.cfg.MaxFileSize
}

// MaxFileSize returns the delivery size ceiling in bytes
func (m *Manager) MaxFileSize() int64 {
	return m.cfg.MaxFileSize
}

// EnsureDownloadDir ensures download directory exists
func (m *Manager) EnsureDownloadDir() error {
	return EnsureDir(m.cfg.DownloadDir)
}

// DownloadDir returns the directory downloads are written to
func (m *Manager) DownloadDir() string {
	return m.cfg.DownloadDir
}

// Snapshot reports how many files the download directory currently holds
func (m *Manager) Snapshot() model.StorageSnapshot {
	var snap model.StorageSnapshot

	entries, err := os.ReadDir(m.cfg.DownloadDir)
	if err != nil {
		return snap
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snap.Files++
		snap.TotalBytes += info.Size()
	}
	return snap
}
