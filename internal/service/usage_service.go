package service

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/pkg/logger"

	"go.uber.org/zap"
)

// directBucket counts downloads that did not come from a known platform
const directBucket = "direct"

// UsageService persists user and download counters to a JSON file.
// Every event loads, mutates and rewrites the whole document.
type UsageService struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewUsageService creates a usage counter backed by path
func NewUsageService(path string) *UsageService {
	return &UsageService{
		path: path,
		now:  time.Now,
	}
}

func (s *UsageService) defaultStats() *model.UsageStats {
	downloads := make(map[string]int, len(platformPatterns)+1)
	for _, p := range platformPatterns {
		downloads[string(p.platform)] = 0
	}
	downloads[directBucket] = 0

	return &model.UsageStats{
		Users:     []int64{},
		Downloads: downloads,
		StartDate: s.now().UTC(),
	}
}

// load reads the document, falling back to a fresh one when absent or corrupt
func (s *UsageService) load() *model.UsageStats {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.LogWarn("Failed to read stats file", zap.String("path", s.path), zap.Error(err))
		}
		return s.defaultStats()
	}

	var stats model.UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		logger.LogWarn("Stats file is corrupt, starting fresh", zap.String("path", s.path), zap.Error(err))
		return s.defaultStats()
	}
	if stats.Users == nil {
		stats.Users = []int64{}
	}
	if stats.Downloads == nil {
		stats.Downloads = s.defaultStats().Downloads
	}
	return &stats
}

// save writes the document to a temp file and renames it over the old one
func (s *UsageService) save(stats *model.UsageStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".stats-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// TrackUser records a user id the first time it is seen
func (s *UsageService) TrackUser(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.load()
	for _, id := range stats.Users {
		if id == userID {
			return nil
		}
	}
	stats.Users = append(stats.Users, userID)

	if err := s.save(stats); err != nil {
		logger.LogError("Failed to save stats", err, zap.String("path", s.path))
		return err
	}
	logger.LogDebug("New user tracked", zap.Int64("user_id", userID), zap.Int("total_users", len(stats.Users)))
	return nil
}

// TrackDownload counts a delivered video. Platforms without a bucket only
// increase the total.
func (s *UsageService) TrackDownload(platform model.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.load()
	stats.TotalDownloads++
	if _, ok := stats.Downloads[string(platform)]; ok {
		stats.Downloads[string(platform)]++
	}

	if err := s.save(stats); err != nil {
		logger.LogError("Failed to save stats", err, zap.String("path", s.path))
		return err
	}
	return nil
}

// Summary returns a snapshot of the counters
func (s *UsageService) Summary() model.UsageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.load()
	downloads := make(map[string]int, len(stats.Downloads))
	for k, v := range stats.Downloads {
		downloads[k] = v
	}

	return model.UsageSummary{
		TotalUsers:     len(stats.Users),
		TotalDownloads: stats.TotalDownloads,
		Downloads:      downloads,
		StartDate:      stats.StartDate,
	}
}
