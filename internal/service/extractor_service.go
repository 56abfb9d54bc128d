package service

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mazbron/video-downloader/internal/model"
)

// processWaitDelay bounds how long a killed yt-dlp may keep its pipes open
// through child processes such as ffmpeg
const processWaitDelay = 5 * time.Second

// CommandFactory builds the process used to run yt-dlp
type CommandFactory func(ctx context.Context, name string, args ...string) *exec.Cmd

// ExtractorService wraps the yt-dlp command line tool
type ExtractorService struct {
	cfg       *model.ExtractorConfig
	command   CommandFactory
	waitDelay time.Duration
	transcode map[model.Platform]bool
}

// NewExtractorService creates a new extractor service
func NewExtractorService(cfg *model.ExtractorConfig) *ExtractorService {
	transcode := make(map[model.Platform]bool, len(cfg.TranscodePlatforms))
	for _, p := range cfg.TranscodePlatforms {
		transcode[model.Platform(strings.ToLower(strings.TrimSpace(p)))] = true
	}

	return &ExtractorService{
		cfg:       cfg,
		command:   exec.CommandContext,
		waitDelay: processWaitDelay,
		transcode: transcode,
	}
}

// WithCommandFactory replaces how yt-dlp processes are created
func (s *ExtractorService) WithCommandFactory(f CommandFactory) *ExtractorService {
	s.command = f
	return s
}

func (s *ExtractorService) newCommand(ctx context.Context, args ...string) *exec.Cmd {
	cmd := s.command(ctx, s.cfg.Binary, args...)
	cmd.WaitDelay = s.waitDelay
	return cmd
}

func (s *ExtractorService) cookiesArgs() []string {
	if s.cfg.CookiesPath == "" {
		return nil
	}
	if info, err := os.Stat(s.cfg.CookiesPath); err != nil || info.IsDir() {
		return nil
	}
	return []string{"--cookies", s.cfg.CookiesPath}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
