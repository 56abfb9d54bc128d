package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/pkg/logger"

	"go.uber.org/zap"
)

// probeReport is the subset of the yt-dlp --dump-json document we read
type probeReport struct {
	Title     string        `json:"title"`
	Duration  float64       `json:"duration"`
	Uploader  string        `json:"uploader"`
	Thumbnail string        `json:"thumbnail"`
	Formats   []probeFormat `json:"formats"`
}

type probeFormat struct {
	FormatID       string  `json:"format_id"`
	Height         float64 `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	FileSize       float64 `json:"filesize"`
	FileSizeApprox float64 `json:"filesize_approx"`
	TBR            float64 `json:"tbr"`
}

// Probe reads metadata for a link without downloading it
func (s *ExtractorService) Probe(ctx context.Context, url string) (*model.VideoInfo, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	args := []string{"--dump-json", "--no-warnings", "--no-playlist"}
	args = append(args, s.cookiesArgs()...)
	args = append(args, url)

	cmd := s.newCommand(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		logger.LogError("Failed to launch yt-dlp", err, zap.String("binary", s.cfg.Binary))
		return nil, &ExtractorError{Op: "probe", URL: url, Diagnostic: err.Error(), Err: ErrToolMissing}
	}

	if err := cmd.Wait(); err != nil {
		diagnostic := filterDiagnostic(stderr.String())
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		logger.LogWarn("Probe failed", zap.String("url", url), zap.String("stderr", diagnostic))
		return nil, &ExtractorError{Op: "probe", URL: url, Diagnostic: diagnostic, Err: ErrProbeFailed}
	}

	var report probeReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		logger.LogWarn("Failed to parse probe output", zap.String("url", url), zap.Error(err))
		return nil, &ExtractorError{Op: "probe", URL: url, Diagnostic: "failed to parse video info", Err: ErrProbeFailed}
	}

	info := buildVideoInfo(&report)
	logger.LogDebug("Video info retrieved",
		zap.String("url", url),
		zap.String("title", info.Title),
		zap.Int("formats", len(report.Formats)))
	return info, nil
}

func buildVideoInfo(report *probeReport) *model.VideoInfo {
	info := &model.VideoInfo{
		Title:           strings.TrimSpace(report.Title),
		DurationSeconds: int(report.Duration),
		Uploader:        report.Uploader,
		ThumbnailURL:    report.Thumbnail,
		EstimatedSizes:  make(map[model.Quality]int64, len(model.Qualities)),
	}
	if info.Title == "" {
		info.Title = "Video"
	}
	if info.Uploader == "" {
		info.Uploader = "Unknown"
	}

	for _, q := range model.Qualities {
		if size := estimateSize(report.Formats, q.Height(), report.Duration); size > 0 {
			info.EstimatedSizes[q] = size
		}
	}
	return info
}

// estimateSize picks the largest video format under the height ceiling and adds
// the best audio track when that format carries no audio. Returns 0 when unknown.
func estimateSize(formats []probeFormat, ceiling int, duration float64) int64 {
	var best *probeFormat
	var bestSize int64

	for i := range formats {
		f := &formats[i]
		if f.Height <= 0 || int(f.Height) > ceiling || f.VCodec == "none" {
			continue
		}
		size := f.sizeSignal(duration)
		if best == nil || size > bestSize {
			best = f
			bestSize = size
		}
	}

	if best == nil || bestSize <= 0 {
		return 0
	}

	if best.ACodec == "none" {
		var audioSize int64
		for i := range formats {
			f := &formats[i]
			if f.VCodec != "none" || f.ACodec == "none" || f.ACodec == "" {
				continue
			}
			if size := f.sizeSignal(duration); size > audioSize {
				audioSize = size
			}
		}
		bestSize += audioSize
	}

	return bestSize
}

// sizeSignal returns the exact size, the approximate size, or a bitrate based guess
func (f *probeFormat) sizeSignal(duration float64) int64 {
	switch {
	case f.FileSize > 0:
		return int64(f.FileSize)
	case f.FileSizeApprox > 0:
		return int64(f.FileSizeApprox)
	case f.TBR > 0 && duration > 0:
		// tbr is in kbit/s
		return int64(f.TBR * 1000 / 8 * duration)
	default:
		return 0
	}
}
