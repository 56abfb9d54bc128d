package service

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/internal/storage"
	"github.com/mazbron/video-downloader/pkg/logger"

	"go.uber.org/zap"
)

const (
	// progressStep is the minimum advance, in percent points, between two progress reports
	progressStep = 10

	copyPostprocessorArgs      = "ffmpeg:-c:v copy -c:a copy"
	transcodePostprocessorArgs = "ffmpeg:-c:v libx264 -preset slow -crf 18 -c:a aac -b:a 192k"
)

var progressPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// noiseMarkers are stderr lines that never explain a failure
var noiseMarkers = []string{"Deprecated Feature", "Please update to Python"}

// Fetch downloads a video at the requested tier into req.DestinationDir.
// onProgress may be nil.
func (s *ExtractorService) Fetch(ctx context.Context, req model.FetchRequest, onProgress func(int)) (*model.DownloadResult, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	if err := storage.EnsureDir(req.DestinationDir); err != nil {
		return nil, &ExtractorError{Op: "fetch", URL: req.URL, Diagnostic: err.Error(), Err: ErrFetchFailed}
	}

	fileName := storage.GenerateName("mp4")
	outputPath := filepath.Join(req.DestinationDir, fileName)

	cmd := s.newCommand(ctx, s.fetchArgs(req, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExtractorError{Op: "fetch", URL: req.URL, Diagnostic: err.Error(), Err: ErrFetchFailed}
	}

	if err := cmd.Start(); err != nil {
		logger.LogError("Failed to launch yt-dlp", err, zap.String("binary", s.cfg.Binary))
		return nil, &ExtractorError{Op: "fetch", URL: req.URL, Diagnostic: err.Error(), Err: ErrToolMissing}
	}

	logger.LogInfo("Download started",
		zap.String("url", req.URL),
		zap.String("quality", req.Quality.Label()),
		zap.String("platform", string(req.Platform)),
		zap.String("path", outputPath))

	readProgress(stdout, onProgress)
	waitErr := cmd.Wait()
	diagnostic := filterDiagnostic(stderr.String())

	info, statErr := os.Stat(outputPath)
	if ctx.Err() == nil && statErr == nil && info.Size() > 0 {
		if waitErr != nil {
			logger.LogWarn("yt-dlp exited with error but produced a file",
				zap.String("url", req.URL),
				zap.Error(waitErr),
				zap.String("stderr", diagnostic))
		}
		return &model.DownloadResult{
			FilePath:  outputPath,
			FileName:  fileName,
			SizeBytes: info.Size(),
		}, nil
	}

	if statErr == nil {
		_ = storage.Delete(outputPath)
	}
	if ctx.Err() != nil {
		diagnostic = strings.TrimSpace(diagnostic + "\n" + ctx.Err().Error())
	}
	if diagnostic == "" && waitErr != nil {
		diagnostic = waitErr.Error()
	}

	logger.LogWarn("Download failed", zap.String("url", req.URL), zap.String("stderr", diagnostic))
	return nil, &ExtractorError{Op: "fetch", URL: req.URL, Diagnostic: diagnostic, Err: ErrFetchFailed}
}

func (s *ExtractorService) fetchArgs(req model.FetchRequest, outputPath string) []string {
	args := []string{
		"-f", req.Quality.FormatSelector(),
		"--merge-output-format", "mp4",
		"-o", outputPath,
		"--no-warnings",
		"--no-playlist",
		"--newline",
		"--progress",
		"--extractor-args", "youtube:player_client=android",
		"--user-agent", s.cfg.UserAgent,
		"--no-check-certificates",
		"--prefer-insecure",
		"--retries", strconv.Itoa(s.cfg.Retries),
		"--fragment-retries", strconv.Itoa(s.cfg.FragmentRetries),
	}

	if s.transcode[req.Platform] {
		args = append(args, "--recode-video", "mp4", "--postprocessor-args", transcodePostprocessorArgs)
	} else {
		args = append(args, "--postprocessor-args", copyPostprocessorArgs)
	}

	args = append(args, s.cookiesArgs()...)
	return append(args, req.URL)
}

// readProgress consumes yt-dlp stdout until EOF, reporting the percentage each
// time it has advanced by at least progressStep
func readProgress(r io.Reader, onProgress func(int)) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanProgressLines)

	last := 0.0
	for scanner.Scan() {
		if onProgress == nil {
			continue
		}
		match := progressPattern.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}
		progress, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		if progress-last >= progressStep {
			last = progress
			onProgress(int(math.Round(progress)))
		}
	}

	// keep the pipe drained so the child never blocks on a full buffer
	_, _ = io.Copy(io.Discard, r)
}

// scanProgressLines splits on either \n or \r, since progress bars rewrite the line
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func filterDiagnostic(stderr string) string {
	lines := strings.Split(stderr, "\n")
	kept := lines[:0]
	for _, line := range lines {
		noisy := false
		for _, marker := range noiseMarkers {
			if strings.Contains(line, marker) {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
