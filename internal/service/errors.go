package service

import (
	"errors"
	"fmt"
)

var (
	// ErrToolMissing is returned when the yt-dlp binary cannot be launched
	ErrToolMissing = errors.New("yt-dlp not found")
	// ErrProbeFailed is returned when metadata could not be read for a link
	ErrProbeFailed = errors.New("probe failed")
	// ErrFetchFailed is returned when a download produced no usable file
	ErrFetchFailed = errors.New("fetch failed")
	// ErrOversizeResult is returned when a downloaded file exceeds the delivery ceiling
	ErrOversizeResult = errors.New("file exceeds size limit")
	// ErrSessionExpired is returned when a quality choice arrives without a pending link
	ErrSessionExpired = errors.New("session expired")
)

// ExtractorError carries the diagnostic output of a failed yt-dlp run
type ExtractorError struct {
	Op         string
	URL        string
	Diagnostic string
	Err        error
}

func (e *ExtractorError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("%s %s: %v: %s", e.Op, e.URL, e.Err, e.Diagnostic)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ExtractorError) Unwrap() error {
	return e.Err
}

// diagnosticOf returns the text failure classification matches against
func diagnosticOf(err error) string {
	var extErr *ExtractorError
	if errors.As(err, &extErr) {
		if extErr.Err == nil {
			return extErr.Diagnostic
		}
		return extErr.Diagnostic + "\n" + extErr.Err.Error()
	}
	return err.Error()
}
