package validator

import (
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
)

// IsValidURL reports whether text is a single absolute http(s) URL
func IsValidURL(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\n\r") {
		return false
	}

	u, err := url.Parse(text)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

var markdownReplacer = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown escapes the characters that legacy Telegram Markdown treats as entities
func EscapeMarkdown(text string) string {
	return markdownReplacer.Replace(text)
}

// FormatSize formats a byte count for display, e.g. "12 MiB"
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// TruncateText truncates text to maxLen runes, appending an ellipsis when cut.
// Uses rune-level truncation to keep multi-byte characters intact.
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	if maxLen == 1 {
		return string(runes[:1])
	}
	return string(runes[:maxLen-1]) + "…"
}
