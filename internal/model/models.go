package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a supported video platform
type Platform string

const (
	PlatformUnknown   Platform = ""
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
)

// PlatformInfo is the display descriptor of a platform
type PlatformInfo struct {
	Name  string
	Emoji string
}

// Quality is a requested maximum video height
type Quality int

const (
	Quality720  Quality = 720
	Quality1080 Quality = 1080
)

// Qualities lists the tiers offered to the user, in button order
var Qualities = []Quality{Quality720, Quality1080}

const qualityCallbackPrefix = "quality_"

// Height returns the vertical resolution ceiling of the tier
func (q Quality) Height() int {
	return int(q)
}

// Label returns the user facing tier name, e.g. "720p"
func (q Quality) Label() string {
	return fmt.Sprintf("%dp", int(q))
}

// CallbackData returns the inline button payload for the tier
func (q Quality) CallbackData() string {
	return fmt.Sprintf("%s%d", qualityCallbackPrefix, int(q))
}

// FormatSelector returns the yt-dlp format expression bounded by the tier height.
// It falls back to the best single file under the ceiling, then to unconstrained best.
func (q Quality) FormatSelector() string {
	h := q.Height()
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]/best", h, h)
}

// ParseQuality parses "720" or "1080"
func ParseQuality(s string) (Quality, bool) {
	for _, q := range Qualities {
		if fmt.Sprintf("%d", int(q)) == strings.TrimSpace(s) {
			return q, true
		}
	}
	return 0, false
}

// IsQualityCallback reports whether a callback payload carries a quality tag
func IsQualityCallback(data string) bool {
	return strings.HasPrefix(data, qualityCallbackPrefix)
}

// ParseQualityCallback parses a "quality_<tier>" callback payload
func ParseQualityCallback(data string) (Quality, bool) {
	if !IsQualityCallback(data) {
		return 0, false
	}
	return ParseQuality(strings.TrimPrefix(data, qualityCallbackPrefix))
}

// PendingSelection is the remembered link awaiting a quality choice for a chat
type PendingSelection struct {
	ChatID    int64
	URL       string
	Platform  Platform
	CreatedAt time.Time
}

// VideoInfo contains probe metadata about a video
type VideoInfo struct {
	Title           string
	DurationSeconds int
	Uploader        string
	ThumbnailURL    string
	EstimatedSizes  map[Quality]int64
}

// EstimatedSize returns the size estimate for a tier in bytes, 0 when unknown
func (v *VideoInfo) EstimatedSize(q Quality) int64 {
	if v == nil || v.EstimatedSizes == nil {
		return 0
	}
	return v.EstimatedSizes[q]
}

// FetchRequest describes a single media download
type FetchRequest struct {
	URL            string
	Quality        Quality
	DestinationDir string
	Platform       Platform
}

// DownloadResult is a file the download directory now holds
type DownloadResult struct {
	FilePath  string
	FileName  string
	SizeBytes int64
}

// UsageStats is the persisted usage document
type UsageStats struct {
	Users          []int64        `json:"users"`
	TotalDownloads int            `json:"totalDownloads"`
	Downloads      map[string]int `json:"downloads"`
	StartDate      time.Time      `json:"startDate"`
}

// UsageSummary is a read-only view of the usage document
type UsageSummary struct {
	TotalUsers     int            `json:"total_users"`
	TotalDownloads int            `json:"total_downloads"`
	Downloads      map[string]int `json:"downloads"`
	StartDate      time.Time      `json:"start_date"`
}

// SessionState is the per-chat orchestration state
type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingQualitySelection
	StateFetching
	StateDelivering
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingQualitySelection:
		return "awaiting_quality_selection"
	case StateFetching:
		return "fetching"
	case StateDelivering:
		return "delivering"
	default:
		return "unknown"
	}
}

// KeyboardButton is an inline keyboard button carrying a callback payload
type KeyboardButton struct {
	Text string
	Data string
}

// MessageOptions controls how a chat message is rendered
type MessageOptions struct {
	ParseMode string
	Keyboard  [][]KeyboardButton
}

// ParseModeMarkdown is the legacy Telegram Markdown parse mode
const ParseModeMarkdown = "Markdown"

// InboundText is a plain text message received from a chat
type InboundText struct {
	ChatID int64
	UserID int64
	Text   string
}

// InboundCallback is an inline button press
type InboundCallback struct {
	ID        string
	ChatID    int64
	MessageID int
	UserID    int64
	Data      string
}

// StorageSnapshot summarizes the download directory
type StorageSnapshot struct {
	Files      int   `json:"files"`
	TotalBytes int64 `json:"total_bytes"`
}

// ErrorResponse is the JSON body of a failed admin API request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
