package service

import (
	"context"

	"github.com/mazbron/video-downloader/internal/model"
)

// ChatGateway renders messages to a chat. Message ids are the ones the chat
// platform assigned on send.
type ChatGateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts model.MessageOptions) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, opts model.MessageOptions) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
	SendVideo(ctx context.Context, chatID int64, path string, caption string) error
}

// Extractor probes and downloads videos
type Extractor interface {
	Probe(ctx context.Context, url string) (*model.VideoInfo, error)
	Fetch(ctx context.Context, req model.FetchRequest, onProgress func(int)) (*model.DownloadResult, error)
}

// FileStore owns downloaded files
type FileStore interface {
	Delete(path string) error
	ValidateFileSize(sizeBytes int64) bool
	MaxFileSize() int64
	DownloadDir() string
}

// UsageRecorder counts users and delivered downloads
type UsageRecorder interface {
	TrackUser(userID int64) error
	TrackDownload(platform model.Platform) error
}
