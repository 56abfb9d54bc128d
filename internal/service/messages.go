package service

import (
	"fmt"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/pkg/validator"
)

const (
	maxTitleLength = 100

	msgUnsupportedPlatform = "❌ Platform tidak didukung. Kirim /help untuk melihat platform yang didukung."
	msgSessionExpired      = "❌ Session expired. Silakan kirim ulang link video."
	msgFailurePrefix       = "❌ *Gagal download video*\n\n"
)

var markdown = model.MessageOptions{ParseMode: model.ParseModeMarkdown}

func loadingText(info model.PlatformInfo) string {
	return fmt.Sprintf("%s *%s* terdeteksi!\n\n⏳ Mengambil info video...", info.Emoji, info.Name)
}

// promptText renders the quality question; title is omitted when unknown
func promptText(info model.PlatformInfo, title string) string {
	if title == "" {
		return fmt.Sprintf("%s *%s* terdeteksi!\n\nPilih kualitas video:", info.Emoji, info.Name)
	}
	title = validator.EscapeMarkdown(validator.TruncateText(title, maxTitleLength))
	return fmt.Sprintf("%s *%s* terdeteksi!\n\n📝 *%s*\n\nPilih kualitas video:", info.Emoji, info.Name, title)
}

// plainPromptText is the quality question without formatting or title
func plainPromptText(info model.PlatformInfo) string {
	return fmt.Sprintf("%s %s terdeteksi!\n\nPilih kualitas video:", info.Emoji, info.Name)
}

// qualityKeyboard builds one row with a button per tier, annotated with the
// estimated size when known
func qualityKeyboard(video *model.VideoInfo) [][]model.KeyboardButton {
	row := make([]model.KeyboardButton, 0, len(model.Qualities))
	for _, q := range model.Qualities {
		text := "📹 " + q.Label()
		if size := video.EstimatedSize(q); size > 0 {
			text += fmt.Sprintf(" (~%.1fMB)", float64(size)/(1024*1024))
		}
		row = append(row, model.KeyboardButton{Text: text, Data: q.CallbackData()})
	}
	return [][]model.KeyboardButton{row}
}

func downloadingText(q model.Quality) string {
	return fmt.Sprintf("⏳ *Downloading...* (%s)\n\nMohon tunggu, ini mungkin memakan waktu beberapa saat.", q.Label())
}

func progressText(q model.Quality, percent int) string {
	return fmt.Sprintf("⏳ *Downloading...* (%s)\n\nProgress: %d%%", q.Label(), percent)
}

func tooLargeText(size, limit int64) string {
	return fmt.Sprintf("❌ *File terlalu besar*\n\nUkuran: %s\nMaksimal: %dMB\n\nCoba gunakan kualitas 720p.",
		validator.FormatSize(size), limit/(1024*1024))
}

func sendingText(size int64) string {
	return fmt.Sprintf("📤 *Mengirim video...* (%s)", validator.FormatSize(size))
}

func captionText(q model.Quality, size int64) string {
	return fmt.Sprintf("✅ Downloaded (%s) - %s", q.Label(), validator.FormatSize(size))
}

func failureText(reason string) string {
	return msgFailurePrefix + reason
}
