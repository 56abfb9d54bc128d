package handler

import (
	"fmt"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/internal/service"
)

func startText() string {
	return fmt.Sprintf(`🎬 *Video Downloader Bot*

Selamat datang! Saya bisa download video dari:

%s

*Cara pakai:*
1️⃣ Kirim link video
2️⃣ Pilih kualitas (720p/1080p)
3️⃣ Tunggu video selesai didownload

Kirim /help untuk bantuan lebih lanjut.`, service.SupportedPlatforms())
}

func helpText(maxFileSize int64) string {
	return fmt.Sprintf(`📖 *Panduan Penggunaan*

*Platform yang didukung:*
%s

*Contoh link yang valid:*
• YouTube: `+"`https://youtube.com/watch?v=xxx`"+`
• TikTok: `+"`https://tiktok.com/@user/video/xxx`"+`
• Instagram: `+"`https://instagram.com/reel/xxx`"+`
• Facebook: `+"`https://fb.watch/xxx`"+`
• Twitter: `+"`https://twitter.com/user/status/xxx`"+`

*Pilihan kualitas:*
• 720p - Ukuran lebih kecil, download lebih cepat
• 1080p - Kualitas lebih tinggi

*Batas ukuran:* Maksimal %dMB (limit Telegram)`, service.SupportedPlatforms(), maxFileSize/(1024*1024))
}

func statsText(s model.UsageSummary) string {
	return fmt.Sprintf(`📊 *Statistik Bot*

👥 Total Users: *%d*
📥 Total Downloads: *%d*

*Downloads per Platform:*
🔴 YouTube: %d
🎵 TikTok: %d
📸 Instagram: %d
🔵 Facebook: %d
🐦 Twitter: %d
🔗 Direct: %d

📅 Aktif sejak: %s`,
		s.TotalUsers,
		s.TotalDownloads,
		s.Downloads[string(model.PlatformYouTube)],
		s.Downloads[string(model.PlatformTikTok)],
		s.Downloads[string(model.PlatformInstagram)],
		s.Downloads[string(model.PlatformFacebook)],
		s.Downloads[string(model.PlatformTwitter)],
		s.Downloads["direct"],
		s.StartDate.Local().Format("2/1/2006"))
}
