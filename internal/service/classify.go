package service

import (
	"errors"
	"strings"
)

const genericFailureReason = "Terjadi kesalahan. Pastikan link valid dan video bisa diakses."

// failureRule matches when the diagnostic contains all of contains and at least
// one of anyOf
type failureRule struct {
	contains []string
	anyOf    []string
	reason   string
}

// failureRules is evaluated in order, first match wins
var failureRules = []failureRule{
	{anyOf: []string{"yt-dlp not found"}, reason: "yt-dlp belum terinstall di server."},
	{anyOf: []string{"Private video", "Video unavailable"}, reason: "Video tidak tersedia atau bersifat private."},
	{anyOf: []string{"login required", "rate-limit"}, reason: "Instagram membutuhkan login. Coba lagi nanti atau gunakan link yang berbeda."},
	{anyOf: []string{"No video could be found"}, reason: "Tidak ada video ditemukan di tweet ini."},
	{anyOf: []string{"Sign in to confirm"}, reason: "Twitter membutuhkan login untuk video ini."},
	{contains: []string{"Unsupported URL", "facebook.com/stories"}, reason: "Facebook Stories belum didukung. Gunakan link Reels atau video biasa."},
	{anyOf: []string{"Unsupported URL"}, reason: "Format URL tidak didukung."},
	{anyOf: []string{"login.php"}, reason: "Facebook membutuhkan login. Pastikan cookies sudah dikonfigurasi."},
}

func (r failureRule) matches(diagnostic string) bool {
	for _, s := range r.contains {
		if !strings.Contains(diagnostic, s) {
			return false
		}
	}
	if len(r.anyOf) == 0 {
		return len(r.contains) > 0
	}
	for _, s := range r.anyOf {
		if strings.Contains(diagnostic, s) {
			return true
		}
	}
	return false
}

// ClassifyFailure maps a download error to the reason shown to the user
func ClassifyFailure(err error) string {
	if err == nil {
		return genericFailureReason
	}
	if errors.Is(err, ErrToolMissing) {
		return failureRules[0].reason
	}

	diagnostic := diagnosticOf(err)
	for _, rule := range failureRules {
		if rule.matches(diagnostic) {
			return rule.reason
		}
	}
	return genericFailureReason
}
