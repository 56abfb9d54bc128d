package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mazbron/video-downloader/internal/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const placeholderToken = "your_telegram_bot_token_here"

// Load loads configuration from environment variables and an optional YAML file.
// Variables from a local .env file are loaded first, then environment values and
// defaults are applied; values present in the YAML file take precedence over both.
func Load(configPath string) (*model.Config, error) {
	_ = godotenv.Load()

	cfg := &model.Config{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Extractor.TranscodePlatforms = normalizePlatforms(cfg.Extractor.TranscodePlatforms)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func Validate(cfg *model.Config) error {
	token := strings.TrimSpace(cfg.Bot.Token)
	if token == "" || token == placeholderToken {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.Storage.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if cfg.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if cfg.Storage.CleanupInterval <= 0 || cfg.Storage.FileTTL <= 0 {
		return fmt.Errorf("STORAGE_CLEANUP_INTERVAL and FILE_TTL must be positive")
	}
	if cfg.Extractor.Binary == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}
	return nil
}

func normalizePlatforms(platforms []string) []string {
	var out []string
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
