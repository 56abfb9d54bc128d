package model

import "time"

// Config holds application configuration
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Storage   StorageConfig   `yaml:"storage"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Session   SessionConfig   `yaml:"session"`
	Stats     StatsConfig     `yaml:"stats"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
}

// BotConfig holds Telegram bot configuration
type BotConfig struct {
	Token       string `yaml:"token" envconfig:"BOT_TOKEN"`
	PollTimeout int    `yaml:"poll_timeout" envconfig:"BOT_POLL_TIMEOUT" default:"60"` // seconds
	Debug       bool   `yaml:"debug" envconfig:"BOT_DEBUG" default:"false"`
}

// StorageConfig holds download directory configuration
type StorageConfig struct {
	DownloadDir     string        `yaml:"download_dir" envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	MaxFileSize     int64         `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE" default:"52428800"` // Telegram bot upload limit
	FileTTL         time.Duration `yaml:"file_ttl" envconfig:"FILE_TTL" default:"1h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"STORAGE_CLEANUP_INTERVAL" default:"10m"`
}

// ExtractorConfig holds yt-dlp invocation configuration
type ExtractorConfig struct {
	Binary             string        `yaml:"binary" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	CookiesPath        string        `yaml:"cookies_path" envconfig:"YTDLP_COOKIES" default:"cookies.txt"`
	UserAgent          string        `yaml:"user_agent" envconfig:"YTDLP_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	Retries            int           `yaml:"retries" envconfig:"YTDLP_RETRIES" default:"3"`
	FragmentRetries    int           `yaml:"fragment_retries" envconfig:"YTDLP_FRAGMENT_RETRIES" default:"3"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout" envconfig:"YTDLP_PROBE_TIMEOUT" default:"60s"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout" envconfig:"YTDLP_FETCH_TIMEOUT" default:"15m"`
	TranscodePlatforms []string      `yaml:"transcode_platforms" envconfig:"YTDLP_TRANSCODE_PLATFORMS" default:"facebook"`
	MaxConcurrent      int           `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT_DOWNLOADS" default:"4"`
}

// SessionConfig holds pending quality selection configuration
type SessionConfig struct {
	PendingTTL      time.Duration `yaml:"pending_ttl" envconfig:"SESSION_PENDING_TTL" default:"1h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"SESSION_CLEANUP_INTERVAL" default:"10m"`
}

// StatsConfig holds usage counter configuration
type StatsConfig struct {
	FilePath string `yaml:"file_path" envconfig:"STATS_FILE" default:"stats.json"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
	FilePath string `yaml:"file_path" envconfig:"LOG_FILE" default:"./log/app.log"`
	Format   string `yaml:"format" envconfig:"LOG_FORMAT" default:"json"` // json or console
}

// RateLimitConfig holds flood protection configuration
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" envconfig:"RATELIMIT_ENABLED" default:"true"`
	RequestsPerMinute int           `yaml:"requests_per_minute" envconfig:"RATELIMIT_REQUESTS_PER_MINUTE" default:"20"`
	BurstSize         int           `yaml:"burst_size" envconfig:"RATELIMIT_BURST_SIZE" default:"5"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" envconfig:"RATELIMIT_CLEANUP_INTERVAL" default:"30m"`
	IdleTTL           time.Duration `yaml:"idle_ttl" envconfig:"RATELIMIT_IDLE_TTL" default:"2h"`
}

// AdminConfig holds the optional health/stats HTTP server configuration
type AdminConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"ADMIN_ENABLED" default:"false"`
	Host    string        `yaml:"host" envconfig:"ADMIN_HOST" default:"127.0.0.1"`
	Port    int           `yaml:"port" envconfig:"ADMIN_PORT" default:"8080"`
	Timeout time.Duration `yaml:"timeout" envconfig:"ADMIN_TIMEOUT" default:"30s"`
}
