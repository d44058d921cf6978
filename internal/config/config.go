package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds runtime settings for the CLI and the webhook daemon. It is
// loaded once at startup and passed into each component; nothing reads
// process environment directly.
type Config struct {
	APIBaseURL string
	APIKey     string

	PollInterval time.Duration
	MaxAttempts  int

	AutoDownload bool
	OutputDir    string

	ChunkSizeBytes      int64
	ChunkThresholdBytes int64

	WebhookAddr  string
	AuditLogPath string

	NotifyRecipient string
	AdminRecipient  string
	SMTPAddr        string
	SMTPFrom        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RatePerSecond int
	RateBurst     int
}

// Load reads environment variables and returns normalized runtime config.
func Load() Config {
	return Config{
		APIBaseURL: getEnv("CONV_API_URL", "http://localhost:9000"),
		APIKey:     strings.TrimSpace(os.Getenv("CONV_API_KEY")),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)) * time.Second,
		MaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS", 20),

		AutoDownload: getEnvBool("AUTO_DOWNLOAD", false),
		OutputDir:    getEnv("OUTPUT_DIR", "."),

		ChunkSizeBytes:      int64(getEnvInt("CHUNK_SIZE_BYTES", 5<<20)),
		ChunkThresholdBytes: int64(getEnvInt("CHUNK_THRESHOLD_BYTES", 20<<20)),

		WebhookAddr:  getEnv("WEBHOOK_ADDR", ":8090"),
		AuditLogPath: getEnv("AUDIT_LOG_PATH", "./webhook-audit.log"),

		NotifyRecipient: strings.TrimSpace(os.Getenv("NOTIFY_RECIPIENT")),
		AdminRecipient:  strings.TrimSpace(os.Getenv("ADMIN_RECIPIENT")),
		SMTPAddr:        strings.TrimSpace(os.Getenv("SMTP_ADDR")),
		SMTPFrom:        getEnv("SMTP_FROM", "convcli@localhost"),

		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RatePerSecond: getEnvInt("RATE_PER_SECOND", 50),
		RateBurst:     getEnvInt("RATE_BURST", 100),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int
	_, err := fmt.Sscanf(value, "%d", &out)
	if err != nil || out < 0 {
		return fallback
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
