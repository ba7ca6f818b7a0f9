package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	// Spreadsheet backing store
	SpreadsheetID string
	SheetsBaseURL string
	SheetsToken   string

	// Cloudinary object store for proof images
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	// Admin identity
	JWTIssuer         string
	JWTSigningKey     string
	AccessTTL         time.Duration
	AdminEmail        string
	AdminName         string
	AdminPasswordHash string

	// Notification queue
	RedisAddr        string
	QueueBackend     string
	NotifyWebhookURL string

	RateLimitPerMin int
	StrictDecode    bool
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPPort:            getEnv("HTTP_PORT", "8081"),
		SpreadsheetID:       getEnv("SPREADSHEET_ID", ""),
		SheetsBaseURL:       getEnv("SHEETS_BASE_URL", "https://sheets.googleapis.com"),
		SheetsToken:         getEnv("SHEETS_ACCESS_TOKEN", ""),
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "volunteer-proofs"),
		JWTIssuer:           getEnv("JWT_ISSUER", "clubhours"),
		JWTSigningKey:       getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:           durationEnv("ACCESS_TTL", 12*time.Hour),
		AdminEmail:          getEnv("ADMIN_EMAIL", ""),
		AdminName:           getEnv("ADMIN_NAME", "Admin"),
		AdminPasswordHash:   getEnv("ADMIN_PASSWORD_HASH", ""),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		QueueBackend:        getEnv("QUEUE_BACKEND", "redis"),
		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
		RateLimitPerMin:     intEnv("RATE_LIMIT_PER_MIN", 60),
		StrictDecode:        boolEnv("STRICT_DECODE", false),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
