package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// SMTP relay account (Brevo-compatible). EmailUser doubles as the
	// authenticated envelope sender; arbitrary submitter addresses are
	// never used as the From address.
	SMTPHost  string
	SMTPPort  string
	EmailUser string
	EmailPass string

	// Workshop mailboxes. Routing is an exact, case-sensitive match on the
	// submitted service category; everything unrecognized lands in the
	// panel beating inbox.
	ContactPanelBeating string `validate:"required,email"`
	ContactMechanical   string `validate:"required,email"`
	ContactCaravanBoat  string `validate:"required,email"`
	ContactObserver     string `validate:"required,email"`

	// Upload limits
	MaxAttachments int   `validate:"gt=0"`
	MaxUploadBytes int64 `validate:"gt=0"`

	// Optional durable outbox. Fire-and-forget when empty.
	DBUrl string

	// Optional Redis for rate limiting (in-memory fallback when empty)
	UpstashRedisURL      string
	UpstashRedisPassword string

	// Rate limiting
	RateLimitWindowSeconds int
	RateLimitPerWindow     int
	OutboxRetrySeconds     int
	OutboxMaxAttempts      int
	OutboxRetryBatchSize   int
	ShutdownTimeoutSeconds int
}

func LoadConfig() (*Config, error) {
	// Only effective locally; ignored in production when the file is absent
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		SMTPHost:  getEnv("SMTP_HOST", "smtp-relay.brevo.com"),
		SMTPPort:  getEnv("SMTP_PORT", "587"),
		EmailUser: getEnv("EMAIL_USER", ""),
		EmailPass: getEnv("EMAIL_PASS", ""),

		ContactPanelBeating: getEnv("CONTACT_PANEL_BEATING", "panelbeating@apexpanelworks.com.au"),
		ContactMechanical:   getEnv("CONTACT_MECHANICAL", "mechanical@apexpanelworks.com.au"),
		ContactCaravanBoat:  getEnv("CONTACT_CARAVAN_BOAT", "caravans@apexpanelworks.com.au"),
		ContactObserver:     getEnv("CONTACT_OBSERVER", "admin@apexpanelworks.com.au"),

		MaxAttachments: getEnvInt("MAX_ATTACHMENTS", 5),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 25<<20)), // 25 MiB across all parts

		DBUrl: getEnv("DATABASE_URL", ""),

		UpstashRedisURL:      getEnv("UPSTASH_REDIS_URL", ""),
		UpstashRedisPassword: getEnv("UPSTASH_REDIS_PASSWORD", ""),

		RateLimitWindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitPerWindow:     getEnvInt("RATE_LIMIT_PER_WINDOW", 10),

		OutboxRetrySeconds:   getEnvInt("OUTBOX_RETRY_SECONDS", 60),
		OutboxMaxAttempts:    getEnvInt("OUTBOX_MAX_ATTEMPTS", 5),
		OutboxRetryBatchSize: getEnvInt("OUTBOX_RETRY_BATCH_SIZE", 10),

		ShutdownTimeoutSeconds: getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 5),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.EmailUser == "" || cfg.EmailPass == "" {
		log.Println("WARNING: EMAIL_USER/EMAIL_PASS not set. Contact dispatch will be unavailable.")
	}
	if cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL not set. Submissions are fire-and-forget (no outbox).")
	}
	if cfg.UpstashRedisURL == "" {
		log.Println("WARNING: UPSTASH_REDIS_URL not configured. Rate limiting will use in-memory fallback.")
	}

	return cfg, nil
}

// MailConfigured reports whether the SMTP relay account is usable. Checked
// before any message is composed so a misconfigured deployment fails fast.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.EmailUser != "" && c.EmailPass != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
