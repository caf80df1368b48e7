package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Kite Connect credentials
	KiteAPIKey    string
	KiteAPISecret string
	RedirectURI   string

	// Optional headless login (TOTP mode). All three must be set to enable it.
	KiteUserID     string
	KitePassword   string
	KiteTOTPSecret string

	// Session persistence
	SessionFile    string
	SessionBackend string // "file" or "redis"
	SessionMaxAge  time.Duration
	RedisAddr      string
	RedisPassword  string

	// Trading
	PaperMode bool // accept orders locally, no Kite calls

	// Order log / journal
	OrderLogFile string
	JournalPath  string

	// HTTP
	ServerAddr  string
	MetricsAddr string

	// Notifications (optional, empty disables)
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	LogLevel string
}

// Load reads configuration from a .env file (if present) and environment
// variables with sensible defaults. Kite credentials are required unless
// paper mode is enabled.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		KiteAPIKey:    os.Getenv("KITE_API_KEY"),
		KiteAPISecret: os.Getenv("KITE_API_SECRET"),
		RedirectURI:   getEnv("KITE_REDIRECT_URI", "http://127.0.0.1:8080/callback"),

		KiteUserID:     os.Getenv("KITE_USER_ID"),
		KitePassword:   os.Getenv("KITE_PASSWORD"),
		KiteTOTPSecret: os.Getenv("KITE_TOTP_SECRET"),

		SessionFile:    getEnv("SESSION_FILE", "data/kite_session.json"),
		SessionBackend: getEnv("SESSION_BACKEND", "file"),
		SessionMaxAge:  getDuration("SESSION_MAX_AGE", 24*time.Hour),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),

		PaperMode: getBool("PAPER_MODE", false),

		OrderLogFile: getEnv("ORDER_LOG_FILE", "logs/order.log"),
		JournalPath:  getEnv("JOURNAL_PATH", "data/orders.db"),

		ServerAddr:  getEnv("SERVER_ADDR", ":8000"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		WebhookURL:       os.Getenv("NOTIFY_WEBHOOK_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if !cfg.PaperMode {
		if cfg.KiteAPIKey == "" {
			log.Fatal("[config] required env var KITE_API_KEY not set")
		}
		if cfg.KiteAPISecret == "" {
			log.Fatal("[config] required env var KITE_API_SECRET not set")
		}
	}
	return cfg
}

// TOTPLoginEnabled reports whether headless TOTP login is fully configured.
func (c *Config) TOTPLoginEnabled() bool {
	return c.KiteUserID != "" && c.KitePassword != "" && c.KiteTOTPSecret != ""
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
