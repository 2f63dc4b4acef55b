package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	PharmacyName  string

	// Database
	DatabaseURL        string
	DBMaxConns         int
	DBMinConns         int
	DBMaxConnIdleTime  time.Duration
	DBConnectTimeout   time.Duration
	DBHealthCheckEvery time.Duration

	// Conversation context cache
	RedisAddr            string
	RedisPassword        string
	RedisTLS             bool
	ContextCache         string
	ContextCacheTTL      time.Duration
	ContextSweepSchedule string
	HistoryLimit         int

	// Language model
	LLMProvider         string
	LLMMaxTokens        int
	LLMTemperature      float64
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string

	// API edge
	APIJWTSecret       string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Telegram
	TelegramBotToken      string
	TelegramWebhookSecret string

	// WhatsApp via Twilio
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding values already present in the environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PharmacyName:  getEnv("PHARMACY_NAME", "our pharmacy"),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         getEnvAsInt("DB_MAX_CONNS", 20),
		DBMinConns:         getEnvAsInt("DB_MIN_CONNS", 2),
		DBMaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Second),
		DBConnectTimeout:   getEnvAsDuration("DB_CONNECT_TIMEOUT", 2*time.Second),
		DBHealthCheckEvery: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", time.Minute),

		RedisAddr:            getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),
		ContextCache:         strings.ToLower(strings.TrimSpace(getEnv("CONTEXT_CACHE", "memory"))),
		ContextCacheTTL:      getEnvAsDuration("CONTEXT_CACHE_TTL", time.Hour),
		ContextSweepSchedule: getEnv("CONTEXT_SWEEP_SCHEDULE", "@every 15m"),
		HistoryLimit:         getEnvAsInt("HISTORY_LIMIT", 10),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		LLMMaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 500),
		LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		APIJWTSecret:       getEnv("API_JWT_SECRET", ""),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),

		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppNumber: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
	}
}

// TelegramEnabled reports whether the Telegram channel has credentials.
func (c *Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.TelegramBotToken) != ""
}

// WhatsAppEnabled reports whether the WhatsApp channel has Twilio credentials.
func (c *Config) WhatsAppEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppNumber != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
