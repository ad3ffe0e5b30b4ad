package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Auth      AuthConfig
	Stripe    StripeConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration
	Argon2Memory  uint32
	Argon2Time    uint32
	Argon2Threads uint8
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type EmailConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	SMTPFromName  string
	SMTPUseTLS    bool
	MailerSendKey string
	DevMode       bool // print emails to logs instead of sending
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func Load() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "tours"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "dev-only-secret-change-in-prod"),
			TokenTTL:      getDuration("JWT_TTL", 90*24*time.Hour),
			ResetTokenTTL: getDuration("RESET_TOKEN_TTL", 10*time.Minute),
			Argon2Memory:  uint32(getInt("ARGON2_MEMORY_KIB", 64*1024)),
			Argon2Time:    uint32(getInt("ARGON2_TIME", 1)),
			Argon2Threads: uint8(getInt("ARGON2_THREADS", 4)),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("STRIPE_CURRENCY", "usd"),
		},
		Email: EmailConfig{
			SMTPHost:      getEnv("SMTP_HOST", "localhost"),
			SMTPPort:      getInt("SMTP_PORT", 1025),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPass:      getEnv("SMTP_PASS", ""),
			SMTPFrom:      getEnv("SMTP_FROM", "noreply@tours.local"),
			SMTPFromName:  getEnv("SMTP_FROM_NAME", "Tours"),
			SMTPUseTLS:    getBool("SMTP_USE_TLS", false),
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			DevMode:       getBool("EMAIL_DEV_MODE", true),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("RATE_LIMIT_REQUESTS", 100),
			Window:   getDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
	}
}

// IsProduction reports whether error responses should suppress internal
// detail and cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
