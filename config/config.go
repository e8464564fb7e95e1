package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/conreg/backend/pkg/database"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Stripe   StripeConfig
	Email    EmailConfig
	CheckIn  CheckInConfig
	Refunds  RefundConfig
	Avatars  AvatarConfig
}

// StripeConfig for card charges and refunds.
type StripeConfig struct {
	SecretKey string
	BaseURL   string // override for tests / mock servers
	Currency  string
}

// EmailConfig for outgoing notification mail.
type EmailConfig struct {
	FromAddress       string
	FromName          string
	RegistrationGroup []string // registration staff mailbox
	BoardGroup        []string
	Treasurer         []string // refund settlement reports
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/conreg?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Pool sizing; every check-in terminal holds a connection during a rush.
	MaxConns        int
	MinConns        int
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the avatar bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AvatarsBucket        string
	PresignExpireMinutes int
}

// CheckInConfig holds the on-site check-in desk settings.
type CheckInConfig struct {
	LineQueue        string // line wrangler -> check-in desk
	BadgeQueue       string // check-in desk -> badge puller
	LineListSize     int
	BadgeListSize    int
	VisibilityWindow time.Duration
	TerminalTTL      time.Duration
	AutoRequestBadge bool
	SearchLimit      int
	LookupFailures   int           // confirmation page misses allowed per ip
	LookupWindow     time.Duration // window for LookupFailures
}

// RefundConfig drives the refund settlement job.
type RefundConfig struct {
	SettleAfter  time.Duration
	WarnWithin   time.Duration
	PollInterval time.Duration
}

// AvatarConfig drives temporary avatar cleanup.
type AvatarConfig struct {
	TempTTL         time.Duration
	CleanupInterval time.Duration
}

// PoolOptions returns the pgx pool sizing.
func (c DatabaseConfig) PoolOptions() database.PoolOptions {
	return database.PoolOptions{
		MaxConns:        int32(c.MaxConns),
		MinConns:        int32(c.MinConns),
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/conreg?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "conreg"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxConns:        getEnvInt("DB_MAX_CONNS", 20),
			MinConns:        getEnvInt("DB_MIN_CONNS", 2),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AvatarsBucket:        getEnv("AWS_S3_AVATARS_BUCKET", "conreg-avatars"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			BaseURL:   getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
			Currency:  getEnv("STRIPE_CURRENCY", "usd"),
		},
		Email: EmailConfig{
			FromAddress:       getEnv("EMAIL_FROM_ADDRESS", "registration@example.com"),
			FromName:          getEnv("EMAIL_FROM_NAME", "Convention Registration"),
			RegistrationGroup: splitTrim(getEnv("EMAIL_REGISTRATION_GROUP", ""), ","),
			BoardGroup:        splitTrim(getEnv("EMAIL_BOARD_GROUP", ""), ","),
			Treasurer:         splitTrim(getEnv("EMAIL_TREASURER", ""), ","),
		},
		CheckIn: CheckInConfig{
			LineQueue:        getEnv("CHECKIN_LINE_QUEUE", "regline"),
			BadgeQueue:       getEnv("CHECKIN_BADGE_QUEUE", "readybadge"),
			LineListSize:     getEnvInt("CHECKIN_LINE_LIST_SIZE", 5),
			BadgeListSize:    getEnvInt("CHECKIN_BADGE_LIST_SIZE", 10),
			VisibilityWindow: getEnvDuration("CHECKIN_VISIBILITY_WINDOW", 5*time.Minute),
			TerminalTTL:      getEnvDuration("CHECKIN_TERMINAL_TTL", 4*24*time.Hour),
			AutoRequestBadge: getEnv("CHECKIN_AUTO_REQUEST_BADGE", "true") == "true",
			SearchLimit:      getEnvInt("CHECKIN_SEARCH_LIMIT", 20),
			LookupFailures:   getEnvInt("CONFIRMATION_LOOKUP_FAILURES", 5),
			LookupWindow:     getEnvDuration("CONFIRMATION_LOOKUP_WINDOW", 30*time.Minute),
		},
		Refunds: RefundConfig{
			SettleAfter:  getEnvDuration("REFUND_SETTLE_AFTER", 72*time.Hour),
			WarnWithin:   getEnvDuration("REFUND_WARN_WITHIN", 24*time.Hour),
			PollInterval: getEnvDuration("REFUND_POLL_INTERVAL", time.Hour),
		},
		Avatars: AvatarConfig{
			TempTTL:         getEnvDuration("AVATAR_TEMP_TTL", 24*time.Hour),
			CleanupInterval: getEnvDuration("AVATAR_CLEANUP_INTERVAL", time.Hour),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "72h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
