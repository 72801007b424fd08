package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string // dev|prod

	Log      string
	LogLevel string
	LogDir   string

	JWTSecret      string
	AccessTokenTTL string

	// Хранилище: memory|file|sqlite|postgres|redis
	StorageDriver string
	StorageDir    string
	SQLitePath    string

	DbHost    string
	DbPort    string
	DbUser    string
	DbPass    string
	DbName    string
	DbSSLMode string

	RedisAddr     string
	RedisPassword string
	RedisDB       string
	RedisPrefix   string

	RabbitMQURL string

	SimulatedLatency string
	FlushDelay       string
	DemoResetCron    string

	CorsAllowedOrigins []string
	RateLimitRPM       string
	RateLimitBurst     string
}

// LoadConfig загружает .env, читает переменные окружения и выставляет дефолты.
// Ничего не логирует: пакет не зависит от logger.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port: def(os.Getenv("PORT"), "8080"),
		Env:  strings.ToLower(def(os.Getenv("ENV"), "prod")),

		Log:      os.Getenv("LOG"),
		LogLevel: strings.ToLower(def(os.Getenv("LOGLEVEL"), "info")),
		LogDir:   def(os.Getenv("LOG_DIR"), "logs"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: def(os.Getenv("ACCESS_TOKEN_TTL"), "24h"),

		StorageDriver: strings.ToLower(def(os.Getenv("STORAGE_DRIVER"), "file")),
		StorageDir:    def(os.Getenv("STORAGE_DIR"), "data"),
		SQLitePath:    def(os.Getenv("SQLITE_PATH"), "data/blogify.db"),

		DbHost:    os.Getenv("DB_HOST"),
		DbPort:    def(os.Getenv("DB_PORT"), "5432"),
		DbUser:    os.Getenv("DB_USER"),
		DbPass:    os.Getenv("DB_PASSWORD"),
		DbName:    os.Getenv("DB_NAME"),
		DbSSLMode: def(os.Getenv("DB_SSLMODE"), "disable"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       def(os.Getenv("REDIS_DB"), "0"),
		RedisPrefix:   def(os.Getenv("REDIS_PREFIX"), "blogify:"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		SimulatedLatency: def(os.Getenv("SIMULATED_LATENCY"), "200ms"),
		FlushDelay:       def(os.Getenv("FLUSH_DELAY"), "100ms"),
		DemoResetCron:    os.Getenv("DEMO_RESET_CRON"),

		CorsAllowedOrigins: splitCSV(def(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		RateLimitRPM:       def(os.Getenv("RATE_LIMIT_RPM"), "120"),
		RateLimitBurst:     def(os.Getenv("RATE_LIMIT_BURST"), "30"),
	}

	return cfg, nil
}

// Validate возвращает предупреждения и фатальную ошибку (если критично).
func (c *Config) Validate() (warnings []string, err error) {
	switch c.StorageDriver {
	case "memory", "file", "sqlite":
	case "postgres":
		if c.DbHost == "" || c.DbUser == "" || c.DbName == "" {
			return nil, fmt.Errorf("incomplete DB config (DB_HOST/DB_USER/DB_NAME)")
		}
	case "redis":
		if c.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required for STORAGE_DRIVER=redis")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	for name, v := range map[string]string{
		"SIMULATED_LATENCY": c.SimulatedLatency,
		"FLUSH_DELAY":       c.FlushDelay,
		"ACCESS_TOKEN_TTL":  c.AccessTokenTTL,
	} {
		if _, perr := time.ParseDuration(v); perr != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, v, perr)
		}
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		warnings = append(warnings, "JWT_SECRET is empty")
	}
	if c.StorageDriver == "memory" {
		warnings = append(warnings, "STORAGE_DRIVER=memory: posts are lost on restart")
	}
	if c.RabbitMQURL == "" {
		warnings = append(warnings, "RABBITMQ_URL is not set, post events are not published")
	}

	return warnings, nil
}

// Latency: искусственная задержка каждой операции репозитория.
func (c *Config) Latency() time.Duration { return mustDuration(c.SimulatedLatency) }

func (c *Config) FlushDelayDuration() time.Duration { return mustDuration(c.FlushDelay) }

func (c *Config) TokenTTL() time.Duration {
	d := mustDuration(c.AccessTokenTTL)
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func (c *Config) RedisDBIndex() int {
	n, err := strconv.Atoi(c.RedisDB)
	if err != nil {
		return 0
	}
	return n
}

func (c *Config) RateLimit() (rpm, burst int) {
	rpm, err := strconv.Atoi(c.RateLimitRPM)
	if err != nil || rpm <= 0 {
		rpm = 120
	}
	burst, err = strconv.Atoi(c.RateLimitBurst)
	if err != nil || burst <= 0 {
		burst = 30
	}
	return rpm, burst
}

// GetDSN: полная DSN (с паролем)
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbPass, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

// GetDSNSafe: DSN без пароля (для логов)
func (c *Config) GetDSNSafe() string {
	return fmt.Sprintf(
		"postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

func def(v, d string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return d
	}
	return v
}

func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
