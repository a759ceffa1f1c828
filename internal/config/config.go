package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Venue    VenueConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	AllowedOrigins     []string
	RateLimitPerMinute int // 0 disables limiting of write routes
}

type DatabaseConfig struct {
	Driver         string // postgres, sqlite or memory
	PostgresDSN    string
	SQLitePath     string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	ConnectRetries int
	RetryDelay     time.Duration
	MigrationsDir  string
	AutoMigrate    bool
}

type RedisConfig struct {
	Addr     string // empty disables night locking
	Password string
	DB       int
	LockTTL  time.Duration
}

type VenueConfig struct {
	Timezone string
}

type LogConfig struct {
	Dir     string
	Level   string
	NoColor bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", ":8080"),
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT_SECONDS", 5*time.Second),
			AllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			PostgresDSN:    getEnv("POSTGRES_DSN", ""),
			SQLitePath:     getEnv("SQLITE_PATH", "file:headcount.db?cache=shared"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
			RetryDelay:     getEnvDuration("DB_RETRY_DELAY_SECONDS", 2*time.Second),
			MigrationsDir:  getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  getEnvDuration("NIGHT_LOCK_TTL_SECONDS", 10*time.Second),
		},
		Venue: VenueConfig{
			Timezone: getEnv("VENUE_TIMEZONE", "Local"),
		},
		Log: LogConfig{
			Dir:     getEnv("LOG_DIR", "logs"),
			Level:   getEnv("LOG_LEVEL", "INFO"),
			NoColor: getEnvBool("LOG_NO_COLOR", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
