package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort       string
	DatabaseURL      string
	AdminToken       string
	RedisAddr        string
	RedisPassword    string
	StateTTLHours    string
	LogLevel         string
	ScraperBaseURL   string
	ScraperCities    string
	StaleLettingDays string
}

// SimplifiedRateLimitConfig holds simplified rate limiting configuration
type SimplifiedRateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	PolitenessDelay   time.Duration `json:"politeness_delay"`
}

// DefaultRateLimitConfig returns default rate limiting configuration for politeness
func DefaultRateLimitConfig() *SimplifiedRateLimitConfig {
	return &SimplifiedRateLimitConfig{
		RequestsPerSecond: 2.0,                    // 2 requests per second for politeness
		PolitenessDelay:   500 * time.Millisecond, // Additional delay between requests
	}
}

// MinimumRequestDelay converts the politeness settings into the minimum gap
// between consecutive scraper requests.
func (c *SimplifiedRateLimitConfig) MinimumRequestDelay() time.Duration {
	if c.RequestsPerSecond <= 0 {
		return c.PolitenessDelay
	}
	return time.Duration(float64(time.Second)/c.RequestsPerSecond) + c.PolitenessDelay
}

// SimplifiedCacheConfig holds simplified cache configuration
type SimplifiedCacheConfig struct {
	DefaultTTL time.Duration `json:"default_ttl"`
	MaxSize    int           `json:"max_size"`
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *SimplifiedCacheConfig {
	return &SimplifiedCacheConfig{
		DefaultTTL: 5 * time.Minute, // Default 5 minute TTL
		MaxSize:    1000,            // Maximum 1000 items in memory
	}
}

// GetStateTTL returns the calculator state retention window from environment
// or the 24 hour default
func (c *Config) GetStateTTL() time.Duration {
	if c.StateTTLHours == "" {
		return 24 * time.Hour
	}

	hours, err := strconv.Atoi(c.StateTTLHours)
	if err != nil {
		logrus.Warnf("Invalid STATE_TTL_HOURS value: %s, using default 24 hours", c.StateTTLHours)
		return 24 * time.Hour
	}

	return time.Duration(hours) * time.Hour
}

// GetStaleLettingThreshold returns how long a listing can go unseen before
// the availability job marks it let
func (c *Config) GetStaleLettingThreshold() time.Duration {
	if c.StaleLettingDays == "" {
		return 14 * 24 * time.Hour
	}

	days, err := strconv.Atoi(c.StaleLettingDays)
	if err != nil || days <= 0 {
		logrus.Warnf("Invalid STALE_LETTING_DAYS value: %s, using default 14 days", c.StaleLettingDays)
		return 14 * 24 * time.Hour
	}

	return time.Duration(days) * 24 * time.Hour
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AdminToken:       getEnv("ADMIN_TOKEN", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		StateTTLHours:    getEnv("STATE_TTL_HOURS", "24"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ScraperBaseURL:   getEnv("SCRAPER_BASE_URL", "https://www.spareroom.co.uk"),
		ScraperCities:    getEnv("SCRAPER_CITIES", ""),
		StaleLettingDays: getEnv("STALE_LETTING_DAYS", "14"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
