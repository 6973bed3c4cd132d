// Package config reads process configuration from the environment once at
// start. Values are treated as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the family device settings.
type Config struct {
	// Server
	Port string

	// Storage
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Remote document
	RemoteURL         string
	RemoteTimeout     time.Duration
	ReconnectInterval time.Duration

	// Bonus
	PollInterval time.Duration
	SettleDelay  time.Duration
	DailyBonus   int
	MaxBonusDays int
	Location     *time.Location

	Backup Backup
}

// Backup holds the S3-compatible storage used by "tvtime backup".
type Backup struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Keep       int
}

// Load reads the device configuration. An unknown TVTIME_TIMEZONE is an
// error; everything else falls back to its default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvString("TVTIME_PORT", "8080"),
		DBPath:            getEnvString("TVTIME_DB_PATH", "tvtime.db"),
		LogLevel:          getEnvString("TVTIME_LOG_LEVEL", "info"),
		LogFormat:         getEnvString("TVTIME_LOG_FORMAT", "text"),
		RemoteURL:         getEnvString("TVTIME_REMOTE_URL", ""),
		RemoteTimeout:     getEnvDuration("TVTIME_REMOTE_TIMEOUT", 10*time.Second),
		ReconnectInterval: getEnvDuration("TVTIME_RECONNECT_INTERVAL", 30*time.Second),
		PollInterval:      getEnvDuration("TVTIME_POLL_INTERVAL", time.Minute),
		SettleDelay:       getEnvDuration("TVTIME_SETTLE_DELAY", 2*time.Second),
		DailyBonus:        getEnvInt("TVTIME_DAILY_BONUS", 30),
		MaxBonusDays:      getEnvInt("TVTIME_MAX_BONUS_DAYS", 365),
		Location:          time.Local,
		Backup: Backup{
			Endpoint:   getEnvString("TVTIME_S3_ENDPOINT", ""),
			Bucket:     getEnvString("TVTIME_S3_BUCKET", ""),
			Region:     getEnvString("TVTIME_S3_REGION", "us-east-1"),
			AccessKey:  getEnvString("TVTIME_S3_ACCESS_KEY", ""),
			SecretKey:  getEnvString("TVTIME_S3_SECRET_KEY", ""),
			Passphrase: getEnvString("TVTIME_BACKUP_PASSPHRASE", ""),
			Keep:       getEnvInt("TVTIME_BACKUP_KEEP", 14),
		},
	}

	if tz := os.Getenv("TVTIME_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

// DocServer holds the remote document service settings.
type DocServer struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	// Per-IP write limit
	RateLimit float64
	RateBurst int
}

func LoadDocServer() *DocServer {
	return &DocServer{
		Port:      getEnvString("DOCSERVER_PORT", "8090"),
		DBPath:    getEnvString("DOCSERVER_DB_PATH", "docserver.db"),
		LogLevel:  getEnvString("DOCSERVER_LOG_LEVEL", "info"),
		LogFormat: getEnvString("DOCSERVER_LOG_FORMAT", "text"),
		RateLimit: getEnvFloat("DOCSERVER_RATE_LIMIT", 5),
		RateBurst: getEnvInt("DOCSERVER_RATE_BURST", 20),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
