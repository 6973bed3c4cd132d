package config

import (
	"testing"
	"time"
)

func clearDeviceEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TVTIME_PORT", "TVTIME_DB_PATH", "TVTIME_LOG_LEVEL", "TVTIME_LOG_FORMAT",
		"TVTIME_REMOTE_URL", "TVTIME_REMOTE_TIMEOUT", "TVTIME_RECONNECT_INTERVAL",
		"TVTIME_POLL_INTERVAL", "TVTIME_SETTLE_DELAY", "TVTIME_DAILY_BONUS",
		"TVTIME_MAX_BONUS_DAYS", "TVTIME_TIMEZONE", "TVTIME_S3_BUCKET", "TVTIME_S3_REGION",
		"TVTIME_BACKUP_KEEP",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearDeviceEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "tvtime.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "tvtime.db")
	}
	if cfg.RemoteURL != "" {
		t.Errorf("RemoteURL = %q, want empty", cfg.RemoteURL)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, time.Minute)
	}
	if cfg.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v, want %v", cfg.SettleDelay, 2*time.Second)
	}
	if cfg.DailyBonus != 30 {
		t.Errorf("DailyBonus = %d, want %d", cfg.DailyBonus, 30)
	}
	if cfg.MaxBonusDays != 365 {
		t.Errorf("MaxBonusDays = %d, want %d", cfg.MaxBonusDays, 365)
	}
	if cfg.ReconnectInterval != 30*time.Second {
		t.Errorf("ReconnectInterval = %v, want %v", cfg.ReconnectInterval, 30*time.Second)
	}
	if cfg.RemoteTimeout != 10*time.Second {
		t.Errorf("RemoteTimeout = %v, want %v", cfg.RemoteTimeout, 10*time.Second)
	}
	if cfg.Location != time.Local {
		t.Errorf("Location = %v, want Local", cfg.Location)
	}
	if cfg.Backup.Region != "us-east-1" || cfg.Backup.Keep != 14 || cfg.Backup.Bucket != "" {
		t.Errorf("Backup = %+v", cfg.Backup)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearDeviceEnv(t)
	t.Setenv("TVTIME_PORT", "9000")
	t.Setenv("TVTIME_REMOTE_URL", "http://docs.local:8090")
	t.Setenv("TVTIME_DAILY_BONUS", "45")
	t.Setenv("TVTIME_SETTLE_DELAY", "500ms")
	t.Setenv("TVTIME_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9000")
	}
	if cfg.RemoteURL != "http://docs.local:8090" {
		t.Errorf("RemoteURL = %q", cfg.RemoteURL)
	}
	if cfg.DailyBonus != 45 {
		t.Errorf("DailyBonus = %d, want 45", cfg.DailyBonus)
	}
	if cfg.SettleDelay != 500*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 500ms", cfg.SettleDelay)
	}
	if cfg.Location.String() != "UTC" {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearDeviceEnv(t)
	t.Setenv("TVTIME_DAILY_BONUS", "lots")
	t.Setenv("TVTIME_POLL_INTERVAL", "often")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.DailyBonus != 30 {
		t.Errorf("DailyBonus = %d, want default 30", cfg.DailyBonus)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want default 1m", cfg.PollInterval)
	}
}

func TestLoad_UnknownTimezone(t *testing.T) {
	clearDeviceEnv(t)
	t.Setenv("TVTIME_TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestLoadDocServer(t *testing.T) {
	t.Setenv("DOCSERVER_PORT", "")
	t.Setenv("DOCSERVER_DB_PATH", "")
	t.Setenv("DOCSERVER_RATE_LIMIT", "2.5")
	t.Setenv("DOCSERVER_RATE_BURST", "")

	cfg := LoadDocServer()
	if cfg.Port != "8090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8090")
	}
	if cfg.DBPath != "docserver.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "docserver.db")
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.RateLimit)
	}
	if cfg.RateBurst != 20 {
		t.Errorf("RateBurst = %d, want 20", cfg.RateBurst)
	}
}
