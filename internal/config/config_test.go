package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":              "test",
		"APP_PORT":             "8080",
		"DB_USER":              "booking",
		"DB_HOST":              "localhost",
		"DB_PORT":              "3306",
		"DB_NAME":              "booking",
		"JWT_SECRET":           "secret",
		"GOOGLE_CLIENT_ID":     "client",
		"GOOGLE_CLIENT_SECRET": "secret",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg := Load()
	if cfg.CalendarWindow != 6 {
		t.Errorf("CalendarWindow default: got %d", cfg.CalendarWindow)
	}
	if cfg.RemoteTimeout != 8*time.Second {
		t.Errorf("RemoteTimeout default: got %v", cfg.RemoteTimeout)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval should default to disabled: got %v", cfg.SyncInterval)
	}
	if cfg.FreeKeywords != nil {
		t.Errorf("FreeKeywords should default to nil (classifier built-ins): got %v", cfg.FreeKeywords)
	}
}

func TestLoadFreeKeywords(t *testing.T) {
	setRequiredEnv(t)
	// The list names events that announce availability; the classifier
	// treats everything else as blocking.
	t.Setenv("FREE_KEYWORDS", " libre , available ,,dispo ")
	cfg := Load()
	want := []string{"libre", "available", "dispo"}
	if len(cfg.FreeKeywords) != len(want) {
		t.Fatalf("got %v, want %v", cfg.FreeKeywords, want)
	}
	for i := range want {
		if cfg.FreeKeywords[i] != want[i] {
			t.Fatalf("got %v, want %v", cfg.FreeKeywords, want)
		}
	}
}

func TestLoadDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("SYNC_INTERVAL", "15m")
	t.Setenv("CALENDAR_WINDOW_MONTHS", "12")
	cfg := Load()
	if cfg.RemoteTimeout != 3*time.Second || cfg.SyncInterval != 15*time.Minute || cfg.CalendarWindow != 12 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
