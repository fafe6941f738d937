package config

import (
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "8080")
	t.Setenv("BACKEND_URL", "http://localhost:8080")
	t.Setenv("FRONTEND_URL", "http://localhost:3000")
	t.Setenv("DATABASE_URL", "")
	for _, key := range []string{
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
		"FACEBOOK_CLIENT_ID", "FACEBOOK_CLIENT_SECRET",
		"LINE_CLIENT_ID", "LINE_CLIENT_SECRET",
		"OKTA_CLIENT_ID", "OKTA_CLIENT_SECRET", "OKTA_ISSUER_URL",
		"AUTH0_CLIENT_ID", "AUTH0_CLIENT_SECRET", "AUTH0_DOMAIN", "AUTH0_AUDIENCE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAllowsAbsentProviders(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Google.Configured() {
		t.Fatal("expected Google to be unconfigured")
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.HTTPPort)
	}
}

func TestLoadEnumeratesAllMissingKeys(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BACKEND_URL", "")
	t.Setenv("FRONTEND_URL", "")
	t.Setenv("GOOGLE_CLIENT_ID", "google-id")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing keys")
	}
	for _, key := range []string{"BACKEND_URL", "FRONTEND_URL", "GOOGLE_CLIENT_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected error to mention %s, got %v", key, err)
		}
	}
}

func TestLoadRejectsPartialOktaConfig(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("OKTA_CLIENT_ID", "okta-id")
	t.Setenv("OKTA_CLIENT_SECRET", "okta-secret")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "OKTA_ISSUER_URL") {
		t.Fatalf("expected OKTA_ISSUER_URL to be reported, got %v", err)
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_STORE", "postgres")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL to be reported, got %v", err)
	}
}

func TestLoadTrimsTrailingSlashes(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BACKEND_URL", "http://api.example.com/")
	t.Setenv("FRONTEND_URL", "http://app.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.BackendURL != "http://api.example.com" || cfg.FrontendURL != "http://app.example.com" {
		t.Fatalf("expected trailing slashes trimmed, got %q %q", cfg.BackendURL, cfg.FrontendURL)
	}
}
