package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// OAuthClient holds the credentials for one external identity provider.
// IssuerURL is used by Okta, Domain and Audience by Auth0.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	IssuerURL    string
	Domain       string
	Audience     string
}

// Configured reports whether any credential for the provider was supplied.
func (c OAuthClient) Configured() bool {
	return c.ClientID != "" || c.ClientSecret != "" || c.IssuerURL != "" || c.Domain != ""
}

// Config aggregates runtime configuration for the noughts API.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	AllowedOrigins []string
	BackendURL     string
	FrontendURL    string

	Google   OAuthClient
	Facebook OAuthClient
	Line     OAuthClient
	Okta     OAuthClient
	Auth0    OAuthClient
}

// Load reads configuration from the environment (and an optional .env file)
// once at process start. Missing required keys are collected and reported in a
// single error so a misconfigured deployment fails fast with the full list.
func Load() (Config, error) {
	_ = godotenv.Load()

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/noughts_database_url")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:    getEnv("APP_ENV", "development"),
		DatabaseURL:    databaseURL,
		DataStore:      strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		BackendURL:     strings.TrimSuffix(os.Getenv("BACKEND_URL"), "/"),
		FrontendURL:    strings.TrimSuffix(os.Getenv("FRONTEND_URL"), "/"),

		Google: OAuthClient{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		Facebook: OAuthClient{
			ClientID:     os.Getenv("FACEBOOK_CLIENT_ID"),
			ClientSecret: os.Getenv("FACEBOOK_CLIENT_SECRET"),
		},
		Line: OAuthClient{
			ClientID:     os.Getenv("LINE_CLIENT_ID"),
			ClientSecret: os.Getenv("LINE_CLIENT_SECRET"),
		},
		Okta: OAuthClient{
			ClientID:     os.Getenv("OKTA_CLIENT_ID"),
			ClientSecret: os.Getenv("OKTA_CLIENT_SECRET"),
			IssuerURL:    strings.TrimSuffix(os.Getenv("OKTA_ISSUER_URL"), "/"),
		},
		Auth0: OAuthClient{
			ClientID:     os.Getenv("AUTH0_CLIENT_ID"),
			ClientSecret: os.Getenv("AUTH0_CLIENT_SECRET"),
			Domain:       os.Getenv("AUTH0_DOMAIN"),
			Audience:     os.Getenv("AUTH0_AUDIENCE"),
		},
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if missing := cfg.missingKeys(); len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// missingKeys enumerates every required key that is absent. BACKEND_URL and
// FRONTEND_URL are always required; provider credentials are required only
// when the provider is partially configured, so an entirely absent provider
// is simply disabled.
func (c Config) missingKeys() []string {
	var missing []string

	if c.BackendURL == "" {
		missing = append(missing, "BACKEND_URL")
	}
	if c.FrontendURL == "" {
		missing = append(missing, "FRONTEND_URL")
	}
	if c.DataStore == "postgres" && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	missing = append(missing, requireClientKeys(c.Google, "GOOGLE")...)
	missing = append(missing, requireClientKeys(c.Facebook, "FACEBOOK")...)
	missing = append(missing, requireClientKeys(c.Line, "LINE")...)

	if c.Okta.Configured() {
		missing = append(missing, requireClientKeys(c.Okta, "OKTA")...)
		if c.Okta.IssuerURL == "" {
			missing = append(missing, "OKTA_ISSUER_URL")
		}
	}
	if c.Auth0.Configured() {
		missing = append(missing, requireClientKeys(c.Auth0, "AUTH0")...)
		if c.Auth0.Domain == "" {
			missing = append(missing, "AUTH0_DOMAIN")
		}
	}

	return missing
}

func requireClientKeys(client OAuthClient, prefix string) []string {
	if !client.Configured() {
		return nil
	}
	var missing []string
	if client.ClientID == "" {
		missing = append(missing, prefix+"_CLIENT_ID")
	}
	if client.ClientSecret == "" {
		missing = append(missing, prefix+"_CLIENT_SECRET")
	}
	return missing
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repositories should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
