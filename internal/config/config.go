package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all runtime settings. Values come from the environment with
// an optional .env file loaded first; a missing .env is not an error.
type Config struct {
	// TrueLayer sandbox credentials. Empty client ID disables the live
	// source and the adapter falls straight through to mock data.
	TrueLayerClientID     string
	TrueLayerClientSecret string
	TrueLayerRedirectURI  string
	AuthBaseURL           string
	APIBaseURL            string
	DebugPayloads         bool

	// Pipeline inputs and outputs.
	FixtureCSVPath string
	ExportDir      string
	FetchTimeout   time.Duration

	// Consent bookkeeping.
	ConsentTTLDays int

	// Retention sweeper.
	RetentionDays          int
	RetentionSweepInterval time.Duration

	// Servers.
	ListenAddr  string
	CORSOrigins []string
	LogLevel    string
}

const (
	defaultAuthBaseURL   = "https://auth.truelayer-sandbox.com"
	defaultAPIBaseURL    = "https://api.truelayer-sandbox.com"
	defaultRedirectURI   = "https://console.truelayer.com/redirect-page"
	defaultFixturePath   = "test.csv"
	defaultExportDir     = "."
	defaultFetchTimeout  = 30 * time.Second
	defaultConsentTTL    = 90
	defaultRetentionDays = 30
	defaultSweepInterval = 24 * time.Hour
	defaultListenAddr    = ":8080"
	defaultCORSOrigins   = "http://localhost:3000,http://127.0.0.1:3000"
)

// Load reads configuration from the environment. Parse failures on numeric
// or duration values fall back to defaults with a warning rather than
// aborting startup.
func Load(log zerolog.Logger) *Config {
	// Best effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		TrueLayerClientID:     os.Getenv("TRUELAYER_CLIENT_ID"),
		TrueLayerClientSecret: os.Getenv("TRUELAYER_CLIENT_SECRET"),
		TrueLayerRedirectURI:  getEnv("TRUELAYER_REDIRECT_URI", defaultRedirectURI),
		AuthBaseURL:           getEnv("TRUELAYER_AUTH_BASE_URL", defaultAuthBaseURL),
		APIBaseURL:            getEnv("TRUELAYER_API_BASE_URL", defaultAPIBaseURL),
		DebugPayloads:         getEnvBool("TRUELAYER_DEBUG_PAYLOADS"),
		FixtureCSVPath:        getEnv("FIXTURE_CSV_PATH", defaultFixturePath),
		ExportDir:             getEnv("EXPORT_DIR", defaultExportDir),
		FetchTimeout:          getEnvDuration(log, "FETCH_TIMEOUT", defaultFetchTimeout),
		ConsentTTLDays:        getEnvInt(log, "CONSENT_TTL_DAYS", defaultConsentTTL),
		RetentionDays:         getEnvInt(log, "RETENTION_DAYS", defaultRetentionDays),
		RetentionSweepInterval: getEnvDuration(
			log, "RETENTION_SWEEP_INTERVAL", defaultSweepInterval),
		ListenAddr:  getEnv("LISTEN_ADDR", defaultListenAddr),
		CORSOrigins: getEnvList("CORS_ORIGINS", defaultCORSOrigins),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	}
	return false
}

func getEnvInt(log zerolog.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Int("fallback", fallback).
			Msg("Invalid integer env value, using fallback")
		return fallback
	}
	return n
}

func getEnvDuration(log zerolog.Logger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Dur("fallback", fallback).
			Msg("Invalid duration env value, using fallback")
		return fallback
	}
	return d
}
