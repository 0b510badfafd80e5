package config

import (
	"fmt"
	"os"
)

// Config carries all process configuration, read once at startup and
// injected into each component at construction. Business logic never
// reads the environment directly.
type Config struct {
	Port   string
	DBPath string

	GeminiAPIKey string
	GeminiModel  string

	SpreadsheetID         string
	GoogleCredentialsFile string

	WhatsAppAccessToken string
	WhatsAppPhoneID     string
	WhatsAppVerifyToken string
	GraphAPIBaseURL     string

	ScratchDir string
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("RECORDS_DB_PATH", "records.db"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		SpreadsheetID:         os.Getenv("GOOGLE_SHEET_ID"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		WhatsAppAccessToken: os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		WhatsAppPhoneID:     os.Getenv("WHATSAPP_PHONE_ID"),
		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", "airstore_secure_token_123"),
		GraphAPIBaseURL:     getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com/v19.0"),

		ScratchDir: getEnv("SCRATCH_DIR", os.TempDir()),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing required env GEMINI_API_KEY")
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("missing required env GOOGLE_SHEET_ID")
	}

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
