package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GOOGLE_SHEET_ID", "sheet-1")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("WHATSAPP_VERIFY_TOKEN", "")
	t.Setenv("GRAPH_API_BASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.WhatsAppVerifyToken != "airstore_secure_token_123" {
		t.Errorf("WhatsAppVerifyToken = %q", cfg.WhatsAppVerifyToken)
	}
	if cfg.GraphAPIBaseURL != "https://graph.facebook.com/v19.0" {
		t.Errorf("GraphAPIBaseURL = %q", cfg.GraphAPIBaseURL)
	}
	if cfg.ScratchDir == "" {
		t.Error("ScratchDir is empty")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("RECORDS_DB_PATH", "/data/records.db")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("SCRATCH_DIR", "/var/scratch")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DBPath != "/data/records.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.GeminiModel != "gemini-2.5-pro" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.ScratchDir != "/var/scratch" {
		t.Errorf("ScratchDir = %q", cfg.ScratchDir)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_SHEET_ID", "sheet-1")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded without GEMINI_API_KEY")
	}

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GOOGLE_SHEET_ID", "")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded without GOOGLE_SHEET_ID")
	}
}
