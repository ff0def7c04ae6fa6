package params

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Node.HTTPAddr == "" || cfg.Ledger.DBPath == "" || cfg.Node.GenesisPath == "" {
		t.Fatalf("default config has empty fields: %+v", cfg)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("LEDGER_DB_PATH", "/tmp/custom.db")
	t.Setenv("NODE_HTTP_ADDR", ":9999")

	cfg := LoadFromEnv("")
	if cfg.Ledger.DBPath != "/tmp/custom.db" {
		t.Fatalf("expected LEDGER_DB_PATH override, got %s", cfg.Ledger.DBPath)
	}
	if cfg.Node.HTTPAddr != ":9999" {
		t.Fatalf("expected NODE_HTTP_ADDR override, got %s", cfg.Node.HTTPAddr)
	}
}
