package params

import (
	"os"

	"github.com/joho/godotenv"
)

// Ledger holds the genesis-time parameters of the asset/dex services
// that aren't part of the genesis document itself: where the embedded
// store lives on disk.
type Ledger struct {
	DBPath string
}

// Node holds the single process's externally-facing settings: the HTTP
// address the API server binds, and the path to the genesis document it
// loads on first run.
type Node struct {
	HTTPAddr   string
	GenesisPath string
}

type Config struct {
	Ledger Ledger
	Node   Node
}

func Default() Config {
	return Config{
		Ledger: Ledger{
			DBPath: "./data/dexledger.db",
		},
		Node: Node{
			HTTPAddr:    ":8080",
			GenesisPath: "./genesis.json",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Ledger.DBPath = getEnv("LEDGER_DB_PATH", cfg.Ledger.DBPath)
	cfg.Node.HTTPAddr = getEnv("NODE_HTTP_ADDR", cfg.Node.HTTPAddr)
	cfg.Node.GenesisPath = getEnv("NODE_GENESIS_PATH", cfg.Node.GenesisPath)

	return cfg
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
