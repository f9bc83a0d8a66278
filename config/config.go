package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DebugMode enables verbose frame logging. Resolved by Load so a DEBUG
// entry in .env works the same as one in the environment.
var DebugMode bool

type Config struct {
	// Websocket endpoint, defaults to the production exchange.
	Endpoint string

	// API credentials; empty key disables the private channels.
	Key        string
	Secret     string
	Subaccount string

	// Depth limit served to callers asking for book snapshots.
	SnapshotDepthLimit int

	MetricsAddr string
}

const defaultEndpoint = "wss://ftx.com/ws"

// Load reads the configuration from the environment, .env included.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to load .env: %s", err)
	}

	DebugMode = os.Getenv("DEBUG") == "true"

	return &Config{
		Endpoint:           envOr("FTX_WS_ENDPOINT", defaultEndpoint),
		Key:                os.Getenv("FTX_API_KEY"),
		Secret:             os.Getenv("FTX_API_SECRET"),
		Subaccount:         os.Getenv("FTX_SUBACCOUNT"),
		SnapshotDepthLimit: envIntOr("SNAPSHOT_DEPTH_LIMIT", 100),
		MetricsAddr:        envOr("METRICS_ADDR", ":8080"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}

	return n
}
