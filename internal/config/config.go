// Package config loads client configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config carries everything the client needs to start.
type Config struct {
	// ServerURL is the messenger server base URL.
	ServerURL string
	// DataDir holds the durable store (session token, message cache).
	DataDir string
	// Room is the room selected at startup.
	Room string
}

// Load reads SERVER_URL, DATA_DIR and DEFAULT_ROOM from the environment,
// loading .env first if present. Missing values fall back to defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("failed to load .env file")
	}

	cfg := Config{
		ServerURL: os.Getenv("SERVER_URL"),
		DataDir:   os.Getenv("DATA_DIR"),
		Room:      os.Getenv("DEFAULT_ROOM"),
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8000"
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.DataDir = filepath.Join(home, ".config", "messager")
	}
	if cfg.Room == "" {
		cfg.Room = "General"
	}

	return cfg
}
