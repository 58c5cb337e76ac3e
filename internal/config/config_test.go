package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_URL", "")
	t.Setenv("DATA_DIR", "")
	t.Setenv("DEFAULT_ROOM", "")

	cfg := Load()

	if cfg.ServerURL != "http://localhost:8000" {
		t.Errorf("unexpected default server url: %s", cfg.ServerURL)
	}
	if cfg.Room != "General" {
		t.Errorf("unexpected default room: %s", cfg.Room)
	}
	if cfg.DataDir == "" {
		t.Error("data dir default must not be empty")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_URL", "https://chat.example.com")
	t.Setenv("DATA_DIR", "/tmp/messager-test")
	t.Setenv("DEFAULT_ROOM", "Sweet Home")

	cfg := Load()

	if cfg.ServerURL != "https://chat.example.com" {
		t.Errorf("server url not read from env: %s", cfg.ServerURL)
	}
	if cfg.DataDir != "/tmp/messager-test" {
		t.Errorf("data dir not read from env: %s", cfg.DataDir)
	}
	if cfg.Room != "Sweet Home" {
		t.Errorf("room not read from env: %s", cfg.Room)
	}
}
