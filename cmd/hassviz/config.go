package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all hassviz configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	AutomationsPath string `json:"automations_path"`
	ListenAddr      string `json:"listen_addr"`
	DBPath          string `json:"db_path"`
	LogLevel        string `json:"log_level"`
	ReloadCron      string `json:"reload_cron"`
	Panel           bool   `json:"panel"`
}

func defaultConfig() Config {
	return Config{
		AutomationsPath: "automations.yaml",
		ListenAddr:      ":4200",
		DBPath:          filepath.Join(hassvizDir(), "hassviz.db"),
		LogLevel:        "info",
		ReloadCron:      "*/5 * * * *",
		Panel:           true,
	}
}

func hassvizDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hassviz"
	}
	return filepath.Join(home, ".hassviz")
}

func settingsPath() string {
	return filepath.Join(hassvizDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("HASSVIZ_AUTOMATIONS"); v != "" {
		cfg.AutomationsPath = v
	}
	if v := os.Getenv("HASSVIZ_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("HASSVIZ_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("HASSVIZ_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HASSVIZ_RELOAD_CRON"); v != "" {
		cfg.ReloadCron = v
	}
	if v := os.Getenv("HASSVIZ_PANEL"); v != "" {
		cfg.Panel = v == "true" || v == "1"
	}

	return cfg
}
