package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvDataDir      = "OUTREACH_DATA_DIR"
	EnvStorePath    = "OUTREACH_STORE_PATH"
	EnvBaseURL      = "OUTREACH_BASE_URL"
	EnvSMTPHost     = "OUTREACH_SMTP_HOST"
	EnvSMTPPort     = "OUTREACH_SMTP_PORT"
	EnvSMTPUsername = "OUTREACH_SMTP_USERNAME"
	EnvSMTPPassword = "OUTREACH_SMTP_PASSWORD"
	EnvLedgerDSN    = "OUTREACH_LEDGER_DSN"
)

// LoadDotEnv reads a .env file into the process environment if one exists.
// Variables already set win.
func LoadDotEnv(paths ...string) {
	// ignore error if not found
	_ = godotenv.Load(paths...)
}

// OverlayEnv applies OUTREACH_* variables on top of the YAML values.
func OverlayEnv(cfg *Config) {
	cfg.Store.Path = getEnv(EnvStorePath, cfg.Store.Path)
	cfg.App.BaseURL = getEnv(EnvBaseURL, cfg.App.BaseURL)
	cfg.SMTP.Host = getEnv(EnvSMTPHost, cfg.SMTP.Host)
	cfg.SMTP.Username = getEnv(EnvSMTPUsername, cfg.SMTP.Username)
	if p, err := strconv.Atoi(getEnv(EnvSMTPPort, "")); err == nil {
		cfg.SMTP.Port = p
	}
	if dsn := getEnv(EnvLedgerDSN, ""); dsn != "" {
		cfg.Ledger.Driver = "postgres"
		cfg.Ledger.DSN = dsn
	}
}

// KeepFileOwned resets the fields of cfg that an API caller must not write
// to disk: the ledger DSN and whatever an OUTREACH_* variable currently
// supplies. file is the config as read from disk, before OverlayEnv.
func KeepFileOwned(cfg *Config, file Config) {
	cfg.App.DataDir = file.App.DataDir
	cfg.Ledger.DSN = file.Ledger.DSN

	if getEnv(EnvStorePath, "") != "" {
		cfg.Store.Path = file.Store.Path
	}
	if getEnv(EnvBaseURL, "") != "" {
		cfg.App.BaseURL = file.App.BaseURL
	}
	if getEnv(EnvSMTPHost, "") != "" {
		cfg.SMTP.Host = file.SMTP.Host
	}
	if getEnv(EnvSMTPUsername, "") != "" {
		cfg.SMTP.Username = file.SMTP.Username
	}
	if _, err := strconv.Atoi(getEnv(EnvSMTPPort, "")); err == nil {
		cfg.SMTP.Port = file.SMTP.Port
	}
	if getEnv(EnvLedgerDSN, "") != "" {
		cfg.Ledger.Driver = file.Ledger.Driver
	}
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
