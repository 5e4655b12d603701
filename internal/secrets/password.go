package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"warm-outreach/internal/config"
)

const (
	// “Service” groups the app's secrets in the OS keychain.
	KeyringService = "warm-outreach"
)

// GetSMTPPassword looks in the keyring first, then OUTREACH_SMTP_PASSWORD.
func GetSMTPPassword(keyringAccount string) (string, error) {
	// 1) Keyring first (recommended)
	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}

	// 2) Env fallback
	if pw := os.Getenv(config.EnvSMTPPassword); strings.TrimSpace(pw) != "" {
		return pw, nil
	}

	return "", errors.New("SMTP password not found (set it in keychain or via " + config.EnvSMTPPassword + ")")
}

func SetSMTPPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeleteSMTPPassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

func SMTPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"outreach:smtp:%s@%s",
		cfg.SMTP.Username,
		cfg.SMTP.Host,
	)
}

// IMAPKeyringAccount is the archive mailbox login. It defaults to the SMTP
// credentials, which is what most providers expect.
func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"outreach:imap:%s@%s",
		cfg.SMTP.Username,
		cfg.Archive.IMAPHost,
	)
}

// GetIMAPPassword falls back to the SMTP password when no separate archive
// password is stored.
func GetIMAPPassword(cfg config.Config) (string, error) {
	if pw, err := keyring.Get(KeyringService, IMAPKeyringAccount(cfg)); err == nil && strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	return GetSMTPPassword(SMTPKeyringAccount(cfg))
}
