package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	secretService = "minute"
	secretAccount = "auth_secret"
	secretBytes   = 32
)

// AuthSecret returns the HS256 signing secret shared by the server and
// the CLI. The first call generates a random secret and persists it in
// the platform secret store (macOS Keychain, or a secrets file under
// $XDG_DATA_HOME on other platforms). The environment variable
// MINUTE_AUTH_SECRET overrides the stored value.
func AuthSecret() ([]byte, error) {
	if v := os.Getenv("MINUTE_AUTH_SECRET"); v != "" {
		return []byte(v), nil
	}

	if data, err := keychainGet(secretService, secretAccount); err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return []byte(s), nil
		}
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating auth secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := keychainSet(secretService, secretAccount, secret); err != nil {
		return nil, fmt.Errorf("storing auth secret: %w", err)
	}
	return []byte(secret), nil
}
