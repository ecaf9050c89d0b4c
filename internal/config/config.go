package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Auth    AuthConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type AuthConfig struct {
	// Owner is the identity the CLI and the MCP surface act as. The
	// server itself trusts whatever owner a valid token carries.
	Owner string
	// TokenTTL is the lifetime of CLI-minted bearer tokens, in
	// time.ParseDuration form.
	TokenTTL string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Auth: AuthConfig{
			Owner:    "local",
			TokenTTL: "24h",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend and
// environment variables.
//
// On macOS the backend is UserDefaults (domain: com.minute.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/minute/config.json.
//
// Environment variables (MINUTE_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Auth.Owner == "" {
		return Config{}, fmt.Errorf("auth.owner must not be empty")
	}
	if _, err := time.ParseDuration(cfg.Auth.TokenTTL); err != nil {
		return Config{}, fmt.Errorf("invalid auth.token_ttl %q: %w", cfg.Auth.TokenTTL, err)
	}

	return cfg, nil
}

// TokenTTL returns the parsed token lifetime. Load has already validated
// the string form, so a parse failure here falls back to the default.
func (c Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
