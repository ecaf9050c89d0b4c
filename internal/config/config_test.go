package config

import (
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }

func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }

func (b *mapBackend) Delete(key string) error { delete(b.data, key); return nil }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("default port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Auth.Owner != "local" {
		t.Errorf("default owner = %q, want %q", cfg.Auth.Owner, "local")
	}
	if cfg.Auth.TokenTTL != "24h" {
		t.Errorf("default token ttl = %q, want %q", cfg.Auth.TokenTTL, "24h")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Storage.DataDir == "" {
		t.Error("default data dir is empty")
	}
}

func TestLoadAppliesBackendValues(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{data: map[string]any{
		"server.port":    9090,
		"auth.owner":     "pat",
		"auth.token_ttl": "1h",
	}}
	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.Owner != "pat" {
		t.Errorf("owner = %q, want %q", cfg.Auth.Owner, "pat")
	}
	if cfg.Auth.TokenTTL != "1h" {
		t.Errorf("token ttl = %q, want %q", cfg.Auth.TokenTTL, "1h")
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINUTE_SERVER_PORT", "7777")
	t.Setenv("MINUTE_AUTH_OWNER", "env-owner")

	b := &mapBackend{data: map[string]any{
		"server.port": 9090,
		"auth.owner":  "backend-owner",
	}}
	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Auth.Owner != "env-owner" {
		t.Errorf("owner = %q, want env override", cfg.Auth.Owner)
	}
}

func TestLoadRejectsInvalidTokenTTL(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{data: map[string]any{"auth.token_ttl": "soon"}}
	if _, err := loadWith(b); err == nil {
		t.Fatal("expected error for unparseable token ttl")
	}
}

func TestLoadRejectsEmptyOwner(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{data: map[string]any{"auth.owner": ""}}
	if _, err := loadWith(b); err == nil {
		t.Fatal("expected error for empty owner")
	}
}

func TestTokenTTLParsed(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{data: map[string]any{"auth.token_ttl": "90m"}}
	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if got := cfg.TokenTTL().Minutes(); got != 90 {
		t.Errorf("TokenTTL = %v minutes, want 90", got)
	}
}

func TestShowAllCoversEveryKey(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(specs) {
		t.Fatalf("ShowAll returned %d entries, want %d", len(infos), len(specs))
	}
	for _, info := range infos {
		if info.Value == "" && info.Key != "storage.data_dir" {
			t.Errorf("key %s has empty value", info.Key)
		}
		if !strings.HasPrefix(info.EnvVar, "MINUTE_") {
			t.Errorf("key %s has env var %q without MINUTE_ prefix", info.Key, info.EnvVar)
		}
	}
}

func TestSetKeyUnknown(t *testing.T) {
	if err := SetKey("no.such.key", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Fatalf("ValidKeys returned %d keys, want %d", len(keys), len(specs))
	}
	found := false
	for _, k := range keys {
		if k == "server.port" {
			found = true
		}
	}
	if !found {
		t.Error("ValidKeys missing server.port")
	}
}
