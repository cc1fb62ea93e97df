package config

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	path := writeConfig(t, "output: plain\nlisten: \":9000\"\nrpc_url: https://file.example\n")

	t.Setenv("WALLETD_OUTPUT", "json")
	t.Setenv("BASE_RPC_URL", "https://env.example")

	settings, err := Load(GlobalFlags{ConfigPath: path, Plain: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.RPCURL != "https://env.example" {
		t.Fatalf("expected env to beat file, got rpc_url=%s", settings.RPCURL)
	}
	if settings.Listen != ":9000" {
		t.Fatalf("expected file to beat default, got listen=%s", settings.Listen)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Env != EnvDevelopment {
		t.Errorf("Env = %q, want development", settings.Env)
	}
	if settings.Listen != ":8787" {
		t.Errorf("Listen = %q", settings.Listen)
	}
	if settings.DBPath != "" {
		t.Errorf("DBPath = %q, want empty (memory store)", settings.DBPath)
	}
	if settings.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v", settings.HTTPTimeout)
	}
}

func TestLoadDenylistFromFile(t *testing.T) {
	path := writeConfig(t, `
denylist:
  - address: "0x1111111111111111111111111111111111111111"
    reason: "known drainer"
`)
	settings, err := Load(GlobalFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(settings.Denylist) != 1 {
		t.Fatalf("denylist = %+v, want one entry", settings.Denylist)
	}
	if settings.Denylist[0].Reason != "known drainer" {
		t.Errorf("reason = %q", settings.Denylist[0].Reason)
	}
}

func TestEnableIntentsLayers(t *testing.T) {
	path := writeConfig(t, "enable_intents:\n  - quote\n")

	settings, err := Load(GlobalFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(settings.EnableIntents) != 1 || settings.EnableIntents[0] != "quote" {
		t.Fatalf("file layer = %v", settings.EnableIntents)
	}

	t.Setenv("WALLETD_ENABLE_INTENTS", "quote,balance")
	settings, err = Load(GlobalFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(settings.EnableIntents) != 2 {
		t.Fatalf("env layer = %v", settings.EnableIntents)
	}

	settings, err = Load(GlobalFlags{ConfigPath: path, EnableIntents: " swap , send "})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(settings.EnableIntents) != 2 || settings.EnableIntents[0] != "swap" || settings.EnableIntents[1] != "send" {
		t.Fatalf("flag layer = %v", settings.EnableIntents)
	}
}

func TestProductionRequiresEncryptionKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv("WALLET_ENCRYPTION_KEY", "")

	_, err := Load(GlobalFlags{ConfigPath: path, Env: "production"})
	if err == nil || !strings.Contains(err.Error(), "WALLET_ENCRYPTION_KEY") {
		t.Fatalf("err = %v, want missing key error", err)
	}

	t.Setenv("WALLET_ENCRYPTION_KEY", hex.EncodeToString(bytes.Repeat([]byte{0x11}, 32)))
	settings, err := Load(GlobalFlags{ConfigPath: path, Env: "production"})
	if err != nil {
		t.Fatalf("Load with key failed: %v", err)
	}
	key, err := settings.EncryptionKey()
	if err != nil {
		t.Fatalf("EncryptionKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length = %d", len(key))
	}
}

func TestEncryptionKeyValidation(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"empty is allowed", "", ""},
		{"valid 64 hex", strings.Repeat("ab", 32), ""},
		{"0x prefix accepted", "0x" + strings.Repeat("ab", 32), ""},
		{"too short", "abcd", "32 bytes"},
		{"not hex", strings.Repeat("zz", 32), "hex"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Settings{EncryptionKeyHex: tc.value}
			_, err := s.EncryptionKey()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("EncryptionKey: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Env: "staging"})
	if err == nil {
		t.Fatal("expected error for unknown environment")
	}
}
