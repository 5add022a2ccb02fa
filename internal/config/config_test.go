package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing config file must not error: %v", err)
	}
	if cfg.Server.Port != 10000 {
		t.Fatalf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Relay.ReplyWindow() != 5*time.Second {
		t.Fatalf("default reply window: got %v", cfg.Relay.ReplyWindow())
	}
	if cfg.Keys.FallbackFile != "./api_keys.json" {
		t.Fatalf("default fallback file: got %q", cfg.Keys.FallbackFile)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		// json5: comments allowed
		server: { port: 8080 },
		groups: { first: "origin", second: "workers-a", third: "workers-b" },
		relay: { reply_window_sec: 9 },
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port: got %d", cfg.Server.Port)
	}
	if cfg.Groups.Third != "workers-b" {
		t.Fatalf("third group: got %q", cfg.Groups.Third)
	}
	if cfg.Relay.ReplyWindowSec != 9 {
		t.Fatalf("reply window: got %d", cfg.Relay.ReplyWindowSec)
	}
	// Unset fields keep defaults.
	if cfg.Relay.StabilizeDelaySec != 3 {
		t.Fatalf("stabilize default lost: got %d", cfg.Relay.StabilizeDelaySec)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("THIRD_GROUP", "EnvGroup")
	t.Setenv("THIRD_REPLY_WINDOW", "11")
	t.Setenv("MASTER_API_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Groups.Third != "EnvGroup" {
		t.Fatalf("env group override lost: %q", cfg.Groups.Third)
	}
	if cfg.Relay.ReplyWindowSec != 11 {
		t.Fatalf("env window override lost: %d", cfg.Relay.ReplyWindowSec)
	}
	if cfg.Keys.MasterSecret != "s3cret" {
		t.Fatal("env secret override lost")
	}
}
