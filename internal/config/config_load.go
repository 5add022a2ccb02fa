package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads config from a JSON file, then overlays env vars. A missing
// file is not an error; defaults plus env carry a full deployment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values. The names match the original deployment.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("FIRST_GROUP", &c.Groups.First)
	envStr("SECOND_GROUP", &c.Groups.Second)
	envStr("THIRD_GROUP", &c.Groups.Third)

	envStr("MASTER_API_SECRET", &c.Keys.MasterSecret)
	envStr("REDIS_URL", &c.Keys.RedisURL)
	envStr("API_KEYS_FALLBACK_FILE", &c.Keys.FallbackFile)
	envStr("KEY_SWEEP_SCHEDULE", &c.Keys.SweepSchedule)

	envInt("PORT", &c.Server.Port)
	envInt("THIRD_REPLY_WINDOW", &c.Relay.ReplyWindowSec)
	envInt("REPLY_STABILIZE_DELAY", &c.Relay.StabilizeDelaySec)
	envInt("COMMAND_DEBOUNCE_DELAY", &c.Relay.DebounceDelaySec)
	envInt("FETCH_EDIT_WATCH_TIME", &c.Relay.WatchDurationSec)
	envInt("API_REQUEST_TIMEOUT", &c.Relay.APITimeoutSec)
}
