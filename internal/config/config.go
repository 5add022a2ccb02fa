// Package config holds the relay gateway configuration: group identifiers,
// timing knobs, HTTP listener settings and key-store wiring.
package config

import "time"

// Config is the root configuration for the relay gateway.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Telegram TelegramConfig `json:"telegram"`
	Groups   GroupsConfig   `json:"groups"`
	Relay    RelayConfig    `json:"relay"`
	Keys     KeysConfig     `json:"keys"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TelegramConfig configures the Telegram connection.
// Token is NEVER read from the config file (secret) — env TELEGRAM_TOKEN only.
type TelegramConfig struct {
	Token string `json:"-"`
}

// GroupsConfig names the three chat groups. First is the origin group where
// humans type commands; Second and Third host the automated responders.
// Values may be @usernames (with or without the @) or numeric chat ids.
type GroupsConfig struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Third  string `json:"third"`
}

// RelayConfig tunes the correlation engine. All values are seconds.
type RelayConfig struct {
	ReplyWindowSec    int `json:"reply_window_sec"`
	StabilizeDelaySec int `json:"stabilize_delay_sec"`
	DebounceDelaySec  int `json:"debounce_delay_sec"`
	WatchDurationSec  int `json:"watch_duration_sec"`
	APITimeoutSec     int `json:"api_timeout_sec"`
}

// KeysConfig configures API-key storage and admin access.
// MasterSecret and RedisURL are env-only secrets.
type KeysConfig struct {
	MasterSecret  string `json:"-"`
	RedisURL      string `json:"-"`
	FallbackFile  string `json:"fallback_file"`
	SweepSchedule string `json:"sweep_schedule"` // cron expression for the expired-key sweep
}

// Default returns a Config with the stock timing constants.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 10000,
		},
		Groups: GroupsConfig{
			First:  "ethicalosinterr",
			Second: "ethicalosint",
			Third:  "IntelXGroup",
		},
		Relay: RelayConfig{
			ReplyWindowSec:    5,
			StabilizeDelaySec: 3,
			DebounceDelaySec:  5,
			WatchDurationSec:  15,
			APITimeoutSec:     30,
		},
		Keys: KeysConfig{
			FallbackFile:  "./api_keys.json",
			SweepSchedule: "@hourly",
		},
	}
}

// Duration helpers for the relay engine.

func (r RelayConfig) ReplyWindow() time.Duration { return time.Duration(r.ReplyWindowSec) * time.Second }

func (r RelayConfig) StabilizeDelay() time.Duration {
	return time.Duration(r.StabilizeDelaySec) * time.Second
}

func (r RelayConfig) DebounceDelay() time.Duration {
	return time.Duration(r.DebounceDelaySec) * time.Second
}

func (r RelayConfig) WatchDuration() time.Duration {
	return time.Duration(r.WatchDurationSec) * time.Second
}

func (r RelayConfig) APITimeout() time.Duration { return time.Duration(r.APITimeoutSec) * time.Second }
