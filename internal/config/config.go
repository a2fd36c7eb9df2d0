// Package config loads application configuration from environment variables.
package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBPath       string
	PollInterval time.Duration

	// GitHubToken is the fallback API token used for polling when the
	// credential store has nothing for an entry.
	GitHubToken string

	// WebhookSecret and DefaultChannel configure the legacy single-target
	// route used when a delivery matches no registered repository.
	WebhookSecret  string
	DefaultChannel string

	// ChannelByEvent overrides the legacy default channel per event type.
	ChannelByEvent map[string]string

	// SecretKey is the AES-256 key for credential storage, derived from
	// HOOKRELAY_SECRET_KEY. Nil when the variable is unset.
	SecretKey []byte
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional. Defaults: HOOKRELAY_LISTEN_ADDR
// (127.0.0.1:8080), HOOKRELAY_DB_PATH (hookrelay.db), HOOKRELAY_POLL_INTERVAL
// (60s). HOOKRELAY_CHANNEL_MAP is a comma-separated list of event=channel
// pairs. HOOKRELAY_SECRET_KEY enables encrypted credential storage; without
// it, polling falls back to HOOKRELAY_GITHUB_TOKEN.
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("HOOKRELAY_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "hookrelay.db"
	if v, ok := os.LookupEnv("HOOKRELAY_DB_PATH"); ok {
		dbPath = v
	}

	pollInterval := 60 * time.Second
	if v, ok := os.LookupEnv("HOOKRELAY_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("HOOKRELAY_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("HOOKRELAY_POLL_INTERVAL must be positive, got %q", v)
		}
		pollInterval = parsed
	}

	channelByEvent := map[string]string{}
	if v, ok := os.LookupEnv("HOOKRELAY_CHANNEL_MAP"); ok && v != "" {
		for _, pair := range strings.Split(v, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			event, channel, found := strings.Cut(pair, "=")
			if !found || event == "" || channel == "" {
				return nil, fmt.Errorf("HOOKRELAY_CHANNEL_MAP has invalid pair %q: expected event=channel", pair)
			}
			channelByEvent[strings.TrimSpace(event)] = strings.TrimSpace(channel)
		}
	}

	var secretKey []byte
	if v := os.Getenv("HOOKRELAY_SECRET_KEY"); v != "" {
		// Derive a fixed-length AES-256 key from the passphrase.
		sum := sha256.Sum256([]byte(v))
		secretKey = sum[:]
	}

	return &Config{
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		PollInterval:   pollInterval,
		GitHubToken:    os.Getenv("HOOKRELAY_GITHUB_TOKEN"),
		WebhookSecret:  os.Getenv("HOOKRELAY_WEBHOOK_SECRET"),
		DefaultChannel: os.Getenv("HOOKRELAY_DEFAULT_CHANNEL"),
		ChannelByEvent: channelByEvent,
		SecretKey:      secretKey,
	}, nil
}
