package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the node runtime parameters.
type Config struct {
	NodeID              string            `mapstructure:"node_id"`
	HTTPAddress         string            `mapstructure:"http_address"`
	LogLevel            string            `mapstructure:"log_level"`
	ShutdownGracePeriod time.Duration     `mapstructure:"shutdown_grace_period"`
	Peer                PeerConfig        `mapstructure:"peer"`
	Queue               QueueConfig       `mapstructure:"queue"`
	Blob                BlobConfig        `mapstructure:"blob"`
	Keystore            KeystoreConfig    `mapstructure:"keystore"`
	PeerEndpoints       map[string]string `mapstructure:"peer_endpoints"`
}

// PeerConfig bounds outbound node-to-node calls.
type PeerConfig struct {
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	AckTimeout  time.Duration `mapstructure:"ack_timeout"`
}

// QueueConfig tunes the delivery retry sweep.
type QueueConfig struct {
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	SweepAttemptsPerPeer int           `mapstructure:"sweep_attempts_per_peer"`
}

// BlobConfig locates the on-disk blob store for file payloads.
type BlobConfig struct {
	Path string `mapstructure:"path"`
}

// KeystoreConfig describes how the chat-key keystore is initialized.
type KeystoreConfig struct {
	Path          string `mapstructure:"path"`
	PassphraseEnv string `mapstructure:"passphrase_env"`
}

const (
	defaultHTTPAddress          = "0.0.0.0:8080"
	defaultLogLevel             = "info"
	defaultShutdownGracePeriod  = 10 * time.Second
	defaultSendTimeout          = 5 * time.Second
	defaultAckTimeout           = 2 * time.Second
	defaultSweepInterval        = 30 * time.Second
	defaultSweepAttemptsPerPeer = 1
	defaultBlobPath             = "data/blobs"
	defaultKeystorePath         = "data/chatkeys.json"
	defaultPassphraseEnv        = "CHAT_KEYSTORE_PASSPHRASE"
)

// Load reads configuration from the provided file path (if any) and the environment.
// Environment variables are prefixed with CHAT_ and can override file values.
func Load(path string) (Config, error) {
	// Node identities contain dots (alice.os), so the default "."
	// delimiter would explode peer_endpoints keys into nested maps.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetEnvPrefix("CHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))

	v.SetDefault("http_address", defaultHTTPAddress)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("shutdown_grace_period", defaultShutdownGracePeriod.String())
	v.SetDefault("peer::send_timeout", defaultSendTimeout.String())
	v.SetDefault("peer::ack_timeout", defaultAckTimeout.String())
	v.SetDefault("queue::sweep_interval", defaultSweepInterval.String())
	v.SetDefault("queue::sweep_attempts_per_peer", defaultSweepAttemptsPerPeer)
	v.SetDefault("blob::path", defaultBlobPath)
	v.SetDefault("keystore::path", defaultKeystorePath)
	v.SetDefault("keystore::passphrase_env", defaultPassphraseEnv)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper leaves durations as strings; normalize them here.
	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"shutdown_grace_period", defaultShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"peer::send_timeout", defaultSendTimeout, &cfg.Peer.SendTimeout},
		{"peer::ack_timeout", defaultAckTimeout, &cfg.Peer.AckTimeout},
		{"queue::sweep_interval", defaultSweepInterval, &cfg.Queue.SweepInterval},
	}
	for _, d := range durations {
		if !v.IsSet(d.key) {
			*d.dst = d.fallback
			continue
		}
		dur, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = dur
	}

	if cfg.NodeID == "" {
		host, err := os.Hostname()
		if err != nil {
			return Config{}, fmt.Errorf("node_id unset and hostname unavailable: %w", err)
		}
		cfg.NodeID = host
	}
	if cfg.HTTPAddress == "" {
		cfg.HTTPAddress = defaultHTTPAddress
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.Queue.SweepAttemptsPerPeer <= 0 {
		cfg.Queue.SweepAttemptsPerPeer = defaultSweepAttemptsPerPeer
	}
	if cfg.Blob.Path == "" {
		cfg.Blob.Path = defaultBlobPath
	}
	if cfg.Keystore.Path == "" {
		cfg.Keystore.Path = defaultKeystorePath
	}
	if cfg.Keystore.PassphraseEnv == "" {
		cfg.Keystore.PassphraseEnv = defaultPassphraseEnv
	}

	return cfg, nil
}

// Passphrase fetches the keystore passphrase from the configured environment variable.
func (c Config) Passphrase() (string, error) {
	env := c.Keystore.PassphraseEnv
	if env == "" {
		env = defaultPassphraseEnv
	}
	val := strings.TrimSpace(getenv(env))
	if val == "" {
		return "", fmt.Errorf("keystore passphrase env %s is empty", env)
	}
	return val, nil
}

// PeerEndpoint resolves the HTTP base address for a counterparty node.
// Unknown nodes fall back to using the identity as a host.
func (c Config) PeerEndpoint(nodeID string) string {
	if addr, ok := c.PeerEndpoints[nodeID]; ok && addr != "" {
		return addr
	}
	return "http://" + nodeID
}

// split out for testing.
var getenv = os.Getenv
