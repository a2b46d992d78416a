package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("expected default http address %s, got %s", defaultHTTPAddress, cfg.HTTPAddress)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("expected default log level %s, got %s", defaultLogLevel, cfg.LogLevel)
	}
	if cfg.ShutdownGracePeriod != defaultShutdownGracePeriod {
		t.Fatalf("expected default grace %s, got %s", defaultShutdownGracePeriod, cfg.ShutdownGracePeriod)
	}
	if cfg.Peer.SendTimeout != defaultSendTimeout {
		t.Fatalf("expected default send timeout %s, got %s", defaultSendTimeout, cfg.Peer.SendTimeout)
	}
	if cfg.Queue.SweepInterval != defaultSweepInterval {
		t.Fatalf("expected default sweep interval %s, got %s", defaultSweepInterval, cfg.Queue.SweepInterval)
	}
	if cfg.Queue.SweepAttemptsPerPeer != defaultSweepAttemptsPerPeer {
		t.Fatalf("expected default sweep attempts %d, got %d", defaultSweepAttemptsPerPeer, cfg.Queue.SweepAttemptsPerPeer)
	}
	if cfg.Keystore.Path != defaultKeystorePath {
		t.Fatalf("expected default keystore path %s, got %s", defaultKeystorePath, cfg.Keystore.Path)
	}
	if cfg.NodeID == "" {
		t.Fatal("expected node id to fall back to hostname")
	}
}

func TestLoadWithFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(`
node_id: "alice.os"
http_address: "127.0.0.1:7001"
log_level: "debug"
shutdown_grace_period: "5s"
peer:
  send_timeout: "3s"
queue:
  sweep_interval: "10s"
  sweep_attempts_per_peer: 3
keystore:
  path: "/tmp/chatkeys.json"
  passphrase_env: "CUSTOM_ENV"
peer_endpoints:
  bob.os: "http://10.0.0.2:8080"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CHAT_HTTP_ADDRESS", ":6000")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddress != ":6000" {
		t.Fatalf("expected env override for http address, got %s", cfg.HTTPAddress)
	}
	if cfg.NodeID != "alice.os" {
		t.Fatalf("expected node id alice.os, got %s", cfg.NodeID)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.ShutdownGracePeriod != 5*time.Second {
		t.Fatalf("expected grace 5s, got %s", cfg.ShutdownGracePeriod)
	}
	if cfg.Peer.SendTimeout != 3*time.Second {
		t.Fatalf("expected send timeout 3s, got %s", cfg.Peer.SendTimeout)
	}
	if cfg.Queue.SweepInterval != 10*time.Second {
		t.Fatalf("expected sweep interval 10s, got %s", cfg.Queue.SweepInterval)
	}
	if cfg.Queue.SweepAttemptsPerPeer != 3 {
		t.Fatalf("expected sweep attempts 3, got %d", cfg.Queue.SweepAttemptsPerPeer)
	}
	if cfg.Keystore.Path != "/tmp/chatkeys.json" {
		t.Fatalf("expected keystore path from file, got %s", cfg.Keystore.Path)
	}
	// Node identities are dotted; the map key must survive intact
	// instead of being split into nested maps.
	if got := cfg.PeerEndpoints["bob.os"]; got != "http://10.0.0.2:8080" {
		t.Fatalf("expected peer endpoint for bob.os, got %q (endpoints: %v)", got, cfg.PeerEndpoints)
	}
	if got := cfg.PeerEndpoint("bob.os"); got != "http://10.0.0.2:8080" {
		t.Fatalf("expected resolved endpoint for bob.os, got %q", got)
	}
}

func TestPassphraseFetch(t *testing.T) {
	t.Cleanup(func() { getenv = os.Getenv })
	getenv = func(key string) string {
		if key == "CUSTOM_ENV" {
			return "hunter2"
		}
		return ""
	}

	cfg := Config{Keystore: KeystoreConfig{PassphraseEnv: "CUSTOM_ENV"}}
	pass, err := cfg.Passphrase()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pass != "hunter2" {
		t.Fatalf("expected passphrase hunter2, got %s", pass)
	}

	cfg.Keystore.PassphraseEnv = "MISSING_ENV"
	if _, err := cfg.Passphrase(); err == nil {
		t.Fatal("expected error for empty passphrase env")
	}
}

func TestPeerEndpointFallback(t *testing.T) {
	cfg := Config{PeerEndpoints: map[string]string{"bob.os": "http://10.0.0.2:8080"}}

	if got := cfg.PeerEndpoint("bob.os"); got != "http://10.0.0.2:8080" {
		t.Fatalf("expected configured endpoint, got %s", got)
	}
	if got := cfg.PeerEndpoint("carol.os"); got != "http://carol.os" {
		t.Fatalf("expected identity fallback, got %s", got)
	}
}
