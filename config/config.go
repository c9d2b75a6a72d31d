// Package config holds the typed configuration records consumed by the core
// engines. Parsing a config file or command-line flags into these records is
// out of scope; callers populate them however they choose and pass the
// validated record in.
package config

import (
	"fmt"
	"time"
)

// ServerConfig is the configuration surface the server tunnel engine
// consumes.
type ServerConfig struct {
	BindHost          string
	BindPort          int
	CertPath          string
	KeyPath           string
	DBPath            string
	MaxClients        int
	KeepaliveInterval time.Duration
	SessionTTLHours   int
}

// DefaultServerConfig returns a ServerConfig with the core's baseline
// defaults; callers override fields as needed before calling Validate.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		BindHost:          "0.0.0.0",
		BindPort:          9443,
		MaxClients:        1024,
		KeepaliveInterval: 15 * time.Second,
		SessionTTLHours:   24,
	}
}

// Validate reports a non-nil error if cfg is not usable.
func (cfg ServerConfig) Validate() error {
	if cfg.BindHost == "" {
		return fmt.Errorf("config: bind_host is required")
	}
	if cfg.BindPort <= 0 || cfg.BindPort > 65535 {
		return fmt.Errorf("config: bind_port %d out of range", cfg.BindPort)
	}
	if cfg.MaxClients <= 0 {
		return fmt.Errorf("config: max_clients must be positive")
	}
	if cfg.SessionTTLHours <= 0 {
		return fmt.Errorf("config: session_ttl_hours must be positive")
	}
	// CertPath/KeyPath are optional: an empty pair means a bare, unencrypted
	// stream for development, per spec.md §4.G's listener description.
	if (cfg.CertPath == "") != (cfg.KeyPath == "") {
		return fmt.Errorf("config: cert_path and key_path must both be set or both be empty")
	}
	return nil
}

// TLSEnabled reports whether the server should terminate TLS.
func (cfg ServerConfig) TLSEnabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

// SessionTTL returns the configured session TTL as a time.Duration.
func (cfg ServerConfig) SessionTTL() time.Duration {
	return time.Duration(cfg.SessionTTLHours) * time.Hour
}

// ClientConfig is the configuration surface the client tunnel engine
// consumes.
type ClientConfig struct {
	ServerHost      string
	ServerPort      int
	Username        string
	Password        string
	ClientVersion   string
	VerifyCert      bool
	TrustAnchorPath string
	AutoReconnect   bool
}

// DefaultClientConfig returns a ClientConfig with the core's baseline
// defaults; callers override fields as needed before calling Validate.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerPort:    9443,
		ClientVersion: "1.0.0",
		VerifyCert:    true,
		AutoReconnect: true,
	}
}

// Validate reports a non-nil error if cfg is not usable.
func (cfg ClientConfig) Validate() error {
	if cfg.ServerHost == "" {
		return fmt.Errorf("config: server_host is required")
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return fmt.Errorf("config: server_port %d out of range", cfg.ServerPort)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return fmt.Errorf("config: username and password are required")
	}
	if !cfg.VerifyCert && cfg.TrustAnchorPath != "" {
		return fmt.Errorf("config: trust_anchor_path is meaningless with verify_cert disabled")
	}
	return nil
}
