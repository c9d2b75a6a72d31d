package config

import "testing"

func TestServerConfig_ValidateDefaults(t *testing.T) {
	t.Parallel()
	cfg := DefaultServerConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
	if cfg.TLSEnabled() {
		t.Fatal("defaults carry no cert paths, TLS should be disabled")
	}
}

func TestServerConfig_MismatchedCertKeyRejected(t *testing.T) {
	t.Parallel()
	cfg := DefaultServerConfig()
	cfg.CertPath = "/etc/tunnelcore/server.crt"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with cert_path set but key_path empty")
	}
}

func TestServerConfig_TLSEnabledWhenBothPathsSet(t *testing.T) {
	t.Parallel()
	cfg := DefaultServerConfig()
	cfg.CertPath = "/etc/tunnelcore/server.crt"
	cfg.KeyPath = "/etc/tunnelcore/server.key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.TLSEnabled() {
		t.Fatal("expected TLS enabled with both paths set")
	}
}

func TestServerConfig_InvalidPortRejected(t *testing.T) {
	t.Parallel()
	cfg := DefaultServerConfig()
	cfg.BindPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestClientConfig_ValidateRequiresHostAndCreds(t *testing.T) {
	t.Parallel()
	cfg := DefaultClientConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with no server_host/username/password set")
	}
	cfg.ServerHost = "vpn.example.com"
	cfg.Username = "alice"
	cfg.Password = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientConfig_TrustAnchorWithoutVerifyRejected(t *testing.T) {
	t.Parallel()
	cfg := DefaultClientConfig()
	cfg.ServerHost = "vpn.example.com"
	cfg.Username = "alice"
	cfg.Password = "secret"
	cfg.VerifyCert = false
	cfg.TrustAnchorPath = "/etc/tunnelcore/ca.pem"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: trust anchor set while verification disabled")
	}
}
