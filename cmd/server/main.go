// Command server runs the tunnel core's server engine against the
// in-memory reference plugins (directory, session store, loopback
// datagram device). A production deployment wires its own
// application.DatagramDevice, application.UserDirectory and
// application.SessionStore and calls server.New directly instead of
// using this binary as-is.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tunnelcore/config"
	"tunnelcore/infrastructure/directory"
	"tunnelcore/infrastructure/logging"
	"tunnelcore/infrastructure/netpolicy"
	"tunnelcore/infrastructure/server"
	"tunnelcore/infrastructure/store"
)

func main() {
	bindHost := flag.String("host", "0.0.0.0", "address to bind")
	bindPort := flag.Int("port", 9443, "port to bind")
	certPath := flag.String("cert", "", "TLS certificate path (empty disables TLS)")
	keyPath := flag.String("key", "", "TLS key path (empty disables TLS)")
	username := flag.String("user", "", "bootstrap username (omit to run with no users)")
	password := flag.String("pass", "", "bootstrap password")
	maxSessions := flag.Int("max-sessions", 3, "max concurrent sessions for the bootstrap user")
	flag.Parse()

	logger := logging.Default()

	cfg := config.DefaultServerConfig()
	cfg.BindHost = *bindHost
	cfg.BindPort = *bindPort
	cfg.CertPath = *certPath
	cfg.KeyPath = *keyPath

	dir := directory.New()
	if *username != "" {
		if err := dir.AddUser(*username, *password, *maxSessions); err != nil {
			logger.Errorf("server: bootstrap user: %v", err)
			os.Exit(1)
		}
	}

	var tlsConfig *tls.Config
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			logger.Errorf("server: load certificate: %v", err)
			os.Exit(1)
		}
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS13, Certificates: []tls.Certificate{cert}}
	}

	eng, err := server.New(cfg, logger, dir, store.New(), loopbackDevice{}, netpolicy.Strict{}, tlsConfig)
	if err != nil {
		logger.Errorf("server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil {
		logger.Errorf("server: run: %v", err)
		os.Exit(1)
	}
}

// loopbackDevice is a placeholder application.DatagramDevice that discards
// inbound traffic and never produces outbound traffic. Real deployments
// supply their own TUN- or userspace-stack-backed device.
type loopbackDevice struct{}

func (loopbackDevice) Write(context.Context, []byte) error { return nil }

func (loopbackDevice) Read(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
