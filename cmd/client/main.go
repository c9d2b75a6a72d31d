// Command client drives the tunnel core's client engine against a loopback
// datagram device, wrapping engine.Connect in a reconnect.Controller when
// -reconnect is set. A production build supplies its own
// application.DatagramDevice bridging to a real TUN interface or userspace
// stack.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tunnelcore/config"
	"tunnelcore/infrastructure/client"
	"tunnelcore/infrastructure/logging"
	"tunnelcore/infrastructure/reconnect"
)

func main() {
	host := flag.String("host", "", "server host")
	port := flag.Int("port", 9443, "server port")
	username := flag.String("user", "", "username")
	password := flag.String("pass", "", "password")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	autoReconnect := flag.Bool("reconnect", true, "reconnect automatically on connection loss")
	flag.Parse()

	if *host == "" || *username == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := logging.Default()

	cfg := config.DefaultClientConfig()
	cfg.ServerHost = *host
	cfg.ServerPort = *port
	cfg.Username = *username
	cfg.Password = *password
	cfg.VerifyCert = !*insecure
	cfg.AutoReconnect = *autoReconnect

	eng, err := client.New(cfg, logger, loopbackDevice{})
	if err != nil {
		logger.Errorf("client: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.AutoReconnect {
		if err := eng.Connect(ctx); err != nil {
			logger.Errorf("client: connect: %v", err)
			os.Exit(1)
		}
		<-ctx.Done()
		eng.Disconnect("shutdown")
		return
	}

	rc := reconnect.NewController()
	rc.SetObserver(func(state reconnect.State) {
		logger.Infof("client: reconnect state -> %v", state)
	})
	for ctx.Err() == nil {
		if err := rc.Start(ctx, eng.Connect); err != nil {
			break
		}
		waitUntilDisconnected(ctx, eng)
		rc.Disconnected()
	}
	eng.Disconnect("shutdown")
}

// waitUntilDisconnected blocks until the engine leaves the Connected state
// or ctx is cancelled, so the reconnect loop above knows when to resume.
func waitUntilDisconnected(ctx context.Context, eng *client.Engine) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if eng.State() != client.Connected {
				return
			}
		}
	}
}

// loopbackDevice is a placeholder application.DatagramDevice. Real
// deployments supply their own TUN- or userspace-stack-backed device.
type loopbackDevice struct{}

func (loopbackDevice) Write(context.Context, []byte) error { return nil }

func (loopbackDevice) Read(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
