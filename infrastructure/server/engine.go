// Package server implements the server-side tunnel engine: the listener,
// per-connection handshake, data-plane loop, and the background reaper and
// stats tasks described for the server tunnel engine.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"tunnelcore/application"
	"tunnelcore/config"
	"tunnelcore/domain/protocol"
	domainsession "tunnelcore/domain/session"
	"tunnelcore/infrastructure/session"
	"tunnelcore/infrastructure/telemetry/trafficstats"
)

// Engine is the server tunnel engine: one listener fanning out into one
// handler task per accepted connection, plus the background reaper and
// stats-logging tasks.
type Engine struct {
	cfg    config.ServerConfig
	logger application.Logger

	registry   *session.Registry
	allocator  *domainsession.Allocator
	users      application.UserDirectory
	store      application.SessionStore
	device     application.DatagramDevice
	policy     application.NetworkPolicy
	collector  *trafficstats.Collector
	tlsConfig  *tls.Config

	listener net.Listener
}

// New builds an Engine from its configuration and plugin dependencies.
// tlsConfig may be nil only when cfg.TLSEnabled() is false (development
// mode, per spec.md §4.G's "bare stream, for development").
func New(cfg config.ServerConfig, logger application.Logger, users application.UserDirectory, store application.SessionStore, device application.DatagramDevice, policy application.NetworkPolicy, tlsConfig *tls.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TLSEnabled() && tlsConfig == nil {
		return nil, fmt.Errorf("server: cert_path/key_path configured but no tls.Config supplied")
	}
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		registry:  session.NewRegistry(),
		allocator: domainsession.NewAllocator(),
		users:     users,
		store:     store,
		device:    device,
		policy:    policy,
		collector: trafficstats.NewCollector(time.Second, 0.3),
		tlsConfig: tlsConfig,
	}, nil
}

// Registry exposes the live session registry, mainly for tests and
// administrative introspection.
func (e *Engine) Registry() *session.Registry {
	return e.registry
}

// Run binds the listener and blocks, running the accept loop alongside the
// reaper and stats background tasks, until ctx is cancelled. On cancellation
// it stops accepting, closes every live session, and then waits the full
// protocol.ShutdownGrace before returning.
func (e *Engine) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.BindHost, e.cfg.BindPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	if e.tlsConfig != nil {
		ln = tls.NewListener(ln, e.tlsConfig)
	}
	e.listener = ln
	e.logger.Infof("server: listening on %s (tls=%v)", addr, e.tlsConfig != nil)

	trafficstats.SetGlobal(e.collector)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return e.acceptLoop(gctx) })
	group.Go(func() error { return e.outboundLoop(gctx) })
	group.Go(func() error { return e.reaperLoop(gctx) })
	group.Go(func() error { return e.statsLoop(gctx) })
	group.Go(func() error { e.collector.Start(gctx); return nil })

	<-gctx.Done()
	e.shutdown()

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (e *Engine) shutdown() {
	e.listener.Close()
	for _, s := range e.registry.All() {
		s.Close("server shutdown")
	}
	time.Sleep(protocol.ShutdownGrace)
}

func (e *Engine) acceptLoop(ctx context.Context) error {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.Warnf("server: accept: %v", err)
			continue
		}
		go e.handleConnection(ctx, conn)
	}
}

func (e *Engine) reaperLoop(ctx context.Context) error {
	ticker := time.NewTicker(protocol.ReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			evicted := e.registry.CleanupInactive(protocol.IdleTimeout)
			if evicted > 0 {
				e.logger.Infof("server: reaper evicted %d idle/expired sessions", evicted)
			}
			if n, err := e.store.CleanupExpired(ctx); err != nil {
				e.logger.Warnf("server: store cleanup expired: %v", err)
			} else if n > 0 {
				e.logger.Infof("server: reaper cleaned up %d expired store records", n)
			}
		}
	}
}

func (e *Engine) statsLoop(ctx context.Context) error {
	ticker := time.NewTicker(protocol.StatsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := e.collector.Snapshot()
			e.logger.Infof("server: sessions=%d rx=%s (%s/s) tx=%s (%s/s)",
				e.registry.Count(),
				trafficstats.FormatTotal(snap.BytesReceived), trafficstats.FormatRate(snap.ReceiveRate),
				trafficstats.FormatTotal(snap.BytesSent), trafficstats.FormatRate(snap.SendRate))
			e.syncTraffic(ctx)
		}
	}
}

// syncTraffic pushes each live session's cumulative byte counters to the
// Session Store, keeping update_traffic driven by the same counters the
// telemetry Recorder reports rather than leaving it unused.
func (e *Engine) syncTraffic(ctx context.Context) {
	for _, sess := range e.registry.All() {
		counters := sess.Counters()
		if err := e.store.UpdateTraffic(ctx, sess.Token, counters.BytesSent, counters.BytesReceived); err != nil {
			e.logger.Debugf("server: session %s traffic sync failed: %v", sess.Token, err)
		}
	}
}
