package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uday68/VyaparMitra-sub003/internal/archive"
	"github.com/uday68/VyaparMitra-sub003/internal/expiry"
	"github.com/uday68/VyaparMitra-sub003/internal/fanout"
	"github.com/uday68/VyaparMitra-sub003/internal/negotiation"
	"github.com/uday68/VyaparMitra-sub003/internal/server"
	"github.com/uday68/VyaparMitra-sub003/internal/server/handler"
	"github.com/uday68/VyaparMitra-sub003/internal/server/ws"
)

// buildCore assembles the negotiation core (fanout, ledger, machine, service)
// shared by every mode.
func (a *App) buildCore(deps *Dependencies) (*negotiation.Service, *negotiation.Machine) {
	fan := fanout.New(deps.SignalBus, a.logger)
	ledger := negotiation.NewLedger(deps.NegotiationStore, deps.BidStore)
	machine := negotiation.NewMachine(deps.NegotiationStore, deps.LockManager, deps.AuditStore, fan, a.logger)

	svc := negotiation.NewService(
		negotiation.Config{
			TTL:             a.cfg.Negotiation.TTL.Duration,
			DefaultQuantity: a.cfg.Negotiation.DefaultQuantity,
		},
		deps.ProductStore,
		deps.NegotiationStore,
		ledger,
		machine,
		deps.Translator,
		deps.Speech,
		deps.Payments,
		deps.Notifier,
		a.logger,
	)
	return svc, machine
}

// ServerMode runs the HTTP + WebSocket API without the background sweeps.
// Meant for deployments where a separate sweep instance owns expiry.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svc, _ := a.buildCore(deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, svc)
	return waitGroup(g)
}

// SweepMode runs only the expiry scheduler and, when enabled, the retention
// archiver.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	_, machine := a.buildCore(deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startSweeps(ctx, g, deps, machine)
	return waitGroup(g)
}

// FullMode runs the API server, the expiry scheduler, and the retention
// archiver in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svc, machine := a.buildCore(deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, svc)
	a.startSweeps(ctx, g, deps, machine)
	return waitGroup(g)
}

// startServer registers the HTTP server and WebSocket hub goroutines on g.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *negotiation.Service) {
	if !a.cfg.Server.Enabled {
		a.logger.Warn("server disabled by configuration")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		Negotiations: handler.NewNegotiationHandler(svc, a.logger),
		Products:     handler.NewProductHandler(deps.ProductStore, deps.LockManager, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	})
}

// startSweeps registers the expiry scheduler and retention archiver
// goroutines on g.
func (a *App) startSweeps(ctx context.Context, g *errgroup.Group, deps *Dependencies, machine *negotiation.Machine) {
	scheduler := expiry.New(
		deps.LockManager,
		deps.NegotiationStore,
		machine,
		a.cfg.Negotiation.SweepInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		err := scheduler.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("expiry scheduler: %w", err)
	})

	if a.cfg.Archive.Enabled && deps.BlobWriter != nil {
		archiver := archive.New(
			deps.NegotiationStore,
			deps.BidStore,
			deps.BlobWriter,
			a.cfg.Archive.Retention.Duration,
			a.cfg.Archive.Interval.Duration,
			a.logger,
		)
		g.Go(func() error {
			err := archiver.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}
}

// waitGroup waits for the errgroup, treating context cancellation as a clean
// shutdown.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
