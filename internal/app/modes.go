package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kolwager/kolwager/internal/notify"
	"github.com/kolwager/kolwager/internal/server"
	"github.com/kolwager/kolwager/internal/server/handler"
	"github.com/kolwager/kolwager/internal/server/ws"
	"github.com/kolwager/kolwager/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown once the context is cancelled.
const shutdownTimeout = 10 * time.Second

// Serve starts the HTTP API, the WebSocket hub, the notification watcher, and
// the archive loop when enabled. It blocks until the context is cancelled or
// a subsystem fails.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	// Build services.
	settlementSvc := service.NewSettlementService(
		deps.SettlementStore, deps.PositionStore, deps.SignalBus, deps.AuditStore, a.logger,
	)
	marketSvc := service.NewMarketService(
		deps.MarketStore, deps.QuoteCache, deps.SignalBus, deps.AuditStore,
		deps.LockManager, settlementSvc, a.logger,
	)
	positionSvc := service.NewPositionService(deps.PositionStore, deps.MarketStore, a.logger)

	// WebSocket hub bridging the signal bus to connected clients.
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// HTTP server.
	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Markets:     handler.NewMarketHandler(marketSvc, a.logger),
		Stakes:      handler.NewStakeHandler(marketSvc, a.logger),
		Positions:   handler.NewPositionHandler(positionSvc, a.logger),
		Settlements: handler.NewSettlementHandler(settlementSvc, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          deps.AdminAPIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Operator notifications driven by bus events.
	watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		return watcher.Run(ctx)
	})

	// Settled-market archival.
	if deps.Archiver != nil {
		interval := a.cfg.Archive.Interval.Duration
		g.Go(func() error {
			return deps.Archiver.RunLoop(ctx, interval)
		})
	}

	return g.Wait()
}
