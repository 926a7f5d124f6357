package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/Peer2Pepu/p2p-sub001/internal/blob/s3"
	"github.com/Peer2Pepu/p2p-sub001/internal/ingest"
	"github.com/Peer2Pepu/p2p-sub001/internal/lifecycle"
	"github.com/Peer2Pepu/p2p-sub001/internal/server"
	"github.com/Peer2Pepu/p2p-sub001/internal/server/handler"
)

// IngestMode bootstraps the scan window and runs the event ingestion loop.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	ing := a.buildIngester(deps)
	if err := ing.Bootstrap(ctx); err != nil {
		return fmt.Errorf("app: ingest bootstrap: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ing.RunLoop(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, ing, deps.RecordStore)
	}

	return g.Wait()
}

// LifecycleMode runs the lifecycle driver loop.
func (a *App) LifecycleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting lifecycle mode")

	driver := a.buildDriver(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driver.RunLoop(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, nil, nil)
	}

	return g.Wait()
}

// ArchiveMode runs only the S3 archive sweeps.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	archiver := s3blob.NewArchiver(deps.S3Client, deps.RecordStore, s3blob.ArchiverConfig{
		Interval: a.cfg.Archive.Interval.Duration,
	}, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return archiver.RunLoop(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, nil, deps.RecordStore)
	}

	return g.Wait()
}

// FullMode runs ingestion, the lifecycle driver, and optionally the
// archiver concurrently.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	ing := a.buildIngester(deps)
	if err := ing.Bootstrap(ctx); err != nil {
		return fmt.Errorf("app: ingest bootstrap: %w", err)
	}

	driver := a.buildDriver(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ing.RunLoop(ctx)
	})
	g.Go(func() error {
		return driver.RunLoop(ctx)
	})

	if deps.S3Client != nil {
		archiver := s3blob.NewArchiver(deps.S3Client, deps.RecordStore, s3blob.ArchiverConfig{
			Interval: a.cfg.Archive.Interval.Duration,
		}, a.logger)
		g.Go(func() error {
			return archiver.RunLoop(ctx)
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, ing, deps.RecordStore)
	}

	return g.Wait()
}

// buildIngester assembles the event ingestion loop from wired dependencies.
func (a *App) buildIngester(deps *Dependencies) *ingest.Ingester {
	return ingest.New(
		deps.MarketManager,
		deps.RecordStore,
		deps.Metadata,
		deps.Symbols,
		deps.LifecycleNotifier,
		ingest.Config{
			Interval:        a.cfg.Ingest.Interval.Duration,
			BootstrapWindow: a.cfg.Ingest.BootstrapWindow,
			MaxBlockRange:   a.cfg.Ingest.MaxBlockRange,
		},
		a.logger,
	)
}

// buildDriver assembles the lifecycle driver from wired dependencies.
func (a *App) buildDriver(deps *Dependencies) *lifecycle.Driver {
	return lifecycle.New(
		deps.MarketManager,
		deps.LifecycleNotifier,
		lifecycle.Config{
			Interval:    a.cfg.Lifecycle.Interval.Duration,
			SettleDelay: a.cfg.Lifecycle.SettleDelay.Duration,
		},
		a.logger,
	)
}

// startServer registers the operational HTTP server on the errgroup.
// heights and markets may be nil depending on the mode.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, heights handler.HeightSource, markets handler.MarketCounter) {
	srv := server.NewServer(
		server.Config{Port: a.cfg.Server.Port},
		server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Status: handler.NewStatusHandler(a.cfg.Mode, heights, markets),
		},
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
