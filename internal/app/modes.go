package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ktp-quant/pairsignal/internal/estimator"
	"github.com/ktp-quant/pairsignal/internal/monitor"
	"github.com/ktp-quant/pairsignal/internal/server"
	"github.com/ktp-quant/pairsignal/internal/server/handler"
	"github.com/ktp-quant/pairsignal/internal/server/ws"
	"github.com/ktp-quant/pairsignal/internal/service"
)

// FitMode runs one estimation pass and exits.
func (a *App) FitMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting fit mode")
	_, err := a.runEstimation(ctx, deps)
	return err
}

// MonitorMode runs the live monitoring loop against the persisted model,
// plus the HTTP server when enabled. No refit happens; a missing artifact is
// fatal.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.buildMonitor(deps).Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServeMode runs the HTTP + WebSocket API without fitting or monitoring.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	if !a.cfg.Server.Enabled {
		return fmt.Errorf("serve mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode fits the model once on startup, then runs the monitoring loop and
// the HTTP server together. A failed refit falls back to the persisted
// artifact when one exists.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	if _, err := a.runEstimation(ctx, deps); err != nil {
		if _, loadErr := deps.ModelStore.Load(ctx); loadErr != nil {
			return fmt.Errorf("full mode: %w", err)
		}
		a.logger.WarnContext(ctx, "refit failed, monitoring with the previous artifact",
			slog.String("error", err.Error()))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.buildMonitor(deps).Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// runEstimation performs one fit and pushes the result to the operator
// channels.
func (a *App) runEstimation(ctx context.Context, deps *Dependencies) (estimator.Result, error) {
	est := estimator.New(deps.Candles, deps.ModelStore, deps.Archiver, estimator.Params{
		InstrumentX:      a.cfg.Pair.InstrumentX,
		InstrumentY:      a.cfg.Pair.InstrumentY,
		Window:           a.cfg.Estimation.Window.Duration,
		PeriodMinutes:    a.cfg.Estimation.PeriodMinutes,
		MinSamples:       a.cfg.Estimation.MinSamples,
		MinRSquared:      a.cfg.Estimation.MinRSquared,
		PersistWeakModel: a.cfg.Estimation.PersistWeakModel,
		ThresholdSigma:   a.cfg.Monitor.ThresholdSigma,
	}, a.logger)

	res, err := est.Run(ctx)
	if err != nil {
		if notifyErr := deps.Notifier.NotifyError(ctx, fmt.Sprintf("estimation failed: %v", err)); notifyErr != nil {
			a.logger.WarnContext(ctx, "error notification failed")
		}
		return estimator.Result{}, err
	}

	if err := deps.Notifier.NotifyModelFitted(ctx, res.Model); err != nil {
		a.logger.WarnContext(ctx, "model-fitted notification failed")
	}
	return res, nil
}

// buildMonitor assembles the monitoring loop with every wired sink: Redis
// pub/sub, the Postgres event history, and operator notifications.
func (a *App) buildMonitor(deps *Dependencies) *monitor.Monitor {
	var sink monitor.MultiSink
	if deps.SignalBus != nil {
		sink = append(sink, monitor.NewBusSink(deps.SignalBus))
	}
	if deps.SignalEvents != nil {
		sink = append(sink, monitor.NewHistorySink(deps.SignalEvents))
	}
	sink = append(sink, monitor.NewNotifySink(deps.Notifier))

	return monitor.New(deps.Quotes, deps.ModelStore, sink, monitor.Config{
		PollInterval:      a.cfg.Monitor.PollInterval.Duration,
		RetryBase:         a.cfg.Monitor.RetryBase.Duration,
		RetryMax:          a.cfg.Monitor.RetryMax.Duration,
		MinSignalInterval: a.cfg.Monitor.MinSignalInterval.Duration,
	}, a.logger)
}

// startHTTPServer adds the HTTP server (and the WebSocket hub, when Redis is
// wired) to the given errgroup. The server is shut down gracefully when the
// context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	snapshotSvc := service.NewSnapshotService(deps.Candles, deps.SnapshotCache, service.SnapshotParams{
		InstrumentX:   a.cfg.Pair.InstrumentX,
		InstrumentY:   a.cfg.Pair.InstrumentY,
		Window:        a.cfg.Estimation.Window.Duration,
		PeriodMinutes: a.cfg.Estimation.PeriodMinutes,
		MinSamples:    a.cfg.Estimation.MinSamples,
		CacheTTL:      a.cfg.Redis.SnapshotTTL.Duration,
	}, a.logger)

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Status:      handler.NewStatusHandler(a.cfg.Mode, a.cfg.Pair.InstrumentX, a.cfg.Pair.InstrumentY, deps.HealthChecks, a.logger),
		Correlation: handler.NewCorrelationHandler(snapshotSvc, a.logger),
		Model:       handler.NewModelHandler(deps.ModelStore, a.logger),
	}
	if deps.SignalEvents != nil {
		handlers.Signals = handler.NewSignalsHandler(deps.SignalEvents, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:        a.cfg.Mode,
			InstrumentX: a.cfg.Pair.InstrumentX,
			InstrumentY: a.cfg.Pair.InstrumentY,
			StartedAt:   time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
