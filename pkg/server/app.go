package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/usecase"
	pkgch "github.com/Habtu32/brent-oil-change-point-analysis/pkg/clickhouse"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/config"
	xhttp "github.com/Habtu32/brent-oil-change-point-analysis/pkg/http"
	pkgkafka "github.com/Habtu32/brent-oil-change-point-analysis/pkg/kafka"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	prices   *usecase.PriceService
	analyses *usecase.AnalysisService
	jobQueue *queue.RedisQueue  // optional
	consumer *pkgkafka.Consumer // optional
	chClient *pkgch.Client      // optional

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	prices *usecase.PriceService,
	analyses *usecase.AnalysisService,
	jobQueue *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		prices:      prices,
		analyses:    analyses,
		jobQueue:    jobQueue,
		consumer:    consumer,
		chClient:    chClient,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// Price history must be present before anything can run.
	if err := a.prices.Load(ctx); err != nil {
		l.Error("price history load failed", applogger.Error(err))
		return err
	}

	// Job queue workers
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			l.Error("job queue start failed", applogger.Error(err))
			return err
		}
		a.analyses.SetQueue(a.jobQueue)
	}

	// Kafka price ingest
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			l.Error("kafka consumer start failed", applogger.Error(err))
			return err
		}
		l.Info("kafka consumer started")
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(a.cfg.Metrics.Path),
		xhttp.WithLogger(l),
	)
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start failed", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
