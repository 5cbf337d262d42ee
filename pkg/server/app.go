package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"OpsPulse/internal/service/ws"
	"OpsPulse/internal/usecase"
	"OpsPulse/pkg/cache"
	pkgch "OpsPulse/pkg/clickhouse"
	"OpsPulse/pkg/config"
	xhttp "OpsPulse/pkg/http"
	pkgkafka "OpsPulse/pkg/kafka"
	applogger "OpsPulse/pkg/logger"
	"OpsPulse/pkg/queue"
)

// App owns the process lifecycle: it starts the websocket hub, the
// email queue consumer, the background monitor and the HTTP server,
// then tears everything down in reverse on SIGINT/SIGTERM.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	hub         *ws.Hub
	monitor     *usecase.MonitorUseCase
	consumer    *queue.RedisQueue
	producer    *pkgkafka.Producer
	redisCache  *cache.RedisCache
	chClient    *pkgch.Client
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpHandler xhttp.Handler,
	hub *ws.Hub,
	monitor *usecase.MonitorUseCase,
	consumer *queue.RedisQueue,
	producer *pkgkafka.Producer,
	redisCache *cache.RedisCache,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		httpHandler: httpHandler,
		hub:         hub,
		monitor:     monitor,
		consumer:    consumer,
		producer:    producer,
		redisCache:  redisCache,
		chClient:    chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.hub.Run(ctx)

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("queue consumer start error", applogger.Error(err))
			return err
		}
		a.consumer.StartRetryProcessor()
		a.l.Info("queue consumer started")
	}

	go a.monitor.Run(ctx)

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("server started",
		applogger.String("environment", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops services in reverse start order: monitor and hub went
// down with the context, then the queue drains, the listener closes,
// and infrastructure clients disconnect last.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("queue consumer stop error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	// Final collector flush publishes through Redis, so it has to run
	// before the client disconnects.
	a.l.RemoveCollector()

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
