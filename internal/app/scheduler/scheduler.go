// Package scheduler приложение фонового планировщика: истечение подписок,
// напоминания, закрытие устаревших приглашений и повтор наград.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talepify/entitlement-service/internal/app/bootstrap"
	"github.com/talepify/entitlement-service/internal/config"
	"github.com/talepify/entitlement-service/internal/lib/sl"
	"github.com/talepify/entitlement-service/internal/metrics"
	"github.com/talepify/entitlement-service/internal/notify"
	schedulerservice "github.com/talepify/entitlement-service/internal/services/scheduler"
)

const shutdownTimeout = 5 * time.Second

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.Service
	metricsServer    *http.Server
	infra            *bootstrap.Infra
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
// Схему создаёт API, поэтому планировщик только ждёт её готовности.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	infra, err := bootstrap.Setup(ctx, cfg, bootstrap.Options{WaitForSchema: true, Broker: true}, logger, m)
	if err != nil {
		return nil, err
	}
	services, err := infra.NewServices(cfg, logger, m)
	if err != nil {
		infra.Close()
		return nil, err
	}

	deduper := notify.NewDeduper(infra.Store, infra.Dispatcher, logger)
	svc := schedulerservice.New(services.Subscription, services.Referral, deduper, services.Translator, schedulerservice.Options{
		Interval:     cfg.Interval,
		ReminderDays: cfg.ReminderDays,
		BatchSize:    cfg.BatchSize,
		Locale:       cfg.Locale,
	}, logger)

	app := &App{
		schedulerService: svc,
		infra:            infra,
		logger:           logger,
	}
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		app.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return app, nil
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.infra.Close()

	if a.metricsServer != nil {
		go func() {
			a.logger.Info("metrics server starting on", slog.String("address", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", sl.Err(err))
			}
		}()
	}

	a.schedulerService.Run(ctx)

	a.logger.Info("shutting down scheduler service")
	if a.metricsServer != nil {
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.metricsServer.Shutdown(timeoutCtx)
	}
	return nil
}
