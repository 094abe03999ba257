// Package api HTTP-приложение сервиса: пробный период, подписки и рефералы.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/talepify/entitlement-service/internal/app/bootstrap"
	"github.com/talepify/entitlement-service/internal/config"
	"github.com/talepify/entitlement-service/internal/http/handlers/health"
	"github.com/talepify/entitlement-service/internal/http/middlewarectx"
	jwtlib "github.com/talepify/entitlement-service/internal/lib/jwt"
	"github.com/talepify/entitlement-service/internal/metrics"
)

const (
	shutdownTimeout = 15 * time.Second
	limiterIdle     = 10 * time.Minute
)

// App HTTP-сервер с инфраструктурой.
type App struct {
	server *http.Server
	logger *slog.Logger
	infra  *bootstrap.Infra
}

// New поднимает инфраструктуру, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	infra, err := bootstrap.Setup(ctx, cfg, bootstrap.Options{Migrate: true, Broker: true}, logger, m)
	if err != nil {
		return nil, err
	}
	services, err := infra.NewServices(cfg, logger, m)
	if err != nil {
		infra.Close()
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Services: services,
		Tokens:   jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Limiter:  middlewarectx.NewLimiter(cfg.RateLimit, cfg.Burst, limiterIdle),
		Checkers: Checkers(infra.Pingers),
		Gatherer: registry,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		infra:  infra,
	}, nil
}

// Checkers переводит проверки инфраструктуры в проверки /health.
func Checkers(pingers map[string]bootstrap.Pinger) map[string]health.Checker {
	out := make(map[string]health.Checker, len(pingers))
	for name, p := range pingers {
		out[name] = p
	}
	return out
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер и закрывает подключения.
func (a *App) Run(ctx context.Context) error {
	defer a.infra.Close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}
