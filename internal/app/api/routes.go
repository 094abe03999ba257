package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/talepify/entitlement-service/internal/app/bootstrap"
	"github.com/talepify/entitlement-service/internal/http/handlers/health"
	"github.com/talepify/entitlement-service/internal/http/handlers/plans"
	"github.com/talepify/entitlement-service/internal/http/handlers/referral"
	"github.com/talepify/entitlement-service/internal/http/handlers/subscription"
	"github.com/talepify/entitlement-service/internal/http/handlers/trial"
	"github.com/talepify/entitlement-service/internal/http/middlewarectx"
)

// Deps зависимости маршрутов.
type Deps struct {
	Services *bootstrap.Services
	Tokens   middlewarectx.TokenParser
	Limiter  *middlewarectx.Limiter
	Checkers map[string]health.Checker
	Gatherer prometheus.Gatherer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	tr := d.Services.Translator

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	trialHandler := trial.New(logger, d.Services.Trial, tr)
	subscriptionHandler := subscription.New(logger, d.Services.Subscription, tr)
	referralHandler := referral.New(logger, d.Services.Referral, tr)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", plans.New().ServeHTTP)

		// Пробный период привязан к установке, а не к пользователю
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.InstallationMiddleware(tr, logger))
			r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, tr, logger))
			r.Post("/trial/start", trialHandler.Start)
			r.Get("/trial/status", trialHandler.Status)
			r.Post("/trial/end", trialHandler.End)
			r.Get("/trial/eligibility", trialHandler.Eligibility)
			r.Post("/trial/check-expiry", trialHandler.CheckExpiry)
			r.Delete("/trial", trialHandler.Clear)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, tr, logger))
			r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, tr, logger))

			r.Get("/subscription", subscriptionHandler.Current)
			r.Get("/subscription/summary", subscriptionHandler.Summary)
			r.Post("/subscription/purchase", subscriptionHandler.Purchase)
			r.Post("/subscription/upgrade", subscriptionHandler.Upgrade)
			r.Post("/subscription/cancel", subscriptionHandler.Cancel)
			r.Post("/subscription/renew", subscriptionHandler.Renew)
			r.Get("/subscription/features/{feature}", subscriptionHandler.Feature)

			r.Post("/referral/code", referralHandler.GenerateCode)
			r.Get("/referral/validate/{code}", referralHandler.Validate)
			r.Post("/referral/process", referralHandler.Process)
			r.Post("/referral/claim", referralHandler.Claim)
			r.Get("/referral/stats", referralHandler.Stats)
		})
	})

	r.Get("/health", health.New(logger, d.Checkers).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
