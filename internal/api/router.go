package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/lendbridge/loanbook/docs"
	"github.com/lendbridge/loanbook/internal/api/handler"
	"github.com/lendbridge/loanbook/internal/api/middleware"
	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Session   ports.LoanSession
	View      handler.LoanView
	Auth      ports.AuthService
	JWTSecret string
	Checkers  []handler.HealthChecker
	Log       zerolog.Logger
	// Registry receives the HTTP metrics and backs /metrics. Nil uses the
	// process-wide default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsConfig(d.Registry)))

	authMiddleware := middleware.Auth(d.JWTSecret)
	operatorOnly := middleware.RBAC(domain.RoleOperator)

	// --- Auth routes ---
	if d.Auth != nil {
		authHandler := handler.NewAuthHandler(d.Auth)
		e.POST("/auth/login", authHandler.Login)
		e.POST("/auth/operators", authHandler.Register, authMiddleware, operatorOnly)
	}

	// --- Loans ---
	loanHandler := handler.NewLoanHandler(d.Session, d.View)
	streamHandler := handler.NewStreamHandler(d.View, d.Log.With().Str("component", "stream").Logger())

	v1 := e.Group("/v1")
	v1.GET("/account", loanHandler.Account)
	v1.GET("/contract", loanHandler.Contract)
	v1.GET("/loans", loanHandler.List)
	v1.GET("/loans/stream", streamHandler.Stream)
	v1.POST("/loans/refresh", loanHandler.Refresh)
	v1.POST("/loans", loanHandler.Create, authMiddleware, operatorOnly)
	v1.POST("/loans/:index/issue", loanHandler.Issue, authMiddleware, operatorOnly)
	v1.POST("/transfers", loanHandler.SendMoney, authMiddleware, operatorOnly)

	// --- Health checks (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Checkers...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operational ---
	e.GET("/metrics", metricsHandler(d.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

func metricsConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{Namespace: "loanbook"}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}
