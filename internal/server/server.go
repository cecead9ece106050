// Package server — HTTP-поверхность моста: прием сообщений, регистрация
// агентов и операторский контур выпуска сигилов.
package server

import (
	"net/http"

	"github.com/xela07ax/janus-neural-bridge/internal/engine"
	"github.com/xela07ax/janus-neural-bridge/internal/infra"
	"github.com/xela07ax/janus-neural-bridge/internal/infra/auth"
	"github.com/xela07ax/janus-neural-bridge/internal/link"
	"github.com/xela07ax/janus-neural-bridge/internal/sigil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type BridgeServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	dispatcher *engine.Dispatcher
	tracker    *link.Tracker
	lockdown   *engine.LockdownManager
	issuer     *sigil.Authenticator
	creds      sigil.CredentialStore

	// Операторский контур: выпуск токенов и их проверка (RS256)
	tokens        *auth.TokenService
	authValidator auth.TokenValidator

	metricsReg *prometheus.Registry
}

// NewBridgeServer собирает роутер со всеми зависимостями.
// tokens и authValidator могут быть nil — тогда админ-контур не поднимается.
func NewBridgeServer(
	cfg *infra.Config,
	logger *zap.Logger,
	dispatcher *engine.Dispatcher,
	tracker *link.Tracker,
	lockdown *engine.LockdownManager,
	issuer *sigil.Authenticator,
	creds sigil.CredentialStore,
	tokens *auth.TokenService,
	authValidator auth.TokenValidator,
	metricsReg *prometheus.Registry,
) *BridgeServer {
	s := &BridgeServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("bridge-api"),
		cfg:           cfg,
		dispatcher:    dispatcher,
		tracker:       tracker,
		lockdown:      lockdown,
		issuer:        issuer,
		creds:         creds,
		tokens:        tokens,
		authValidator: authValidator,
		metricsReg:    metricsReg,
	}

	s.routes()
	return s
}

func (s *BridgeServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		// Основной вход протокола: авторизация сигилом внутри пайплайна
		r.Post("/v1/invoke", s.handleInvoke)

		// Регистрация линка и discovery
		r.Post("/v1/agents/register", s.handleRegister)
		r.Get("/v1/agents/discover", s.handleDiscover)

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		if s.metricsReg != nil {
			r.Method(http.MethodGet, "/metrics",
				promhttp.HandlerFor(s.metricsReg, promhttp.HandlerOpts{}))
		}

		if s.tokens != nil {
			// Логин оператора должен быть доступен без токена
			r.Post("/admin/v1/auth/token", s.handleOperatorLogin)
		}
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требует RS256 токен оператора) ---
	if s.authValidator != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(s.authValidator, s.logger))

			// Выпуск и ротация сигилов
			r.Post("/admin/v1/sigils", s.handleIssueSigil)
			r.Post("/admin/v1/sigils/rotate", s.handleRotateSigil)

			// Ручное управление lockdown
			r.Route("/admin/v1/agents/{id}", func(r chi.Router) {
				r.Post("/lockdown", s.handleLockdown)
				r.Post("/release", s.handleRelease)
			})
		})
	}
}

// ServeHTTP позволяет использовать BridgeServer как стандартный http.Handler
func (s *BridgeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
