package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/admission"
	"github.com/xela07ax/janus-neural-bridge/internal/audit"
	"github.com/xela07ax/janus-neural-bridge/internal/connectors"
	"github.com/xela07ax/janus-neural-bridge/internal/directive"
	"github.com/xela07ax/janus-neural-bridge/internal/engine"
	"github.com/xela07ax/janus-neural-bridge/internal/infra"
	"github.com/xela07ax/janus-neural-bridge/internal/infra/auth"
	"github.com/xela07ax/janus-neural-bridge/internal/link"
	"github.com/xela07ax/janus-neural-bridge/internal/repository/postgres"
	"github.com/xela07ax/janus-neural-bridge/internal/repository/redisstore"
	"github.com/xela07ax/janus-neural-bridge/internal/server"
	"github.com/xela07ax/janus-neural-bridge/internal/sigil"
	"github.com/xela07ax/janus-neural-bridge/internal/telemetry"
	"github.com/xela07ax/janus-neural-bridge/internal/validate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(appCtx).Err(); err != nil {
		logger.Fatal("redis unreachable", zap.Error(err))
	}

	// Реестр секретов агентов поверх Redis
	creds := redisstore.NewCredentialStore(rdb)

	// Метрики
	metricsReg := prometheus.NewRegistry()
	sink := telemetry.NewMetrics(metricsReg)

	// Аудит-трейл: Postgres опционален, без него решения идут только в лог
	var auditor audit.Auditor
	var trail *audit.Trail
	if cfg.Database.URL != "" {
		auditRepo, err := postgres.NewAuditRepo(cfg.Database.URL, int(cfg.Database.MaxConns), int(cfg.Database.MinConns))
		if err != nil {
			logger.Fatal("postgres open failed", zap.Error(err))
		}
		if err := auditRepo.Ping(appCtx); err != nil {
			logger.Fatal("postgres unreachable", zap.Error(err))
		}
		defer auditRepo.Close()

		trail = audit.NewTrail(auditRepo, logger, sink, cfg.Bridge.AuditBufferSize, cfg.Bridge.AuditFlushInterval)
		trail.Start()
		auditor = trail
	} else {
		logger.Warn("database.url is empty: decision trail persistence is disabled")
	}

	// 3. Control Plane: lockdown с прогревом из Redis и живучей подпиской
	lockdown := engine.NewLockdownManager(rdb, logger)
	if err := lockdown.Init(appCtx); err != nil {
		logger.Fatal("lockdown init failed", zap.Error(err))
	}
	go lockdown.StartListener(appCtx)

	// 4. Ядро: каталог директив, аутентификатор, пайплайн допуска
	registry, err := directive.NewBuiltinRegistry()
	if err != nil {
		logger.Fatal("directive catalog", zap.Error(err))
	}

	authenticator := sigil.NewAuthenticator(cfg.Auth.MasterSecret)
	tracker := link.NewTracker()

	// Доставка на внешние обработчики: HTTP + Circuit Breaker + ретраи
	forwarder := connectors.NewHTTPForwarder(cfg.Bridge.HandlerTimeout)
	caller := connectors.NewReliableCaller(forwarder, cfg.Bridge.HandlerTimeout)

	handlers := engine.NewHandlerTable(caller)
	engine.BindBuiltins(handlers, tracker, registry, lockdown, logger)
	for name, endpoint := range cfg.Bridge.Routes {
		handlers.BindRemote(name, endpoint)
		logger.Info("remote directive route bound",
			zap.String("directive", name), zap.String("endpoint", endpoint))
	}

	dispatcher := engine.NewDispatcher(engine.Deps{
		Validator:      validate.New(cfg.Bridge.MaxPayloadBytes),
		Auth:           authenticator,
		Creds:          creds,
		Registry:       registry,
		Replay:         admission.NewReplayCache(cfg.Bridge.DedupWindow, cfg.Bridge.DedupCapacity),
		Limiter:        admission.NewRateLimiter(cfg.Bridge.RateLimitPerSecond, cfg.Bridge.RateLimitBurst),
		Lockdown:       lockdown,
		Handlers:       handlers,
		Auditor:        auditor,
		Sink:           sink,
		Logger:         logger,
		HandlerTimeout: cfg.Bridge.HandlerTimeout,
	})

	// 5. Операторский контур (поднимается только при наличии ключей RS256)
	var tokens *auth.TokenService
	var validator auth.TokenValidator
	if len(cfg.Auth.PrivateKey) > 0 && len(cfg.Auth.PublicKey) > 0 {
		privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
		if err != nil {
			logger.Fatal("private key", zap.Error(err))
		}
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("public key", zap.Error(err))
		}
		tokens = auth.NewTokenService(cfg.Auth.OperatorUser, cfg.Auth.OperatorHash, privKey, cfg.Auth.TokenTTL)
		validator = auth.NewBaseValidator(pubKey)
	} else {
		logger.Warn("RS256 keys are not configured: operator console is disabled")
	}

	// 6. HTTP Server
	bridge := server.NewBridgeServer(cfg, logger, dispatcher, tracker, lockdown,
		authenticator, creds, tokens, validator, metricsReg)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      bridge,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("janus bridge started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("janus bridge stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	cancel() // Останавливаем слушателей и фоновые горутины

	if trail != nil {
		trail.Stop() // Final Flush: дописываем хвост аудита
	}
	logger.Info("janus bridge exited properly")
}
