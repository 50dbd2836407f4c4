package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/services"
	httphandlers "codemeet/internal/handlers/http"
	"codemeet/internal/infrastructure/middleware"
	"codemeet/internal/infrastructure/monitoring"
	"codemeet/internal/infrastructure/reliability"
	"codemeet/internal/infrastructure/repositories"
	gateway "codemeet/internal/infrastructure/signal"
	"codemeet/pkg/config"
	"codemeet/pkg/logger"
	"codemeet/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

// Searched in order when --config is not given.
var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/codemeet/config.yaml",
	"config.yaml",
}

func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func main() {
	startTime := time.Now()

	configFlag := pflag.StringP("config", "c", "", "path to the YAML config file")
	pflag.Parse()

	configPath := resolveConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		// Logging is not configured yet.
		os.Stderr.WriteString("codemeet: " + err.Error() + "\n")
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()
	if configPath == "" {
		log.Infow("no config file found, using defaults and environment")
	} else {
		log.Infow("loaded config", "path", configPath)
	}

	tp, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	// Stores
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	sessionStore := reliability.NewSessionStoreWrapper(
		repoFactory.CreateSessionStore(),
		cfg.Sessions.Retry,
		cfg.Sessions.CircuitBreaker,
		collector,
		log,
	)
	writer := reliability.NewSessionWriter(sessionStore, reliability.WriterConfig{
		Shards:    cfg.Sessions.Writer.Shards,
		QueueSize: cfg.Sessions.Writer.QueueSize,
		OpTimeout: cfg.Sessions.Writer.OpTimeout,
	}, collector, log)

	// Dispatch loop and coordinators
	hub := gateway.NewHub(cfg.Gateway.DispatchQueueSize, collector, log)
	registry := services.NewRoomRegistry(repoFactory.CreateRoomStore(), log)
	video := services.NewVideoCoordinator(registry, hub, collector, log)
	collab := services.NewCollabManager(registry, writer, hub, hub, collector, log)
	dispatcher := gateway.NewDispatcher(video, collab, collector, log)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx, dispatcher)
		close(hubDone)
	}()

	gatewayCfg := gateway.GatewayConfig{
		WriteWait:      cfg.Gateway.WriteWait,
		PongWait:       cfg.Gateway.PongWait,
		PingPeriod:     cfg.Gateway.PingPeriod,
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
		SendQueueSize:  cfg.Gateway.SendQueueSize,
	}
	if cfg.RateLimiting.Enabled {
		gatewayCfg.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		gatewayCfg.MessageBurst = cfg.RateLimiting.WebSocket.Burst
	}
	wsServer := gateway.NewWebSocketServer(hub, gatewayCfg, cfg.CORS.AllowedOrigins, collector, log)

	// Health
	health := monitoring.NewHealthChecker()
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, cfg.Monitoring.HealthCheckInterval, 0)
	}
	if client := repoFactory.MongoClient(); client != nil {
		health.AddMongoCheck(client, cfg.Monitoring.HealthCheckInterval, 0)
	}
	health.AddGatewayCheck(hub.Ping, cfg.Monitoring.HealthCheckInterval, 0)
	healthCtx, stopHealth := context.WithCancel(context.Background())
	health.StartBackgroundChecks(healthCtx)

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	wsServer.RegisterRoutes(router,
		middleware.NewWebSocketConnectionLimitMiddleware(cfg),
		middleware.OptionalAuthMiddleware(authService, cfg.Auth.CookieName),
	)

	api := router.Group("/api/v1")
	if cfg.Auth.RequireREST {
		api.Use(middleware.AuthMiddleware(authService, cfg.Auth.CookieName))
	}
	httphandlers.NewICEHandler(cfg.WebRTC.ICEServers).SetupRoutes(api)
	httphandlers.NewSessionHandler(sessionStore).SetupRoutes(api)
	httphandlers.NewRoomHandler(hub, video, registry).SetupRoutes(api)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      monitoring.StatusHealthy,
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"connections": hub.ConnectionCount(),
			"last_checks": health.LastStatus().Checks,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := health.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":           status.Status,
			"timestamp":        status.Timestamp,
			"checks":           status.Checks,
			"session_breaker":  sessionStore.GetCircuitBreakerStats(),
			"rooms_backend":    repoFactory.RoomsBackend(),
			"sessions_backend": repoFactory.SessionsBackend(),
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           300,
	})(router)

	// WriteTimeout is left unset: WebSocket handlers live as long as their
	// socket and enforce their own write deadlines.
	srv := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting codemeet signaling server",
			"address", cfg.Server.Address,
			"rooms_backend", repoFactory.RoomsBackend(),
			"instance_id", repoFactory.InstanceID(),
			"sessions_backend", repoFactory.SessionsBackend(),
			"namespaces", []domain.Namespace{domain.NamespaceVideo, domain.NamespaceCollab},
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked connections; stopping the hub
	// closes every socket.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		_ = srv.Close()
	}
	stopHub()
	<-hubDone
	stopHealth()

	if err := writer.Close(shutdownCtx); err != nil {
		log.Errorw("session writer did not drain", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repositories", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("codemeet signaling server stopped")
}
