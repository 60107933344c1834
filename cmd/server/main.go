package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-manager/api/internal/advisor"
	"task-manager/api/internal/cache"
	"task-manager/api/internal/config"
	"task-manager/api/internal/handlers"
	"task-manager/api/internal/logger"
	"task-manager/api/internal/monitoring"
	"task-manager/api/internal/repositories"
	"task-manager/api/internal/server"
	"task-manager/api/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	logger.Init(cfg.Log.Level, cfg.Log.JSON || cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	store, err := repositories.Connect(ctx, repositories.MongoConfig{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.DB,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to connect to mongo", "error", err)
	}
	logger.Info("connected to mongo", "db", store.DatabaseName(), "host", store.RedactedURI())

	indexCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	if err := store.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("failed to ensure indexes", "error", err)
	}
	cancel()

	rc := connectRedis(ctx, cfg)

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      server.NewRouter(buildDeps(cfg, store, rc)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server started", "addr", srv.Addr, "prefix", cfg.Server.APIPrefix, "ai_enabled", cfg.AIEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if rc != nil {
		_ = rc.Close()
	}
	if err := store.Disconnect(shutdownCtx); err != nil {
		logger.Error("failed to disconnect from mongo", "error", err)
	}

	logger.Info("server exited")
}

// connectRedis returns nil when Redis is not configured or unreachable; rate
// limiting then stays in-process and suggestions are not memoized.
func connectRedis(ctx context.Context, cfg *config.Config) *cache.RedisCache {
	if cfg.Redis.Addr == "" {
		return nil
	}

	cacheCfg := cache.DefaultCacheConfig()
	cacheCfg.Addr = cfg.Redis.Addr
	cacheCfg.Password = cfg.Redis.Password
	cacheCfg.DB = cfg.Redis.DB

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rc, err := cache.Connect(pingCtx, cacheCfg)
	if err != nil {
		logger.Warn("redis unavailable, continuing without it", "error", err)
		return nil
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	return rc
}

func newAdvisor(cfg *config.Config, rc *cache.RedisCache) *advisor.Advisor {
	aiCfg := advisor.Config{
		MaxChars: cfg.AI.MaxChars,
		Timeout:  cfg.AI.Timeout,
		CacheTTL: cfg.AI.CacheTTL,
	}

	if !cfg.AIEnabled() {
		return advisor.New(nil, aiCfg)
	}

	completer := advisor.NewOpenAICompleter(advisor.OpenAIConfig{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
	})

	var opts []advisor.Option
	if rc != nil && cfg.AI.CacheTTL > 0 {
		opts = append(opts, advisor.WithMemo(rc))
	}
	return advisor.New(completer, aiCfg, opts...)
}

func buildDeps(cfg *config.Config, store *repositories.MongoStore, rc *cache.RedisCache) server.Deps {
	tokens := services.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	users := store.Users()

	health := monitoring.NewHealthChecker(5 * time.Second)
	health.Register("mongo", store.Ping)

	adv := newAdvisor(cfg, rc)
	health.RegisterStats("ai_breaker", adv.BreakerStats)

	deps := server.Deps{
		APIPrefix:            cfg.Server.APIPrefix,
		CORSOrigins:          cfg.Server.CORSOrigins,
		CORSAllowCredentials: cfg.Server.CORSAllowCredentials,
		Cookie: handlers.RefreshCookie{
			Secure: cfg.IsProduction(),
			MaxAge: tokens.RefreshTTL(),
		},
		Auth:             services.NewAuthService(users, tokens),
		Register:         services.NewRegisterService(users),
		Tasks:            services.NewTaskService(store.Tasks()),
		Tokens:           tokens,
		Suggester:        adv,
		Database:         store,
		Health:           health,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		AuthLimit:        cfg.RateLimit.AuthLimit,
		AuthWindow:       cfg.RateLimit.AuthWindow,
	}

	if rc != nil {
		health.Register("redis", rc.Health)
		health.RegisterStats("redis_cache", rc.Stats)
		deps.Counter = rc
	}

	return deps
}
