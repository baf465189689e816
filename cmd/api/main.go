package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signal-relay/internal/config"
	apihttp "signal-relay/internal/http"
	"signal-relay/internal/realtime"
	"signal-relay/internal/repository"
	"signal-relay/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	hub := realtime.NewHub(logger, realtime.Options{
		PingInterval:    cfg.WSPingInterval,
		PingTimeout:     cfg.WSPingTimeout,
		WriteTimeout:    cfg.WSWriteTimeout,
		SendBuffer:      cfg.WSSendBuffer,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
	})

	registry := service.NewSessionRegistry(logger, hub)
	friendSvc := service.NewFriendService(registry)
	conversationSvc := service.NewConversationService(repository.NewMemoryMessageRepository(), cfg.MaxMessageLength)
	callSvc := service.NewCallService(logger, registry, hub, cfg.CallStrictOrder)

	var limiter service.EventRateLimiter
	switch {
	case cfg.RateLimitMax <= 0:
		limiter = service.NewUnlimitedRateLimiter()
	case cfg.RedisAddr != "":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using memory rate limiter", zap.Error(err))
			limiter = service.NewMemoryRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, cfg.RateLimitWindow, cfg.RateLimitMax)
		}
		cancel()
	default:
		limiter = service.NewMemoryRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
	}

	dispatcher := service.NewDispatcher(logger, hub, registry, friendSvc, conversationSvc, callSvc, limiter,
		service.DispatcherOptions{ResetFriendsOnLogin: cfg.FriendsResetOnLogin})

	realtimeHandler := apihttp.NewRealtimeHandler(logger, hub, dispatcher, cfg.CORSAllowedOrigins)
	presenceHandler := apihttp.NewPresenceHandler(registry)
	router := apihttp.NewRouter(logger, apihttp.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		StaticDir:      cfg.StaticDir,
	}, realtimeHandler, presenceHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.Bool("call_strict_order", cfg.CallStrictOrder),
		zap.Bool("friends_reset_on_login", cfg.FriendsResetOnLogin),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
