package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bloodlink/bloodlink-api/internal/config"
	"github.com/bloodlink/bloodlink-api/internal/handler"
	authHandler "github.com/bloodlink/bloodlink-api/internal/handler/auth"
	donorHandler "github.com/bloodlink/bloodlink-api/internal/handler/donor"
	requestHandler "github.com/bloodlink/bloodlink-api/internal/handler/request"
	"github.com/bloodlink/bloodlink-api/internal/middleware"
	"github.com/bloodlink/bloodlink-api/internal/notification"
	"github.com/bloodlink/bloodlink-api/internal/repository/postgres"
	"github.com/bloodlink/bloodlink-api/internal/router"
	donorService "github.com/bloodlink/bloodlink-api/internal/service/donor"
	eventService "github.com/bloodlink/bloodlink-api/internal/service/event"
	matchingService "github.com/bloodlink/bloodlink-api/internal/service/matching"
	requestService "github.com/bloodlink/bloodlink-api/internal/service/request"
	userService "github.com/bloodlink/bloodlink-api/internal/service/user"
	"github.com/bloodlink/bloodlink-api/pkg/auth"
	"github.com/bloodlink/bloodlink-api/pkg/metrics"
	"github.com/bloodlink/bloodlink-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	requestRepo := postgres.NewRequestRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Shared infrastructure
	appMetrics := metrics.NewMetrics("bloodlink")
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		ExpiryHours:   cfg.JWT.ExpiryHours,
	})
	hasher := security.NewBcryptHasher(0)

	var notifier notification.Service = notification.NoopService{}
	if cfg.SMTP.Enabled {
		notifier = notification.NewEmailService(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	// Services
	eventSvc := eventService.NewService(outboxRepo)
	userSvc := userService.NewService(userRepo, hasher, jwtSvc)
	requestSvc := requestService.NewService(requestRepo, userRepo, eventSvc)
	matchingSvc := matchingService.NewService(requestRepo, userRepo, eventSvc, appMetrics, cfg.Matching.DefaultRadiusKm)
	donorSvc := donorService.NewService(userRepo, requestRepo)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)
	h := handler.NewHandler()
	authH := authHandler.NewHandler(userSvc)
	requestH := requestHandler.NewHandler(requestSvc, matchingSvc, userSvc, donorSvc, notifier)
	donorH := donorHandler.NewHandler(donorSvc, matchingSvc)

	r := router.NewRouter(authMiddleware, authH, requestH, donorH, h, router.RouterConfig{
		RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSConfig:     middleware.DefaultCORSConfig(),
		MetricsPrefix:  "bloodlink",
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
