package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	clinicHandler "github.com/jwalitptl/clinic-api/internal/handler/clinic"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	clinicService "github.com/jwalitptl/clinic-api/internal/service/clinic"
	eventService "github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Service: "clinic-api",
	})
	appLogger.SetGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	redisClient, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	zapLogger, err := audit.NewZapLogger(cfg.Audit)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build audit logger")
	}
	auditSvc := audit.NewService(zapLogger)
	defer func() {
		if err := auditSvc.Sync(); err != nil {
			log.Debug().Err(err).Msg("audit log sync")
		}
	}()

	m := metrics.NewMetrics("clinic", "api", prometheus.DefaultRegisterer)

	// Repositories
	repos := postgres.NewRepositories(db)

	// Services
	catalogSvc := clinicService.NewService(repos.Clinics, repos.Branches, repos.Services, cfg.Catalog.CacheTTL, m)
	patientSvc := patientService.NewService(repos.Patients, auditSvc)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	loginSvc := authService.NewService(repos.Users, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), auditSvc)
	dispatcher := notification.NewDispatcher(
		notification.NewEmailNotifier(email.NewService(cfg.SMTP)),
		cfg.Scheduling.NotificationTimeout,
		m,
	)
	schedulingSvc := appointmentService.NewService(appointmentService.Deps{
		Catalog:      catalogSvc,
		Patients:     patientSvc,
		Users:        repos.Users,
		Appointments: repos.Appointments,
		Dispatcher:   dispatcher,
		Locker:       lock.NewRedisLocker(redisClient, cfg.Scheduling.ConsultationLockTTL),
		Events:       eventService.NewEventService(repos.Outbox),
		Auditor:      auditSvc,
		Metrics:      m,
	})

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})
	h := handler.NewHandler(map[string]handler.Pinger{
		"database": db,
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}, prometheus.DefaultGatherer)

	r := router.NewRouter(
		authMiddleware,
		h,
		clinicHandler.NewHandler(schedulingSvc, limiter, int(cfg.Catalog.CacheTTL.Seconds())),
		authHandler.NewHandler(loginSvc, authMiddleware),
		[]router.Handler{
			appointmentHandler.NewHandler(schedulingSvc, authMiddleware),
			patientHandler.NewHandler(patientSvc, authMiddleware),
		},
		router.RouterConfig{
			CORSConfig:     middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
			Security:       middleware.DefaultSecurityConfig(),
			RequestTimeout: cfg.Server.WriteTimeout,
			MetricsPrefix:  "clinic_http",
			Auditor:        auditSvc,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// let in-flight confirmation emails finish
	waitDone := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn().Msg("confirmation emails still pending at shutdown")
	}

	log.Info().Msg("server exited properly")
}
