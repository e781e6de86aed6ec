package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"eventmanager/config"
	"eventmanager/internal/adapters/auth"
	"eventmanager/internal/adapters/email"
	httpdelivery "eventmanager/internal/delivery/http"
	"eventmanager/internal/delivery/http/controllers"
	"eventmanager/internal/delivery/http/middleware"
	"eventmanager/internal/repository/postgres"
	"eventmanager/internal/services"
)

// @title           EventManager API
// @version         1.0
// @description     Account sign-up, login and profile endpoints of the event-management API.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	if cfg.RunMigrations {
		if err := postgres.RunMigrations(ctx, db); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	hasher, err := auth.NewRegistry(auth.NewKeyDeriver(), auth.Options{
		Scheme:           cfg.PasswordScheme,
		PBKDF2Iterations: cfg.PBKDF2Iterations,
	})
	if err != nil {
		logger.Error("invalid password scheme", "err", err)
		os.Exit(1)
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.SESInsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		logger.Error("failed to create mailer", "err", err)
		os.Exit(1)
	}
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		logger.Error("failed to load email templates", "err", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	emailSvc := services.NewEmailService(mailer, renderer, logger)
	authSvc := services.NewAuthService(userRepo, roleRepo, hasher, auth.NewJWTIssuer(cfg.JWTSecret), cfg.JWTExpiry, emailSvc, cfg.HashConcurrency, logger)
	userSvc := services.NewUserService(userRepo)

	router := httpdelivery.NewRouter(
		controllers.NewAuthController(logger, authSvc),
		controllers.NewUserController(logger, userSvc),
		auth.NewJWTVerifier(cfg.JWTSecret),
		db,
		logger,
	)
	handler := middleware.LoggingMiddleware(logger, middleware.CORS(cfg.CORSAllowedOrigins, router))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "env", cfg.Environment, "hash_concurrency", cfg.HashConcurrency)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "err", err)
		}
		logger.Info("server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}
