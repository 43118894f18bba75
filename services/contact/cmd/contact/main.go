package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"contactapi/internal/util"
	"contactapi/pkg/store"
	"contactapi/services/contact/internal/alert"
	"contactapi/services/contact/internal/app"
	"contactapi/services/contact/internal/config"
	"contactapi/services/contact/internal/mailer"
	"contactapi/services/contact/internal/server"
	"contactapi/services/contact/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONTACT_CONFIG")
	if configPath == "" {
		configPath = config.ConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	dbTimeout, err := config.ParseTimeout("dbTimeout", cfg.DBTimeout)
	if err != nil {
		log.Fatalf("failed to parse db timeout: %v", err)
	}
	webhookTimeout, err := config.ParseTimeout("webhookTimeout", cfg.WebhookTimeout)
	if err != nil {
		log.Fatalf("failed to parse webhook timeout: %v", err)
	}
	smtpTimeout, err := config.ParseTimeout("smtpTimeout", cfg.SMTPTimeout)
	if err != nil {
		log.Fatalf("failed to parse smtp timeout: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	if _, err := mailer.SecurityForPort(cfg.SMTPPort); err != nil {
		logger.Warn("email notifications will fail", "err", err)
	}

	submissions, err := store.NewGormStore(cfg.DatabaseURL, store.WithMaxOpenConns(cfg.DBMaxOpenConns))
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if err := submissions.Close(); err != nil {
			logger.Warn("close store", "err", err)
		}
	}()

	alerter := alert.NewFailureAlerter(cfg.RedisAddr, cfg.RedisPassword, cfg.AlertPrefix)
	defer func() { _ = alerter.Close() }()

	appCfg := app.Config{
		SenderName: cfg.SenderName,
		Mailer: mailer.New(mailer.Config{
			Host:           cfg.SMTPServer,
			Port:           cfg.SMTPPort,
			Username:       cfg.SMTPUsername,
			Password:       cfg.SMTPPassword,
			Subject:        cfg.EmailSubject,
			SenderName:     cfg.SenderName,
			SenderEmail:    cfg.SenderEmail,
			RecipientName:  cfg.RecipientName,
			RecipientEmail: cfg.RecipientEmail,
			Timeout:        smtpTimeout,
		}),
		Chat:         webhook.NewClient(cfg.WebhookURL, webhookTimeout),
		Store:        submissions,
		StoreTimeout: dbTimeout,
	}
	if alerter != nil {
		appCfg.Alerter = alerter
	}
	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: trusted,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	timeouts := server.Timeouts{
		Read:    15 * time.Second,
		SMTP:    orDefault(smtpTimeout, mailer.DefaultTimeout),
		Webhook: orDefault(webhookTimeout, webhook.DefaultTimeout),
		Store:   orDefault(dbTimeout, app.DefaultStoreTimeout),
	}
	if alerter != nil {
		timeouts.Alert = 3 * alert.ObserveTimeout
	}
	addr := ":" + cfg.Port
	srv := server.NewHTTPServer(addr, httpServer.Router(), timeouts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	slog.Info("contact server listening", "addr", addr, "origins", len(cfg.AllowedOrigins), "write_timeout", srv.WriteTimeout.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
