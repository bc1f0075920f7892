// Package main запускает HTTP-сервер сервиса WashWise.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/washwise/internal/auth"
	"github.com/mmeshcher/washwise/internal/catalog"
	"github.com/mmeshcher/washwise/internal/config"
	"github.com/mmeshcher/washwise/internal/handler"
	"github.com/mmeshcher/washwise/internal/logger"
	"github.com/mmeshcher/washwise/internal/metrics"
	"github.com/mmeshcher/washwise/internal/middleware"
	"github.com/mmeshcher/washwise/internal/notify"
	"github.com/mmeshcher/washwise/internal/qrcode"
	"github.com/mmeshcher/washwise/internal/repository"
	"github.com/mmeshcher/washwise/internal/service"
	"github.com/mmeshcher/washwise/internal/subscription"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sugar := log.Sugar()

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		cat, err = catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			sugar.Fatalw("catalog load error", "file", cfg.CatalogFile, "error", err.Error())
		}
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	qr, err := qrcode.NewGenerator(cfg.QRDir)
	if err != nil {
		sugar.Fatalw("qr directory error", "error", err.Error())
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	dispatcher, err := notify.NewDispatcher(newNotifier(cfg, log), log, cfg.NotifyWorkers)
	if err != nil {
		sugar.Fatalw("notification dispatcher error", "error", err.Error())
	}
	defer dispatcher.Close()
	dispatcher.OnResult(m.Notification)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	svc := service.NewService(repo, service.Options{
		Catalog:       cat,
		Policy:        subscription.DefaultPolicy(),
		Tokens:        issuer,
		Notifications: dispatcher,
		QR:            qr,
		Metrics:       m,
		Logger:        log,
		FrontendURL:   cfg.FrontendURL,
	})
	defer svc.Close()

	h := handler.NewHandler(svc, log, middleware.NewAuthMiddleware(issuer)).WithQRDir(qr.Dir())
	if m != nil {
		h.WithMetrics(m.Handler())
	}

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Периодическая очистка просроченных токенов сброса пароля
	g.Go(func() error {
		return svc.StartMaintenance(ctx)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting washwise server", "addr", cfg.RunAddress, "services", len(cat.Entries()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// newNotifier выбирает способ отправки писем: Mailgun, SMTP или заглушку.
func newNotifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	switch {
	case cfg.MailgunConfigured():
		return notify.NewMailgunClient(notify.DefaultMailgunURL, cfg.MailgunDomain, cfg.MailgunAPIKey)
	case cfg.SMTPConfigured():
		from := cfg.SMTPFrom
		if from == "" {
			from = cfg.SMTPUser
		}
		return notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, from)
	default:
		return notify.NewNopNotifier(log)
	}
}
