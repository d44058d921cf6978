package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"convcli/internal/application/dispatch"
	"convcli/internal/config"
	"convcli/internal/infrastructure/auditlog"
	"convcli/internal/infrastructure/download"
	"convcli/internal/infrastructure/mailer"
	"convcli/internal/infrastructure/redishook"
	httptransport "convcli/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	audit := auditlog.New(cfg.AuditLogPath)

	var mail dispatch.Mailer
	if cfg.SMTPAddr != "" {
		mail = mailer.New(cfg.SMTPAddr, cfg.SMTPFrom)
	} else {
		log.Info("no SMTP relay configured, notifications disabled")
	}

	var hook dispatch.PersistenceHook
	if cfg.RedisAddr != "" {
		rh := redishook.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 24*time.Hour)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rh.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warnf("redis unavailable, persistence hook disabled: %v", err)
		} else {
			hook = rh
			log.Infof("persistence hook enabled on %s", cfg.RedisAddr)
		}
	}

	dispatcher := dispatch.NewService(dispatch.Config{
		AutoDownload:     cfg.AutoDownload,
		OutputDir:        cfg.OutputDir,
		DefaultRecipient: cfg.NotifyRecipient,
		AdminRecipient:   cfg.AdminRecipient,
	}, download.NewClient(), mail, hook, log)

	handler := httptransport.NewHandler(dispatcher, audit, log)
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)
	router := httptransport.NewRouter(handler, limiter)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	})

	srv := &http.Server{Addr: cfg.WebhookAddr, Handler: c.Handler(router)}

	go func() {
		log.Infof("webhook receiver listening on %s", cfg.WebhookAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
