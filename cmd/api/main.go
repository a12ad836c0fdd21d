package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/config"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/database"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/handlers"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/middleware"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/integration/zoho"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/mail"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/queue"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/tokenstore"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/worker"
	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	store, backends, err := tokenstore.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	// 2. Zoho
	accounts := zoho.NewAccountsClient(cfg.ZohoAccountsURL, cfg.ZohoClientID, cfg.ZohoClientSecret, cfg.ZohoRedirectURI, cfg.ZohoHTTPTimeout)
	crm := zoho.NewCRMClient(cfg.ZohoAPIBaseURL, cfg.ZohoHTTPTimeout, logger)
	tokens := usecase.NewTokenManager(store, accounts, cfg.TokenSafetyMargin, logger)

	// 3. Notifications
	var mailSender *mail.EmailSender
	if cfg.MailEnabled() {
		mailSender = mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.MailFrom, cfg.AlertEmailTo)
	}

	var rabbitMQ *queue.RabbitMQ
	opts := usecase.SubmitLeadOptions{
		DefaultCountryCode: cfg.DefaultCountryCode,
		CallTimeout:        cfg.ZohoHTTPTimeout,
	}
	if backends.DB != nil {
		opts.Journal = database.NewLeadRepository(backends.DB)
	}
	if cfg.RabbitMQURL != "" {
		rabbitMQ, err = queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()
		opts.Events = queue.NewProducer(rabbitMQ.Ch)

		if mailSender != nil {
			consumer := queue.NewWorker(rabbitMQ.Ch, mailSender, logger, middleware.RecordIntegrationError)
			go func() {
				if err := consumer.Start(ctx, queue.QueueName); err != nil {
					logger.Error("lead notification worker stopped", zap.Error(err))
				}
			}()
		}
	}

	// 4. Use cases
	sources := usecase.DefaultLeadSources()
	if cfg.LeadSourcesFile != "" {
		sources, err = usecase.LoadLeadSources(cfg.LeadSourcesFile)
		if err != nil {
			return err
		}
	}
	submitLead := usecase.NewSubmitLeadUseCase(tokens, crm, sources, opts, logger)

	if cfg.TokenRefreshEnabled {
		var alerter worker.RefreshAlerter
		if mailSender != nil {
			alerter = mailSender
		}
		refresher := worker.NewTokenRefreshWorker(tokens, alerter, cfg.TokenRefreshInterval, cfg.TokenRefreshLeadTime, logger, middleware.RecordTokenRefresh)
		go refresher.Start(ctx)
	}

	// 5. Handlers
	limiter := handlers.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBurst)
	deps := routerDeps{
		cfg:    cfg,
		logger: logger,
		leads:  handlers.NewLeadHandler(submitLead, sources, limiter, logger),
		health: handlers.NewHealthHandler(backends.DB, backends.Redis, rabbitMQConn(rabbitMQ), store, tokens),
		admin:  handlers.NewAdminHandler(tokens, logger),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("token_store", cfg.TokenStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
