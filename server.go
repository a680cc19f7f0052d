package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	config "github.com/GalaDe/payment-portal/internal/config"
	"github.com/GalaDe/payment-portal/internal/domain"
	handler "github.com/GalaDe/payment-portal/internal/handlers"
	applog "github.com/GalaDe/payment-portal/internal/log/log"
	dwolla "github.com/GalaDe/payment-portal/internal/services/dwolla"
	"github.com/GalaDe/payment-portal/internal/services/payment"
	plaid "github.com/GalaDe/payment-portal/internal/services/plaid"
	stripe "github.com/GalaDe/payment-portal/internal/services/stripe"
	"github.com/GalaDe/payment-portal/internal/services/temporal/activity"
	"github.com/GalaDe/payment-portal/internal/services/temporal/workflow"
	repository "github.com/GalaDe/payment-portal/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg *config.Config) error {
	appLogger, err := applog.New(appName, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer appLogger.Sync()
	logger := appLogger.Logger()

	plaidSvc := plaid.New(&plaid.PlaidOpts{
		ClientID:     cfg.Plaid.ClientID,
		ClientSecret: cfg.Plaid.Secret,
		Environment:  cfg.Plaid.Environment,
		Timeout:      cfg.ProviderTimeout,
	}, logger)

	stripeSvc := stripe.NewStripe(&stripe.StripeConfig{
		AppKey:      cfg.Stripe.SecretKey,
		Environment: cfg.Stripe.Environment,
		Timeout:     cfg.ProviderTimeout,
	}, logger)

	// Payment records and the cross-process customer lock need a database;
	// without one, records are skipped and locking stays in process.
	var (
		repo   domain.Repository
		locker domain.Locker = payment.NewKeyedLocker()
	)
	if cfg.DatabaseURL != "" {
		db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer db.Close()

		if err := repository.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
		transactor := repository.NewPostgresTransactor(db, logger)
		repo = repository.NewPostgresRepo(db, transactor)
		locker = repository.NewAdvisoryLocker(transactor)
	}

	var dwollaSvc dwolla.DwollaService
	if cfg.UsesDwolla() {
		dwollaSvc = dwolla.New(&dwolla.DwollaOpts{
			Key:         cfg.Dwolla.Key,
			Secret:      cfg.Dwolla.Secret,
			Environment: cfg.Dwolla.Environment,
			Timeout:     cfg.ProviderTimeout,
		}, logger)
	}

	var bank payment.Strategy
	switch cfg.BankStrategy {
	case domain.StrategyBankViaACHNetwork:
		customers := payment.NewCustomerResolver(payment.DwollaCustomers{Service: dwollaSvc}, cfg.Identity, locker, logger)
		bank = payment.NewACHNetworkStrategy(plaidSvc, dwollaSvc, customers, cfg.Dwolla.DestinationFundingSource, logger)
	default:
		customers := payment.NewCustomerResolver(payment.StripeCustomers{Service: stripeSvc}, cfg.Identity, locker, logger)
		processor := payment.NewProcessorACHStrategy(plaidSvc, stripeSvc, customers, logger)
		bank = processor

		if cfg.Temporal.Enabled {
			temporalClient, err := client.Dial(client.Options{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
				Logger:    applog.Wrap(logger.Named("temporal")),
			})
			if err != nil {
				return fmt.Errorf("unable to create Temporal client: %w", err)
			}
			defer temporalClient.Close()

			w := workflow.NewWorker(temporalClient, cfg.Temporal.TaskQueue)
			workflow.RegisterWorkflows(w)
			activity.NewTemporalActivityPort(processor).RegisterActivities(w)
			if err := w.Start(); err != nil {
				return fmt.Errorf("unable to start Temporal worker: %w", err)
			}
			defer w.Stop()

			bank = workflow.NewStrategy(temporalClient, cfg.Temporal.TaskQueue)
		}
	}

	var source payment.HistorySource
	switch cfg.History.Source {
	case config.HistorySourceDwolla:
		source = payment.DwollaHistory{Service: dwollaSvc, Identity: cfg.Identity}
	case config.HistorySourceRecords:
		source = payment.RecordsHistory{Repository: repo}
	default:
		source = stripeSvc
	}
	history := payment.NewHistoryViewer(source, cfg.History.PageSize, payment.MinAmountPolicy{Threshold: cfg.History.MinAmount}, logger)

	var opts []payment.InitiatorOption
	if repo != nil {
		opts = append(opts, payment.WithRecords(repo))
	}
	card := payment.NewCardStrategy(stripeSvc, cfg.Identity, logger)
	initiator := payment.NewInitiator(card, bank, logger, opts...)

	clientUserID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(cfg.Identity.Email))).String()
	httpHandler := handler.NewHttpServer(logger, plaidSvc, payment.NewAccountResolver(plaidSvc, logger), initiator, history, clientUserID)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsMiddleware.Handler(handler.RegisterRoutes(httpHandler)),
		ReadTimeout:  15 * time.Second,
		// a bank payment chains up to six provider calls
		WriteTimeout: 6 * cfg.ProviderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr),
			zap.String("bank_strategy", string(bank.Name())),
			zap.String("history_source", cfg.History.Source))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
