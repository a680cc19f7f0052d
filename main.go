package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	config "github.com/GalaDe/payment-portal/internal/config"
	applog "github.com/GalaDe/payment-portal/internal/log/log"
	plaid "github.com/GalaDe/payment-portal/internal/services/plaid"
)

const appName = "payment-portal"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          appName,
		Short:        "Single-merchant payment portal",
		Long:         `Links a payer's bank through Plaid, takes card and ACH payments, and shows payment history.`,
		SilenceUsage: true,
	}

	var port string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
	serveCmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides PORT)")

	sandboxCmd := &cobra.Command{
		Use:   "sandbox-link",
		Short: "Link a Plaid sandbox bank without the Link UI and print its bank token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return sandboxLink(cmd.Context(), cfg)
		},
	}

	rootCmd.AddCommand(serveCmd, sandboxCmd)
	return rootCmd
}

func sandboxLink(ctx context.Context, cfg *config.Config) error {
	if cfg.Plaid.Environment != config.EnvSandbox {
		return fmt.Errorf("sandbox-link requires PLAID_ENV=sandbox, got %q", cfg.Plaid.Environment)
	}

	logger, err := applog.New(appName, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	plaidSvc := plaid.New(&plaid.PlaidOpts{
		ClientID:     cfg.Plaid.ClientID,
		ClientSecret: cfg.Plaid.Secret,
		Environment:  cfg.Plaid.Environment,
		Timeout:      cfg.ProviderTimeout,
	}, logger.Logger())

	resp, err := plaidSvc.CreateSandboxBankToken(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("bankToken: %s\naccountId: %s\n", resp.AccessToken, resp.AccountID)
	return nil
}
