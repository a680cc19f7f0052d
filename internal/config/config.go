package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/GalaDe/payment-portal/internal/domain"
)

const (
	EnvSandbox     = "sandbox"
	EnvDevelopment = "development"
	EnvProduction  = "production"

	HistorySourceStripe  = "stripe"
	HistorySourceDwolla  = "dwolla"
	HistorySourceRecords = "records"
)

// Config holds all configuration for the application.
type Config struct {
	Port               string
	LogLevel           string
	CORSAllowedOrigins []string
	ProviderTimeout    time.Duration

	Plaid    PlaidConfig
	Stripe   StripeConfig
	Dwolla   DwollaConfig
	Identity domain.Identity

	BankStrategy domain.StrategyName
	History      HistoryConfig

	DatabaseURL string
	Temporal    TemporalConfig
}

type PlaidConfig struct {
	ClientID    string
	Secret      string
	Environment string
}

type StripeConfig struct {
	SecretKey   string
	Environment string
}

type DwollaConfig struct {
	Key         string
	Secret      string
	Environment string
	// DestinationFundingSource is the merchant's own receiving funding source URL.
	DestinationFundingSource string
}

type HistoryConfig struct {
	Source    string
	PageSize  int64
	MinAmount decimal.Decimal
}

type TemporalConfig struct {
	Enabled   bool
	HostPort  string
	Namespace string
	TaskQueue string
}

// ConfigurationError lists every problem found while loading configuration.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigurationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Load loads environment variables into the Config struct.
func Load() (*Config, error) {
	// Load from .env file if present (optional)
	_ = godotenv.Load()

	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup, errs: &ConfigurationError{}}

	cfg := &Config{
		Port:               r.getEnv("PORT", "8080"),
		LogLevel:           r.getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(r.getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ProviderTimeout:    r.duration("PROVIDER_TIMEOUT", 15*time.Second),
		Plaid: PlaidConfig{
			ClientID:    r.mustEnv("PLAID_CLIENT_ID"),
			Secret:      r.mustEnv("PLAID_SECRET"),
			Environment: r.environment("PLAID_ENV", EnvSandbox, EnvDevelopment, EnvProduction),
		},
		Stripe: StripeConfig{
			SecretKey:   r.mustEnv("STRIPE_SECRET_KEY"),
			Environment: r.environment("STRIPE_ENV", EnvSandbox, EnvProduction),
		},
		Dwolla: DwollaConfig{
			Key:                      r.getEnv("DWOLLA_KEY", ""),
			Secret:                   r.getEnv("DWOLLA_SECRET", ""),
			Environment:              r.environment("DWOLLA_ENV", EnvSandbox, EnvProduction),
			DestinationFundingSource: r.getEnv("DWOLLA_DESTINATION_FUNDING_SOURCE", ""),
		},
		Identity: domain.Identity{
			Email:     r.mustEnv("CUSTOMER_EMAIL"),
			FirstName: r.getEnv("CUSTOMER_FIRST_NAME", ""),
			LastName:  r.getEnv("CUSTOMER_LAST_NAME", ""),
		},
		BankStrategy: domain.StrategyName(r.oneOf("PAYMENT_BANK_STRATEGY", string(domain.StrategyBankViaProcessor),
			string(domain.StrategyBankViaProcessor), string(domain.StrategyBankViaACHNetwork))),
		History: HistoryConfig{
			Source:    r.oneOf("HISTORY_SOURCE", HistorySourceStripe, HistorySourceStripe, HistorySourceDwolla, HistorySourceRecords),
			PageSize:  r.positiveInt("HISTORY_PAGE_SIZE", 25),
			MinAmount: r.decimal("HISTORY_MIN_AMOUNT"),
		},
		DatabaseURL: r.getEnv("DATABASE_URL", ""),
		Temporal: TemporalConfig{
			Enabled:   r.boolean("TEMPORAL_ENABLED"),
			HostPort:  r.getEnv("TEMPORAL_HOST_PORT", "localhost:7233"),
			Namespace: r.getEnv("TEMPORAL_NAMESPACE", "default"),
			TaskQueue: r.getEnv("TEMPORAL_TASK_QUEUE", "payment-task-queue"),
		},
	}

	cfg.validate(r.errs)
	if len(r.errs.Problems) > 0 {
		return nil, r.errs
	}
	return cfg, nil
}

// UsesDwolla reports whether any enabled component talks to the ACH network provider.
func (c *Config) UsesDwolla() bool {
	return c.BankStrategy == domain.StrategyBankViaACHNetwork || c.History.Source == HistorySourceDwolla
}

func (c *Config) validate(errs *ConfigurationError) {
	if c.UsesDwolla() {
		if c.Dwolla.Key == "" || c.Dwolla.Secret == "" {
			errs.add("DWOLLA_KEY and DWOLLA_SECRET are required by the ach_network strategy and dwolla history")
		}
		if c.Dwolla.DestinationFundingSource == "" {
			errs.add("DWOLLA_DESTINATION_FUNDING_SOURCE is required by the ach_network strategy and dwolla history")
		}
	}
	if c.History.Source == HistorySourceRecords && c.DatabaseURL == "" {
		errs.add("DATABASE_URL is required when HISTORY_SOURCE=records")
	}
	if c.History.MinAmount.IsNegative() {
		errs.add("HISTORY_MIN_AMOUNT must not be negative")
	}
}

type reader struct {
	lookup func(string) (string, bool)
	errs   *ConfigurationError
}

// getEnv returns the env var value or default if unset.
func (r reader) getEnv(key, defaultVal string) string {
	val, ok := r.lookup(key)
	val = strings.TrimSpace(val)
	if !ok || val == "" {
		return defaultVal
	}
	return val
}

// mustEnv returns the value of the env var or records it as missing.
func (r reader) mustEnv(key string) string {
	val := r.getEnv(key, "")
	if val == "" {
		r.errs.add("missing required environment variable: %s", key)
	}
	return val
}

// environment accepts defaultVal and any of the other allowed selectors.
func (r reader) environment(key, defaultVal string, others ...string) string {
	return r.oneOf(key, defaultVal, append([]string{defaultVal}, others...)...)
}

func (r reader) oneOf(key, defaultVal string, allowed ...string) string {
	val := strings.ToLower(r.getEnv(key, defaultVal))
	for _, a := range allowed {
		if val == a {
			return val
		}
	}
	r.errs.add("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), val)
	return defaultVal
}

func (r reader) duration(key string, defaultVal time.Duration) time.Duration {
	raw := r.getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		r.errs.add("%s must be a positive duration, got %q", key, raw)
		return defaultVal
	}
	return d
}

func (r reader) positiveInt(key string, defaultVal int64) int64 {
	raw := r.getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		r.errs.add("%s must be a positive integer, got %q", key, raw)
		return defaultVal
	}
	return n
}

func (r reader) decimal(key string) decimal.Decimal {
	raw := r.getEnv(key, "")
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		r.errs.add("%s must be a decimal number, got %q", key, raw)
		return decimal.Zero
	}
	return d
}

func (r reader) boolean(key string) bool {
	raw := r.getEnv(key, "")
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.errs.add("%s must be a boolean, got %q", key, raw)
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
