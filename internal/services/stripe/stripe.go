package stripe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/metrics"
	"github.com/GalaDe/payment-portal/internal/services/retry"
)

const providerName = "stripe"

// Test-mode micro-deposit amounts Stripe accepts for bank account verification.
var sandboxMicroDeposits = [2]int64{32, 45}

type stripeImpl struct {
	api     *client.API
	config  *StripeConfig
	timeout time.Duration
	logger  *zap.Logger
}

type StripeConfig struct {
	AppKey      string        `json:"AppKey"`
	Environment string        `json:"Environment"`
	Timeout     time.Duration `json:"Timeout"`
	// BaseURL overrides the API endpoint; empty means api.stripe.com.
	BaseURL    string       `json:"-"`
	HTTPClient *http.Client `json:"-"`
}

type StripeService interface {
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, input *CreateStripeCustomerInput) (*domain.Customer, error)
	AttachBankSource(ctx context.Context, customerID, bankAccountToken string) (domain.Resolved, *domain.BankSource, error)
	VerifyBankSource(ctx context.Context, customerID, sourceID string) (*domain.BankSource, error)
	CreateACHCharge(ctx context.Context, input *CreateACHChargeInput) (*domain.ACHCharge, error)
	CreateCardPayment(ctx context.Context, input *CreateCardPaymentInput) (*domain.CardPayment, error)
	ListCharges(ctx context.Context, limit int64) ([]domain.ChargeRecord, error)
	IsSandbox() bool
}

func NewStripe(config *StripeConfig, logger *zap.Logger) StripeService {
	backendConfig := &stripe.BackendConfig{
		// strategies never retry writes; reads go through retry.Read instead
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Sugar(),
		HTTPClient:        config.HTTPClient,
	}
	if config.BaseURL != "" {
		backendConfig.URL = stripe.String(config.BaseURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &stripeImpl{
		api:     client.New(config.AppKey, backends),
		config:  config,
		timeout: timeout,
		logger:  logger.With(zap.String("provider", providerName)),
	}
}

type CreateStripeCustomerInput struct {
	Identity       domain.Identity `json:"identity"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type CreateACHChargeInput struct {
	CustomerID     string `json:"CustomerID"`
	SourceID       string `json:"SourceID"`
	Amount         int64  `json:"Amount"` // cents
	Description    string `json:"Description"`
	IdempotencyKey string `json:"IdempotencyKey"`
}

type CreateCardPaymentInput struct {
	Amount          int64  `json:"amount"` // cents
	PaymentMethodID string `json:"payment_method_id"`
	ReceiptEmail    string `json:"receipt_email"`
	Description     string `json:"description"`
	IdempotencyKey  string `json:"idempotency_key"`
}

func (s *stripeImpl) IsSandbox() bool {
	return s.config.Environment != "production"
}

// FindCustomerByEmail returns the first customer with the given email, or nil when none exists.
func (s *stripeImpl) FindCustomerByEmail(ctx context.Context, email string) (cust *domain.Customer, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "customer_list", start, err) }(time.Now())

	err = retry.Read(ctx, s.logger, "customer_list", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		params := &stripe.CustomerListParams{Email: stripe.String(email)}
		params.Context = ctx
		params.Limit = stripe.Int64(1)
		params.Single = true

		iter := s.api.Customers.List(params)
		for iter.Next() {
			c := iter.Customer()
			cust = &domain.Customer{ID: c.ID, Email: c.Email}
			break
		}
		return classify("list customers", iter.Err())
	})
	if err != nil {
		return nil, err
	}
	return cust, nil
}

// CreateCustomer represents the payer in the Stripe system.
func (s *stripeImpl) CreateCustomer(ctx context.Context, input *CreateStripeCustomerInput) (cust *domain.Customer, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "customer_create", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Email: stripe.String(input.Identity.Email),
	}
	if name := input.Identity.FullName(); name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	c, err := s.api.Customers.New(params)
	if err != nil {
		return nil, classify("create customer", err)
	}

	return &domain.Customer{ID: c.ID, Email: c.Email}, nil
}

/*
AttachBankSource attaches the bank account token obtained from Plaid to the
customer. When Stripe reports the account already exists on the customer the
existing source is looked up and returned as AlreadyExists instead of an error.
*/
func (s *stripeImpl) AttachBankSource(ctx context.Context, customerID, bankAccountToken string) (res domain.Resolved, src *domain.BankSource, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "source_create", start, err) }(time.Now())

	createCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentSourceParams{
		Customer: stripe.String(customerID),
		Source:   &stripe.PaymentSourceSourceParams{Token: stripe.String(bankAccountToken)},
	}
	params.Context = createCtx

	ps, err := s.api.PaymentSources.New(params)
	if err == nil {
		return domain.Created(ps.ID), toBankSource(ps.ID, ps.BankAccount), nil
	}

	err = classify("attach bank account", err)
	if domain.KindOf(err) != domain.KindConflict {
		return domain.Resolved{}, nil, err
	}

	s.logger.Info("bank account already attached, looking up existing source",
		zap.String("customer_id", customerID))

	existing, err := s.findExistingBankSource(ctx, customerID, bankAccountToken)
	if err != nil {
		return domain.Resolved{}, nil, err
	}
	return domain.AlreadyExists(existing.ID), existing, nil
}

func (s *stripeImpl) findExistingBankSource(ctx context.Context, customerID, bankAccountToken string) (*domain.BankSource, error) {
	var wanted *domain.BankSource
	tokenErr := retry.Read(ctx, s.logger, "token_get", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		params := &stripe.TokenParams{}
		params.Context = ctx
		tok, err := s.api.Tokens.Get(bankAccountToken, params)
		if err != nil {
			return classify("retrieve bank account token", err)
		}
		if tok.BankAccount != nil {
			wanted = toBankSource(tok.BankAccount.ID, tok.BankAccount)
		}
		return nil
	})
	if tokenErr != nil {
		// matching degrades to the first listed bank account
		s.logger.Warn("could not retrieve bank account token", zap.Error(tokenErr))
	}

	var sources []*domain.BankSource
	err := retry.Read(ctx, s.logger, "source_list", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		params := &stripe.PaymentSourceListParams{
			Customer: stripe.String(customerID),
			Object:   stripe.String(string(stripe.PaymentSourceTypeBankAccount)),
		}
		params.Context = ctx

		sources = sources[:0]
		iter := s.api.PaymentSources.List(params)
		for iter.Next() {
			ps := iter.PaymentSource()
			if ps.BankAccount != nil {
				sources = append(sources, toBankSource(ps.ID, ps.BankAccount))
			}
		}
		return classify("list customer sources", iter.Err())
	})
	if err != nil {
		return nil, err
	}

	match := MatchBankSource(sources, wanted)
	if match == nil {
		return nil, domain.NewProviderError(providerName, domain.KindRejection,
			"bank account reported as existing but not found on customer", customerID, nil)
	}
	return match, nil
}

// MatchBankSource picks the source for the same bank account as wanted:
// by fingerprint, then by last4, then the first listed source.
func MatchBankSource(sources []*domain.BankSource, wanted *domain.BankSource) *domain.BankSource {
	if len(sources) == 0 {
		return nil
	}
	if wanted != nil {
		for _, src := range sources {
			if wanted.Fingerprint != "" && src.Fingerprint == wanted.Fingerprint {
				return src
			}
		}
		for _, src := range sources {
			if wanted.Last4 != "" && src.Last4 == wanted.Last4 {
				return src
			}
		}
	}
	return sources[0]
}

// VerifyBankSource submits Stripe's test micro-deposit amounts. Sandbox only.
func (s *stripeImpl) VerifyBankSource(ctx context.Context, customerID, sourceID string) (src *domain.BankSource, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "source_verify", start, err) }(time.Now())

	if !s.IsSandbox() {
		return nil, domain.NewProviderError(providerName, domain.KindConfiguration,
			"micro-deposit auto verification is only available in sandbox", "", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentSourceVerifyParams{
		Customer: stripe.String(customerID),
		Amounts:  sandboxMicroDeposits,
	}
	params.Context = ctx

	ps, err := s.api.PaymentSources.Verify(sourceID, params)
	if err != nil {
		return nil, classify("verify bank account", err)
	}
	return toBankSource(ps.ID, ps.BankAccount), nil
}

func (s *stripeImpl) CreateACHCharge(ctx context.Context, input *CreateACHChargeInput) (ch *domain.ACHCharge, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "charge_create", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chargeParams := &stripe.ChargeParams{
		Amount:      stripe.Int64(input.Amount), // amount in cents
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Customer:    stripe.String(input.CustomerID),
		Source:      &stripe.PaymentSourceSourceParams{Token: stripe.String(input.SourceID)},
		Description: stripe.String(input.Description),
		Params: stripe.Params{
			Context: ctx,
		},
	}
	if input.IdempotencyKey != "" {
		chargeParams.SetIdempotencyKey(input.IdempotencyKey)
	}

	result, err := s.api.Charges.New(chargeParams)
	if err != nil {
		return nil, classify("create charge", err)
	}

	return &domain.ACHCharge{
		ID:     result.ID,
		Amount: result.Amount,
		Status: string(result.Status),
	}, nil
}

/*
CreateCardPayment creates a PaymentIntent for a card payment. With a payment
method the intent is confirmed immediately; without one the client secret is
returned so the browser can confirm it with the card details.
*/
func (s *stripeImpl) CreateCardPayment(ctx context.Context, input *CreateCardPaymentInput) (pay *domain.CardPayment, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "payment_intent_create", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(input.Amount),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Description:        stripe.String(input.Description),
	}
	if input.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(input.ReceiptEmail)
	}
	if input.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(input.PaymentMethodID)
		params.Confirm = stripe.Bool(true)
	}
	params.Context = ctx
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}

	out := &domain.CardPayment{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
	}
	if pi.LastPaymentError != nil {
		out.FailureReason = pi.LastPaymentError.Msg
	}
	return out, nil
}

// ListCharges returns up to limit of the most recent charges, newest first.
func (s *stripeImpl) ListCharges(ctx context.Context, limit int64) (charges []domain.ChargeRecord, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "charge_list", start, err) }(time.Now())

	err = retry.Read(ctx, s.logger, "charge_list", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		params := &stripe.ChargeListParams{}
		params.Context = ctx
		params.Limit = stripe.Int64(limit)
		params.Single = true

		charges = charges[:0]
		iter := s.api.Charges.List(params)
		for iter.Next() {
			c := iter.Charge()
			charges = append(charges, domain.ChargeRecord{
				ID:      c.ID,
				Amount:  c.Amount,
				Status:  string(c.Status),
				Created: time.Unix(c.Created, 0).UTC(),
			})
		}
		return classify("list charges", iter.Err())
	})
	if err != nil {
		return nil, fmt.Errorf("stripe charge history: %w", err)
	}
	return charges, nil
}

func toBankSource(id string, ba *stripe.BankAccount) *domain.BankSource {
	src := &domain.BankSource{ID: id}
	if ba != nil {
		src.Status = string(ba.Status)
		src.Fingerprint = ba.Fingerprint
		src.Last4 = ba.Last4
	}
	return src
}
