package dwolla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/metrics"
	"github.com/GalaDe/payment-portal/internal/services/retry"
)

const (
	providerName = "dwolla"

	sandboxURL    = "https://api-sandbox.dwolla.com"
	productionURL = "https://api.dwolla.com"

	receiveOnly = "receive-only"
)

type DwollaService interface {
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	CreateReceiveOnlyCustomer(ctx context.Context, identity domain.Identity) (domain.Resolved, error)
	CreateFundingSource(ctx context.Context, customerURL string, numbers domain.ACHNumbers) (domain.Resolved, error)
	GetFundingSource(ctx context.Context, fundingSourceURL string) (*FundingSource, error)
	CreateTransfer(ctx context.Context, input *CreateTransferInput) (*domain.Transfer, error)
	ListTransfers(ctx context.Context, customerURL string, limit int64) ([]domain.ChargeRecord, error)
}

type FundingSource struct {
	URL     string
	Name    string
	Status  string
	Removed bool
}

type CreateTransferInput struct {
	SourceURL      string
	DestinationURL string
	Amount         decimal.Decimal
	IdempotencyKey string
}

type Dwolla struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

func New(opts *DwollaOpts, logger *zap.Logger) DwollaService {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = sandboxURL
		if opts.Environment == "production" {
			baseURL = productionURL
		}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	creds := &clientcredentials.Config{
		ClientID:     opts.Key,
		ClientSecret: opts.Secret,
		TokenURL:     baseURL + "/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Dwolla{
		baseURL: baseURL,
		client:  creds.Client(context.Background()),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		logger:  logger.With(zap.String("provider", providerName)),
	}
}

// FindCustomerByEmail returns the first customer registered with email, or nil when none exists.
func (d *Dwolla) FindCustomerByEmail(ctx context.Context, email string) (cust *domain.Customer, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "customer_search", start, err) }(time.Now())

	query := url.Values{"email": {email}, "limit": {"1"}}
	var list customerList
	err = retry.Read(ctx, d.logger, "customer_search", func(ctx context.Context) error {
		_, err := d.do(ctx, http.MethodGet, d.baseURL+"/customers?"+query.Encode(), nil, "", &list)
		return classify("search customers", err)
	})
	if err != nil {
		return nil, err
	}
	if len(list.Embedded.Customers) == 0 {
		return nil, nil
	}
	c := list.Embedded.Customers[0]
	return &domain.Customer{ID: c.Links["self"].Href, Email: c.Email}, nil
}

/*
CreateReceiveOnlyCustomer creates the payer profile. A duplicate-email answer is
resolved to the existing profile, through the error's about link when Dwolla
provides one and by searching for the email otherwise.
*/
func (d *Dwolla) CreateReceiveOnlyCustomer(ctx context.Context, identity domain.Identity) (res domain.Resolved, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "customer_create", start, err) }(time.Now())

	body := createCustomerRequest{
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		Type:      receiveOnly,
	}

	location, err := d.do(ctx, http.MethodPost, d.baseURL+"/customers", body, "", nil)
	if err == nil {
		return domain.Created(location), nil
	}

	existing, ok := existingFrom(err)
	if !ok {
		return domain.Resolved{}, classify("create customer", err)
	}
	d.logger.Info("customer already exists", zap.String("email", identity.Email))

	if existing != "" {
		return domain.AlreadyExists(existing), nil
	}
	cust, err := d.FindCustomerByEmail(ctx, identity.Email)
	if err != nil {
		return domain.Resolved{}, err
	}
	if cust == nil {
		return domain.Resolved{}, domain.NewProviderError(providerName, domain.KindRejection,
			"customer reported as duplicate but not found", identity.Email, nil)
	}
	return domain.AlreadyExists(cust.ID), nil
}

// CreateFundingSource registers a bank account under the customer. A duplicate
// bank account resolves to the already registered funding source, identified by
// the error's about link or by its name.
func (d *Dwolla) CreateFundingSource(ctx context.Context, customerURL string, numbers domain.ACHNumbers) (res domain.Resolved, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "funding_source_create", start, err) }(time.Now())

	body := createFundingSourceRequest{
		RoutingNumber:   numbers.RoutingNumber,
		AccountNumber:   numbers.AccountNumber,
		BankAccountType: bankAccountType(numbers.Subtype),
		Name:            fundingSourceName(numbers),
	}

	location, err := d.do(ctx, http.MethodPost, customerURL+"/funding-sources", body, "", nil)
	if err == nil {
		return domain.Created(location), nil
	}

	existing, ok := existingFrom(err)
	if !ok {
		return domain.Resolved{}, classify("create funding source", err)
	}
	if existing != "" {
		return domain.AlreadyExists(existing), nil
	}

	sources, err := d.listFundingSources(ctx, customerURL)
	if err != nil {
		return domain.Resolved{}, err
	}
	name := fundingSourceName(numbers)
	for _, fs := range sources {
		if fs.Name == name {
			return domain.AlreadyExists(fs.URL), nil
		}
	}
	// Another account under the customer is never a stand-in for this one.
	return domain.Resolved{}, domain.NewProviderError(providerName, domain.KindConflict,
		"funding source reported as duplicate but not found", name, nil)
}

func (d *Dwolla) GetFundingSource(ctx context.Context, fundingSourceURL string) (fs *FundingSource, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "funding_source_get", start, err) }(time.Now())

	var res fundingSourceResource
	err = retry.Read(ctx, d.logger, "funding_source_get", func(ctx context.Context) error {
		_, err := d.do(ctx, http.MethodGet, fundingSourceURL, nil, "", &res)
		return classify("retrieve funding source", err)
	})
	if err != nil {
		return nil, err
	}
	return toFundingSource(res, fundingSourceURL), nil
}

func (d *Dwolla) listFundingSources(ctx context.Context, customerURL string) ([]*FundingSource, error) {
	var list fundingSourceList
	err := retry.Read(ctx, d.logger, "funding_source_list", func(ctx context.Context) error {
		_, err := d.do(ctx, http.MethodGet, customerURL+"/funding-sources?removed=false", nil, "", &list)
		return classify("list funding sources", err)
	})
	if err != nil {
		return nil, err
	}

	out := make([]*FundingSource, 0, len(list.Embedded.FundingSources))
	for _, res := range list.Embedded.FundingSources {
		out = append(out, toFundingSource(res, ""))
	}
	return out, nil
}

// CreateTransfer moves the exact decimal amount between two funding sources.
// The initial status is always pending.
func (d *Dwolla) CreateTransfer(ctx context.Context, input *CreateTransferInput) (t *domain.Transfer, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "transfer_create", start, err) }(time.Now())

	value := domain.ToTransferValue(input.Amount)
	body := createTransferRequest{
		Links: links{
			"source":      {Href: input.SourceURL},
			"destination": {Href: input.DestinationURL},
		},
		Amount: money{Value: value, Currency: "USD"},
	}

	location, err := d.do(ctx, http.MethodPost, d.baseURL+"/transfers", body, input.IdempotencyKey, nil)
	if err != nil {
		return nil, classify("create transfer", err)
	}

	return &domain.Transfer{
		ID:     lastSegment(location),
		URL:    location,
		Amount: value,
		Status: string(domain.StatusPending),
	}, nil
}

// ListTransfers returns up to limit of the customer's most recent transfers.
func (d *Dwolla) ListTransfers(ctx context.Context, customerURL string, limit int64) (records []domain.ChargeRecord, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "transfer_list", start, err) }(time.Now())

	var list transferList
	query := url.Values{"limit": {fmt.Sprint(limit)}}
	err = retry.Read(ctx, d.logger, "transfer_list", func(ctx context.Context) error {
		_, err := d.do(ctx, http.MethodGet, customerURL+"/transfers?"+query.Encode(), nil, "", &list)
		return classify("list transfers", err)
	})
	if err != nil {
		return nil, err
	}

	records = make([]domain.ChargeRecord, 0, len(list.Embedded.Transfers))
	for _, tr := range list.Embedded.Transfers {
		amount, err := decimal.NewFromString(tr.Amount.Value)
		if err != nil {
			d.logger.Warn("skipping transfer with unparseable amount",
				zap.String("transfer_id", tr.ID), zap.String("amount", tr.Amount.Value))
			continue
		}
		records = append(records, domain.ChargeRecord{
			ID:      tr.ID,
			Amount:  domain.ToMinorUnits(amount),
			Status:  tr.Status,
			Created: tr.Created,
		})
	}
	return records, nil
}

// do sends one rate-limited request and decodes the response into out when given.
// It returns the Location header, which Dwolla sets on every 201.
func (d *Dwolla) do(ctx context.Context, method, target string, body interface{}, idempotencyKey string, out interface{}) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", halJSON)
	if body != nil {
		req.Header.Set("Content-Type", halJSON)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &ResponseError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, &re.Body)
		return "", re
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.Header.Get("Location"), nil
}

// existingFrom reports whether err is a duplicate answer and the href it points at.
func existingFrom(err error) (string, bool) {
	re, ok := err.(*ResponseError)
	if !ok || !re.Duplicate() {
		return "", false
	}
	return re.ExistingResource(), true
}

func toFundingSource(res fundingSourceResource, fallbackURL string) *FundingSource {
	href := res.Links["self"].Href
	if href == "" {
		href = fallbackURL
	}
	return &FundingSource{
		URL:     href,
		Name:    res.Name,
		Status:  res.Status,
		Removed: res.Removed,
	}
}

func bankAccountType(subtype string) string {
	if subtype == "savings" {
		return "savings"
	}
	return "checking"
}

func fundingSourceName(numbers domain.ACHNumbers) string {
	name := numbers.AccountName
	if name == "" {
		name = "Bank account"
	}
	if n := len(numbers.AccountNumber); n >= 4 {
		name += " " + numbers.AccountNumber[n-4:]
	}
	return name
}

func lastSegment(href string) string {
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}
