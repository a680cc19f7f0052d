package plaid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/plaid/plaid-go/v12/plaid"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/metrics"
	"github.com/GalaDe/payment-portal/internal/services/retry"
)

const (
	providerName = "plaid"
	clientName   = "Payment Portal"

	// First Platypus Bank, the sandbox institution used by the seeding helper.
	sandboxInstitution = "ins_128026"
)

type Plaid struct {
	client  *plaid.APIClient
	timeout time.Duration
	logger  *zap.Logger
}

type PlaidService interface {
	CreateLinkToken(ctx context.Context, clientUserID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeTokenResponse, error)
	ListAccounts(ctx context.Context, accessToken string) ([]Account, error)
	GetACHNumbers(ctx context.Context, accessToken string) ([]domain.ACHNumbers, error)
	CreateStripeToken(ctx context.Context, accessToken, accountID string) (string, error)
	CreateSandboxBankToken(ctx context.Context) (*CreatePlaidBankAccountResponse, error)
}

func New(opts *PlaidOpts, logger *zap.Logger) PlaidService {
	config := plaid.NewConfiguration()
	config.AddDefaultHeader("PLAID-CLIENT-ID", opts.ClientID)
	config.AddDefaultHeader("PLAID-SECRET", opts.ClientSecret)
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	}

	switch opts.Environment {
	case "production":
		config.UseEnvironment(plaid.Production)
	case "development":
		config.UseEnvironment(plaid.Development)
	default:
		config.UseEnvironment(plaid.Sandbox)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Plaid{
		client:  plaid.NewAPIClient(config),
		timeout: timeout,
		logger:  logger.With(zap.String("provider", providerName)),
	}
}

// CreateLinkToken generates a short-lived Link token for the given client user.
// The frontend opens Plaid Link with it; it is single use and expires in 30 minutes.
func (p *Plaid) CreateLinkToken(ctx context.Context, clientUserID string) (token string, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "link_token_create", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: clientUserID,
	}

	req := plaid.NewLinkTokenCreateRequest(
		clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	req.SetProducts([]plaid.Products{plaid.PRODUCTS_AUTH})

	res, httpResp, err := p.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", classify("create link token", httpResp, err)
	}

	return res.GetLinkToken(), nil
}

// ExchangePublicToken exchanges the public_token handed back by Plaid Link for a
// long-lived access token. The exchange is a write and is never retried.
func (p *Plaid) ExchangePublicToken(ctx context.Context, publicToken string) (resp *ExchangeTokenResponse, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "public_token_exchange", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	exchangeReq := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	res, httpResp, err := p.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*exchangeReq).Execute()
	if err != nil {
		return nil, classify("exchange public token", httpResp, err)
	}

	return &ExchangeTokenResponse{
		AccessToken: res.GetAccessToken(),
		ItemID:      res.GetItemId(),
	}, nil
}

// ListAccounts returns every account on the item, unfiltered.
func (p *Plaid) ListAccounts(ctx context.Context, accessToken string) (accounts []Account, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "accounts_get", start, err) }(time.Now())

	err = retry.Read(ctx, p.logger, "accounts_get", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		req := plaid.NewAccountsGetRequest(accessToken)
		res, httpResp, err := p.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
		if err != nil {
			return classify("get accounts", httpResp, err)
		}
		accounts = toAccounts(res.GetAccounts())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetACHNumbers returns account and routing numbers for every account on the item
// that has them, in the order Plaid lists the accounts.
func (p *Plaid) GetACHNumbers(ctx context.Context, accessToken string) (numbers []domain.ACHNumbers, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "auth_get", start, err) }(time.Now())

	err = retry.Read(ctx, p.logger, "auth_get", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		req := plaid.NewAuthGetRequest(accessToken)
		res, httpResp, err := p.client.PlaidApi.AuthGet(ctx).AuthGetRequest(*req).Execute()
		if err != nil {
			return classify("get auth numbers", httpResp, err)
		}

		numbers = achNumbersFrom(res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

// CreateStripeToken exchanges the access token for a Stripe bank account token
// (btok_...) scoped to a single account.
func (p *Plaid) CreateStripeToken(ctx context.Context, accessToken, accountID string) (token string, err error) {
	defer func(start time.Time) { metrics.ObserveProviderCall(providerName, "stripe_token_create", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	request := plaid.NewProcessorStripeBankAccountTokenCreateRequest(accessToken, accountID)
	res, httpResp, err := p.client.PlaidApi.ProcessorStripeBankAccountTokenCreate(ctx).ProcessorStripeBankAccountTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", classify("create stripe bank account token", httpResp, err)
	}
	return res.GetStripeBankAccountToken(), nil
}

// *SANDBOX ONLY* CreateSandboxBankToken links a First Platypus checking account
// without the Link UI and returns its access token and account id.
func (p *Plaid) CreateSandboxBankToken(ctx context.Context) (*CreatePlaidBankAccountResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*p.timeout)
	defer cancel()

	request := *plaid.NewSandboxPublicTokenCreateRequest(
		sandboxInstitution,
		[]plaid.Products{plaid.PRODUCTS_AUTH},
	)

	sandboxResp, httpResp, err := p.client.PlaidApi.SandboxPublicTokenCreate(ctx).SandboxPublicTokenCreateRequest(request).Execute()
	if err != nil {
		return nil, classify("create sandbox public token", httpResp, err)
	}

	exchangeResp, httpResp, err := p.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(
		*plaid.NewItemPublicTokenExchangeRequest(sandboxResp.GetPublicToken()),
	).Execute()
	if err != nil {
		return nil, classify("exchange sandbox public token", httpResp, err)
	}

	accessToken := exchangeResp.GetAccessToken()
	accountsResp, httpResp, err := p.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(
		*plaid.NewAccountsGetRequest(accessToken),
	).Execute()
	if err != nil {
		return nil, classify("get sandbox accounts", httpResp, err)
	}

	accounts := accountsResp.GetAccounts()
	if len(accounts) == 0 {
		return nil, errors.New("sandbox item has no accounts")
	}

	return &CreatePlaidBankAccountResponse{
		AccessToken: accessToken,
		AccountID:   accounts[0].GetAccountId(),
		ItemID:      exchangeResp.GetItemId(),
	}, nil
}

func toAccounts(in []plaid.AccountBase) []Account {
	out := make([]Account, 0, len(in))
	for _, a := range in {
		acc := Account{
			ID:   a.GetAccountId(),
			Name: a.GetName(),
			Type: string(a.GetType()),
		}
		if mask := a.Mask.Get(); mask != nil {
			acc.Mask = *mask
		}
		if subtype := a.Subtype.Get(); subtype != nil {
			acc.Subtype = string(*subtype)
		}
		acc.Available = a.Balances.Available.Get()
		acc.Current = a.Balances.Current.Get()
		out = append(out, acc)
	}
	return out
}

func achNumbersFrom(res plaid.AuthGetResponse) []domain.ACHNumbers {
	nums := res.GetNumbers()
	return joinACHNumbers(toAccounts(res.GetAccounts()), nums.GetAch())
}

func joinACHNumbers(accounts []Account, ach []plaid.NumbersACH) []domain.ACHNumbers {
	byAccount := make(map[string]plaid.NumbersACH, len(ach))
	for _, n := range ach {
		byAccount[n.GetAccountId()] = n
	}

	out := make([]domain.ACHNumbers, 0, len(ach))
	for _, acc := range accounts {
		n, ok := byAccount[acc.ID]
		if !ok {
			continue
		}
		out = append(out, domain.ACHNumbers{
			AccountID:     acc.ID,
			AccountName:   acc.Name,
			AccountNumber: n.GetAccount(),
			RoutingNumber: n.GetRouting(),
			Subtype:       acc.Subtype,
		})
	}
	return out
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func describe(op string) string {
	return fmt.Sprintf("failed to %s", op)
}
