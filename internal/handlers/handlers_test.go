package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/plaid"
)

type fakeLink struct {
	err error
}

func (f *fakeLink) CreateLinkToken(context.Context, string) (string, error) {
	return "link-sandbox-123", f.err
}

func (f *fakeLink) ExchangePublicToken(_ context.Context, publicToken string) (*plaid.ExchangeTokenResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &plaid.ExchangeTokenResponse{AccessToken: "access-" + publicToken, ItemID: "item"}, nil
}

type fakeAccounts struct {
	accounts []domain.BankAccount
}

func (f *fakeAccounts) ListAccounts(_ context.Context, bankToken string) ([]domain.BankAccount, error) {
	if bankToken == "" {
		return nil, domain.NewValidationError("bankToken is required")
	}
	return f.accounts, nil
}

type fakePayer struct {
	calls  int
	req    *domain.PaymentRequest
	result *domain.PaymentResult
	err    error
}

func (f *fakePayer) Pay(_ context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	f.calls++
	f.req = req
	return f.result, f.err
}

type fakeHistory struct {
	summaries []domain.PaymentSummary
	err       error
}

func (f *fakeHistory) ListPayments(context.Context) ([]domain.PaymentSummary, error) {
	if f.err != nil {
		return []domain.PaymentSummary{}, f.err
	}
	return f.summaries, nil
}

type testServer struct {
	link    *fakeLink
	payer   *fakePayer
	history *fakeHistory
	handler http.Handler
}

func newTestServer() *testServer {
	ts := &testServer{
		link:    &fakeLink{},
		payer:   &fakePayer{},
		history: &fakeHistory{},
	}
	accounts := &fakeAccounts{accounts: []domain.BankAccount{{ID: "acc_1", DisplayName: "Plaid Checking", Mask: "0000", Subtype: "checking", AvailableBalance: 100}}}
	h := NewHttpServer(zap.NewNop(), ts.link, accounts, ts.payer, ts.history, "client-user")
	ts.handler = RegisterRoutes(h)
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateLinkSession(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/plaid/create-link-session", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "link-sandbox-123", decode(t, rec)["sessionToken"])

	ts.link.err = domain.NewProviderError("plaid", domain.KindTransient, "failed to create link token", "INTERNAL_SERVER_ERROR", nil)
	rec = ts.do(http.MethodPost, "/api/plaid/create-link-session", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed to create link token", decode(t, rec)["error"])
}

func TestExchangeLinkToken(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/plaid/exchange-link-token", `{"publicToken":"public-sandbox-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-public-sandbox-1", decode(t, rec)["bankToken"])

	rec = ts.do(http.MethodPost, "/api/plaid/exchange-link-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "publicToken is required", decode(t, rec)["error"])
}

func TestListAccounts(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/plaid/accounts", `{"bankToken":"access"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accounts":[{"id":"acc_1","name":"Plaid Checking","mask":"0000","type":"checking","balance":100}]}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/plaid/accounts", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentRejectsBadAmountsBeforePaying(t *testing.T) {
	ts := newTestServer()

	for _, body := range []string{
		`{"method":"CARD","amount":0}`,
		`{"method":"CARD","amount":-3}`,
		`{"method":"BANK","amount":"abc","bankToken":"access"}`,
		`{"method":"BANK","bankToken":"access"}`,
		`{"method":"CARD","amount":null}`,
		`not json`,
	} {
		rec := ts.do(http.MethodPost, "/api/payments", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, decode(t, rec)["error"], body)
	}
	assert.Zero(t, ts.payer.calls)
}

func TestCreatePayment(t *testing.T) {
	ts := newTestServer()
	ts.payer.result = &domain.PaymentResult{
		TransactionID: "py_1",
		Amount:        decimal.RequireFromString("50.00"),
		Status:        domain.StatusPending,
		Strategy:      domain.StrategyBankViaProcessor,
	}

	rec := ts.do(http.MethodPost, "/api/payments", `{"amount":"50.00","method":"bank","bankToken":"access","accountId":"acc_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"transactionId":"py_1","amount":50,"status":"pending","strategy":"processor"}`, rec.Body.String())

	assert.Equal(t, domain.MethodBank, ts.payer.req.Method)
	assert.Equal(t, "acc_1", ts.payer.req.AccountID)
	assert.True(t, decimal.RequireFromString("50").Equal(ts.payer.req.Amount))
}

func TestCreatePaymentProviderFailure(t *testing.T) {
	tests := []struct {
		kind   domain.ErrorKind
		status int
	}{
		{domain.KindRejection, http.StatusPaymentRequired},
		{domain.KindTransient, http.StatusBadGateway},
		{domain.KindTimeout, http.StatusGatewayTimeout},
		{domain.KindConflict, http.StatusConflict},
		{domain.KindConfiguration, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ts := newTestServer()
			ts.payer.err = domain.NewProviderError("stripe", tt.kind, "failed to create charge", "insufficient_funds", nil)

			rec := ts.do(http.MethodPost, "/api/payments", `{"amount":20,"method":"BANK","bankToken":"access"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, `{"error":"failed to create charge","details":"insufficient_funds"}`, rec.Body.String())
		})
	}
}

func TestPaymentHistoryEmpty(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/payments/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"payments":[]}`, rec.Body.String())
}

func TestPaymentHistory(t *testing.T) {
	ts := newTestServer()
	ts.history.summaries = []domain.PaymentSummary{
		{ID: "ch_1", Amount: decimal.RequireFromString("13"), Display: "$13.00", Date: "Mar 5, 2024", Status: domain.StatusCompleted},
	}

	rec := ts.do(http.MethodGet, "/api/payments/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"payments":[{"id":"ch_1","amount":13.00,"display":"$13.00","date":"Mar 5, 2024","status":"completed"}]}`, rec.Body.String())
}

func TestPaymentHistoryFailure(t *testing.T) {
	ts := newTestServer()
	ts.history.err = errors.New("stripe unavailable")

	rec := ts.do(http.MethodGet, "/api/payments/history", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"payments":[],"error":"failed to load payment history"}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment portal is running", rec.Body.String())

	rec = ts.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payportal_http_requests_total")
}
