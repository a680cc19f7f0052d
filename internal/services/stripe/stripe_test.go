package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
)

func newTestService(t *testing.T, env string, handler http.Handler) StripeService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStripe(&StripeConfig{
		AppKey:      "sk_test_123",
		Environment: env,
		BaseURL:     srv.URL,
	}, zap.NewNop())
}

func TestAttachBankSourceRecoversExistingAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers/cus_1/sources", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"bank_account_exists","message":"A bank account with that routing number and account number already exists for this customer."}}`))
			return
		}
		assert.Equal(t, "bank_account", r.URL.Query().Get("object"))
		_, _ = w.Write([]byte(`{"object":"list","url":"/v1/customers/cus_1/sources","has_more":false,"data":[
			{"id":"ba_1","object":"bank_account","fingerprint":"fp_other","last4":"1111","status":"new"},
			{"id":"ba_2","object":"bank_account","fingerprint":"fp_match","last4":"6789","status":"verified"}
		]}`))
	})
	mux.HandleFunc("/v1/tokens/btok_1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"btok_1","object":"token","type":"bank_account","used":true,
			"bank_account":{"id":"ba_tok","object":"bank_account","fingerprint":"fp_match","last4":"6789","status":"new"}}`))
	})

	svc := newTestService(t, "sandbox", mux)

	res, src, err := svc.AttachBankSource(context.Background(), "cus_1", "btok_1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyExists("ba_2"), res)
	assert.Equal(t, "ba_2", src.ID)
	assert.True(t, src.Verified())
}

func TestAttachBankSourceCreated(t *testing.T) {
	svc := newTestService(t, "sandbox", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/customers/cus_1/sources", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "btok_1", r.PostForm.Get("source"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ba_new","object":"bank_account","fingerprint":"fp","last4":"6789","status":"new"}`))
	}))

	res, src, err := svc.AttachBankSource(context.Background(), "cus_1", "btok_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, res.Outcome)
	assert.Equal(t, "ba_new", res.ID)
	assert.False(t, src.Verified())
}

func TestCreateCardPaymentDeclined(t *testing.T) {
	svc := newTestService(t, "sandbox", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "card-key-1", r.Header.Get("Idempotency-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
	}))

	_, err := svc.CreateCardPayment(context.Background(), &CreateCardPaymentInput{
		Amount:          2000,
		PaymentMethodID: "pm_card_chargeDeclinedInsufficientFunds",
		IdempotencyKey:  "card-key-1",
	})

	var pe *domain.PaymentError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.KindRejection, pe.Kind)
	assert.Equal(t, "insufficient_funds: Your card has insufficient funds.", pe.ProviderDetail)
}

func TestVerifyBankSourceRefusedOutsideSandbox(t *testing.T) {
	svc := newTestService(t, "production", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := svc.VerifyBankSource(context.Background(), "cus_1", "ba_1")
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestListCharges(t *testing.T) {
	svc := newTestService(t, "sandbox", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","url":"/v1/charges","has_more":true,"data":[
			{"id":"ch_2","object":"charge","amount":2000,"status":"succeeded","created":1700000000},
			{"id":"ch_1","object":"charge","amount":150,"status":"pending","created":1690000000}
		]}`))
	}))

	charges, err := svc.ListCharges(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "ch_2", charges[0].ID)
	assert.Equal(t, int64(2000), charges[0].Amount)
	assert.Equal(t, "succeeded", charges[0].Status)
	assert.Equal(t, int64(1700000000), charges[0].Created.Unix())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"rate limited", &stripe.Error{HTTPStatusCode: 429, Code: stripe.ErrorCodeRateLimit}, domain.KindTransient},
		{"server error", &stripe.Error{HTTPStatusCode: 500, Type: stripe.ErrorTypeAPI}, domain.KindTransient},
		{"bank account exists", &stripe.Error{HTTPStatusCode: 400, Code: stripe.ErrorCodeBankAccountExists}, domain.KindConflict},
		{"card declined", &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard}, domain.KindRejection},
		{"bad key", &stripe.Error{HTTPStatusCode: 401, Type: stripe.ErrorTypeInvalidRequest}, domain.KindConfiguration},
		{"deadline", context.DeadlineExceeded, domain.KindTimeout},
		{"opaque", errors.New("boom"), domain.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.KindOf(classify("do thing", tt.err)))
		})
	}
}

func TestMatchBankSource(t *testing.T) {
	sources := []*domain.BankSource{
		{ID: "ba_1", Fingerprint: "fp1", Last4: "1111"},
		{ID: "ba_2", Fingerprint: "fp2", Last4: "2222"},
		{ID: "ba_3", Fingerprint: "fp3", Last4: "3333"},
	}

	assert.Equal(t, "ba_2", MatchBankSource(sources, &domain.BankSource{Fingerprint: "fp2", Last4: "3333"}).ID)
	assert.Equal(t, "ba_3", MatchBankSource(sources, &domain.BankSource{Fingerprint: "unknown", Last4: "3333"}).ID)
	assert.Equal(t, "ba_1", MatchBankSource(sources, &domain.BankSource{Fingerprint: "unknown"}).ID)
	assert.Equal(t, "ba_1", MatchBankSource(sources, nil).ID)
	assert.Nil(t, MatchBankSource(nil, nil))
}
