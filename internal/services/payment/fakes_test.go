package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/dwolla"
	"github.com/GalaDe/payment-portal/internal/services/plaid"
	"github.com/GalaDe/payment-portal/internal/services/stripe"
)

type fakeCardProcessor struct {
	calls  int32
	result *domain.CardPayment
	err    error
	input  *stripe.CreateCardPaymentInput
}

func (f *fakeCardProcessor) CreateCardPayment(_ context.Context, input *stripe.CreateCardPaymentInput) (*domain.CardPayment, error) {
	atomic.AddInt32(&f.calls, 1)
	f.input = input
	return f.result, f.err
}

type fakeBankData struct {
	calls   int32
	numbers []domain.ACHNumbers
	err     error
}

func (f *fakeBankData) GetACHNumbers(_ context.Context, _ string) ([]domain.ACHNumbers, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.numbers, f.err
}

func (f *fakeBankData) CreateStripeToken(_ context.Context, _ string, accountID string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return "btok_" + accountID, nil
}

func (f *fakeBankData) ListAccounts(_ context.Context, _ string) ([]plaid.Account, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, f.err
}

type fakeACHProcessor struct {
	sandbox  bool
	attach   domain.Resolved
	source   *domain.BankSource
	verified int32
	charge   *stripe.CreateACHChargeInput
	status   string
}

func (f *fakeACHProcessor) AttachBankSource(_ context.Context, _, _ string) (domain.Resolved, *domain.BankSource, error) {
	return f.attach, f.source, nil
}

func (f *fakeACHProcessor) VerifyBankSource(_ context.Context, _, sourceID string) (*domain.BankSource, error) {
	atomic.AddInt32(&f.verified, 1)
	return &domain.BankSource{ID: sourceID, Status: "verified"}, nil
}

func (f *fakeACHProcessor) CreateACHCharge(_ context.Context, input *stripe.CreateACHChargeInput) (*domain.ACHCharge, error) {
	f.charge = input
	return &domain.ACHCharge{ID: "py_123", Amount: input.Amount, Status: f.status}, nil
}

func (f *fakeACHProcessor) IsSandbox() bool { return f.sandbox }

// fakeDirectory is a provider customer store that records every creation.
type fakeDirectory struct {
	mu        sync.Mutex
	customers map[string]string
	creates   int32

	// when set, CreateCustomer signals started and waits for gate or ctx
	started chan struct{}
	gate    chan struct{}
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{customers: make(map[string]string)}
}

func (f *fakeDirectory) Provider() string { return "fake" }

func (f *fakeDirectory) FindCustomer(_ context.Context, identity domain.Identity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[identity.Email], nil
}

func (f *fakeDirectory) CreateCustomer(ctx context.Context, identity domain.Identity) (domain.Resolved, error) {
	if f.gate != nil {
		close(f.started)
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.Resolved{}, ctx.Err()
		}
	}
	// widen the check-then-create window
	time.Sleep(5 * time.Millisecond)
	n := atomic.AddInt32(&f.creates, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("cus_%d", n)
	f.customers[identity.Email] = id
	return domain.Created(id), nil
}

type fakeNetwork struct {
	source   domain.Resolved
	dest     *dwolla.FundingSource
	transfer *dwolla.CreateTransferInput
}

func (f *fakeNetwork) CreateFundingSource(_ context.Context, _ string, _ domain.ACHNumbers) (domain.Resolved, error) {
	return f.source, nil
}

func (f *fakeNetwork) GetFundingSource(_ context.Context, url string) (*dwolla.FundingSource, error) {
	return f.dest, nil
}

func (f *fakeNetwork) CreateTransfer(_ context.Context, input *dwolla.CreateTransferInput) (*domain.Transfer, error) {
	f.transfer = input
	return &domain.Transfer{ID: "tr_1", Amount: domain.ToTransferValue(input.Amount), Status: "pending"}, nil
}

type fakeHistory struct {
	records []domain.ChargeRecord
	err     error
	limit   int64
}

func (f *fakeHistory) ListCharges(_ context.Context, limit int64) ([]domain.ChargeRecord, error) {
	f.limit = limit
	return f.records, f.err
}

type fakeRepository struct {
	mu      sync.Mutex
	records []*domain.PaymentRecord
	err     error
}

func (f *fakeRepository) InsertPayment(_ context.Context, rec *domain.PaymentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRepository) ListPayments(_ context.Context, limit uint64) ([]*domain.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if uint64(len(f.records)) < limit {
		return f.records, f.err
	}
	return f.records[:limit], f.err
}
