package domain

import (
	"time"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"
)

// PaymentMethod selects the money-movement family requested by the caller.
type PaymentMethod string

const (
	MethodBank PaymentMethod = "BANK"
	MethodCard PaymentMethod = "CARD"
)

// PaymentStatus is the local status vocabulary. Provider statuses that have no
// local equivalent are passed through verbatim.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// StrategyName identifies a payment execution strategy.
type StrategyName string

const (
	StrategyCard              StrategyName = "card"
	StrategyBankViaProcessor  StrategyName = "processor"
	StrategyBankViaACHNetwork StrategyName = "ach_network"
)

// Identity is the merchant-defined payer every provider-side customer record is keyed on.
type Identity struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (i Identity) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

type BankAccount struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"name"`
	Mask             string  `json:"mask"`
	Subtype          string  `json:"type"`
	AvailableBalance float64 `json:"balance"`
}

// ACHNumbers are the account/routing numbers of one linked bank account.
type ACHNumbers struct {
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"-"`
	RoutingNumber string `json:"-"`
	Subtype       string `json:"subtype"`
}

type PaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	BankToken       string          `json:"bank_token,omitempty"`
	AccountID       string          `json:"account_id,omitempty"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"` // card only
}

type PaymentResult struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	Strategy      StrategyName    `json:"strategy"`
	ClientSecret  string          `json:"client_secret,omitempty"` // card intents awaiting browser confirmation
}

// PaymentSummary is one row of the payment history as shown to the merchant.
type PaymentSummary struct {
	ID      string          `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
	Display string          `json:"display"`
	Date    string          `json:"date"`
	Status  PaymentStatus   `json:"status"`
	Created time.Time       `json:"created_at"`
}

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type BankSource struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint"`
	Last4       string `json:"last4"`
}

func (b *BankSource) Verified() bool {
	return b.Status == "verified" || b.Status == "validated"
}

type ACHCharge struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"` // minor units
	Status string `json:"status"`
}

type CardPayment struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	ClientSecret  string `json:"client_secret"`
	FailureReason string `json:"failure_reason"`
}

type Transfer struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Amount string `json:"amount"`
	Status string `json:"status"`
}

// ChargeRecord is a provider-side historical charge or transfer, amount in minor units.
type ChargeRecord struct {
	ID      string
	Amount  int64
	Status  string
	Created time.Time
}

// PaymentRecord is the optional local trace of a successful payment.
type PaymentRecord struct {
	ID             string          `json:"id"`
	TransactionID  string          `json:"transaction_id"`
	Method         PaymentMethod   `json:"method"`
	Strategy       StrategyName    `json:"strategy"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus   `json:"status"`
	BankAccountID  null.String     `json:"bank_account_id"`
	ProviderDetail null.String     `json:"provider_detail"`
	CreatedAt      time.Time       `json:"created_at"`
}
