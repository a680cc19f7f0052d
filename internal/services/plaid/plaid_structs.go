package plaid

import (
	"net/http"
	"time"
)

type PlaidOpts struct {
	ClientID     string        `json:"clientID"`
	ClientSecret string        `json:"secret"`
	Environment  string        `json:"environment"`
	Timeout      time.Duration `json:"timeout"`
	HTTPClient   *http.Client  `json:"-"`
}

type ExchangeTokenResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// Account is a Plaid account as listed on an item. Balances are nil when Plaid
// did not report them.
type Account struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Mask      string   `json:"mask"`
	Type      string   `json:"type"`
	Subtype   string   `json:"subtype"`
	Available *float64 `json:"available"`
	Current   *float64 `json:"current"`
}

type CreatePlaidBankAccountResponse struct {
	AccountID   string `json:"AccountID"`
	AccessToken string `json:"AccessToken"`
	ItemID      string `json:"ItemID"`
}
