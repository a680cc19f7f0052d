package dwolla

import "time"

const halJSON = "application/vnd.dwolla.v1.hal+json"

type DwollaOpts struct {
	Key         string        `json:"key"`
	Secret      string        `json:"secret"`
	Environment string        `json:"environment"`
	Timeout     time.Duration `json:"timeout"`
	// BaseURL overrides the environment's API host.
	BaseURL string `json:"-"`
	// RequestsPerSecond caps outbound calls; zero means the default.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type link struct {
	Href string `json:"href"`
}

type links map[string]link

type money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type customerResource struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status"`
	Links  links  `json:"_links"`
}

type fundingSourceResource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	BankName string `json:"bankName"`
	Removed  bool   `json:"removed"`
	Links    links  `json:"_links"`
}

type transferResource struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Amount  money     `json:"amount"`
	Created time.Time `json:"created"`
	Links   links     `json:"_links"`
}

type customerList struct {
	Embedded struct {
		Customers []customerResource `json:"customers"`
	} `json:"_embedded"`
}

type fundingSourceList struct {
	Embedded struct {
		FundingSources []fundingSourceResource `json:"funding-sources"`
	} `json:"_embedded"`
}

type transferList struct {
	Embedded struct {
		Transfers []transferResource `json:"transfers"`
	} `json:"_embedded"`
}

type createCustomerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Type      string `json:"type"`
}

type createFundingSourceRequest struct {
	RoutingNumber   string `json:"routingNumber"`
	AccountNumber   string `json:"accountNumber"`
	BankAccountType string `json:"bankAccountType"`
	Name            string `json:"name"`
}

type createTransferRequest struct {
	Links  links `json:"_links"`
	Amount money `json:"amount"`
}

// apiError is Dwolla's error body. Validation errors nest the field errors.
type apiError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Links    links  `json:"_links"`
	Embedded struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Path    string `json:"path"`
			Links   links  `json:"_links"`
		} `json:"errors"`
	} `json:"_embedded"`
}
