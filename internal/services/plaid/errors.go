package plaid

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/GalaDe/payment-portal/internal/domain"
)

// errorBody is the subset of Plaid's error object we act on.
type errorBody struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// classify converts a plaid-go error into a domain.PaymentError.
func classify(op string, resp *http.Response, err error) error {
	if err == nil {
		return nil
	}
	if kind, ok := domain.TransportKind(err); ok {
		return domain.NewProviderError(providerName, kind, describe(op), err.Error(), err)
	}

	var body errorBody
	var withBody interface{ Body() []byte }
	if errors.As(err, &withBody) {
		_ = json.Unmarshal(withBody.Body(), &body)
	}

	detail := err.Error()
	if body.ErrorMessage != "" {
		detail = body.ErrorCode + ": " + body.ErrorMessage
	}

	return domain.NewProviderError(providerName, kindFor(statusCode(resp), body), describe(op), detail, err)
}

func kindFor(status int, body errorBody) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests, body.ErrorType == "RATE_LIMIT_EXCEEDED":
		return domain.KindTransient
	case status >= 500, body.ErrorType == "API_ERROR", body.ErrorType == "INSTITUTION_ERROR":
		return domain.KindTransient
	case status == 0 && body.ErrorType == "":
		// no response and no API body: the request never completed
		return domain.KindTransient
	}
	return domain.KindRejection
}
