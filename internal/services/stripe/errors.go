package stripe

import (
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v75"

	"github.com/GalaDe/payment-portal/internal/domain"
)

// classify converts a stripe-go error into a domain.PaymentError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	reason := "failed to " + op
	if kind, ok := domain.TransportKind(err); ok {
		return domain.NewProviderError(providerName, kind, reason, err.Error(), err)
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return domain.NewProviderError(providerName, domain.KindUnknown, reason, err.Error(), err)
	}

	detail := se.Msg
	if se.DeclineCode != "" {
		detail = string(se.DeclineCode) + ": " + se.Msg
	} else if se.Code != "" {
		detail = string(se.Code) + ": " + se.Msg
	}

	return domain.NewProviderError(providerName, kindFor(se), reason, detail, err)
}

func kindFor(se *stripe.Error) domain.ErrorKind {
	switch {
	case se.HTTPStatusCode == http.StatusTooManyRequests, se.Code == stripe.ErrorCodeRateLimit:
		return domain.KindTransient
	case se.HTTPStatusCode >= 500, se.Type == stripe.ErrorTypeAPI:
		return domain.KindTransient
	case se.Code == stripe.ErrorCodeBankAccountExists:
		return domain.KindConflict
	case se.Type == stripe.ErrorTypeIdempotency:
		return domain.KindConflict
	case se.HTTPStatusCode == http.StatusUnauthorized:
		return domain.KindConfiguration
	}
	return domain.KindRejection
}
