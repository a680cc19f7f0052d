package dwolla

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/GalaDe/payment-portal/internal/domain"
)

// ResponseError is a non-2xx answer from the Dwolla API.
type ResponseError struct {
	StatusCode int
	Body       apiError
}

func (e *ResponseError) Error() string {
	if e.Body.Code == "" {
		return fmt.Sprintf("dwolla API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("dwolla API error (status %d): %s: %s", e.StatusCode, e.Body.Code, e.Body.Message)
}

// Duplicate reports whether the error says the resource already exists.
func (e *ResponseError) Duplicate() bool {
	if e.Body.Code == "DuplicateResource" {
		return true
	}
	for _, fe := range e.Body.Embedded.Errors {
		if fe.Code == "Duplicate" {
			return true
		}
	}
	return false
}

// ExistingResource returns the href of the resource a duplicate error points at, if any.
func (e *ResponseError) ExistingResource() string {
	if about, ok := e.Body.Links["about"]; ok {
		return about.Href
	}
	for _, fe := range e.Body.Embedded.Errors {
		if about, ok := fe.Links["about"]; ok {
			return about.Href
		}
	}
	return ""
}

func (e *ResponseError) detail() string {
	for _, fe := range e.Body.Embedded.Errors {
		if fe.Message != "" {
			return fe.Code + ": " + fe.Message
		}
	}
	if e.Body.Message != "" {
		return e.Body.Code + ": " + e.Body.Message
	}
	return e.Error()
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	reason := "failed to " + op

	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		if tokenErr.Response != nil && tokenErr.Response.StatusCode >= 500 {
			return domain.NewProviderError(providerName, domain.KindTransient, reason, tokenErr.Error(), err)
		}
		return domain.NewProviderError(providerName, domain.KindConfiguration, reason,
			"token request rejected: "+tokenErr.Error(), err)
	}
	if kind, ok := domain.TransportKind(err); ok {
		return domain.NewProviderError(providerName, kind, reason, err.Error(), err)
	}

	var re *ResponseError
	if !errors.As(err, &re) {
		return domain.NewProviderError(providerName, domain.KindUnknown, reason, err.Error(), err)
	}
	return domain.NewProviderError(providerName, kindFor(re), reason, re.detail(), err)
}

func kindFor(re *ResponseError) domain.ErrorKind {
	switch {
	case re.StatusCode == http.StatusTooManyRequests, re.StatusCode >= 500:
		return domain.KindTransient
	case re.Duplicate():
		return domain.KindConflict
	case re.StatusCode == http.StatusUnauthorized, re.Body.Code == "InvalidCredentials":
		return domain.KindConfiguration
	}
	return domain.KindRejection
}
