package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies every failure the payment flow can report.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindTransient     ErrorKind = "provider_transient"
	KindTimeout       ErrorKind = "provider_timeout"
	KindConflict      ErrorKind = "provider_conflict"
	KindRejection     ErrorKind = "provider_rejection"
	KindConfiguration ErrorKind = "configuration"
	KindUnknown       ErrorKind = "unknown"
)

// PaymentError is returned by every operation of the payment flow.
// Reason is safe to show to the user; ProviderDetail carries the provider's own message.
type PaymentError struct {
	Kind           ErrorKind
	Provider       string
	Reason         string
	ProviderDetail string
	Err            error
}

func (e *PaymentError) Error() string {
	msg := e.Reason
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.ProviderDetail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.ProviderDetail)
	}
	return msg
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func NewValidationError(reason string) *PaymentError {
	return &PaymentError{Kind: KindValidation, Reason: reason}
}

func NewProviderError(provider string, kind ErrorKind, reason, detail string, err error) *PaymentError {
	return &PaymentError{
		Kind:           kind,
		Provider:       provider,
		Reason:         reason,
		ProviderDetail: detail,
		Err:            err,
	}
}

// KindOf returns the kind of err, or KindUnknown when err is not a PaymentError.
func KindOf(err error) ErrorKind {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func IsTransient(err error) bool {
	k := KindOf(err)
	return k == KindTransient || k == KindTimeout
}

// TransportKind classifies errors that never reached the provider's API layer.
// ok is false when err carries no transport information.
func TransportKind(err error) (kind ErrorKind, ok bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout, true
		}
		return KindTransient, true
	}
	return "", false
}
