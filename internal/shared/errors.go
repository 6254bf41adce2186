package shared

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes surfaced to the HTTP layer.
const (
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	CodeOfferNotFound        = "OFFER_NOT_FOUND"
	CodeEstimateNotFound     = "ESTIMATE_NOT_FOUND"
	CodePartnerNotFound      = "PARTNER_NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInvalidState         = "INVALID_STATE"
	CodeOfferAlreadyAccepted = "OFFER_ALREADY_ACCEPTED"
	CodeOfferExpired         = "OFFER_EXPIRED"
	CodeEstimateExpired      = "ESTIMATE_EXPIRED"
	CodeInvalidRoute         = "INVALID_ROUTE"
	CodeWrongChain           = "WRONG_CHAIN"
	CodeTxNotFound           = "TX_NOT_FOUND"
	CodeVerificationFailed   = "VERIFICATION_FAILED"
	CodeValidation           = "VALIDATION"
)

// DomainError carries a stable code alongside a human-readable message.
// The core stays transport-agnostic; httpx translates codes to status codes.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a DomainError with the given code.
func NewError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewErrorf builds a DomainError with a formatted message.
func NewErrorf(code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain code from err, or "" when err is not a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
