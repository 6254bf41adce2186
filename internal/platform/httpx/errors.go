// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/roadline/roadline/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Domain codes travel in the problem body so clients can branch without
// parsing messages.
func RespondError(w http.ResponseWriter, err error) {
	code := shared.CodeOf(err)
	switch code {
	case shared.CodeOrderNotFound, shared.CodePaymentNotFound, shared.CodeOfferNotFound,
		shared.CodeEstimateNotFound, shared.CodePartnerNotFound:
		problem(w, http.StatusNotFound, "Not Found", err.Error(), code)
	case shared.CodeForbidden:
		problem(w, http.StatusForbidden, "Forbidden", err.Error(), code)
	case shared.CodeInvalidTransition, shared.CodeInvalidState,
		shared.CodeOfferAlreadyAccepted, shared.CodeOfferExpired, shared.CodeEstimateExpired:
		problem(w, http.StatusConflict, "State Conflict", err.Error(), code)
	case shared.CodeValidation, shared.CodeInvalidRoute:
		problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), code)
	case shared.CodeWrongChain, shared.CodeTxNotFound, shared.CodeVerificationFailed:
		problem(w, http.StatusUnprocessableEntity, "Verification Failed", err.Error(), code)
	default:
		problem(w, http.StatusInternalServerError, "Internal Error", "", "")
	}
}

func problem(w http.ResponseWriter, status int, title, detail, code string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	})
}
