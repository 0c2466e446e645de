/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these to status codes with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Mutation errors - Candidate list capacity and minimum rules
  2. Session errors - Submission state machine guards
  3. Parse errors - Malformed dates (fail-fast)
  4. Store errors - Missing or duplicate records

NOTE:
  Breakup rule violations (MissingField, SumMismatch, ...) are NOT errors.
  They are returned as data in ValidationResult.Errors so callers can
  render all of them at once. See validator.go.

SEE ALSO:
  - validator.go: Violation kinds
  - session.go: Uses the session errors
*/
package billing

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCapacityExceeded is returned when appending to a full candidate list.
	ErrCapacityExceeded = errors.New("maximum 10 breakup items allowed")

	// ErrMinimumRequired is returned when removing the last candidate.
	ErrMinimumRequired = errors.New("at least one breakup item is required")

	// ErrCandidateNotFound is returned when an ID does not match any candidate.
	ErrCandidateNotFound = errors.New("breakup item not found")

	// ErrUnknownField is returned by Update for a field it cannot set.
	ErrUnknownField = errors.New("unknown breakup field")

	// ErrMalformedDate is returned when a due date is not a YYYY-MM-DD calendar date.
	ErrMalformedDate = errors.New("malformed date")

	// ErrSubmitInProgress is returned when Submit is called while a submission is in flight.
	ErrSubmitInProgress = errors.New("submission already in progress")

	// ErrAlreadySubmitted is returned once a session reached its terminal state.
	ErrAlreadySubmitted = errors.New("already submitted")

	// ErrSessionLocked is returned when editing a session that is not in Editing.
	ErrSessionLocked = errors.New("session is not editable")

	// ErrNonPositiveTotal is returned when creating an invoice whose total is <= 0.
	ErrNonPositiveTotal = errors.New("invoice total must be greater than 0")

	// ErrBreakupRejected is returned when a breakup fails validation.
	ErrBreakupRejected = errors.New("payment breakup rejected")

	// ErrTotalsMismatch is returned when client-supplied totals disagree with the calculator.
	ErrTotalsMismatch = errors.New("invoice totals do not match calculation")

	// ErrQuotationNotFound is returned when a referenced quotation doesn't exist.
	ErrQuotationNotFound = errors.New("quotation not found")

	// ErrQuotationNotAccepted is returned when invoicing a quotation that was not accepted.
	ErrQuotationNotAccepted = errors.New("quotation is not accepted")

	// ErrInvoiceNotFound is returned when a referenced invoice doesn't exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceExists is returned when a quotation already has an invoice.
	ErrInvoiceExists = errors.New("invoice already exists for quotation")

	// ErrBreakupExists is returned when an invoice already has a payment breakup.
	ErrBreakupExists = errors.New("payment breakup already exists for invoice")

	// ErrBreakupNotFound is returned when an invoice has no payment breakup yet.
	ErrBreakupNotFound = errors.New("payment breakup not found")

	// ErrNonPositivePayment is returned when recording a payment <= 0.
	ErrNonPositivePayment = errors.New("payment amount must be greater than 0")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateParseError reports the candidates whose due dates could not be parsed.
type DateParseError struct {
	CandidateIDs []CandidateID
	Values       []string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("malformed due date(s): %s", strings.Join(e.Values, ", "))
}

func (e *DateParseError) Unwrap() error {
	return ErrMalformedDate
}

// BreakupRejectedError carries the validation result that blocked a submission.
type BreakupRejectedError struct {
	Result ValidationResult
}

func (e *BreakupRejectedError) Error() string {
	msgs := e.Result.Messages()
	if len(msgs) == 0 {
		return fmt.Sprintf("payment breakup rejected: not balanced (remaining %s)", e.Result.Remaining)
	}
	return "payment breakup rejected: " + strings.Join(msgs, "; ")
}

func (e *BreakupRejectedError) Unwrap() error {
	return ErrBreakupRejected
}

// TotalsMismatchError describes a disagreement between submitted and computed totals.
type TotalsMismatchError struct {
	Field     string
	Submitted Amount
	Computed  Amount
}

func (e *TotalsMismatchError) Error() string {
	return fmt.Sprintf("%s: submitted %s, computed %s", e.Field, e.Submitted, e.Computed)
}

func (e *TotalsMismatchError) Unwrap() error {
	return ErrTotalsMismatch
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrMinimumRequired) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrMalformedDate) ||
		errors.Is(err, ErrNonPositiveTotal) ||
		errors.Is(err, ErrBreakupRejected) ||
		errors.Is(err, ErrTotalsMismatch) ||
		errors.Is(err, ErrNonPositivePayment) ||
		errors.Is(err, ErrQuotationNotAccepted)
}

// IsConflict returns true if the error means the target already exists or is busy.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvoiceExists) ||
		errors.Is(err, ErrBreakupExists) ||
		errors.Is(err, ErrSubmitInProgress) ||
		errors.Is(err, ErrAlreadySubmitted)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuotationNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrBreakupNotFound) ||
		errors.Is(err, ErrCandidateNotFound)
}
