/*
validator.go - Payment breakup validation

PURPOSE:
  Checks a candidate installment list against an invoice total before it is
  submitted. Every rule runs; every violated rule is reported. Violations are
  data, not errors, so a caller can show all messages at once.

RULES (reported in this order):
  1. MissingField          every candidate has an amount and a due date
  2. NonPositiveAmount     every entered amount is > 0
  3. CardinalityViolation  1 <= count <= 10
  4. SumMismatch           |sum - target| <= 0.01
  5. DateOrderViolation    due dates non-decreasing in the GIVEN order
  6. PastDateViolation     every due date >= today (day granularity)

BALANCE:
  IsBalanced uses a strict |remaining| < 0.01, SumMismatch a lenient > 0.01.
  A gap of exactly 0.01 is therefore error-free but not balanced, and
  CanSubmit (no errors AND balanced) stays false.

ORDER:
  The list is never sorted. [Mar 1, Feb 1] is a DateOrderViolation even
  though sorting would fix it: the caller's order is the schedule.

FAIL-FAST:
  A non-blank due date that is not YYYY-MM-DD cannot be compared at all.
  Validate returns the result it could still compute together with a
  *DateParseError.
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReconcileTolerance is the absolute currency gap accepted between the sum
// of installments and the invoice total.
var ReconcileTolerance = decimal.New(1, -2)

// =============================================================================
// VIOLATIONS
// =============================================================================

type ViolationKind string

const (
	MissingField         ViolationKind = "missing_field"
	NonPositiveAmount    ViolationKind = "non_positive_amount"
	CardinalityViolation ViolationKind = "cardinality_violation"
	SumMismatch          ViolationKind = "sum_mismatch"
	DateOrderViolation   ViolationKind = "date_order_violation"
	PastDateViolation    ViolationKind = "past_date_violation"
)

// Violation is one failed rule, with the candidates that caused it.
type Violation struct {
	Kind         ViolationKind
	Message      string
	CandidateIDs []CandidateID

	// Set for SumMismatch.
	Total  Amount
	Target Amount

	// Set for CardinalityViolation.
	Count int
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Total      Amount
	Target     Amount
	Remaining  Amount
	IsBalanced bool
	Errors     []Violation
}

// CanSubmit is the submit gate: no violations and balanced.
func (r ValidationResult) CanSubmit() bool {
	return len(r.Errors) == 0 && r.IsBalanced
}

// Has reports whether a violation of the given kind was found.
func (r ValidationResult) Has(kind ViolationKind) bool {
	_, ok := r.Violation(kind)
	return ok
}

// Violation returns the violation of the given kind, if any.
func (r ValidationResult) Violation(kind ViolationKind) (Violation, bool) {
	for _, v := range r.Errors {
		if v.Kind == kind {
			return v, true
		}
	}
	return Violation{}, false
}

// Kinds lists the violated rules in report order.
func (r ValidationResult) Kinds() []ViolationKind {
	kinds := make([]ViolationKind, len(r.Errors))
	for i, v := range r.Errors {
		kinds[i] = v.Kind
	}
	return kinds
}

// Messages lists one user-facing message per violated rule.
func (r ValidationResult) Messages() []string {
	msgs := make([]string, len(r.Errors))
	for i, v := range r.Errors {
		msgs[i] = v.Message
	}
	return msgs
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks candidate lists. The clock decides what "today" is.
type Validator struct {
	Clock Clock
}

// NewValidator returns a validator using clock, or the system clock if nil.
func NewValidator(clock Clock) *Validator {
	if clock == nil {
		clock = SystemClock
	}
	return &Validator{Clock: clock}
}

// Validate runs all rules against candidates, in the order given, for target.
func (v *Validator) Validate(candidates []InstallmentCandidate, target Amount) (ValidationResult, error) {
	target = normalizeAmount(target)
	total := ZeroAmount()
	for _, c := range candidates {
		total = total.Add(c.ParsedAmount())
	}
	remaining := target.Sub(total)

	result := ValidationResult{
		Total:      total,
		Target:     target,
		Remaining:  remaining,
		IsBalanced: remaining.Value.Abs().LessThan(ReconcileTolerance),
	}

	dates, parseErr := parseDueDates(candidates)

	result.appendIf(checkCompleteness(candidates))
	result.appendIf(checkPositivity(candidates))
	result.appendIf(checkCardinality(len(candidates)))
	result.appendIf(checkReconciliation(total, target))
	result.appendIf(checkDateOrder(candidates, dates))
	result.appendIf(checkNotPast(candidates, dates, v.Clock.Today()))

	if parseErr != nil {
		return result, parseErr
	}
	return result, nil
}

func (r *ValidationResult) appendIf(v *Violation) {
	if v != nil {
		r.Errors = append(r.Errors, *v)
	}
}

// parseDueDates parses every non-blank due date. Blank and malformed dates
// map to the zero Date and are skipped by the date rules.
func parseDueDates(candidates []InstallmentCandidate) ([]Date, error) {
	dates := make([]Date, len(candidates))
	var bad *DateParseError
	for i, c := range candidates {
		if !c.hasDueDate() {
			continue
		}
		d, err := ParseDate(c.DueDate)
		if err != nil {
			if bad == nil {
				bad = &DateParseError{}
			}
			bad.CandidateIDs = append(bad.CandidateIDs, c.ID)
			bad.Values = append(bad.Values, c.DueDate)
			continue
		}
		dates[i] = d
	}
	if bad != nil {
		return dates, bad
	}
	return dates, nil
}

func checkCompleteness(candidates []InstallmentCandidate) *Violation {
	var ids []CandidateID
	for _, c := range candidates {
		if !c.hasAmount() || !c.hasDueDate() {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return &Violation{Kind: MissingField, Message: "Please fill all required fields", CandidateIDs: ids}
}

func checkPositivity(candidates []InstallmentCandidate) *Violation {
	var ids []CandidateID
	for _, c := range candidates {
		// Blank amounts are already MissingField.
		if c.hasAmount() && !c.ParsedAmount().IsPositive() {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return &Violation{Kind: NonPositiveAmount, Message: "All amounts must be greater than 0", CandidateIDs: ids}
}

func checkCardinality(n int) *Violation {
	if n >= MinCandidates && n <= MaxCandidates {
		return nil
	}
	return &Violation{
		Kind:    CardinalityViolation,
		Message: fmt.Sprintf("A breakup needs between %d and %d items, got %d", MinCandidates, MaxCandidates, n),
		Count:   n,
	}
}

func checkReconciliation(total, target Amount) *Violation {
	if total.Sub(target).Value.Abs().LessThanOrEqual(ReconcileTolerance) {
		return nil
	}
	return &Violation{
		Kind:    SumMismatch,
		Message: fmt.Sprintf("Sum of breakups (%s) must equal invoice total (%s)", total, target),
		Total:   total,
		Target:  target,
	}
}

func checkDateOrder(candidates []InstallmentCandidate, dates []Date) *Violation {
	var ids []CandidateID
	var prev Date
	for i, d := range dates {
		if d.IsZero() {
			continue
		}
		if !prev.IsZero() && d.Before(prev) {
			ids = append(ids, candidates[i].ID)
		}
		prev = d
	}
	if len(ids) == 0 {
		return nil
	}
	return &Violation{Kind: DateOrderViolation, Message: "Due dates must be in ascending order", CandidateIDs: ids}
}

func checkNotPast(candidates []InstallmentCandidate, dates []Date, today Date) *Violation {
	var ids []CandidateID
	for i, d := range dates {
		if !d.IsZero() && d.Before(today) {
			ids = append(ids, candidates[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return &Violation{Kind: PastDateViolation, Message: "Due dates must be today or in the future", CandidateIDs: ids}
}
