package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
)

// today for every validator test: 2025-03-01, mid-afternoon
var testNow = time.Date(2025, time.March, 1, 15, 30, 0, 0, time.UTC)

func newTestValidator() *billing.Validator {
	return billing.NewValidator(billing.FixedClock(testNow))
}

func day(offset int) string {
	return billing.DateOf(testNow).AddDays(offset).String()
}

func cands(pairs ...string) []billing.InstallmentCandidate {
	var out []billing.InstallmentCandidate
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, billing.InstallmentCandidate{Amount: pairs[i], DueDate: pairs[i+1]})
	}
	return billing.CandidateListFrom(out).Items()
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestValidate_BalancedBreakupCanSubmit(t *testing.T) {
	// GIVEN: target 12036, [6000 today, 6036 in ten days]
	// WHEN: Validating
	// THEN: balanced, no errors, can submit

	result, err := newTestValidator().Validate(cands("6000", day(0), "6036", day(10)), inr("12036"))
	require.NoError(t, err)

	assert.True(t, result.Total.Equal(inr("12036")))
	assert.True(t, result.Remaining.IsZero())
	assert.True(t, result.IsBalanced)
	assert.Empty(t, result.Errors)
	assert.True(t, result.CanSubmit())
}

func TestValidate_ShortAndPastReportsEveryRule(t *testing.T) {
	// GIVEN: target 12036, [6000 today, 6000 yesterday]
	// THEN: SumMismatch and PastDateViolation are both reported

	result, err := newTestValidator().Validate(cands("6000", day(0), "6000", day(-1)), inr("12036"))
	require.NoError(t, err)

	assert.True(t, result.Has(billing.SumMismatch))
	assert.True(t, result.Has(billing.PastDateViolation))
	assert.True(t, result.Has(billing.DateOrderViolation))
	assert.False(t, result.CanSubmit())
	assert.True(t, result.Remaining.Equal(inr("36")))

	past, _ := result.Violation(billing.PastDateViolation)
	assert.Equal(t, []billing.CandidateID{2}, past.CandidateIDs)
}

func TestValidate_ReportOrder(t *testing.T) {
	// GIVEN: every rule violated at once (11 candidates, one blank, one negative, past and unordered)
	items := []billing.InstallmentCandidate{
		{Amount: "", DueDate: day(5)},
		{Amount: "-5", DueDate: day(3)},
		{Amount: "1", DueDate: day(-2)},
	}
	for i := 0; i < 8; i++ {
		items = append(items, billing.InstallmentCandidate{Amount: "1", DueDate: day(10)})
	}

	result, err := newTestValidator().Validate(billing.CandidateListFrom(items).Items(), inr("1000"))
	require.NoError(t, err)

	assert.Equal(t, []billing.ViolationKind{
		billing.MissingField,
		billing.NonPositiveAmount,
		billing.CardinalityViolation,
		billing.SumMismatch,
		billing.DateOrderViolation,
		billing.PastDateViolation,
	}, result.Kinds())

	card, _ := result.Violation(billing.CardinalityViolation)
	assert.Equal(t, 11, card.Count)
}

// =============================================================================
// RECONCILIATION TOLERANCE
// =============================================================================

func TestValidate_ToleranceBoundary(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		wantBalance bool
		wantErr     bool
	}{
		{"exact", "100", true, false},
		{"under by 0.009", "99.991", true, false},
		{"over by 0.009", "100.009", true, false},
		{"under by exactly 0.01", "99.99", false, false},
		{"over by 0.011", "100.011", false, true},
		{"under by 0.02", "99.98", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newTestValidator().Validate(cands(tt.amount, day(1)), inr("100"))
			require.NoError(t, err)

			assert.Equal(t, tt.wantBalance, result.IsBalanced)
			assert.Equal(t, tt.wantErr, result.Has(billing.SumMismatch))
			assert.Equal(t, tt.wantBalance && !tt.wantErr, result.CanSubmit())
		})
	}
}

func TestValidate_SumMismatchMessage(t *testing.T) {
	result, err := newTestValidator().Validate(cands("6000", day(0)), inr("12036"))
	require.NoError(t, err)

	v, ok := result.Violation(billing.SumMismatch)
	require.True(t, ok)
	assert.Equal(t, "Sum of breakups (6000.00) must equal invoice total (12036.00)", v.Message)
	assert.True(t, v.Total.Equal(inr("6000")))
	assert.True(t, v.Target.Equal(inr("12036")))
}

// =============================================================================
// DATES
// =============================================================================

func TestValidate_OrderIsNeverSorted(t *testing.T) {
	// GIVEN: [day+30, day+10], which sorting would fix
	// THEN: DateOrderViolation on the second candidate

	result, err := newTestValidator().Validate(cands("50", day(30), "50", day(10)), inr("100"))
	require.NoError(t, err)

	v, ok := result.Violation(billing.DateOrderViolation)
	require.True(t, ok)
	assert.Equal(t, []billing.CandidateID{2}, v.CandidateIDs)
	assert.Equal(t, "Due dates must be in ascending order", v.Message)
}

func TestValidate_EqualDatesAreOrdered(t *testing.T) {
	result, err := newTestValidator().Validate(cands("50", day(5), "50", day(5)), inr("100"))
	require.NoError(t, err)
	assert.False(t, result.Has(billing.DateOrderViolation))
	assert.True(t, result.CanSubmit())
}

func TestValidate_TodayIsNotPast(t *testing.T) {
	// GIVEN: clock at 15:30, due date = today
	// THEN: not a past date; yesterday is

	result, err := newTestValidator().Validate(cands("100", day(0)), inr("100"))
	require.NoError(t, err)
	assert.False(t, result.Has(billing.PastDateViolation))

	result, err = newTestValidator().Validate(cands("100", day(-1)), inr("100"))
	require.NoError(t, err)
	assert.True(t, result.Has(billing.PastDateViolation))
	assert.Equal(t, []string{"Due dates must be today or in the future"}, result.Messages())
}

func TestValidate_MalformedDateFailsFast(t *testing.T) {
	result, err := newTestValidator().Validate(cands("100", "01/03/2025"), inr("100"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrMalformedDate))

	var parseErr *billing.DateParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, []billing.CandidateID{1}, parseErr.CandidateIDs)
	assert.True(t, result.IsBalanced, "partial result is still returned")
}

// =============================================================================
// FIELDS AND CARDINALITY
// =============================================================================

func TestValidate_BlankFieldsAreMissingNotNonPositive(t *testing.T) {
	result, err := newTestValidator().Validate(cands("", day(1), "100", ""), inr("100"))
	require.NoError(t, err)

	v, ok := result.Violation(billing.MissingField)
	require.True(t, ok)
	assert.Equal(t, []billing.CandidateID{1, 2}, v.CandidateIDs)
	assert.Equal(t, "Please fill all required fields", v.Message)
	assert.False(t, result.Has(billing.NonPositiveAmount))
	assert.False(t, result.Has(billing.DateOrderViolation))
}

func TestValidate_ZeroAmount(t *testing.T) {
	result, err := newTestValidator().Validate(cands("0", day(1), "100", day(2)), inr("100"))
	require.NoError(t, err)

	v, ok := result.Violation(billing.NonPositiveAmount)
	require.True(t, ok)
	assert.Equal(t, []billing.CandidateID{1}, v.CandidateIDs)
	assert.True(t, result.IsBalanced)
	assert.False(t, result.CanSubmit())
}

func TestValidate_EmptyList(t *testing.T) {
	result, err := newTestValidator().Validate(nil, inr("100"))
	require.NoError(t, err)

	assert.True(t, result.Has(billing.CardinalityViolation))
	assert.True(t, result.Has(billing.SumMismatch))
	assert.True(t, result.Remaining.Equal(inr("100")))
}

func TestValidate_TenCandidatesAllowed(t *testing.T) {
	var pairs []string
	for i := 0; i < billing.MaxCandidates; i++ {
		pairs = append(pairs, "10", day(i))
	}
	result, err := newTestValidator().Validate(cands(pairs...), inr("100"))
	require.NoError(t, err)
	assert.True(t, result.CanSubmit())
}
