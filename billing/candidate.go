package billing

import (
	"fmt"
	"strings"
)

// =============================================================================
// INSTALLMENT CANDIDATE - One editable row of a payment breakup
// =============================================================================

const (
	// MinCandidates is the floor Remove enforces.
	MinCandidates = 1
	// MaxCandidates is the cap Append enforces.
	MaxCandidates = 10
)

// InstallmentCandidate is an installment that has not been submitted yet.
// Amount and DueDate hold the raw user input; parsing happens in Validate.
type InstallmentCandidate struct {
	ID          CandidateID
	Amount      string
	DueDate     string // YYYY-MM-DD
	Description string
}

// ParsedAmount returns the numeric amount; blank or unparseable input is 0.
func (c InstallmentCandidate) ParsedAmount() Amount {
	return NewAmountFromDecimal(ParseDecimalOrZero(strings.TrimSpace(c.Amount)))
}

func (c InstallmentCandidate) hasAmount() bool  { return strings.TrimSpace(c.Amount) != "" }
func (c InstallmentCandidate) hasDueDate() bool { return strings.TrimSpace(c.DueDate) != "" }

// Field names an editable candidate field.
type Field string

const (
	FieldAmount      Field = "amount"
	FieldDueDate     Field = "due_date"
	FieldDescription Field = "description"
)

// =============================================================================
// CANDIDATE LIST - Caller-owned, insertion-ordered collection
// =============================================================================

// CandidateList is the ordered set of candidates being edited. Order is the
// order of insertion and is never changed; the validator treats it as the
// chronological order of the schedule.
type CandidateList struct {
	items  []InstallmentCandidate
	nextID CandidateID
}

// NewCandidateList returns a list holding one empty candidate.
func NewCandidateList() *CandidateList {
	l := &CandidateList{nextID: 1}
	l.items = append(l.items, InstallmentCandidate{ID: l.takeID()})
	return l
}

// CandidateListFrom builds a list from existing candidates, keeping their
// order and assigning fresh IDs. It does not enforce the cardinality bounds:
// Validate reports an out-of-range count instead.
func CandidateListFrom(candidates []InstallmentCandidate) *CandidateList {
	l := &CandidateList{nextID: 1}
	for _, c := range candidates {
		c.ID = l.takeID()
		l.items = append(l.items, c)
	}
	return l
}

func (l *CandidateList) takeID() CandidateID {
	id := l.nextID
	l.nextID++
	return id
}

// Len returns the number of candidates.
func (l *CandidateList) Len() int { return len(l.items) }

// Items returns a copy of the candidates in order.
func (l *CandidateList) Items() []InstallmentCandidate {
	out := make([]InstallmentCandidate, len(l.items))
	copy(out, l.items)
	return out
}

// Get returns the candidate with the given ID.
func (l *CandidateList) Get(id CandidateID) (InstallmentCandidate, bool) {
	i := l.indexOf(id)
	if i < 0 {
		return InstallmentCandidate{}, false
	}
	return l.items[i], true
}

// Append adds c at the end with a fresh ID. Any ID on c is ignored.
func (l *CandidateList) Append(c InstallmentCandidate) (InstallmentCandidate, error) {
	if len(l.items) >= MaxCandidates {
		return InstallmentCandidate{}, ErrCapacityExceeded
	}
	c.ID = l.takeID()
	l.items = append(l.items, c)
	return c, nil
}

// Remove deletes the candidate with the given ID, keeping the others in order.
func (l *CandidateList) Remove(id CandidateID) error {
	if len(l.items) <= MinCandidates {
		return ErrMinimumRequired
	}
	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrCandidateNotFound, id)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

// Update replaces one field of one candidate. No validation happens here.
func (l *CandidateList) Update(id CandidateID, field Field, value string) error {
	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrCandidateNotFound, id)
	}
	switch field {
	case FieldAmount:
		l.items[i].Amount = value
	case FieldDueDate:
		l.items[i].DueDate = value
	case FieldDescription:
		l.items[i].Description = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func (l *CandidateList) indexOf(id CandidateID) int {
	for i, c := range l.items {
		if c.ID == id {
			return i
		}
	}
	return -1
}
