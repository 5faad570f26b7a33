/*
types.go - Closed enums for recurring obligations

PURPOSE:
  Invoices and expenses share one shape but carry different status sets.
  Every string that enters the system (HTTP payload, database column) is
  mapped onto these enums by an exhaustive parse that fails loudly.

STATUS SETS:
  Invoice: draft, sent, paid, overdue, partially_paid
  Expense: unpaid, paid

SEE ALSO:
  - template.go: recurring definitions
  - instance.go: concrete obligations
*/
package obligation

import (
	"fmt"
	"strings"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// =============================================================================
// KIND
// =============================================================================

// Kind tells invoices and expenses apart.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindExpense Kind = "expense"
)

// ParseKind maps a case-insensitive string onto Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "invoice":
		return KindInvoice, nil
	case "expense":
		return KindExpense, nil
	}
	return "", fmt.Errorf("%w: %q", generic.ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindExpense
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusPartiallyPaid Status = "partially_paid"
	StatusUnpaid        Status = "unpaid"
)

var statusesByKind = map[Kind][]Status{
	KindInvoice: {StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusPartiallyPaid},
	KindExpense: {StatusUnpaid, StatusPaid},
}

// Statuses returns the status set of a kind, or nil for an unknown kind.
func Statuses(kind Kind) []Status {
	return append([]Status(nil), statusesByKind[kind]...)
}

var statusNormalizer = strings.NewReplacer(" ", "_", "-", "_")

// ParseStatus maps user or storage input onto the status set of kind.
// "Partially Paid", "partially-paid" and "PARTIALLY_PAID" are the same status;
// anything outside the set of that kind is an error, never a default.
func ParseStatus(kind Kind, s string) (Status, error) {
	normalized := Status(statusNormalizer.Replace(strings.ToLower(strings.TrimSpace(s))))
	if normalized.ValidFor(kind) {
		return normalized, nil
	}
	return "", &StatusError{Kind: kind, Value: s}
}

// ValidFor reports whether s belongs to the status set of kind.
func (s Status) ValidFor(kind Kind) bool {
	for _, candidate := range statusesByKind[kind] {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsPaid reports a settled obligation. Settled obligations are never reminded.
func (s Status) IsPaid() bool { return s == StatusPaid }

// InitialStatus is the status a generated instance starts in.
func InitialStatus(kind Kind) Status {
	if kind == KindExpense {
		return StatusUnpaid
	}
	return StatusSent
}

// StatusError reports a status outside the closed set of its kind.
type StatusError struct {
	Kind  Kind
	Value string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid %s status %q", e.Kind, e.Value)
}

func (e *StatusError) Unwrap() error { return generic.ErrInvalidStatus }
