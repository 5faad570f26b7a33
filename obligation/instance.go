package obligation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// =============================================================================
// INSTANCE - One concrete invoice or expense
// =============================================================================

// Instance is a concrete obligation, created by a user or by the generator.
// ID and RecurringSourceID never change after creation; InstancePatch has no
// field for either.
type Instance struct {
	ID           string
	TenantID     string
	Kind         Kind
	Amount       decimal.Decimal
	Counterparty string
	DueDate      *generic.TimePoint
	Status       Status

	// RecurringSourceID is the template that produced the instance, empty for
	// manual entries.
	RecurringSourceID string

	// GeneratedFor is the period the generator emitted this instance for.
	GeneratedFor *generic.TimePoint
}

// IsRecurring reports whether the instance came from a template.
func (i Instance) IsRecurring() bool { return i.RecurringSourceID != "" }

// IsOpen reports an obligation that still needs settling.
func (i Instance) IsOpen() bool { return !i.Status.IsPaid() }

func (i Instance) Validate() error {
	var errs []error
	if strings.TrimSpace(i.ID) == "" {
		errs = append(errs, fmt.Errorf("%w: instance id is required", generic.ErrInvalidInput))
	}
	if !i.Kind.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", generic.ErrInvalidKind, i.Kind))
	} else if !i.Status.ValidFor(i.Kind) {
		errs = append(errs, &StatusError{Kind: i.Kind, Value: string(i.Status)})
	}
	if i.Amount.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: %s is negative", generic.ErrInvalidAmount, i.Amount))
	}
	return errors.Join(errs...)
}

func (i Instance) Record() InstanceRecord {
	return InstanceRecord{
		ID:                i.ID,
		TenantID:          i.TenantID,
		Kind:              string(i.Kind),
		Amount:            i.Amount.String(),
		Counterparty:      i.Counterparty,
		DueDate:           optionalDate(i.DueDate),
		Status:            string(i.Status),
		RecurringSourceID: i.RecurringSourceID,
		GeneratedFor:      optionalDate(i.GeneratedFor),
	}
}

// SplitByKind partitions instances into invoices and expenses, preserving
// input order inside each group.
func SplitByKind(instances []Instance) (invoices, expenses []Instance) {
	for _, inst := range instances {
		switch inst.Kind {
		case KindInvoice:
			invoices = append(invoices, inst)
		case KindExpense:
			expenses = append(expenses, inst)
		}
	}
	return invoices, expenses
}
