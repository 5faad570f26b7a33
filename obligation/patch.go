/*
patch.go - Typed partial updates

PURPOSE:
  Every updatable field is listed with its type. A nil pointer leaves the
  field alone. Fields that must never change after creation (ids, the
  recurring back-reference, the generator-owned LastGeneratedDate) have no
  patch field at all, so there is no way to express such an edit.

SEE ALSO:
  - factory/payload.go: strict JSON decoding into these structs
*/
package obligation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// TemplatePatch updates a template. ClearEndDate removes the end date and
// cannot be combined with EndDate.
type TemplatePatch struct {
	Amount       *decimal.Decimal
	Counterparty *string
	Frequency    *generic.Frequency
	StartDate    *generic.TimePoint
	EndDate      *generic.TimePoint
	ClearEndDate bool
}

// Apply returns the patched copy of t, or an error when the result would
// break a template invariant. t itself is never modified.
func (p TemplatePatch) Apply(t Template) (Template, error) {
	if p.EndDate != nil && p.ClearEndDate {
		return t, fmt.Errorf("%w: end date set and cleared in the same patch", generic.ErrInvalidInput)
	}

	out := t
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Counterparty != nil {
		out.Counterparty = *p.Counterparty
	}
	if p.Frequency != nil {
		out.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		out.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		out.EndDate = &end
	}
	if p.ClearEndDate {
		out.EndDate = nil
	}

	if err := out.Validate(); err != nil {
		return t, err
	}
	return out, nil
}

// IsEmpty reports a patch that changes nothing.
func (p TemplatePatch) IsEmpty() bool {
	return p.Amount == nil && p.Counterparty == nil && p.Frequency == nil &&
		p.StartDate == nil && p.EndDate == nil && !p.ClearEndDate
}

// InstancePatch updates an instance. Status changes are accepted as long as
// the new status belongs to the instance kind; the finance module owns the
// transition rules.
type InstancePatch struct {
	Amount       *decimal.Decimal
	Counterparty *string
	DueDate      *generic.TimePoint
	ClearDueDate bool
	Status       *Status
}

func (p InstancePatch) Apply(i Instance) (Instance, error) {
	if p.DueDate != nil && p.ClearDueDate {
		return i, fmt.Errorf("%w: due date set and cleared in the same patch", generic.ErrInvalidInput)
	}

	out := i
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Counterparty != nil {
		out.Counterparty = *p.Counterparty
	}
	if p.DueDate != nil {
		due := *p.DueDate
		out.DueDate = &due
	}
	if p.ClearDueDate {
		out.DueDate = nil
	}
	if p.Status != nil {
		out.Status = *p.Status
	}

	if err := out.Validate(); err != nil {
		return i, err
	}
	return out, nil
}

func (p InstancePatch) IsEmpty() bool {
	return p.Amount == nil && p.Counterparty == nil && p.DueDate == nil &&
		!p.ClearDueDate && p.Status == nil
}
