package obligation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// =============================================================================
// TEMPLATE - Recurring invoice or expense definition
// =============================================================================

// Template is a recurring definition from which dated instances are generated.
// Counterparty is the client of an invoice or the category of an expense.
type Template struct {
	ID           string
	TenantID     string
	Kind         Kind
	Amount       decimal.Decimal
	Counterparty string
	Frequency    generic.Frequency
	StartDate    generic.TimePoint
	EndDate      *generic.TimePoint

	// LastGeneratedDate is owned by the generator. Nil means the template
	// never produced an instance.
	LastGeneratedDate *generic.TimePoint
}

// Validate checks the structural invariants of a template. It does not look
// at "today"; the generator checks LastGeneratedDate against the run date.
func (t Template) Validate() error {
	var errs []error
	if strings.TrimSpace(t.ID) == "" {
		errs = append(errs, fmt.Errorf("%w: template id is required", generic.ErrInvalidInput))
	}
	if !t.Kind.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", generic.ErrInvalidKind, t.Kind))
	}
	if !t.Frequency.Valid() {
		errs = append(errs, &generic.FrequencyError{Value: string(t.Frequency)})
	}
	if t.Amount.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: %s is negative", generic.ErrInvalidAmount, t.Amount))
	}
	if t.StartDate.IsZero() {
		errs = append(errs, fmt.Errorf("%w: start date is required", generic.ErrInvalidDate))
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		errs = append(errs, fmt.Errorf("%w: end date %s before start date %s",
			generic.ErrInvalidDate, t.EndDate, t.StartDate))
	}
	return errors.Join(errs...)
}

// Record converts the template to its storage representation.
func (t Template) Record() TemplateRecord {
	return TemplateRecord{
		ID:                t.ID,
		TenantID:          t.TenantID,
		Kind:              string(t.Kind),
		Amount:            t.Amount.String(),
		Counterparty:      t.Counterparty,
		Frequency:         string(t.Frequency),
		StartDate:         t.StartDate.String(),
		EndDate:           optionalDate(t.EndDate),
		LastGeneratedDate: optionalDate(t.LastGeneratedDate),
	}
}

func optionalDate(tp *generic.TimePoint) string {
	if tp == nil {
		return ""
	}
	return tp.String()
}
