/*
record.go - Raw storage records

PURPOSE:
  Stores hand back templates and instances exactly as persisted, as strings.
  Parsing happens per record in the service layer so that one corrupt row
  (bad date, unknown frequency, unknown status) is reported on its own and
  never aborts a batch.

SEE ALSO:
  - recurring/service.go: parses templates before a run
  - reminders/service.go: parses instances before computing the feed
*/
package obligation

import (
	"errors"
	"fmt"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// TemplateRecord is a template as stored.
type TemplateRecord struct {
	ID                string
	TenantID          string
	Kind              string
	Amount            string
	Counterparty      string
	Frequency         string
	StartDate         string
	EndDate           string
	LastGeneratedDate string
}

// Parse converts the record, reporting every malformed field at once.
func (r TemplateRecord) Parse() (Template, error) {
	var errs []error
	t := Template{ID: r.ID, TenantID: r.TenantID, Counterparty: r.Counterparty}

	var err error
	if t.Kind, err = ParseKind(r.Kind); err != nil {
		errs = append(errs, fmt.Errorf("kind: %w", err))
	}
	if t.Amount, err = generic.ParseAmount(r.Amount); err != nil {
		errs = append(errs, fmt.Errorf("amount: %w", err))
	}
	if t.Frequency, err = generic.ParseFrequency(r.Frequency); err != nil {
		errs = append(errs, fmt.Errorf("frequency: %w", err))
	}
	if t.StartDate, err = generic.ParseDate(r.StartDate); err != nil {
		errs = append(errs, fmt.Errorf("start_date: %w", err))
	}
	if t.EndDate, err = generic.ParseOptionalDate(r.EndDate); err != nil {
		errs = append(errs, fmt.Errorf("end_date: %w", err))
	}
	if t.LastGeneratedDate, err = generic.ParseOptionalDate(r.LastGeneratedDate); err != nil {
		errs = append(errs, fmt.Errorf("last_generated_date: %w", err))
	}

	if len(errs) > 0 {
		return Template{}, &RecordError{Entity: "template", ID: r.ID, Err: errors.Join(errs...)}
	}
	if err := t.Validate(); err != nil {
		return Template{}, &RecordError{Entity: "template", ID: r.ID, Err: err}
	}
	return t, nil
}

// InstanceRecord is an instance as stored.
type InstanceRecord struct {
	ID                string
	TenantID          string
	Kind              string
	Amount            string
	Counterparty      string
	DueDate           string
	Status            string
	RecurringSourceID string
	GeneratedFor      string
}

func (r InstanceRecord) Parse() (Instance, error) {
	var errs []error
	inst := Instance{
		ID:                r.ID,
		TenantID:          r.TenantID,
		Counterparty:      r.Counterparty,
		RecurringSourceID: r.RecurringSourceID,
	}

	var err error
	if inst.Kind, err = ParseKind(r.Kind); err != nil {
		errs = append(errs, fmt.Errorf("kind: %w", err))
	} else if inst.Status, err = ParseStatus(inst.Kind, r.Status); err != nil {
		errs = append(errs, fmt.Errorf("status: %w", err))
	}
	if inst.Amount, err = generic.ParseAmount(r.Amount); err != nil {
		errs = append(errs, fmt.Errorf("amount: %w", err))
	}
	if inst.DueDate, err = generic.ParseOptionalDate(r.DueDate); err != nil {
		errs = append(errs, fmt.Errorf("due_date: %w", err))
	}
	if inst.GeneratedFor, err = generic.ParseOptionalDate(r.GeneratedFor); err != nil {
		errs = append(errs, fmt.Errorf("generated_for: %w", err))
	}

	if len(errs) > 0 {
		return Instance{}, &RecordError{Entity: "instance", ID: r.ID, Err: errors.Join(errs...)}
	}
	return inst, nil
}

// RecordError pins parse failures to one stored record.
type RecordError struct {
	Entity string
	ID     string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
