/*
scheduler.go - Recurring obligation generator

PURPOSE:
  Decides which templates are due on a given day and emits the dated
  instances they produce. Run is a pure function: it never reads the clock
  or storage, "today" and the template snapshot are always passed in.

ALGORITHM (per template):
  1. nextDue = Advance(LastGeneratedDate, Frequency), or StartDate when the
     template never generated
  2. skip when today < nextDue
  3. skip when EndDate is set and today > EndDate (since nextDue <= today,
     no instance is ever due after EndDate)
  4. otherwise emit ONE instance due on nextDue and move LastGeneratedDate
     to the run date

  At most one instance per template per run: missed periods are not
  caught up in a single call.

FAILURES:
  A malformed template (invalid frequency or kind, missing start date,
  LastGeneratedDate after today) becomes a TemplateFailure. The rest of the
  batch is processed normally.

SEE ALSO:
  - generation.go: idempotency key and deterministic instance ids
  - service.go: load, run and commit per tenant
*/
package recurring

import (
	"fmt"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
)

// RunResult is the outcome of one generator run. NewInstances, UpdatedTemplates
// and Generations are index-aligned: entry i of each belongs to the same
// template. Templates that were skipped or failed appear in none of them.
type RunResult struct {
	NewInstances     []obligation.Instance
	UpdatedTemplates []obligation.Template
	Generations      []Generation
	Failures         []TemplateFailure
}

// TemplateFailure isolates a template that could not be evaluated.
type TemplateFailure struct {
	TemplateID string
	Err        error
}

func (f TemplateFailure) Error() string {
	return fmt.Sprintf("template %s: %v", f.TemplateID, f.Err)
}

func (f TemplateFailure) Unwrap() error { return f.Err }

// Run evaluates every template against today.
func Run(templates []obligation.Template, today generic.TimePoint) RunResult {
	var result RunResult
	for _, tpl := range templates {
		nextDue, due, err := NextDue(tpl, today)
		if err != nil {
			result.Failures = append(result.Failures, TemplateFailure{TemplateID: tpl.ID, Err: err})
			continue
		}
		if !due {
			continue
		}

		gen := NewGeneration(tpl, nextDue, today)
		result.NewInstances = append(result.NewInstances, instanceFor(tpl, gen))
		result.UpdatedTemplates = append(result.UpdatedTemplates, advanced(tpl, today))
		result.Generations = append(result.Generations, gen)
	}
	return result
}

// NextDue returns the next due date of tpl and whether an instance must be
// generated for it on today.
func NextDue(tpl obligation.Template, today generic.TimePoint) (generic.TimePoint, bool, error) {
	if err := tpl.Validate(); err != nil {
		return generic.TimePoint{}, false, err
	}

	nextDue := tpl.StartDate
	if last := tpl.LastGeneratedDate; last != nil {
		if last.After(today) {
			return generic.TimePoint{}, false, fmt.Errorf("%w: last generated date %s is after %s",
				generic.ErrInvalidDate, last, today)
		}
		var err error
		if nextDue, err = generic.Advance(*last, tpl.Frequency); err != nil {
			return generic.TimePoint{}, false, err
		}
	}

	if today.Before(nextDue) {
		return nextDue, false, nil
	}
	if end := tpl.EndDate; end != nil && today.After(*end) {
		return nextDue, false, nil
	}
	return nextDue, true, nil
}

func instanceFor(tpl obligation.Template, gen Generation) obligation.Instance {
	due := gen.Period
	period := gen.Period
	return obligation.Instance{
		ID:                gen.InstanceID,
		TenantID:          tpl.TenantID,
		Kind:              tpl.Kind,
		Amount:            tpl.Amount,
		Counterparty:      tpl.Counterparty,
		DueDate:           &due,
		Status:            obligation.InitialStatus(tpl.Kind),
		RecurringSourceID: tpl.ID,
		GeneratedFor:      &period,
	}
}

// advanced returns a copy of tpl whose LastGeneratedDate is the run date.
func advanced(tpl obligation.Template, runDate generic.TimePoint) obligation.Template {
	out := tpl
	last := runDate
	out.LastGeneratedDate = &last
	return out
}
