/*
validator.go - Leave request policy checks

PURPOSE:
  Decides whether a leave request may be accepted. Every rule is evaluated
  and every violation is reported, so the caller can show all problems at
  once instead of the first one.

RULES (in order):
  1. reason is non-empty and at most MaxReasonLength characters
  2. end date is on or after start date
  3. urgent: urgency reason is non-empty and at most MaxReasonLength
  4. not urgent: at least MinNoticeDays between today and the start date

  Urgent requests are exempt from rule 4.

SEE ALSO:
  - request.go: lifecycle once a request is accepted
  - factory/policy.go: policy thresholds from YAML
*/
package leave

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// =============================================================================
// POLICY
// =============================================================================

const (
	DefaultMinNoticeDays   = 15
	DefaultMaxReasonLength = 500
)

// Policy holds the organizational thresholds used by Validate.
type Policy struct {
	MinNoticeDays   int
	MaxReasonLength int
}

func DefaultPolicy() Policy {
	return Policy{MinNoticeDays: DefaultMinNoticeDays, MaxReasonLength: DefaultMaxReasonLength}
}

// =============================================================================
// DRAFT & RESULT
// =============================================================================

// Draft is a leave request as submitted, before it has an id or a status.
type Draft struct {
	StartDate     generic.TimePoint
	EndDate       generic.TimePoint
	Reason        string
	IsUrgent      bool
	UrgencyReason string
}

// Period returns the absence window of the draft.
func (d Draft) Period() generic.Period {
	return generic.Period{Start: d.StartDate, End: d.EndDate}
}

// Code identifies a violated rule.
type Code string

const (
	CodeEmptyOrOversizedReason Code = "empty_or_oversized_reason"
	CodeInvalidDateRange       Code = "invalid_date_range"
	CodeMissingUrgencyReason   Code = "missing_urgency_reason"
	CodeInsufficientNotice     Code = "insufficient_notice"
)

// ValidationError is one violated rule. NoticeDays and RequiredDays are set
// for CodeInsufficientNotice only.
type ValidationError struct {
	Code         Code
	Field        string
	NoticeDays   int
	RequiredDays int
}

func (e ValidationError) Error() string {
	switch e.Code {
	case CodeEmptyOrOversizedReason:
		return "reason is required and must not exceed the maximum length"
	case CodeInvalidDateRange:
		return "end date must be on or after start date"
	case CodeMissingUrgencyReason:
		return "urgent requests need an urgency reason within the maximum length"
	case CodeInsufficientNotice:
		return fmt.Sprintf("insufficient notice (%d days — need %d)", e.NoticeDays, e.RequiredDays)
	}
	return string(e.Code)
}

// Result is the verdict of Validate. An empty Errors slice means accepted.
type Result struct {
	Errors []ValidationError
}

func (r Result) Accepted() bool { return len(r.Errors) == 0 }

// Has reports whether the result contains a violation of code.
func (r Result) Has(code Code) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Err returns nil when accepted and a *ValidationErrors otherwise.
func (r Result) Err() error {
	if r.Accepted() {
		return nil
	}
	return &ValidationErrors{Errors: r.Errors}
}

// ValidationErrors carries every violation of a rejected request.
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "leave request rejected: " + strings.Join(msgs, "; ")
}

func (e *ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		errs[i] = ve
	}
	return errs
}

// =============================================================================
// VALIDATE
// =============================================================================

// Validate checks draft against the default policy.
func Validate(draft Draft, today generic.TimePoint) Result {
	return DefaultPolicy().Validate(draft, today)
}

// Validate checks draft against p on today. It never reads the clock.
func (p Policy) Validate(draft Draft, today generic.TimePoint) Result {
	var result Result

	if !p.textWithinLimit(draft.Reason) {
		result.Errors = append(result.Errors, ValidationError{Code: CodeEmptyOrOversizedReason, Field: "reason"})
	}

	if draft.StartDate.IsZero() || draft.EndDate.IsZero() || !draft.Period().Valid() {
		result.Errors = append(result.Errors, ValidationError{Code: CodeInvalidDateRange, Field: "end_date"})
	}

	if draft.IsUrgent {
		if !p.textWithinLimit(draft.UrgencyReason) {
			result.Errors = append(result.Errors, ValidationError{Code: CodeMissingUrgencyReason, Field: "urgency_reason"})
		}
	} else if !draft.StartDate.IsZero() {
		notice := generic.DaysBetween(today, draft.StartDate)
		if notice < p.MinNoticeDays {
			result.Errors = append(result.Errors, ValidationError{
				Code:         CodeInsufficientNotice,
				Field:        "start_date",
				NoticeDays:   notice,
				RequiredDays: p.MinNoticeDays,
			})
		}
	}

	return result
}

// textWithinLimit counts characters, not bytes, after trimming whitespace.
func (p Policy) textWithinLimit(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n > 0 && n <= p.MaxReasonLength
}
