/*
errors.go - Centralized error types shared by the rule engines

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Domain packages wrap these with record-level context.

ERROR CATEGORIES:
  1. Input malformation - bad date, frequency, kind or status on one record
  2. Lifecycle errors   - transitions out of a terminal state
  3. Store errors       - not found, duplicate idempotency key, conflicts

USAGE:
  if errors.Is(err, generic.ErrInvalidFrequency) {
      // isolate the record, keep processing the batch
  }

SEE ALSO:
  - recurring/scheduler.go: per-template failures
  - leave/request.go: lifecycle errors
  - store/sqlite: store errors
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a value is not a YYYY-MM-DD date or a
	// date violates a record invariant (e.g. last generated date in the future).
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidFrequency is returned for a frequency outside the closed enum.
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrInvalidKind is returned when an obligation kind is neither invoice nor expense.
	ErrInvalidKind = errors.New("invalid obligation kind")

	// ErrInvalidStatus is returned when a status string does not map onto the
	// closed status enum of its entity.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidAmount is returned for unparsable or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidInput covers malformed payloads (unknown fields, missing ids).
	ErrInvalidInput = errors.New("invalid input")

	// ErrTerminalState is returned when a transition is attempted on a record
	// that already reached a terminal status.
	ErrTerminalState = errors.New("record is in a terminal state")

	// ErrReasonRequired is returned when a transition needs a non-empty reason.
	ErrReasonRequired = errors.New("reason required")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIdempotencyKey is returned when a generation for the same
	// (template, period) was already recorded. Expected on crash-and-retry.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrStaleTemplate is returned when a template's last generated date is
	// no longer the value the generator read.
	ErrStaleTemplate = errors.New("template changed since it was read")

	// ErrOverlap is returned when a leave request overlaps another active
	// request of the same employee.
	ErrOverlap = errors.New("overlapping leave request")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidFrequency) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrReasonRequired)
}

// IsConflict returns true if the error reports a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTerminalState) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrStaleTemplate) ||
		errors.Is(err, ErrOverlap)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
