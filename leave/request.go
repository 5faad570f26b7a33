package leave

import (
	"fmt"
	"strings"
	"time"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// =============================================================================
// REQUEST - Leave request lifecycle
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps a stored status onto the closed enum.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: leave status %q", generic.ErrInvalidStatus, s)
}

// IsTerminal reports a status nothing may transition out of.
func (s Status) IsTerminal() bool { return s != StatusPending }

// Active requests block overlapping submissions of the same employee.
func (s Status) Active() bool { return s == StatusPending || s == StatusApproved }

// Request is a submitted leave request.
type Request struct {
	ID         string
	TenantID   string
	EmployeeID string

	StartDate     generic.TimePoint
	EndDate       generic.TimePoint
	Reason        string
	IsUrgent      bool
	UrgencyReason string

	Status          Status
	ApprovalReason  string
	RejectionReason string
	DecidedBy       string

	// ChangeReason is recorded by the last reschedule.
	ChangeReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRequest creates a pending request from an accepted draft.
func NewRequest(id, tenantID, employeeID string, draft Draft, now time.Time) *Request {
	return &Request{
		ID:            id,
		TenantID:      tenantID,
		EmployeeID:    employeeID,
		StartDate:     draft.StartDate,
		EndDate:       draft.EndDate,
		Reason:        strings.TrimSpace(draft.Reason),
		IsUrgent:      draft.IsUrgent,
		UrgencyReason: strings.TrimSpace(draft.UrgencyReason),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *Request) Draft() Draft {
	return Draft{
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Reason:        r.Reason,
		IsUrgent:      r.IsUrgent,
		UrgencyReason: r.UrgencyReason,
	}
}

func (r *Request) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// Days is the number of calendar days requested, both ends included.
func (r *Request) Days() int { return r.Period().Days() }

// Approve moves a pending request to approved. The reason is mandatory.
func (r *Request) Approve(approverID, reason string, at time.Time) error {
	if err := r.decide(StatusApproved, reason); err != nil {
		return err
	}
	r.Status = StatusApproved
	r.ApprovalReason = strings.TrimSpace(reason)
	r.DecidedBy = approverID
	r.UpdatedAt = at
	return nil
}

// Reject moves a pending request to rejected. The reason is mandatory.
func (r *Request) Reject(approverID, reason string, at time.Time) error {
	if err := r.decide(StatusRejected, reason); err != nil {
		return err
	}
	r.Status = StatusRejected
	r.RejectionReason = strings.TrimSpace(reason)
	r.DecidedBy = approverID
	r.UpdatedAt = at
	return nil
}

// Cancel withdraws a pending request.
func (r *Request) Cancel(at time.Time) error {
	if r.Status.IsTerminal() {
		return &TransitionError{RequestID: r.ID, From: r.Status, To: StatusCancelled}
	}
	r.Status = StatusCancelled
	r.UpdatedAt = at
	return nil
}

func (r *Request) decide(to Status, reason string) error {
	if r.Status.IsTerminal() {
		return &TransitionError{RequestID: r.ID, From: r.Status, To: to}
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: %s needs a reason", generic.ErrReasonRequired, to)
	}
	return nil
}

// =============================================================================
// RESCHEDULE - Amend a pending request
// =============================================================================

// ReschedulePatch lists the fields a pending request may amend. Nil fields
// keep their current value.
type ReschedulePatch struct {
	StartDate     *generic.TimePoint
	EndDate       *generic.TimePoint
	IsUrgent      *bool
	UrgencyReason *string
}

// Apply returns the draft that results from patching d.
func (p ReschedulePatch) Apply(d Draft) Draft {
	if p.StartDate != nil {
		d.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		d.EndDate = *p.EndDate
	}
	if p.IsUrgent != nil {
		d.IsUrgent = *p.IsUrgent
	}
	if p.UrgencyReason != nil {
		d.UrgencyReason = *p.UrgencyReason
	}
	return d
}

// Reschedule amends a pending request. The amended request is revalidated
// against policy on today; a rejected amendment leaves r untouched and
// returns the *ValidationErrors of the result.
func (r *Request) Reschedule(patch ReschedulePatch, changeReason string, policy Policy, today generic.TimePoint, at time.Time) (Result, error) {
	if r.Status.IsTerminal() {
		return Result{}, &TransitionError{RequestID: r.ID, From: r.Status, To: StatusPending}
	}
	if strings.TrimSpace(changeReason) == "" {
		return Result{}, fmt.Errorf("%w: reschedule needs a change reason", generic.ErrReasonRequired)
	}

	draft := patch.Apply(r.Draft())
	result := policy.Validate(draft, today)
	if !result.Accepted() {
		return result, result.Err()
	}

	r.StartDate = draft.StartDate
	r.EndDate = draft.EndDate
	r.IsUrgent = draft.IsUrgent
	r.UrgencyReason = strings.TrimSpace(draft.UrgencyReason)
	r.ChangeReason = strings.TrimSpace(changeReason)
	r.UpdatedAt = at
	return result, nil
}

// TransitionError reports an attempt to move a request out of a terminal state.
type TransitionError struct {
	RequestID string
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("leave request %s: cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return generic.ErrTerminalState }
