package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// Store persists leave requests. Get returns generic.ErrNotFound for an
// unknown id.
type Store interface {
	Get(ctx context.Context, id string) (*Request, error)
	Save(ctx context.Context, req *Request) error

	// List methods return the readable requests plus one *RecordError per
	// stored row that could not be read back.
	ListByTenant(ctx context.Context, tenantID string) ([]*Request, []error, error)
	ListByEmployee(ctx context.Context, tenantID, employeeID string) ([]*Request, []error, error)

	// WithTx runs fn with a store bound to a single transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// RequestService validates and persists leave requests. Cross-request checks
// run in the same transaction as the write they guard.
type RequestService struct {
	Store  Store
	Policy Policy
	Log    logrus.FieldLogger

	Now   func() time.Time
	NewID func() string
}

func NewRequestService(store Store, policy Policy, log logrus.FieldLogger) *RequestService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RequestService{
		Store:  store,
		Policy: policy,
		Log:    log,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// Validate runs the policy checks without writing anything.
func (s *RequestService) Validate(draft Draft, today generic.TimePoint) Result {
	return s.Policy.Validate(draft, today)
}

// Submit validates draft and stores it as a pending request. A rejected draft
// returns the full Result together with its *ValidationErrors.
func (s *RequestService) Submit(ctx context.Context, tenantID, employeeID string, draft Draft, today generic.TimePoint) (*Request, Result, error) {
	result := s.Policy.Validate(draft, today)
	if !result.Accepted() {
		return nil, result, result.Err()
	}

	req := NewRequest(s.NewID(), tenantID, employeeID, draft, s.Now())
	err := s.Store.WithTx(ctx, func(tx Store) error {
		if err := checkOverlap(ctx, tx, req); err != nil {
			return err
		}
		return tx.Save(ctx, req)
	})
	if err != nil {
		return nil, result, err
	}

	s.Log.WithFields(logrus.Fields{
		"tenant":   tenantID,
		"employee": employeeID,
		"request":  req.ID,
		"urgent":   req.IsUrgent,
	}).Info("leave request submitted")
	return req, result, nil
}

// Approve records an approval with its mandatory reason.
func (s *RequestService) Approve(ctx context.Context, id, approverID, reason string) (*Request, error) {
	return s.transition(ctx, id, "approved", func(req *Request) error {
		return req.Approve(approverID, reason, s.Now())
	})
}

// Reject records a rejection with its mandatory reason.
func (s *RequestService) Reject(ctx context.Context, id, approverID, reason string) (*Request, error) {
	return s.transition(ctx, id, "rejected", func(req *Request) error {
		return req.Reject(approverID, reason, s.Now())
	})
}

// Cancel withdraws a pending request.
func (s *RequestService) Cancel(ctx context.Context, id string) (*Request, error) {
	return s.transition(ctx, id, "cancelled", func(req *Request) error {
		return req.Cancel(s.Now())
	})
}

// Reschedule amends the dates or urgency of a pending request.
func (s *RequestService) Reschedule(ctx context.Context, id string, patch ReschedulePatch, changeReason string, today generic.TimePoint) (*Request, Result, error) {
	var result Result
	req, err := s.transition(ctx, id, "rescheduled", func(req *Request) error {
		var err error
		result, err = req.Reschedule(patch, changeReason, s.Policy, today, s.Now())
		return err
	})
	return req, result, err
}

// List returns the readable requests of a tenant plus one error per stored
// request that could not be read.
func (s *RequestService) List(ctx context.Context, tenantID string) ([]*Request, []error, error) {
	requests, skipped, err := s.Store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	for _, e := range skipped {
		s.Log.WithField("tenant", tenantID).WithError(e).Warn("skipping unreadable leave request")
	}
	return requests, skipped, nil
}

func (s *RequestService) Get(ctx context.Context, id string) (*Request, error) {
	return s.Store.Get(ctx, id)
}

func (s *RequestService) transition(ctx context.Context, id, action string, apply func(*Request) error) (*Request, error) {
	var out *Request
	err := s.Store.WithTx(ctx, func(tx Store) error {
		req, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(req); err != nil {
			return err
		}
		if err := checkOverlap(ctx, tx, req); err != nil {
			return err
		}
		if err := tx.Save(ctx, req); err != nil {
			return fmt.Errorf("failed to save leave request: %w", err)
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{"request": id, "status": out.Status}).Infof("leave request %s", action)
	return out, nil
}

// checkOverlap rejects a request whose window intersects another active
// request of the same employee. Inactive requests never conflict.
func checkOverlap(ctx context.Context, tx Store, req *Request) error {
	if !req.Status.Active() {
		return nil
	}
	// Unreadable rows have no window to compare against.
	existing, _, err := tx.ListByEmployee(ctx, req.TenantID, req.EmployeeID)
	if err != nil {
		return fmt.Errorf("failed to list employee requests: %w", err)
	}
	for _, other := range existing {
		if other.ID == req.ID || !other.Status.Active() {
			continue
		}
		if other.Period().Overlaps(req.Period()) {
			return &OverlapError{RequestID: req.ID, ConflictingID: other.ID, Period: other.Period()}
		}
	}
	return nil
}

// OverlapError names the active request a new window collides with.
type OverlapError struct {
	RequestID     string
	ConflictingID string
	Period        generic.Period
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("leave request overlaps %s %s", e.ConflictingID, e.Period)
}

func (e *OverlapError) Unwrap() error { return generic.ErrOverlap }

// RecordError reports a stored request that cannot be read back.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("leave request %s: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
