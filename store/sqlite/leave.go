package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
)

// LeaveStore persists leave requests.
type LeaveStore struct {
	conn
}

var _ leave.Store = (*LeaveStore)(nil)

func (l *LeaveStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	return l.withTx(ctx, func(tx conn) error {
		return fn(&LeaveStore{tx})
	})
}

const leaveColumns = `id, tenant_id, employee_id, start_date, end_date, reason, is_urgent,
	urgency_reason, status, approval_reason, rejection_reason, decided_by, change_reason,
	created_at, updated_at`

// Save upserts a request. Tenant and employee of an existing request never change.
func (l *LeaveStore) Save(ctx context.Context, r *leave.Request) error {
	defer l.lock()()

	query := `
		INSERT INTO leave_requests (` + leaveColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_urgent = excluded.is_urgent,
			urgency_reason = excluded.urgency_reason,
			status = excluded.status,
			approval_reason = excluded.approval_reason,
			rejection_reason = excluded.rejection_reason,
			decided_by = excluded.decided_by,
			change_reason = excluded.change_reason,
			updated_at = excluded.updated_at
	`
	_, err := l.q.ExecContext(ctx, query,
		r.ID, r.TenantID, r.EmployeeID, r.StartDate.String(), r.EndDate.String(), r.Reason,
		r.IsUrgent, r.UrgencyReason, string(r.Status), r.ApprovalReason, r.RejectionReason,
		r.DecidedBy, r.ChangeReason,
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID.
func (l *LeaveStore) Get(ctx context.Context, id string) (*leave.Request, error) {
	defer l.rlock()()

	row := l.q.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanLeave(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("leave request %s: %w", id, generic.ErrNotFound)
	}
	return r, err
}

func (l *LeaveStore) ListByTenant(ctx context.Context, tenantID string) ([]*leave.Request, []error, error) {
	return l.query(ctx, `SELECT `+leaveColumns+` FROM leave_requests
		WHERE tenant_id = ? ORDER BY rowid`, tenantID)
}

func (l *LeaveStore) ListByEmployee(ctx context.Context, tenantID, employeeID string) ([]*leave.Request, []error, error) {
	return l.query(ctx, `SELECT `+leaveColumns+` FROM leave_requests
		WHERE tenant_id = ? AND employee_id = ? ORDER BY rowid`, tenantID, employeeID)
}

// query collects unreadable rows instead of failing the whole list.
func (l *LeaveStore) query(ctx context.Context, query string, args ...any) ([]*leave.Request, []error, error) {
	defer l.rlock()()

	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var (
		out     []*leave.Request
		skipped []error
	)
	for rows.Next() {
		r, err := scanLeave(rows)
		var recErr *leave.RecordError
		switch {
		case errors.As(err, &recErr):
			skipped = append(skipped, err)
			continue
		case err != nil:
			return nil, nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read leave requests: %w", err)
	}
	return out, skipped, nil
}

// scanLeave returns a *leave.RecordError when the row was read but one of
// its columns does not parse.
func scanLeave(row scanner) (*leave.Request, error) {
	var (
		r                    leave.Request
		start, end, status   string
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.EmployeeID, &start, &end, &r.Reason, &r.IsUrgent,
		&r.UrgencyReason, &status, &r.ApprovalReason, &r.RejectionReason, &r.DecidedBy,
		&r.ChangeReason, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan leave request: %w", err)
	}

	malformed := func(column string, err error) error {
		return &leave.RecordError{ID: r.ID, Err: fmt.Errorf("%s: %w", column, err)}
	}
	if r.StartDate, err = generic.ParseDate(start); err != nil {
		return nil, malformed("start_date", err)
	}
	if r.EndDate, err = generic.ParseDate(end); err != nil {
		return nil, malformed("end_date", err)
	}
	if r.Status, err = leave.ParseStatus(status); err != nil {
		return nil, malformed("status", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, malformed("created_at", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, malformed("updated_at", err)
	}
	return &r, nil
}
