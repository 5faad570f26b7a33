package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

// ObligationStore persists templates, instances, the generation ledger and
// reminder settings.
type ObligationStore struct {
	conn
}

var (
	_ recurring.Store  = (*ObligationStore)(nil)
	_ reminders.Store  = (*ObligationStore)(nil)
	_ obligation.Store = (*ObligationStore)(nil)
)

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// WithTx executes fn within a database transaction.
func (o *ObligationStore) WithTx(ctx context.Context, fn func(recurring.Store) error) error {
	return o.withTx(ctx, func(tx conn) error {
		return fn(&ObligationStore{tx})
	})
}

// =============================================================================
// TEMPLATES
// =============================================================================

func (o *ObligationStore) ListTenants(ctx context.Context) ([]string, error) {
	defer o.rlock()()

	rows, err := o.q.QueryContext(ctx, `
		SELECT tenant_id FROM templates
		UNION
		SELECT tenant_id FROM instances
		ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

const templateColumns = `id, tenant_id, kind, amount, counterparty, frequency,
	start_date, end_date, last_generated_date`

func (o *ObligationStore) ListTemplates(ctx context.Context, tenantID string) ([]obligation.TemplateRecord, error) {
	defer o.rlock()()

	rows, err := o.q.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE tenant_id = ? ORDER BY rowid`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var records []obligation.TemplateRecord
	for rows.Next() {
		rec, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (o *ObligationStore) GetTemplate(ctx context.Context, tenantID, id string) (obligation.TemplateRecord, error) {
	defer o.rlock()()

	row := o.q.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE tenant_id = ? AND id = ?`, tenantID, id)
	rec, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return obligation.TemplateRecord{}, fmt.Errorf("template %s: %w", id, generic.ErrNotFound)
	}
	return rec, err
}

func (o *ObligationStore) SaveTemplate(ctx context.Context, tpl obligation.Template) error {
	return o.SaveTemplateRecord(ctx, tpl.Record())
}

// SaveTemplateRecord upserts a record as is. Tenant, kind and the last
// generated date of an existing template never change here; the generator
// moves the latter with AdvanceTemplate.
func (o *ObligationStore) SaveTemplateRecord(ctx context.Context, rec obligation.TemplateRecord) error {
	defer o.lock()()

	query := `
		INSERT INTO templates (id, tenant_id, kind, amount, counterparty, frequency,
			start_date, end_date, last_generated_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			counterparty = excluded.counterparty,
			frequency = excluded.frequency,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			updated_at = excluded.updated_at
	`
	ts := now()
	_, err := o.q.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.Kind, rec.Amount, rec.Counterparty, rec.Frequency,
		rec.StartDate, nullString(rec.EndDate), nullString(rec.LastGeneratedDate), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// AdvanceTemplate is a compare-and-set on last_generated_date.
func (o *ObligationStore) AdvanceTemplate(ctx context.Context, tenantID, templateID string, from *generic.TimePoint, to generic.TimePoint) error {
	defer o.lock()()

	var prev sql.NullString
	if from != nil {
		prev = nullString(from.String())
	}
	res, err := o.q.ExecContext(ctx, `
		UPDATE templates SET last_generated_date = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND last_generated_date IS ?`,
		to.String(), now(), tenantID, templateID, prev,
	)
	if err != nil {
		return fmt.Errorf("failed to advance template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to advance template: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("template %s: %w", templateID, generic.ErrStaleTemplate)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (obligation.TemplateRecord, error) {
	var (
		rec           obligation.TemplateRecord
		endDate       sql.NullString
		lastGenerated sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.Kind, &rec.Amount, &rec.Counterparty,
		&rec.Frequency, &rec.StartDate, &endDate, &lastGenerated)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan template: %w", err)
	}
	rec.EndDate = endDate.String
	rec.LastGeneratedDate = lastGenerated.String
	return rec, nil
}

// =============================================================================
// INSTANCES
// =============================================================================

const instanceColumns = `id, tenant_id, kind, amount, counterparty, due_date, status,
	recurring_source_id, generated_for`

func (o *ObligationStore) ListInstances(ctx context.Context, tenantID string) ([]obligation.InstanceRecord, error) {
	defer o.rlock()()

	rows, err := o.q.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE tenant_id = ? ORDER BY rowid`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var records []obligation.InstanceRecord
	for rows.Next() {
		rec, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (o *ObligationStore) GetInstance(ctx context.Context, tenantID, id string) (obligation.InstanceRecord, error) {
	defer o.rlock()()

	row := o.q.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE tenant_id = ? AND id = ?`, tenantID, id)
	rec, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return obligation.InstanceRecord{}, fmt.Errorf("instance %s: %w", id, generic.ErrNotFound)
	}
	return rec, err
}

// AppendInstance inserts a new instance; an existing id is a conflict.
func (o *ObligationStore) AppendInstance(ctx context.Context, inst obligation.Instance) error {
	defer o.lock()()

	rec := inst.Record()
	ts := now()
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO instances (id, tenant_id, kind, amount, counterparty, due_date, status,
			recurring_source_id, generated_for, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.Kind, rec.Amount, rec.Counterparty, nullString(rec.DueDate),
		rec.Status, nullString(rec.RecurringSourceID), nullString(rec.GeneratedFor), ts, ts,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("instance %s: %w", rec.ID, generic.ErrDuplicateIdempotencyKey)
		}
		return fmt.Errorf("failed to append instance: %w", err)
	}
	return nil
}

func (o *ObligationStore) SaveInstance(ctx context.Context, inst obligation.Instance) error {
	return o.SaveInstanceRecord(ctx, inst.Record())
}

// SaveInstanceRecord upserts a record as is. Identity, tenant, kind and the
// recurring back-reference of an existing instance are never updated.
func (o *ObligationStore) SaveInstanceRecord(ctx context.Context, rec obligation.InstanceRecord) error {
	defer o.lock()()

	query := `
		INSERT INTO instances (id, tenant_id, kind, amount, counterparty, due_date, status,
			recurring_source_id, generated_for, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			counterparty = excluded.counterparty,
			due_date = excluded.due_date,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	ts := now()
	_, err := o.q.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.Kind, rec.Amount, rec.Counterparty, nullString(rec.DueDate),
		rec.Status, nullString(rec.RecurringSourceID), nullString(rec.GeneratedFor), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

func scanInstance(row scanner) (obligation.InstanceRecord, error) {
	var (
		rec          obligation.InstanceRecord
		dueDate      sql.NullString
		sourceID     sql.NullString
		generatedFor sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.Kind, &rec.Amount, &rec.Counterparty,
		&dueDate, &rec.Status, &sourceID, &generatedFor)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan instance: %w", err)
	}
	rec.DueDate = dueDate.String
	rec.RecurringSourceID = sourceID.String
	rec.GeneratedFor = generatedFor.String
	return rec, nil
}

// =============================================================================
// GENERATION LEDGER
// =============================================================================

// RecordGeneration appends a ledger row. A second row for the same key or
// the same (template, period) is generic.ErrDuplicateIdempotencyKey.
func (o *ObligationStore) RecordGeneration(ctx context.Context, gen recurring.Generation) error {
	defer o.lock()()

	_, err := o.q.ExecContext(ctx, `
		INSERT INTO generation_ledger
		(idempotency_key, template_id, tenant_id, period, instance_id, run_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		gen.Key, gen.TemplateID, gen.TenantID, gen.Period.String(), gen.InstanceID,
		gen.RunDate.String(), now(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("generation %s: %w", gen.Key, generic.ErrDuplicateIdempotencyKey)
		}
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

const generationColumns = `idempotency_key, template_id, tenant_id, period, instance_id, run_date`

func (o *ObligationStore) GetGeneration(ctx context.Context, key string) (recurring.Generation, error) {
	defer o.rlock()()

	row := o.q.QueryRowContext(ctx,
		`SELECT `+generationColumns+` FROM generation_ledger WHERE idempotency_key = ?`, key)
	gen, err := scanGeneration(row)
	if err == sql.ErrNoRows {
		return recurring.Generation{}, fmt.Errorf("generation %s: %w", key, generic.ErrNotFound)
	}
	return gen, err
}

func (o *ObligationStore) ListGenerations(ctx context.Context, tenantID string) ([]recurring.Generation, error) {
	defer o.rlock()()

	rows, err := o.q.QueryContext(ctx,
		`SELECT `+generationColumns+` FROM generation_ledger WHERE tenant_id = ? ORDER BY rowid`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var gens []recurring.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, gen)
	}
	return gens, rows.Err()
}

func scanGeneration(row scanner) (recurring.Generation, error) {
	var (
		gen             recurring.Generation
		period, runDate string
	)
	err := row.Scan(&gen.Key, &gen.TemplateID, &gen.TenantID, &period, &gen.InstanceID, &runDate)
	if err == sql.ErrNoRows {
		return gen, err
	}
	if err != nil {
		return gen, fmt.Errorf("failed to scan generation: %w", err)
	}
	if gen.Period, err = generic.ParseDate(period); err != nil {
		return gen, fmt.Errorf("generation %s: %w", gen.Key, err)
	}
	if gen.RunDate, err = generic.ParseDate(runDate); err != nil {
		return gen, fmt.Errorf("generation %s: %w", gen.Key, err)
	}
	return gen, nil
}

// =============================================================================
// REMINDER SETTINGS & READ STATE
// =============================================================================

func (o *ObligationStore) ReminderDays(ctx context.Context, tenantID string) (int, bool, error) {
	defer o.rlock()()

	var days int
	err := o.q.QueryRowContext(ctx,
		`SELECT reminder_days FROM tenant_settings WHERE tenant_id = ?`, tenantID).Scan(&days)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read tenant settings: %w", err)
	}
	return days, true, nil
}

func (o *ObligationStore) SetReminderDays(ctx context.Context, tenantID string, days int) error {
	defer o.lock()()

	_, err := o.q.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, reminder_days, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			reminder_days = excluded.reminder_days,
			updated_at = excluded.updated_at`,
		tenantID, days, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save tenant settings: %w", err)
	}
	return nil
}

func (o *ObligationStore) ReadNotificationIDs(ctx context.Context, tenantID string) (map[string]bool, error) {
	defer o.rlock()()

	rows, err := o.q.QueryContext(ctx,
		`SELECT notification_id FROM notification_reads WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification reads: %w", err)
	}
	defer rows.Close()

	read := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan notification read: %w", err)
		}
		read[id] = true
	}
	return read, rows.Err()
}

func (o *ObligationStore) MarkNotificationRead(ctx context.Context, tenantID, notificationID string) error {
	defer o.lock()()

	_, err := o.q.ExecContext(ctx, `
		INSERT INTO notification_reads (tenant_id, notification_id, read_at) VALUES (?, ?, ?)
		ON CONFLICT(tenant_id, notification_id) DO NOTHING`,
		tenantID, notificationID, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
