package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func rentTemplate() obligation.Template {
	last := date("2024-01-01")
	return obligation.Template{
		ID:                "tpl-rent",
		TenantID:          "acme",
		Kind:              obligation.KindExpense,
		Amount:            decimal.RequireFromString("1200.00"),
		Counterparty:      "Landlord",
		Frequency:         generic.Monthly,
		StartDate:         date("2023-06-01"),
		LastGeneratedDate: &last,
	}
}

// =============================================================================
// TEMPLATES & INSTANCES
// =============================================================================

func TestTemplateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()

	tpl := rentTemplate()
	require.NoError(t, store.SaveTemplate(ctx, tpl))

	rec, err := store.GetTemplate(ctx, "acme", "tpl-rent")
	require.NoError(t, err)
	got, err := rec.Parse()
	require.NoError(t, err)
	assert.True(t, tpl.Amount.Equal(got.Amount))
	assert.Equal(t, generic.Monthly, got.Frequency)
	assert.Nil(t, got.EndDate)
	require.NotNil(t, got.LastGeneratedDate)
	assert.Equal(t, "2024-01-01", got.LastGeneratedDate.String())

	_, err = store.GetTemplate(ctx, "other", "tpl-rent")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestSaveTemplateLeavesLastGeneratedDate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()
	tpl := rentTemplate()
	require.NoError(t, store.SaveTemplate(ctx, tpl))

	// GIVEN: the generator moved the template to February
	require.NoError(t, store.AdvanceTemplate(ctx, "acme", "tpl-rent", tpl.LastGeneratedDate, date("2024-02-01")))

	// WHEN: an edit made from the January copy is saved
	edited := tpl
	edited.Amount = decimal.RequireFromString("1300.00")
	require.NoError(t, store.SaveTemplate(ctx, edited))

	// THEN: the edit lands and February is kept
	rec, err := store.GetTemplate(ctx, "acme", "tpl-rent")
	require.NoError(t, err)
	assert.Equal(t, "1300.00", rec.Amount)
	assert.Equal(t, "2024-02-01", rec.LastGeneratedDate)

	// AND: advancing from the January copy is refused
	err = store.AdvanceTemplate(ctx, "acme", "tpl-rent", tpl.LastGeneratedDate, date("2024-03-01"))
	assert.ErrorIs(t, err, generic.ErrStaleTemplate)
	err = store.AdvanceTemplate(ctx, "acme", "tpl-rent", nil, date("2024-03-01"))
	assert.ErrorIs(t, err, generic.ErrStaleTemplate)
}

func TestAdvanceTemplateFromNeverGenerated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()
	tpl := rentTemplate()
	tpl.LastGeneratedDate = nil
	require.NoError(t, store.SaveTemplate(ctx, tpl))

	require.NoError(t, store.AdvanceTemplate(ctx, "acme", "tpl-rent", nil, date("2023-06-01")))

	rec, err := store.GetTemplate(ctx, "acme", "tpl-rent")
	require.NoError(t, err)
	assert.Equal(t, "2023-06-01", rec.LastGeneratedDate)
}

func TestMalformedRowsAreReturnedRaw(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()

	// GIVEN: an instance row with a date no parser accepts
	require.NoError(t, store.SaveInstanceRecord(ctx, obligation.InstanceRecord{
		ID: "inv-bad", TenantID: "acme", Kind: "invoice", Amount: "10",
		DueDate: "31/02/2024", Status: "sent",
	}))

	// WHEN: instances are listed
	records, err := store.ListInstances(ctx, "acme")

	// THEN: the raw record comes back and parsing fails on it alone
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "31/02/2024", records[0].DueDate)
	_, err = records[0].Parse()
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestSaveInstanceKeepsRecurringSource(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()

	due := date("2024-02-01")
	inst := obligation.Instance{
		ID: "inst-1", TenantID: "acme", Kind: obligation.KindInvoice,
		Amount: decimal.RequireFromString("99.90"), DueDate: &due,
		Status: obligation.StatusSent, RecurringSourceID: "tpl-hosting", GeneratedFor: &due,
	}
	require.NoError(t, store.AppendInstance(ctx, inst))
	assert.ErrorIs(t, store.AppendInstance(ctx, inst), generic.ErrDuplicateIdempotencyKey)

	// WHEN: an edit without the back-reference is saved
	edited := inst
	edited.Status = obligation.StatusPaid
	edited.RecurringSourceID = ""
	edited.GeneratedFor = nil
	require.NoError(t, store.SaveInstance(ctx, edited))

	// THEN: the status changes but the recurring source survives
	rec, err := store.GetInstance(ctx, "acme", "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "paid", rec.Status)
	assert.Equal(t, "tpl-hosting", rec.RecurringSourceID)
	assert.Equal(t, "2024-02-01", rec.GeneratedFor)
}

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerationIsIdempotentAcrossRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()
	log, _ := test.NewNullLogger()
	svc := recurring.NewGenerationService(store, log)

	require.NoError(t, store.SaveTemplate(ctx, rentTemplate()))

	// WHEN: the job runs twice on the same day
	first, err := svc.Generate(ctx, "acme", date("2024-02-01"))
	require.NoError(t, err)
	second, err := svc.Generate(ctx, "acme", date("2024-02-01"))
	require.NoError(t, err)

	// THEN: exactly one unpaid instance exists
	assert.Len(t, first.Generated, 1)
	assert.Empty(t, second.Generated)

	instances, err := store.ListInstances(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "unpaid", instances[0].Status)
	assert.Equal(t, "tpl-rent", instances[0].RecurringSourceID)

	tenants, err := store.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, tenants)

	committed, err := store.GetGeneration(ctx, first.Generated[0].RecurringSourceID+"@2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, first.Generated[0].ID, committed.InstanceID)
	_, err = store.GetGeneration(ctx, "tpl-rent@2099-01-01")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestListTenantsIncludesManualInstances(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()
	require.NoError(t, store.SaveTemplate(ctx, rentTemplate()))

	// GIVEN: a tenant with a manual invoice and no template
	due := date("2024-02-10")
	require.NoError(t, store.AppendInstance(ctx, obligation.Instance{
		ID: "inv-manual", TenantID: "initech", Kind: obligation.KindInvoice,
		Amount: decimal.RequireFromString("80"), DueDate: &due, Status: obligation.StatusSent,
	}))

	tenants, err := store.ListTenants(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "initech"}, tenants)
}

func TestDuplicatePeriodRollsBackInstance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()
	tpl := rentTemplate()
	gen := recurring.NewGeneration(tpl, date("2024-02-01"), date("2024-02-01"))
	require.NoError(t, store.RecordGeneration(ctx, gen))

	// WHEN: a transaction appends an instance, then hits the ledger conflict
	err := store.WithTx(ctx, func(tx recurring.Store) error {
		due := date("2024-02-01")
		if err := tx.AppendInstance(ctx, obligation.Instance{
			ID: gen.InstanceID, TenantID: "acme", Kind: obligation.KindExpense,
			Amount: tpl.Amount, DueDate: &due, Status: obligation.StatusUnpaid,
		}); err != nil {
			return err
		}
		return tx.RecordGeneration(ctx, gen)
	})

	// THEN: the conflict surfaces and the instance is rolled back
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	instances, err := store.ListInstances(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, instances)

	history, err := store.ListGenerations(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-02-01", history[0].Period.String())
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestReminderSettingsAndReads(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Obligations()

	_, ok, err := store.ReminderDays(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetReminderDays(ctx, "acme", 7))
	require.NoError(t, store.SetReminderDays(ctx, "acme", 5))
	days, ok, err := store.ReminderDays(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, days)

	id := reminders.NotificationID(obligation.KindInvoice, "inv-1")
	require.NoError(t, store.MarkNotificationRead(ctx, "acme", id))
	require.NoError(t, store.MarkNotificationRead(ctx, "acme", id))
	read, err := store.ReadNotificationIDs(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{id: true}, read)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeaveRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t).Leave()
	log, _ := test.NewNullLogger()
	svc := leave.NewRequestService(store, leave.DefaultPolicy(), log)
	svc.Now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	draft := leave.Draft{
		StartDate: date("2024-04-01"),
		EndDate:   date("2024-04-05"),
		Reason:    "Family trip",
	}
	req, result, err := svc.Submit(ctx, "acme", "emp-1", draft, date("2024-03-01"))
	require.NoError(t, err)
	require.True(t, result.Accepted())

	// WHEN: an overlapping request is submitted for the same employee
	overlapping := draft
	overlapping.StartDate = date("2024-04-05")
	overlapping.EndDate = date("2024-04-08")
	_, _, err = svc.Submit(ctx, "acme", "emp-1", overlapping, date("2024-03-01"))
	assert.ErrorIs(t, err, generic.ErrOverlap)

	// THEN: the first request can still be approved and reads back intact
	_, err = svc.Approve(ctx, req.ID, "mgr-1", "enjoy")
	require.NoError(t, err)

	got, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, "mgr-1", got.DecidedBy)
	assert.Equal(t, 5, got.Days())
	assert.True(t, svc.Now().Equal(got.CreatedAt))

	all, skipped, err := store.ListByEmployee(ctx, "acme", "emp-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, skipped)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestUnreadableLeaveRowsAreSkipped(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	store := db.Leave()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	good := leave.NewRequest("lr-good", "acme", "emp-1", leave.Draft{
		StartDate: date("2024-04-01"), EndDate: date("2024-04-02"), Reason: "Rest",
	}, created)
	require.NoError(t, store.Save(ctx, good))

	// GIVEN: one row with a foreign date and one with a broken timestamp
	insert := `INSERT INTO leave_requests (` + leaveColumns + `)
		VALUES (?, 'acme', 'emp-1', ?, '2024-05-02', 'x', 0, '', 'pending', '', '', '', '', ?, ?)`
	_, err := db.db.ExecContext(ctx, insert, "lr-date", "01/05/2024",
		created.Format(time.RFC3339Nano), created.Format(time.RFC3339Nano))
	require.NoError(t, err)
	_, err = db.db.ExecContext(ctx, insert, "lr-stamp", "2024-06-01", "yesterday", created.Format(time.RFC3339Nano))
	require.NoError(t, err)

	// WHEN: the tenant's requests are listed
	requests, skipped, err := store.ListByTenant(ctx, "acme")

	// THEN: the readable request comes back and each bad row is reported
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "lr-good", requests[0].ID)
	require.Len(t, skipped, 2)
	var recErr *leave.RecordError
	require.ErrorAs(t, skipped[0], &recErr)
	assert.Equal(t, "lr-date", recErr.ID)
	assert.ErrorIs(t, skipped[0], generic.ErrInvalidDate)
	require.ErrorAs(t, skipped[1], &recErr)
	assert.Equal(t, "lr-stamp", recErr.ID)
	assert.Contains(t, skipped[1].Error(), "created_at")

	_, err = store.Get(ctx, "lr-stamp")
	assert.ErrorAs(t, err, &recErr)
}

// =============================================================================
// FAILURE SURFACING
// =============================================================================

func TestDriverFailuresSurface(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewFromDB(db).Obligations()
	diskFull := errors.New("database or disk is full")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id FROM templates")).
		WillReturnError(diskFull)
	_, err = store.ListTenants(ctx)
	assert.ErrorIs(t, err, diskFull)

	// A failing write inside a transaction rolls it back.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO generation_ledger").WillReturnError(diskFull)
	mock.ExpectRollback()

	gen := recurring.NewGeneration(rentTemplate(), date("2024-02-01"), date("2024-02-01"))
	err = store.WithTx(ctx, func(tx recurring.Store) error {
		return tx.RecordGeneration(ctx, gen)
	})
	assert.ErrorIs(t, err, diskFull)
	assert.NotErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	// A unique violation reported by the driver maps to the idempotency error.
	mock.ExpectExec("INSERT INTO generation_ledger").
		WillReturnError(errors.New("UNIQUE constraint failed: generation_ledger.idempotency_key"))
	err = store.RecordGeneration(ctx, gen)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	assert.NoError(t, mock.ExpectationsWereMet())
}
