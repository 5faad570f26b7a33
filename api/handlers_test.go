/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Template creation, generation run and idempotent re-run
- Reminder feed, read state and settings
- Leave submission (accepted, rejected, overlapping) and transitions
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Cherif0104/EcosystIA-sub001/export"
	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
	"github.com/Cherif0104/EcosystIA-sub001/store/sqlite"
)

type testServer struct {
	router  http.Handler
	store   *sqlite.Store
	handler *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, _ := test.NewNullLogger()
	obligations := store.Obligations()
	leaveService := leave.NewRequestService(store.Leave(), leave.DefaultPolicy(), log)
	leaveService.Now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }

	h := NewHandler(
		obligation.NewService(obligations, log),
		recurring.NewGenerationService(obligations, log),
		reminders.NewFeedService(obligations, log),
		leaveService,
		log,
	)
	h.Today = func() generic.TimePoint { return generic.MustParseDate("2024-03-01") }

	opts := DefaultRouterOptions()
	opts.RateLimitRPS = 0
	return &testServer{router: NewRouter(h, opts), store: store, handler: h}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// OBLIGATIONS & GENERATION
// =============================================================================

func TestGenerationFlow(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN: a monthly invoice template starting in January
	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/templates", map[string]any{
		"kind":         "invoice",
		"amount":       "250.00",
		"counterparty": "Globex",
		"frequency":    "monthly",
		"start_date":   "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tpl := decodeBody[TemplateDTO](t, rec)
	assert.Nil(t, tpl.LastGeneratedDate)

	// WHEN: the generator runs twice on the same day
	first := srv.do(t, http.MethodPost, "/api/tenants/acme/generation/run?today=2024-01-20", nil)
	second := srv.do(t, http.MethodPost, "/api/tenants/acme/generation/run?today=2024-01-20", nil)

	// THEN: one instance is due on the start date and the re-run is a no-op
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	report := decodeBody[GenerationReportDTO](t, first)
	require.Len(t, report.Generated, 1)
	assert.Equal(t, "2024-01-15", report.Generated[0].DueDate.String())
	assert.Equal(t, "sent", report.Generated[0].Status)
	assert.Equal(t, tpl.ID, report.Generated[0].RecurringSourceID)

	assert.Empty(t, decodeBody[GenerationReportDTO](t, second).Generated)

	list := decodeBody[InstanceListDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/instances", nil))
	assert.Len(t, list.Instances, 1)

	history := decodeBody[[]GenerationDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/generation/history", nil))
	require.Len(t, history, 1)
	assert.Equal(t, list.Instances[0].ID, history[0].InstanceID)
}

// brokenTemplateStore fails the instance append of one template.
type brokenTemplateStore struct {
	recurring.Store
	templateID string
}

var errDiskFull = errors.New("database or disk is full")

func (b brokenTemplateStore) AppendInstance(ctx context.Context, inst obligation.Instance) error {
	if inst.RecurringSourceID == b.templateID {
		return errDiskFull
	}
	return b.Store.AppendInstance(ctx, inst)
}

func (b brokenTemplateStore) WithTx(ctx context.Context, fn func(recurring.Store) error) error {
	return b.Store.WithTx(ctx, func(tx recurring.Store) error {
		return fn(brokenTemplateStore{Store: tx, templateID: b.templateID})
	})
}

func TestRunGeneration_PartialFailureKeepsReport(t *testing.T) {
	srv := newTestServer(t)
	create := func(counterparty string) TemplateDTO {
		rec := srv.do(t, http.MethodPost, "/api/tenants/acme/templates", map[string]any{
			"kind":         "invoice",
			"amount":       "100",
			"counterparty": counterparty,
			"frequency":    "monthly",
			"start_date":   "2024-01-15",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decodeBody[TemplateDTO](t, rec)
	}
	healthy := create("Globex")
	broken := create("Initech")

	// GIVEN: the commit of one template fails in the store
	log, _ := test.NewNullLogger()
	srv.handler.Generator = recurring.NewGenerationService(
		brokenTemplateStore{Store: srv.store.Obligations(), templateID: broken.ID}, log)

	// WHEN: the generator runs
	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/generation/run?today=2024-01-20", nil)

	// THEN: the committed instance and the failing template are both reported
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	report := decodeBody[GenerationReportDTO](t, rec)
	require.Len(t, report.Generated, 1)
	assert.Equal(t, healthy.ID, report.Generated[0].RecurringSourceID)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, broken.ID, report.Errors[0].TemplateID)
	assert.Contains(t, report.Errors[0].Error, "disk is full")

	list := decodeBody[InstanceListDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/instances", nil))
	assert.Len(t, list.Instances, 1)
}

func TestPatchInstance_StatusParsedForKind(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/instances", map[string]any{
		"kind":     "expense",
		"amount":   "40",
		"due_date": "2024-03-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inst := decodeBody[InstanceDTO](t, rec)
	assert.Equal(t, "unpaid", inst.Status)

	// "sent" is an invoice status and must fail loudly for an expense
	rec = srv.do(t, http.MethodPatch, "/api/tenants/acme/instances/"+inst.ID, map[string]any{"status": "sent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/tenants/acme/instances/"+inst.ID, map[string]any{"status": "Paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paid", decodeBody[InstanceDTO](t, rec).Status)

	rec = srv.do(t, http.MethodPatch, "/api/tenants/acme/instances/missing", map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTemplate_RejectsUnknownFrequency(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/templates", map[string]any{
		"kind":       "invoice",
		"amount":     "10",
		"frequency":  "weekly",
		"start_date": "2024-01-01",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "weekly")
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestNotificationsAndReadState(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/instances", map[string]any{
		"kind":         "invoice",
		"amount":       "99",
		"counterparty": "Initech",
		"due_date":     "2024-03-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inst := decodeBody[InstanceDTO](t, rec)

	feed := decodeBody[FeedDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/notifications", nil))
	require.Len(t, feed.Notifications, 1)
	assert.Equal(t, 2, feed.Notifications[0].DaysLeft)
	assert.Equal(t, 1, feed.Unread)
	assert.Equal(t, "invoice-"+inst.ID, feed.Notifications[0].ID)

	// WHEN: the notification is marked read
	rec = srv.do(t, http.MethodPost, "/api/tenants/acme/notifications/"+feed.Notifications[0].ID+"/read", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// THEN: the recomputed feed keeps the read flag
	feed = decodeBody[FeedDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/notifications", nil))
	require.Len(t, feed.Notifications, 1)
	assert.True(t, feed.Notifications[0].Read)
	assert.Equal(t, 0, feed.Unread)

	rec = srv.do(t, http.MethodPost, "/api/tenants/acme/notifications/invoice-nope/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsWindow(t *testing.T) {
	srv := newTestServer(t)

	got := decodeBody[SettingsDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/settings", nil))
	assert.Equal(t, reminders.DefaultReminderDays, got.ReminderDays)

	rec := srv.do(t, http.MethodPut, "/api/tenants/acme/settings", map[string]any{"reminder_days": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decodeBody[SettingsDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/settings", nil))
	assert.Equal(t, 10, got.ReminderDays)

	rec = srv.do(t, http.MethodPut, "/api/tenants/acme/settings", map[string]any{"reminder_days": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportNotifications(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/tenants/acme/instances", map[string]any{
		"kind": "invoice", "amount": "5", "due_date": "2024-03-01",
	}).Code)

	rec := srv.do(t, http.MethodGet, "/api/tenants/acme/notifications/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.NotificationsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// =============================================================================
// LEAVE
// =============================================================================

func leaveBody(start, end string) map[string]any {
	return map[string]any{
		"employee_id": "emp-1",
		"start_date":  start,
		"end_date":    end,
		"reason":      "Family visit",
	}
}

func TestSubmitLeaveRequest(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/leave-requests", leaveBody("2024-04-01", "2024-04-05"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, 5, created.Days)

	// Overlapping window for the same employee
	rec = srv.do(t, http.MethodPost, "/api/tenants/acme/leave-requests", leaveBody("2024-04-05", "2024-04-09"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	list := decodeBody[LeaveRequestListDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/leave-requests", nil)).Requests
	assert.Len(t, list, 1)
}

func TestSubmitLeaveRequest_RejectedListsEveryViolation(t *testing.T) {
	srv := newTestServer(t)
	body := leaveBody("2024-03-05", "2024-03-04")
	body["reason"] = "  "

	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/leave-requests", body)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	verdict := decodeBody[ValidationDTO](t, rec)
	assert.False(t, verdict.Accepted)
	codes := make([]string, len(verdict.Errors))
	for i, e := range verdict.Errors {
		codes[i] = e.Code
	}
	assert.ElementsMatch(t, []string{
		string(leave.CodeEmptyOrOversizedReason),
		string(leave.CodeInvalidDateRange),
		string(leave.CodeInsufficientNotice),
	}, codes)

	list := decodeBody[LeaveRequestListDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/leave-requests", nil)).Requests
	assert.Empty(t, list)
}

func TestValidateLeaveRequest_DoesNotWrite(t *testing.T) {
	srv := newTestServer(t)
	body := leaveBody("2024-03-05", "2024-03-06")
	body["is_urgent"] = true
	body["urgency_reason"] = "Hospital appointment"

	rec := srv.do(t, http.MethodPost, "/api/tenants/acme/leave-requests/validate", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[ValidationDTO](t, rec).Accepted)
	list := decodeBody[LeaveRequestListDTO](t, srv.do(t, http.MethodGet, "/api/tenants/acme/leave-requests", nil)).Requests
	assert.Empty(t, list)
}

func TestLeaveTransitions(t *testing.T) {
	srv := newTestServer(t)
	created := decodeBody[LeaveRequestDTO](t,
		srv.do(t, http.MethodPost, "/api/tenants/acme/leave-requests", leaveBody("2024-04-01", "2024-04-02")))
	path := "/api/leave-requests/" + created.ID

	// Approval without a reason is refused
	rec := srv.do(t, http.MethodPost, path+"/approve", map[string]any{"approver_id": "mgr-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, path+"/approve", map[string]any{"approver_id": "mgr-1", "reason": "Covered"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decodeBody[LeaveRequestDTO](t, rec).Status)

	// Terminal states are final
	rec = srv.do(t, http.MethodPost, path+"/reject", map[string]any{"approver_id": "mgr-2", "reason": "Too late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = srv.do(t, http.MethodPost, path+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/leave-requests/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRescheduleLeaveRequest(t *testing.T) {
	srv := newTestServer(t)
	created := decodeBody[LeaveRequestDTO](t,
		srv.do(t, http.MethodPost, "/api/tenants/acme/leave-requests", leaveBody("2024-04-01", "2024-04-02")))
	path := "/api/leave-requests/" + created.ID + "/reschedule"

	// Moving the request inside the notice window is rejected by policy
	rec := srv.do(t, http.MethodPost, path, map[string]any{
		"start_date": "2024-03-04", "end_date": "2024-03-05", "change_reason": "earlier",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = srv.do(t, http.MethodPost, path, map[string]any{
		"start_date": "2024-05-06", "end_date": "2024-05-10", "change_reason": "project moved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "2024-05-06", moved.StartDate.String())
	assert.Equal(t, "project moved", moved.ChangeReason)
}

// =============================================================================
// MIDDLEWARE & SCHEDULER
// =============================================================================

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		codes[i] = rec.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

type countingPusher struct{ tenants []string }

func (p *countingPusher) Push(_ context.Context, tenantID string, _ generic.TimePoint) (bool, error) {
	p.tenants = append(p.tenants, tenantID)
	return true, nil
}

func TestGenerationScheduler_RunNow(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/tenants/acme/templates", map[string]any{
		"kind": "expense", "amount": "1200", "frequency": "monthly", "start_date": "2024-02-01",
	}).Code)
	// A tenant with a manual invoice and no template still gets its digest.
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/tenants/initech/instances", map[string]any{
		"kind": "invoice", "amount": "80", "due_date": "2024-02-02",
	}).Code)

	log, hook := test.NewNullLogger()
	pusher := &countingPusher{}
	scheduler := NewGenerationScheduler(recurring.NewGenerationService(srv.store.Obligations(), log), pusher, "0 6 * * *", log)
	scheduler.Today = func() generic.TimePoint { return generic.MustParseDate("2024-02-01") }

	reports := scheduler.RunNow(context.Background())

	require.Len(t, reports, 2)
	assert.Len(t, reports[0].Generated, 1)
	assert.Empty(t, reports[1].Generated)
	assert.Equal(t, []string{"acme", "initech"}, pusher.tenants)
	assert.Equal(t, "scheduled generation completed", hook.LastEntry().Message)
}

func TestGenerationScheduler_InvalidSpec(t *testing.T) {
	log, _ := test.NewNullLogger()
	scheduler := NewGenerationScheduler(nil, nil, "not a cron spec", log)

	assert.Error(t, scheduler.Start())
	assert.True(t, scheduler.NextRun().IsZero())
	scheduler.Stop()
}
