/*
handlers.go - HTTP API handlers for obligations, reminders and leave requests

PURPOSE:
  Exposes the recurring generator, the reminder feed and the leave validator
  via REST API. Handlers parse the request, call a service and serialize the
  result; no business rule lives here.

ENDPOINTS:
  Obligations (per tenant, /api/tenants/{tenant}):
    GET    /templates                 List templates
    POST   /templates                 Create template
    PATCH  /templates/{id}            Patch template
    GET    /instances                 List instances
    POST   /instances                 Create manual instance
    GET    /instances/export          Instances as XLSX
    PATCH  /instances/{id}            Patch instance
    POST   /generation/run            Run the generator now
    GET    /generation/history        Generation ledger

  Reminders (per tenant):
    GET    /notifications             Reminder feed
    GET    /notifications/export      Reminder feed as XLSX
    POST   /notifications/{id}/read   Mark a notification read
    GET    /settings                  Reminder window
    PUT    /settings                  Update reminder window

  Leave:
    POST   /api/tenants/{tenant}/leave-requests/validate  Validate only
    POST   /api/tenants/{tenant}/leave-requests           Submit
    GET    /api/tenants/{tenant}/leave-requests           List
    GET    /api/leave-requests/{id}                       Get
    POST   /api/leave-requests/{id}/approve|reject|cancel|reschedule

TODAY:
  Every date-dependent endpoint accepts an optional ?today=YYYY-MM-DD
  override; otherwise the handler clock decides.

ERROR HANDLING:
  - 400: malformed input, unknown enum values, missing reasons
  - 404: unknown template, instance, notification or request
  - 409: terminal state, overlap, duplicate generation
  - 422: leave request rejected by policy (body lists every violation)
  - 500: storage failures

SEE ALSO:
  - dto.go: Response data structures
  - factory/payload.go: Request payload decoding
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Cherif0104/EcosystIA-sub001/export"
	"github.com/Cherif0104/EcosystIA-sub001/factory"
	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Obligations *obligation.Service
	Generator   *recurring.GenerationService
	Feeds       *reminders.FeedService
	Leave       *leave.RequestService
	Log         logrus.FieldLogger

	// Today is the default run date when a request carries no ?today.
	Today func() generic.TimePoint
}

func NewHandler(
	obligations *obligation.Service,
	generator *recurring.GenerationService,
	feeds *reminders.FeedService,
	leaveRequests *leave.RequestService,
	log logrus.FieldLogger,
) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Obligations: obligations,
		Generator:   generator,
		Feeds:       feeds,
		Leave:       leaveRequests,
		Log:         log,
		Today:       generic.Today,
	}
}

func (h *Handler) today(r *http.Request) (generic.TimePoint, error) {
	if s := r.URL.Query().Get("today"); s != "" {
		return generic.ParseDate(s)
	}
	return h.Today(), nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, skipped, err := h.Obligations.Templates(r.Context(), chi.URLParam(r, "tenant"))
	if err != nil {
		h.fail(w, r, "Failed to list templates", err)
		return
	}

	dto := TemplateListDTO{Templates: make([]TemplateDTO, len(templates)), Skipped: errorStrings(skipped)}
	for i, t := range templates {
		dto.Templates[i] = toTemplateDTO(t)
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := factory.DecodeTemplate(r.Body, chi.URLParam(r, "tenant"))
	if err != nil {
		h.fail(w, r, "Invalid template", err)
		return
	}
	created, err := h.Obligations.CreateTemplate(r.Context(), tpl)
	if err != nil {
		h.fail(w, r, "Failed to create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(created))
}

func (h *Handler) PatchTemplate(w http.ResponseWriter, r *http.Request) {
	patch, err := factory.DecodeTemplatePatch(r.Body)
	if err != nil {
		h.fail(w, r, "Invalid template patch", err)
		return
	}
	tpl, err := h.Obligations.PatchTemplate(r.Context(), chi.URLParam(r, "tenant"), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "Failed to patch template", err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(tpl))
}

// =============================================================================
// INSTANCE HANDLERS
// =============================================================================

func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, skipped, err := h.Obligations.Instances(r.Context(), chi.URLParam(r, "tenant"))
	if err != nil {
		h.fail(w, r, "Failed to list instances", err)
		return
	}
	writeJSON(w, http.StatusOK, InstanceListDTO{Instances: toInstanceDTOs(instances), Skipped: errorStrings(skipped)})
}

func (h *Handler) ExportInstances(w http.ResponseWriter, r *http.Request) {
	instances, _, err := h.Obligations.Instances(r.Context(), chi.URLParam(r, "tenant"))
	if err != nil {
		h.fail(w, r, "Failed to list instances", err)
		return
	}
	writeXLSX(w, "obligations.xlsx")
	if err := export.WriteInstances(w, instances); err != nil {
		h.Log.WithError(err).Error("instance export failed")
	}
}

func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := factory.DecodeInstance(r.Body, chi.URLParam(r, "tenant"))
	if err != nil {
		h.fail(w, r, "Invalid instance", err)
		return
	}
	created, err := h.Obligations.CreateInstance(r.Context(), inst)
	if err != nil {
		h.fail(w, r, "Failed to create instance", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInstanceDTO(created))
}

func (h *Handler) PatchInstance(w http.ResponseWriter, r *http.Request) {
	tenantID, id := chi.URLParam(r, "tenant"), chi.URLParam(r, "id")

	// The stored kind decides which statuses the patch may name.
	current, err := h.Obligations.Instance(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, r, "Failed to load instance", err)
		return
	}
	patch, err := factory.DecodeInstancePatch(r.Body, current.Kind)
	if err != nil {
		h.fail(w, r, "Invalid instance patch", err)
		return
	}
	inst, err := h.Obligations.PatchInstance(r.Context(), tenantID, id, patch)
	if err != nil {
		h.fail(w, r, "Failed to patch instance", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstanceDTO(inst))
}

// =============================================================================
// GENERATION HANDLERS
// =============================================================================

func (h *Handler) RunGeneration(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}
	report, err := h.Generator.Generate(r.Context(), chi.URLParam(r, "tenant"), today)
	if report == nil {
		h.fail(w, r, "Generation failed", err)
		return
	}
	if err != nil {
		// The report stays valid; failing templates are listed in its errors.
		h.Log.WithError(err).WithField("tenant", report.TenantID).Warn("generation partially failed")
		writeJSON(w, http.StatusMultiStatus, toReportDTO(report))
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

func (h *Handler) GenerationHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Generator.History(r.Context(), chi.URLParam(r, "tenant"))
	if err != nil {
		h.fail(w, r, "Failed to load generation history", err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerationDTOs(history))
}

// =============================================================================
// REMINDER HANDLERS
// =============================================================================

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.feed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toFeedDTO(feed))
}

func (h *Handler) ExportNotifications(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.feed(w, r)
	if !ok {
		return
	}
	writeXLSX(w, "notifications.xlsx")
	if err := export.WriteNotifications(w, feed.Notifications); err != nil {
		h.Log.WithError(err).Error("notification export failed")
	}
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) (*reminders.Feed, bool) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return nil, false
	}
	feed, err := h.Feeds.Feed(r.Context(), chi.URLParam(r, "tenant"), today)
	if err != nil {
		h.fail(w, r, "Failed to compute notifications", err)
		return nil, false
	}
	return feed, true
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}
	if err := h.Feeds.MarkRead(r.Context(), chi.URLParam(r, "tenant"), chi.URLParam(r, "id"), today); err != nil {
		h.fail(w, r, "Failed to mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	days, err := h.Feeds.Window(r.Context(), tenantID)
	if err != nil {
		h.fail(w, r, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsDTO{TenantID: tenantID, ReminderDays: days})
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	days, err := factory.DecodeReminderDays(r.Body)
	if err != nil {
		h.fail(w, r, "Invalid settings", err)
		return
	}
	if err := h.Feeds.SetReminderDays(r.Context(), tenantID, days); err != nil {
		h.fail(w, r, "Failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsDTO{TenantID: tenantID, ReminderDays: days})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ValidateLeaveRequest runs the policy checks without writing; rejection is
// still a 200 with accepted=false.
func (h *Handler) ValidateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}
	_, draft, err := factory.DecodeLeaveDraft(r.Body)
	if err != nil {
		h.fail(w, r, "Invalid leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toValidationDTO(h.Leave.Validate(draft, today)))
}

func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}
	employeeID, draft, err := factory.DecodeLeaveDraft(r.Body)
	if err != nil {
		h.fail(w, r, "Invalid leave request", err)
		return
	}
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "Invalid leave request", errors.New("employee_id is required"))
		return
	}

	req, result, err := h.Leave.Submit(r.Context(), chi.URLParam(r, "tenant"), employeeID, draft, today)
	if !result.Accepted() {
		writeJSON(w, http.StatusUnprocessableEntity, toValidationDTO(result))
		return
	}
	if err != nil {
		h.fail(w, r, "Failed to submit leave request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(req))
}

func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	requests, skipped, err := h.Leave.List(r.Context(), chi.URLParam(r, "tenant"))
	if err != nil {
		h.fail(w, r, "Failed to list leave requests", err)
		return
	}
	dto := LeaveRequestListDTO{Requests: make([]LeaveRequestDTO, len(requests)), Skipped: errorStrings(skipped)}
	for i, req := range requests {
		dto.Requests[i] = toLeaveDTO(req)
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Leave.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to load leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(req))
}

func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Leave.Approve)
}

func (h *Handler) RejectLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Leave.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id, approverID, reason string) (*leave.Request, error)) {
	decision, err := factory.DecodeDecision(r.Body)
	if err != nil {
		h.fail(w, r, "Invalid decision", err)
		return
	}
	req, err := apply(r.Context(), chi.URLParam(r, "id"), decision.ApproverID, decision.Reason)
	if err != nil {
		h.fail(w, r, "Failed to decide leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(req))
}

func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Leave.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to cancel leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(req))
}

func (h *Handler) RescheduleLeaveRequest(w http.ResponseWriter, r *http.Request) {
	body, patch, err := factory.DecodeReschedule(r.Body)
	if err != nil {
		h.fail(w, r, "Invalid reschedule", err)
		return
	}
	today := h.Today()
	if body.Today != nil {
		today = *body.Today
	}

	req, result, err := h.Leave.Reschedule(r.Context(), chi.URLParam(r, "id"), patch, body.ChangeReason, today)
	if !result.Accepted() {
		writeJSON(w, http.StatusUnprocessableEntity, toValidationDTO(result))
		return
	}
	if err != nil {
		h.fail(w, r, "Failed to reschedule leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(req))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeXLSX(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
}

// fail maps err to its HTTP status. Server-side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithFields(logrus.Fields{"path": r.URL.Path, "method": r.Method}).WithError(err).Error(message)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	var rejected *leave.ValidationErrors
	switch {
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
