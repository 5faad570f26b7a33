package api

import (
	"time"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

// =============================================================================
// OBLIGATIONS
// =============================================================================

type TemplateDTO struct {
	ID                string             `json:"id"`
	TenantID          string             `json:"tenant_id"`
	Kind              string             `json:"kind"`
	Amount            string             `json:"amount"`
	Counterparty      string             `json:"counterparty"`
	Frequency         string             `json:"frequency"`
	StartDate         generic.TimePoint  `json:"start_date"`
	EndDate           *generic.TimePoint `json:"end_date,omitempty"`
	LastGeneratedDate *generic.TimePoint `json:"last_generated_date,omitempty"`
}

type TemplateListDTO struct {
	Templates []TemplateDTO `json:"templates"`
	Skipped   []string      `json:"skipped,omitempty"`
}

type InstanceDTO struct {
	ID                string             `json:"id"`
	TenantID          string             `json:"tenant_id"`
	Kind              string             `json:"kind"`
	Amount            string             `json:"amount"`
	Counterparty      string             `json:"counterparty"`
	DueDate           *generic.TimePoint `json:"due_date,omitempty"`
	Status            string             `json:"status"`
	RecurringSourceID string             `json:"recurring_source_id,omitempty"`
	GeneratedFor      *generic.TimePoint `json:"generated_for,omitempty"`
}

type InstanceListDTO struct {
	Instances []InstanceDTO `json:"instances"`
	Skipped   []string      `json:"skipped,omitempty"`
}

func toTemplateDTO(t obligation.Template) TemplateDTO {
	return TemplateDTO{
		ID:                t.ID,
		TenantID:          t.TenantID,
		Kind:              string(t.Kind),
		Amount:            generic.FormatAmount(t.Amount),
		Counterparty:      t.Counterparty,
		Frequency:         string(t.Frequency),
		StartDate:         t.StartDate,
		EndDate:           t.EndDate,
		LastGeneratedDate: t.LastGeneratedDate,
	}
}

func toInstanceDTO(i obligation.Instance) InstanceDTO {
	return InstanceDTO{
		ID:                i.ID,
		TenantID:          i.TenantID,
		Kind:              string(i.Kind),
		Amount:            generic.FormatAmount(i.Amount),
		Counterparty:      i.Counterparty,
		DueDate:           i.DueDate,
		Status:            string(i.Status),
		RecurringSourceID: i.RecurringSourceID,
		GeneratedFor:      i.GeneratedFor,
	}
}

func toInstanceDTOs(instances []obligation.Instance) []InstanceDTO {
	out := make([]InstanceDTO, len(instances))
	for i, inst := range instances {
		out[i] = toInstanceDTO(inst)
	}
	return out
}

// =============================================================================
// GENERATION
// =============================================================================

type GenerationDTO struct {
	Key        string            `json:"idempotency_key"`
	TemplateID string            `json:"template_id"`
	Period     generic.TimePoint `json:"period"`
	InstanceID string            `json:"instance_id"`
	RunDate    generic.TimePoint `json:"run_date"`
}

type FailureDTO struct {
	TemplateID string `json:"template_id"`
	Error      string `json:"error"`
}

type GenerationReportDTO struct {
	TenantID   string            `json:"tenant_id"`
	RunDate    generic.TimePoint `json:"run_date"`
	Generated  []InstanceDTO     `json:"generated"`
	Duplicates []GenerationDTO   `json:"duplicates,omitempty"`
	Failures   []FailureDTO      `json:"failures,omitempty"`
	Errors     []FailureDTO      `json:"errors,omitempty"`
}

func toGenerationDTO(g recurring.Generation) GenerationDTO {
	return GenerationDTO{
		Key:        g.Key,
		TemplateID: g.TemplateID,
		Period:     g.Period,
		InstanceID: g.InstanceID,
		RunDate:    g.RunDate,
	}
}

func toGenerationDTOs(gens []recurring.Generation) []GenerationDTO {
	out := make([]GenerationDTO, len(gens))
	for i, g := range gens {
		out[i] = toGenerationDTO(g)
	}
	return out
}

func toReportDTO(r *recurring.Report) GenerationReportDTO {
	dto := GenerationReportDTO{
		TenantID:  r.TenantID,
		RunDate:   r.RunDate,
		Generated: toInstanceDTOs(r.Generated),
	}
	if len(r.Duplicates) > 0 {
		dto.Duplicates = toGenerationDTOs(r.Duplicates)
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, FailureDTO{TemplateID: f.TemplateID, Error: f.Err.Error()})
	}
	for _, f := range r.Errors {
		dto.Errors = append(dto.Errors, FailureDTO{TemplateID: f.TemplateID, Error: f.Err.Error()})
	}
	return dto
}

// =============================================================================
// REMINDERS
// =============================================================================

type NotificationDTO struct {
	ID         string            `json:"id"`
	Message    string            `json:"message"`
	Date       generic.TimePoint `json:"date"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	DaysLeft   int               `json:"days_left"`
	Read       bool              `json:"read"`
}

type FeedDTO struct {
	TenantID      string            `json:"tenant_id"`
	Today         generic.TimePoint `json:"today"`
	ReminderDays  int               `json:"reminder_days"`
	Unread        int               `json:"unread"`
	Notifications []NotificationDTO `json:"notifications"`
	Skipped       []string          `json:"skipped,omitempty"`
}

type SettingsDTO struct {
	TenantID     string `json:"tenant_id"`
	ReminderDays int    `json:"reminder_days"`
}

func toFeedDTO(f *reminders.Feed) FeedDTO {
	dto := FeedDTO{
		TenantID:      f.TenantID,
		Today:         f.Today,
		ReminderDays:  f.ReminderDays,
		Unread:        reminders.Unread(f.Notifications),
		Notifications: make([]NotificationDTO, len(f.Notifications)),
		Skipped:       errorStrings(f.Skipped),
	}
	for i, n := range f.Notifications {
		dto.Notifications[i] = NotificationDTO{
			ID:         n.ID,
			Message:    n.Message,
			Date:       n.Date,
			EntityType: string(n.EntityType),
			EntityID:   n.EntityID,
			DaysLeft:   n.DaysLeft,
			Read:       n.Read,
		}
	}
	return dto
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveRequestDTO struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	EmployeeID      string            `json:"employee_id"`
	StartDate       generic.TimePoint `json:"start_date"`
	EndDate         generic.TimePoint `json:"end_date"`
	Days            int               `json:"days"`
	Reason          string            `json:"reason"`
	IsUrgent        bool              `json:"is_urgent"`
	UrgencyReason   string            `json:"urgency_reason,omitempty"`
	Status          string            `json:"status"`
	ApprovalReason  string            `json:"approval_reason,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	DecidedBy       string            `json:"decided_by,omitempty"`
	ChangeReason    string            `json:"change_reason,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

type LeaveRequestListDTO struct {
	Requests []LeaveRequestDTO `json:"requests"`
	Skipped  []string          `json:"skipped,omitempty"`
}

type ValidationErrorDTO struct {
	Code         string `json:"code"`
	Field        string `json:"field"`
	Message      string `json:"message"`
	NoticeDays   int    `json:"notice_days,omitempty"`
	RequiredDays int    `json:"required_days,omitempty"`
}

type ValidationDTO struct {
	Accepted bool                 `json:"accepted"`
	Errors   []ValidationErrorDTO `json:"errors"`
}

func toLeaveDTO(r *leave.Request) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:              r.ID,
		TenantID:        r.TenantID,
		EmployeeID:      r.EmployeeID,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Days:            r.Days(),
		Reason:          r.Reason,
		IsUrgent:        r.IsUrgent,
		UrgencyReason:   r.UrgencyReason,
		Status:          string(r.Status),
		ApprovalReason:  r.ApprovalReason,
		RejectionReason: r.RejectionReason,
		DecidedBy:       r.DecidedBy,
		ChangeReason:    r.ChangeReason,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
}

func toValidationDTO(res leave.Result) ValidationDTO {
	dto := ValidationDTO{Accepted: res.Accepted(), Errors: make([]ValidationErrorDTO, len(res.Errors))}
	for i, e := range res.Errors {
		dto.Errors[i] = ValidationErrorDTO{
			Code:         string(e.Code),
			Field:        e.Field,
			Message:      e.Error(),
			NoticeDays:   e.NoticeDays,
			RequiredDays: e.RequiredDays,
		}
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
