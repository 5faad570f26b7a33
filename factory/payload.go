package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TemplateJSON is the payload that creates a template.
type TemplateJSON struct {
	Kind         string             `json:"kind"`
	Amount       decimal.Decimal    `json:"amount"`
	Counterparty string             `json:"counterparty"`
	Frequency    string             `json:"frequency"`
	StartDate    generic.TimePoint  `json:"start_date"`
	EndDate      *generic.TimePoint `json:"end_date,omitempty"`
}

// TemplatePatchJSON lists every updatable template field.
type TemplatePatchJSON struct {
	Amount       *decimal.Decimal   `json:"amount,omitempty"`
	Counterparty *string            `json:"counterparty,omitempty"`
	Frequency    *string            `json:"frequency,omitempty"`
	StartDate    *generic.TimePoint `json:"start_date,omitempty"`
	EndDate      *generic.TimePoint `json:"end_date,omitempty"`
	ClearEndDate bool               `json:"clear_end_date,omitempty"`
}

// InstanceJSON is the payload that creates a manual instance.
type InstanceJSON struct {
	Kind         string             `json:"kind"`
	Amount       decimal.Decimal    `json:"amount"`
	Counterparty string             `json:"counterparty"`
	DueDate      *generic.TimePoint `json:"due_date,omitempty"`
	Status       string             `json:"status,omitempty"`
}

// InstancePatchJSON lists every updatable instance field. Kind, id and the
// recurring source are absent.
type InstancePatchJSON struct {
	Amount       *decimal.Decimal   `json:"amount,omitempty"`
	Counterparty *string            `json:"counterparty,omitempty"`
	DueDate      *generic.TimePoint `json:"due_date,omitempty"`
	ClearDueDate bool               `json:"clear_due_date,omitempty"`
	Status       *string            `json:"status,omitempty"`
}

// LeaveDraftJSON is a leave request as submitted by an employee.
type LeaveDraftJSON struct {
	EmployeeID    string            `json:"employee_id"`
	StartDate     generic.TimePoint `json:"start_date"`
	EndDate       generic.TimePoint `json:"end_date"`
	Reason        string            `json:"reason"`
	IsUrgent      bool              `json:"is_urgent"`
	UrgencyReason string            `json:"urgency_reason,omitempty"`
}

// RescheduleJSON amends a pending leave request.
type RescheduleJSON struct {
	StartDate     *generic.TimePoint `json:"start_date,omitempty"`
	EndDate       *generic.TimePoint `json:"end_date,omitempty"`
	IsUrgent      *bool              `json:"is_urgent,omitempty"`
	UrgencyReason *string            `json:"urgency_reason,omitempty"`
	ChangeReason  string             `json:"change_reason"`
	Today         *generic.TimePoint `json:"today,omitempty"`
}

// DecisionJSON approves or rejects a leave request.
type DecisionJSON struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason"`
}

// SettingsJSON updates the reminder settings of a tenant.
type SettingsJSON struct {
	ReminderDays *int `json:"reminder_days"`
}

// =============================================================================
// DECODING
// =============================================================================

// Decode reads exactly one JSON value into v. Unknown fields and trailing
// data are errors wrapping generic.ErrInvalidInput, except for malformed
// dates which keep wrapping generic.ErrInvalidDate.
func Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, generic.ErrInvalidDate) {
			return err
		}
		return fmt.Errorf("%w: %v", generic.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", generic.ErrInvalidInput)
	}
	return nil
}

// DecodeTemplate builds a template for tenantID from a JSON body.
func DecodeTemplate(r io.Reader, tenantID string) (obligation.Template, error) {
	var tj TemplateJSON
	if err := Decode(r, &tj); err != nil {
		return obligation.Template{}, err
	}
	kind, err := obligation.ParseKind(tj.Kind)
	if err != nil {
		return obligation.Template{}, err
	}
	freq, err := generic.ParseFrequency(tj.Frequency)
	if err != nil {
		return obligation.Template{}, err
	}
	return obligation.Template{
		TenantID:     tenantID,
		Kind:         kind,
		Amount:       tj.Amount,
		Counterparty: tj.Counterparty,
		Frequency:    freq,
		StartDate:    tj.StartDate,
		EndDate:      tj.EndDate,
	}, nil
}

func DecodeTemplatePatch(r io.Reader) (obligation.TemplatePatch, error) {
	var pj TemplatePatchJSON
	if err := Decode(r, &pj); err != nil {
		return obligation.TemplatePatch{}, err
	}
	patch := obligation.TemplatePatch{
		Amount:       pj.Amount,
		Counterparty: pj.Counterparty,
		StartDate:    pj.StartDate,
		EndDate:      pj.EndDate,
		ClearEndDate: pj.ClearEndDate,
	}
	if pj.Frequency != nil {
		freq, err := generic.ParseFrequency(*pj.Frequency)
		if err != nil {
			return obligation.TemplatePatch{}, err
		}
		patch.Frequency = &freq
	}
	return patch, nil
}

// DecodeInstance builds a manual instance. An empty status means the initial
// status of the kind.
func DecodeInstance(r io.Reader, tenantID string) (obligation.Instance, error) {
	var ij InstanceJSON
	if err := Decode(r, &ij); err != nil {
		return obligation.Instance{}, err
	}
	kind, err := obligation.ParseKind(ij.Kind)
	if err != nil {
		return obligation.Instance{}, err
	}
	inst := obligation.Instance{
		TenantID:     tenantID,
		Kind:         kind,
		Amount:       ij.Amount,
		Counterparty: ij.Counterparty,
		DueDate:      ij.DueDate,
		Status:       obligation.InitialStatus(kind),
	}
	if ij.Status != "" {
		if inst.Status, err = obligation.ParseStatus(kind, ij.Status); err != nil {
			return obligation.Instance{}, err
		}
	}
	return inst, nil
}

// DecodeInstancePatch needs the instance kind to parse a status change.
func DecodeInstancePatch(r io.Reader, kind obligation.Kind) (obligation.InstancePatch, error) {
	var pj InstancePatchJSON
	if err := Decode(r, &pj); err != nil {
		return obligation.InstancePatch{}, err
	}
	patch := obligation.InstancePatch{
		Amount:       pj.Amount,
		Counterparty: pj.Counterparty,
		DueDate:      pj.DueDate,
		ClearDueDate: pj.ClearDueDate,
	}
	if pj.Status != nil {
		status, err := obligation.ParseStatus(kind, *pj.Status)
		if err != nil {
			return obligation.InstancePatch{}, err
		}
		patch.Status = &status
	}
	return patch, nil
}

// DecodeLeaveDraft returns the employee id and the draft of a submission.
func DecodeLeaveDraft(r io.Reader) (string, leave.Draft, error) {
	var dj LeaveDraftJSON
	if err := Decode(r, &dj); err != nil {
		return "", leave.Draft{}, err
	}
	return dj.EmployeeID, leave.Draft{
		StartDate:     dj.StartDate,
		EndDate:       dj.EndDate,
		Reason:        dj.Reason,
		IsUrgent:      dj.IsUrgent,
		UrgencyReason: dj.UrgencyReason,
	}, nil
}

func DecodeReschedule(r io.Reader) (RescheduleJSON, leave.ReschedulePatch, error) {
	var rj RescheduleJSON
	if err := Decode(r, &rj); err != nil {
		return RescheduleJSON{}, leave.ReschedulePatch{}, err
	}
	return rj, leave.ReschedulePatch{
		StartDate:     rj.StartDate,
		EndDate:       rj.EndDate,
		IsUrgent:      rj.IsUrgent,
		UrgencyReason: rj.UrgencyReason,
	}, nil
}

func DecodeDecision(r io.Reader) (DecisionJSON, error) {
	var dj DecisionJSON
	if err := Decode(r, &dj); err != nil {
		return DecisionJSON{}, err
	}
	if strings.TrimSpace(dj.ApproverID) == "" {
		return DecisionJSON{}, fmt.Errorf("%w: approver_id is required", generic.ErrInvalidInput)
	}
	return dj, nil
}

// DecodeReminderDays returns the requested reminder window. Range checks
// belong to reminders.FeedService.
func DecodeReminderDays(r io.Reader) (int, error) {
	var sj SettingsJSON
	if err := Decode(r, &sj); err != nil {
		return 0, err
	}
	if sj.ReminderDays == nil {
		return 0, fmt.Errorf("%w: reminder_days is required", generic.ErrInvalidInput)
	}
	return *sj.ReminderDays, nil
}
