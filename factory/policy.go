/*
Package factory converts external documents into domain values.

PURPOSE:
  Two kinds of documents enter the service:
  1. The YAML policy file (this file): leave thresholds and reminder windows,
     so HR can tune policy without code changes.
  2. JSON request payloads (payload.go): templates, instances, patches and
     leave drafts, decoded strictly so unknown fields are an error rather
     than a silent no-op.

YAML SCHEMA:
  leave:
    min_notice_days: 15
    max_reason_length: 500
  reminders:
    default_days: 3
  tenants:
    acme:
      reminder_days: 7

  Every section is optional; missing values fall back to the built-in
  defaults (15 days notice, 500 characters, 3 reminder days).

USAGE:
  pf, err := factory.LoadPolicyFile("policy.yaml")
  leaveSvc := leave.NewRequestService(store, pf.LeavePolicy(), log)
  feedSvc.DefaultDays, feedSvc.TenantDefaults = pf.ReminderDefaults()

SEE ALSO:
  - leave/validator.go: Policy consumed by the validator
  - reminders/service.go: reminder window resolution
*/
package factory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// PolicyFile is the YAML policy document.
type PolicyFile struct {
	Leave     LeaveYAML             `yaml:"leave"`
	Reminders RemindersYAML         `yaml:"reminders"`
	Tenants   map[string]TenantYAML `yaml:"tenants"`
}

type LeaveYAML struct {
	MinNoticeDays   *int `yaml:"min_notice_days"`
	MaxReasonLength *int `yaml:"max_reason_length"`
}

type RemindersYAML struct {
	DefaultDays *int `yaml:"default_days"`
}

type TenantYAML struct {
	ReminderDays *int `yaml:"reminder_days"`
}

// =============================================================================
// LOADING
// =============================================================================

// LoadPolicyFile reads and validates a YAML policy file.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicyYAML(data)
}

// ParsePolicyYAML decodes a policy document. Unknown keys are rejected.
func ParsePolicyYAML(data []byte) (*PolicyFile, error) {
	pf := &PolicyFile{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: policy file: %v", generic.ErrInvalidInput, err)
	}
	if err := pf.Validate(); err != nil {
		return nil, err
	}
	return pf, nil
}

// DefaultPolicyFile is the policy used when no file is configured.
func DefaultPolicyFile() *PolicyFile {
	return &PolicyFile{}
}

// Validate rejects negative thresholds and windows beyond the reminder cap.
func (pf *PolicyFile) Validate() error {
	var errs []error
	check := func(name string, v *int, min, max int) {
		if v != nil && (*v < min || *v > max) {
			errs = append(errs, fmt.Errorf("%w: %s must be between %d and %d, got %d",
				generic.ErrInvalidInput, name, min, max, *v))
		}
	}
	check("leave.min_notice_days", pf.Leave.MinNoticeDays, 0, 365)
	check("leave.max_reason_length", pf.Leave.MaxReasonLength, 1, 10000)
	check("reminders.default_days", pf.Reminders.DefaultDays, 0, reminders.MaxReminderDays)
	for tenant, t := range pf.Tenants {
		check("tenants."+tenant+".reminder_days", t.ReminderDays, 0, reminders.MaxReminderDays)
	}
	return errors.Join(errs...)
}

// =============================================================================
// CONVERSION
// =============================================================================

// LeavePolicy returns the validator thresholds with defaults filled in.
func (pf *PolicyFile) LeavePolicy() leave.Policy {
	p := leave.DefaultPolicy()
	if v := pf.Leave.MinNoticeDays; v != nil {
		p.MinNoticeDays = *v
	}
	if v := pf.Leave.MaxReasonLength; v != nil {
		p.MaxReasonLength = *v
	}
	return p
}

// ReminderDefaults returns the global reminder window and per-tenant overrides.
func (pf *PolicyFile) ReminderDefaults() (int, map[string]int) {
	days := reminders.DefaultReminderDays
	if v := pf.Reminders.DefaultDays; v != nil {
		days = *v
	}
	perTenant := make(map[string]int)
	for tenant, t := range pf.Tenants {
		if t.ReminderDays != nil {
			perTenant[tenant] = *t.ReminderDays
		}
	}
	return days, perTenant
}

// ToYAML renders the effective policy, defaults included.
func (pf *PolicyFile) ToYAML() ([]byte, error) {
	lp := pf.LeavePolicy()
	days, perTenant := pf.ReminderDefaults()
	out := PolicyFile{
		Leave:     LeaveYAML{MinNoticeDays: &lp.MinNoticeDays, MaxReasonLength: &lp.MaxReasonLength},
		Reminders: RemindersYAML{DefaultDays: &days},
	}
	if len(perTenant) > 0 {
		out.Tenants = make(map[string]TenantYAML, len(perTenant))
		for tenant, d := range perTenant {
			d := d
			out.Tenants[tenant] = TenantYAML{ReminderDays: &d}
		}
	}
	return yaml.Marshal(out)
}
