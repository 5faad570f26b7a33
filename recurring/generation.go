package recurring

import (
	"github.com/google/uuid"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
)

// instanceNamespace scopes the name-based UUIDs of generated instances.
var instanceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:ecosystia:recurring-instance"))

// Generation records that a template produced its instance for one period.
// The store keeps one row per Key; a second write for the same key fails with
// generic.ErrDuplicateIdempotencyKey, which is what makes a crash-and-retry
// of the job safe.
type Generation struct {
	Key        string
	TemplateID string
	TenantID   string
	Period     generic.TimePoint
	InstanceID string
	RunDate    generic.TimePoint
}

// NewGeneration builds the ledger entry for tpl's instance due on period.
func NewGeneration(tpl obligation.Template, period, runDate generic.TimePoint) Generation {
	key := IdempotencyKey(tpl.ID, period)
	return Generation{
		Key:        key,
		TemplateID: tpl.ID,
		TenantID:   tpl.TenantID,
		Period:     period,
		InstanceID: InstanceID(key),
		RunDate:    runDate,
	}
}

// IdempotencyKey identifies one (template, generated-for period) pair.
func IdempotencyKey(templateID string, period generic.TimePoint) string {
	return templateID + "@" + period.String()
}

// InstanceID derives the instance id from its idempotency key, so a retried
// run produces the same id it produced the first time.
func InstanceID(key string) string {
	return uuid.NewSHA1(instanceNamespace, []byte(key)).String()
}
