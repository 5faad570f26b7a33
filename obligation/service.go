package obligation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the CRUD surface over templates and instances. Lists return raw
// records so that one corrupt row does not hide the others.
type Store interface {
	ListTemplates(ctx context.Context, tenantID string) ([]TemplateRecord, error)
	GetTemplate(ctx context.Context, tenantID, id string) (TemplateRecord, error)

	// SaveTemplate upserts a template. On update it keeps the stored tenant,
	// kind and LastGeneratedDate.
	SaveTemplate(ctx context.Context, tpl Template) error

	ListInstances(ctx context.Context, tenantID string) ([]InstanceRecord, error)
	GetInstance(ctx context.Context, tenantID, id string) (InstanceRecord, error)
	AppendInstance(ctx context.Context, inst Instance) error
	SaveInstance(ctx context.Context, inst Instance) error
}

// Service creates and edits templates and manual instances.
type Service struct {
	Store Store
	Log   logrus.FieldLogger
	NewID func() string
}

func NewService(store Store, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{Store: store, Log: log, NewID: uuid.NewString}
}

// CreateTemplate assigns an id and stores a new template. A new template has
// never generated, whatever the caller put in LastGeneratedDate.
func (s *Service) CreateTemplate(ctx context.Context, tpl Template) (Template, error) {
	tpl.ID = s.NewID()
	tpl.LastGeneratedDate = nil
	if err := tpl.Validate(); err != nil {
		return Template{}, err
	}
	if err := s.Store.SaveTemplate(ctx, tpl); err != nil {
		return Template{}, fmt.Errorf("failed to save template: %w", err)
	}
	s.Log.WithFields(logrus.Fields{"tenant": tpl.TenantID, "template": tpl.ID}).Info("template created")
	return tpl, nil
}

// PatchTemplate applies patch to a stored template. The save leaves
// LastGeneratedDate to the generator, so the result is read back.
func (s *Service) PatchTemplate(ctx context.Context, tenantID, id string, patch TemplatePatch) (Template, error) {
	rec, err := s.Store.GetTemplate(ctx, tenantID, id)
	if err != nil {
		return Template{}, err
	}
	tpl, err := rec.Parse()
	if err != nil {
		return Template{}, err
	}
	patched, err := patch.Apply(tpl)
	if err != nil {
		return Template{}, err
	}
	if err := s.Store.SaveTemplate(ctx, patched); err != nil {
		return Template{}, fmt.Errorf("failed to save template: %w", err)
	}

	if rec, err = s.Store.GetTemplate(ctx, tenantID, id); err != nil {
		return Template{}, err
	}
	return rec.Parse()
}

// Templates returns the parseable templates of a tenant plus one error per
// record that could not be parsed.
func (s *Service) Templates(ctx context.Context, tenantID string) ([]Template, []error, error) {
	records, err := s.Store.ListTemplates(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list templates: %w", err)
	}
	templates := make([]Template, 0, len(records))
	var skipped []error
	for _, rec := range records {
		tpl, err := rec.Parse()
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		templates = append(templates, tpl)
	}
	return templates, skipped, nil
}

// CreateInstance stores a manual instance. Manual instances never carry a
// recurring back-reference.
func (s *Service) CreateInstance(ctx context.Context, inst Instance) (Instance, error) {
	inst.ID = s.NewID()
	inst.RecurringSourceID = ""
	inst.GeneratedFor = nil
	if inst.Status == "" && inst.Kind.Valid() {
		inst.Status = InitialStatus(inst.Kind)
	}
	if err := inst.Validate(); err != nil {
		return Instance{}, err
	}
	if err := s.Store.AppendInstance(ctx, inst); err != nil {
		return Instance{}, fmt.Errorf("failed to append instance: %w", err)
	}
	s.Log.WithFields(logrus.Fields{"tenant": inst.TenantID, "instance": inst.ID}).Info("instance created")
	return inst, nil
}

// PatchInstance applies patch to a stored instance. The source template is
// never touched.
func (s *Service) PatchInstance(ctx context.Context, tenantID, id string, patch InstancePatch) (Instance, error) {
	rec, err := s.Store.GetInstance(ctx, tenantID, id)
	if err != nil {
		return Instance{}, err
	}
	inst, err := rec.Parse()
	if err != nil {
		return Instance{}, err
	}
	patched, err := patch.Apply(inst)
	if err != nil {
		return Instance{}, err
	}
	if err := s.Store.SaveInstance(ctx, patched); err != nil {
		return Instance{}, fmt.Errorf("failed to save instance: %w", err)
	}
	return patched, nil
}

func (s *Service) Instances(ctx context.Context, tenantID string) ([]Instance, []error, error) {
	records, err := s.Store.ListInstances(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list instances: %w", err)
	}
	instances := make([]Instance, 0, len(records))
	var skipped []error
	for _, rec := range records {
		inst, err := rec.Parse()
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		instances = append(instances, inst)
	}
	return instances, skipped, nil
}

// Instance loads and parses one stored instance.
func (s *Service) Instance(ctx context.Context, tenantID, id string) (Instance, error) {
	rec, err := s.Store.GetInstance(ctx, tenantID, id)
	if err != nil {
		return Instance{}, err
	}
	return rec.Parse()
}
