package recurring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
)

// =============================================================================
// STORE - What generation needs from persistence
// =============================================================================

// Store is the persistence collaborator of the generation service.
type Store interface {
	ListTenants(ctx context.Context) ([]string, error)
	ListTemplates(ctx context.Context, tenantID string) ([]obligation.TemplateRecord, error)
	AppendInstance(ctx context.Context, inst obligation.Instance) error

	// AdvanceTemplate sets the last generated date of a template to `to` only
	// if it still equals `from` (nil: never generated). Otherwise it returns
	// generic.ErrStaleTemplate and writes nothing.
	AdvanceTemplate(ctx context.Context, tenantID, templateID string, from *generic.TimePoint, to generic.TimePoint) error

	// RecordGeneration returns generic.ErrDuplicateIdempotencyKey when the
	// generation key is already present.
	RecordGeneration(ctx context.Context, gen Generation) error
	// GetGeneration returns generic.ErrNotFound for an unknown key.
	GetGeneration(ctx context.Context, key string) (Generation, error)
	ListGenerations(ctx context.Context, tenantID string) ([]Generation, error)

	// WithTx runs fn with a store bound to a single transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// =============================================================================
// GENERATION SERVICE - load snapshot, run, commit per template
// =============================================================================

// Report summarizes one tenant run.
type Report struct {
	TenantID  string
	RunDate   generic.TimePoint
	Generated []obligation.Instance

	// Duplicates are generations already committed by an earlier attempt.
	Duplicates []Generation
	// Failures are templates that could not be parsed or evaluated.
	Failures []TemplateFailure
	// Errors are templates whose generation could not be committed.
	Errors []TemplateFailure
}

// GenerationService serializes generation per tenant and commits each
// template's output in its own transaction.
type GenerationService struct {
	Store Store
	Log   logrus.FieldLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGenerationService(store Store, log logrus.FieldLogger) *GenerationService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GenerationService{Store: store, Log: log, locks: make(map[string]*sync.Mutex)}
}

func (s *GenerationService) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

// Generate runs the generator for one tenant on today. Malformed templates
// are reported in the Report; a persistence failure is listed in
// Report.Errors and also returned, joined, after the remaining templates
// were attempted.
func (s *GenerationService) Generate(ctx context.Context, tenantID string, today generic.TimePoint) (*Report, error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	log := s.Log.WithFields(logrus.Fields{"tenant": tenantID, "run_date": today.String()})
	report := &Report{TenantID: tenantID, RunDate: today}

	records, err := s.Store.ListTemplates(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]obligation.Template, 0, len(records))
	byID := make(map[string]obligation.Template, len(records))
	for _, rec := range records {
		tpl, err := rec.Parse()
		if err != nil {
			log.WithField("template", rec.ID).WithError(err).Warn("skipping malformed template")
			report.Failures = append(report.Failures, TemplateFailure{TemplateID: rec.ID, Err: err})
			continue
		}
		templates = append(templates, tpl)
		byID[tpl.ID] = tpl
	}

	result := Run(templates, today)
	for _, f := range result.Failures {
		log.WithField("template", f.TemplateID).WithError(f.Err).Warn("template failed evaluation")
	}
	report.Failures = append(report.Failures, result.Failures...)

	var errs []error
	for i, gen := range result.Generations {
		err := s.apply(ctx, log, report, byID[gen.TemplateID], gen, result.NewInstances[i], today, true)
		if err != nil {
			log.WithField("template", gen.TemplateID).WithError(err).Error("failed to commit generation")
			report.Errors = append(report.Errors, TemplateFailure{TemplateID: gen.TemplateID, Err: err})
			errs = append(errs, fmt.Errorf("template %s: %w", gen.TemplateID, err))
		}
	}

	log.WithFields(logrus.Fields{
		"generated":  len(report.Generated),
		"duplicates": len(report.Duplicates),
		"failures":   len(report.Failures),
		"errors":     len(report.Errors),
	}).Info("generation run finished")

	return report, errors.Join(errs...)
}

// commit writes the ledger entry first so a duplicate aborts the transaction
// before anything else is touched. Only the last generated date of the
// template is written, guarded by the value read before the run.
func (s *GenerationService) commit(ctx context.Context, gen Generation, inst obligation.Instance, last *generic.TimePoint) error {
	return s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.RecordGeneration(ctx, gen); err != nil {
			return err
		}
		if err := tx.AppendInstance(ctx, inst); err != nil {
			return fmt.Errorf("failed to append instance: %w", err)
		}
		if err := tx.AdvanceTemplate(ctx, gen.TenantID, gen.TemplateID, last, gen.RunDate); err != nil {
			return fmt.Errorf("failed to advance template: %w", err)
		}
		return nil
	})
}

// apply commits one generation. When its period is already in the ledger the
// template is moved past it and, if resume is set, evaluated once more so a
// template that fell behind still produces the period due today.
func (s *GenerationService) apply(ctx context.Context, log logrus.FieldLogger, report *Report, tpl obligation.Template, gen Generation, inst obligation.Instance, today generic.TimePoint, resume bool) error {
	err := s.commit(ctx, gen, inst, tpl.LastGeneratedDate)
	if err == nil {
		report.Generated = append(report.Generated, inst)
		return nil
	}
	if !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return err
	}

	report.Duplicates = append(report.Duplicates, gen)
	caught, err := s.catchUp(ctx, gen, tpl, today)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"key":            gen.Key,
		"last_generated": caught.LastGeneratedDate.String(),
	}).Info("generation already committed, template moved past it")
	if !resume {
		return nil
	}

	next := Run([]obligation.Template{caught}, today)
	if len(next.Failures) > 0 {
		return next.Failures[0]
	}
	if len(next.Generations) == 0 {
		return nil
	}
	return s.apply(ctx, log, report, caught, next.Generations[0], next.NewInstances[0], today, false)
}

// catchUp sets the last generated date of a template whose due period is
// already in the ledger to the run date of that ledger entry.
func (s *GenerationService) catchUp(ctx context.Context, gen Generation, tpl obligation.Template, today generic.TimePoint) (obligation.Template, error) {
	to := gen.RunDate
	committed, err := s.Store.GetGeneration(ctx, gen.Key)
	switch {
	case err == nil:
		to = committed.RunDate
	case !generic.IsNotFound(err):
		return tpl, fmt.Errorf("failed to read ledger: %w", err)
	}
	if to.After(today) {
		to = gen.Period
	}
	if err := s.Store.AdvanceTemplate(ctx, tpl.TenantID, tpl.ID, tpl.LastGeneratedDate, to); err != nil {
		return tpl, fmt.Errorf("failed to advance template: %w", err)
	}
	tpl.LastGeneratedDate = &to
	return tpl, nil
}

// GenerateAll runs Generate for every tenant known to the store.
func (s *GenerationService) GenerateAll(ctx context.Context, today generic.TimePoint) ([]*Report, error) {
	tenants, err := s.Store.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	var reports []*Report
	var errs []error
	for _, tenantID := range tenants {
		report, err := s.Generate(ctx, tenantID, today)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
		}
	}
	return reports, errors.Join(errs...)
}

// History returns the generation ledger of a tenant.
func (s *GenerationService) History(ctx context.Context, tenantID string) ([]Generation, error) {
	return s.Store.ListGenerations(ctx, tenantID)
}
