/*
scheduler.go - Scheduled recurring generation

PURPOSE:
  Runs the recurring generator for every tenant on a cron schedule and,
  when a digest pusher is configured, sends each tenant's reminder digest
  after its run.

DESIGN:
  - One cron job per GENERATION_CRON (robfig/cron/v3, server local time)
  - Runs are idempotent: the generation ledger absorbs retries and
    overlapping manual runs
  - A failing tenant is logged and never stops the other tenants

USAGE:
  scheduler := NewGenerationScheduler(generator, pusher, "0 6 * * *", log)
  if err := scheduler.Start(); err != nil { ... }
  defer scheduler.Stop()

SEE ALSO:
  - recurring/service.go: GenerationService
  - notify/notify.go: Pusher
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
)

// DigestPusher sends a tenant's reminder digest.
type DigestPusher interface {
	Push(ctx context.Context, tenantID string, today generic.TimePoint) (bool, error)
}

// GenerationScheduler runs the recurring generator on a cron schedule.
type GenerationScheduler struct {
	Generator *recurring.GenerationService
	Digest    DigestPusher // optional
	Spec      string
	Timeout   time.Duration
	Log       logrus.FieldLogger
	Today     func() generic.TimePoint

	cron *cron.Cron
	mu   sync.Mutex
}

// NewGenerationScheduler creates a scheduler. digest may be nil.
func NewGenerationScheduler(generator *recurring.GenerationService, digest DigestPusher, spec string, log logrus.FieldLogger) *GenerationScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GenerationScheduler{
		Generator: generator,
		Digest:    digest,
		Spec:      spec,
		Timeout:   5 * time.Minute,
		Log:       log,
		Today:     generic.Today,
	}
}

// Start registers the job and starts the cron engine. An invalid spec is
// returned and nothing is started.
func (s *GenerationScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.Local))
	if _, err := c.AddFunc(s.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()
		s.RunNow(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c

	s.Log.WithField("spec", s.Spec).Info("generation scheduler started")
	return nil
}

// Stop stops the cron engine and waits for a running job to finish.
func (s *GenerationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Log.Info("generation scheduler stopped")
}

// RunNow generates for every tenant, then pushes digests. It returns the
// per-tenant reports of the tenants that ran.
func (s *GenerationScheduler) RunNow(ctx context.Context) []*recurring.Report {
	today := s.Today()
	log := s.Log.WithField("run_date", today.String())

	reports, err := s.Generator.GenerateAll(ctx, today)
	if err != nil {
		log.WithError(err).Error("scheduled generation finished with errors")
	}

	generated := 0
	for _, report := range reports {
		generated += len(report.Generated)
		s.pushDigest(ctx, report.TenantID, today)
	}
	log.WithFields(logrus.Fields{"tenants": len(reports), "generated": generated}).
		Info("scheduled generation completed")
	return reports
}

func (s *GenerationScheduler) pushDigest(ctx context.Context, tenantID string, today generic.TimePoint) {
	if s.Digest == nil {
		return
	}
	if _, err := s.Digest.Push(ctx, tenantID, today); err != nil {
		s.Log.WithField("tenant", tenantID).WithError(err).Warn("reminder digest failed")
	}
}

// NextRun reports when the job fires next; zero when not started.
func (s *GenerationScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
