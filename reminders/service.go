package reminders

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
)

// MaxReminderDays bounds the reminder window setting.
const MaxReminderDays = 365

// Store is the persistence collaborator of the feed service.
type Store interface {
	ListInstances(ctx context.Context, tenantID string) ([]obligation.InstanceRecord, error)

	// ReminderDays reports the stored window and whether one is stored.
	ReminderDays(ctx context.Context, tenantID string) (int, bool, error)
	SetReminderDays(ctx context.Context, tenantID string, days int) error

	ReadNotificationIDs(ctx context.Context, tenantID string) (map[string]bool, error)
	MarkNotificationRead(ctx context.Context, tenantID, notificationID string) error
}

// Feed is the computed reminder feed of one tenant.
type Feed struct {
	TenantID      string
	Today         generic.TimePoint
	ReminderDays  int
	Notifications []Notification

	// Skipped lists stored instances that could not be parsed.
	Skipped []error
}

// FeedService loads a tenant snapshot and projects it into a feed.
type FeedService struct {
	Store Store
	Log   logrus.FieldLogger

	// DefaultDays applies to tenants without a stored window; TenantDefaults
	// overrides it per tenant. Both come from the policy file.
	DefaultDays    int
	TenantDefaults map[string]int
}

func NewFeedService(store Store, log logrus.FieldLogger) *FeedService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FeedService{Store: store, Log: log, DefaultDays: DefaultReminderDays}
}

// Window resolves the reminder window of a tenant: stored setting first,
// then the tenant policy default, then the global default.
func (s *FeedService) Window(ctx context.Context, tenantID string) (int, error) {
	days, ok, err := s.Store.ReminderDays(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to read reminder days: %w", err)
	}
	if ok {
		return days, nil
	}
	if days, ok := s.TenantDefaults[tenantID]; ok {
		return days, nil
	}
	return s.DefaultDays, nil
}

// Feed computes the reminder feed of a tenant for today.
func (s *FeedService) Feed(ctx context.Context, tenantID string, today generic.TimePoint) (*Feed, error) {
	window, err := s.Window(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	records, err := s.Store.ListInstances(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	feed := &Feed{TenantID: tenantID, Today: today, ReminderDays: window}
	instances := make([]obligation.Instance, 0, len(records))
	for _, rec := range records {
		inst, err := rec.Parse()
		if err != nil {
			s.Log.WithFields(logrus.Fields{"tenant": tenantID, "instance": rec.ID}).
				WithError(err).Warn("skipping malformed instance")
			feed.Skipped = append(feed.Skipped, err)
			continue
		}
		instances = append(instances, inst)
	}

	read, err := s.Store.ReadNotificationIDs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification state: %w", err)
	}

	invoices, expenses := obligation.SplitByKind(instances)
	feed.Notifications = ApplyReadState(Compute(invoices, expenses, window, today), read)
	return feed, nil
}

// MarkRead persists the read flag of a notification present in today's feed.
func (s *FeedService) MarkRead(ctx context.Context, tenantID, notificationID string, today generic.TimePoint) error {
	feed, err := s.Feed(ctx, tenantID, today)
	if err != nil {
		return err
	}
	for _, n := range feed.Notifications {
		if n.ID == notificationID {
			return s.Store.MarkNotificationRead(ctx, tenantID, notificationID)
		}
	}
	return fmt.Errorf("notification %s: %w", notificationID, generic.ErrNotFound)
}

// SetReminderDays stores the reminder window of a tenant.
func (s *FeedService) SetReminderDays(ctx context.Context, tenantID string, days int) error {
	if days < 0 || days > MaxReminderDays {
		return fmt.Errorf("%w: reminder days must be between 0 and %d, got %d",
			generic.ErrInvalidInput, MaxReminderDays, days)
	}
	return s.Store.SetReminderDays(ctx, tenantID, days)
}
