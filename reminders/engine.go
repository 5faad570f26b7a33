/*
engine.go - Due-date reminder projection

PURPOSE:
  Turns invoices and expenses into a reminder feed. Compute is a pure
  projection: the same inputs always give the same list, nothing is
  accumulated between calls. Read flags live outside the engine and are
  overlaid afterwards with ApplyReadState.

RULES:
  - paid invoices are never reminded; expenses carry no such exclusion
  - obligations without a due date are never reminded
  - an obligation is reminded when 0 <= DaysBetween(today, due) <= window
  - the feed is sorted by date ascending; equal dates keep input order,
    invoices before expenses

SEE ALSO:
  - service.go: loads the snapshot and the persisted read state
*/
package reminders

import (
	"fmt"
	"sort"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
)

// DefaultReminderDays is the reminder window of a tenant without a setting.
const DefaultReminderDays = 3

// Notification is a synthetic, never-persisted reminder for one obligation.
type Notification struct {
	ID         string
	Message    string
	Date       generic.TimePoint
	EntityType obligation.Kind
	EntityID   string
	DaysLeft   int
	Read       bool
}

// NotificationID derives the notification id from the entity it points at,
// so read state keyed on it survives recomputation.
func NotificationID(kind obligation.Kind, entityID string) string {
	return string(kind) + "-" + entityID
}

// Compute builds the reminder feed for today.
func Compute(invoices, expenses []obligation.Instance, reminderDays int, today generic.TimePoint) []Notification {
	feed := make([]Notification, 0)
	feed = collect(feed, invoices, obligation.KindInvoice, reminderDays, today)
	feed = collect(feed, expenses, obligation.KindExpense, reminderDays, today)

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Date.Before(feed[j].Date)
	})
	return feed
}

func collect(feed []Notification, instances []obligation.Instance, kind obligation.Kind, window int, today generic.TimePoint) []Notification {
	for _, inst := range instances {
		if inst.DueDate == nil || (kind == obligation.KindInvoice && inst.Status.IsPaid()) {
			continue
		}
		days := generic.DaysBetween(today, *inst.DueDate)
		if days < 0 || days > window {
			continue
		}
		feed = append(feed, Notification{
			ID:         NotificationID(kind, inst.ID),
			Message:    message(kind, inst, days),
			Date:       *inst.DueDate,
			EntityType: kind,
			EntityID:   inst.ID,
			DaysLeft:   days,
		})
	}
	return feed
}

func message(kind obligation.Kind, inst obligation.Instance, days int) string {
	var when string
	switch days {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	default:
		when = fmt.Sprintf("in %d days", days)
	}

	label := "Invoice"
	if kind == obligation.KindExpense {
		label = "Expense"
	}
	if inst.Counterparty == "" {
		return fmt.Sprintf("%s of %s is due %s", label, generic.FormatAmount(inst.Amount), when)
	}
	return fmt.Sprintf("%s %s of %s is due %s", label, inst.Counterparty, generic.FormatAmount(inst.Amount), when)
}

// ApplyReadState returns a copy of feed with Read set for every id in read.
func ApplyReadState(feed []Notification, read map[string]bool) []Notification {
	out := make([]Notification, len(feed))
	for i, n := range feed {
		n.Read = read[n.ID]
		out[i] = n
	}
	return out
}

// Unread counts notifications not yet marked read.
func Unread(feed []Notification) int {
	count := 0
	for _, n := range feed {
		if !n.Read {
			count++
		}
	}
	return count
}
