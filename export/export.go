/*
Package export writes reminder feeds and obligation lists as XLSX workbooks.

PURPOSE:
  Finance staff review the reminder feed and the obligation ledger in a
  spreadsheet. Each writer produces a single-sheet workbook with a bold
  header row; dates are written as ISO strings and amounts as numbers.

SEE ALSO:
  - api/handlers.go: /notifications/export and /instances/export
*/
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

const (
	NotificationsSheet = "Notifications"
	InstancesSheet     = "Obligations"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	notificationHeader = []any{"ID", "Date", "Type", "Entity", "Days left", "Message", "Read"}
	instanceHeader     = []any{"ID", "Type", "Counterparty", "Amount", "Due date", "Status", "Recurring source"}
)

// WriteNotifications writes the feed in its display order.
func WriteNotifications(w io.Writer, feed []reminders.Notification) error {
	rows := make([][]any, len(feed))
	for i, n := range feed {
		rows[i] = []any{n.ID, n.Date.String(), string(n.EntityType), n.EntityID, n.DaysLeft, n.Message, n.Read}
	}
	return write(w, NotificationsSheet, notificationHeader, rows)
}

// WriteInstances writes one row per instance. Instances without a due date
// get an empty cell.
func WriteInstances(w io.Writer, instances []obligation.Instance) error {
	rows := make([][]any, len(instances))
	for i, inst := range instances {
		due := ""
		if inst.DueDate != nil {
			due = inst.DueDate.String()
		}
		amount, _ := inst.Amount.Float64()
		rows[i] = []any{inst.ID, string(inst.Kind), inst.Counterparty, amount, due, string(inst.Status), inst.RecurringSourceID}
	}
	return write(w, InstancesSheet, instanceHeader, rows)
}

func write(w io.Writer, sheet string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
