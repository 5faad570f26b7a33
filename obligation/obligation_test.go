package obligation_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
)

func ptr[T any](v T) *T { return &v }

func sampleTemplate() obligation.Template {
	return obligation.Template{
		ID:           "tpl-rent",
		TenantID:     "acme",
		Kind:         obligation.KindExpense,
		Amount:       decimal.RequireFromString("1200"),
		Counterparty: "rent",
		Frequency:    generic.Monthly,
		StartDate:    generic.MustParseDate("2024-01-01"),
	}
}

// =============================================================================
// STATUS PARSING
// =============================================================================

func TestParseStatus_Normalizes(t *testing.T) {
	cases := []struct {
		kind obligation.Kind
		in   string
		want obligation.Status
	}{
		{obligation.KindInvoice, "Sent", obligation.StatusSent},
		{obligation.KindInvoice, "Partially Paid", obligation.StatusPartiallyPaid},
		{obligation.KindInvoice, "partially-paid", obligation.StatusPartiallyPaid},
		{obligation.KindInvoice, " OVERDUE ", obligation.StatusOverdue},
		{obligation.KindExpense, "unpaid", obligation.StatusUnpaid},
		{obligation.KindExpense, "PAID", obligation.StatusPaid},
	}
	for _, tc := range cases {
		got, err := obligation.ParseStatus(tc.kind, tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseStatus_FailsLoudly(t *testing.T) {
	// GIVEN: statuses that exist for the other kind, or not at all
	cases := []struct {
		kind obligation.Kind
		in   string
	}{
		{obligation.KindExpense, "sent"},
		{obligation.KindInvoice, "unpaid"},
		{obligation.KindInvoice, "cancelled"},
		{obligation.KindInvoice, ""},
	}
	for _, tc := range cases {
		_, err := obligation.ParseStatus(tc.kind, tc.in)

		// THEN: no default is picked
		require.Error(t, err, tc.in)
		assert.True(t, errors.Is(err, generic.ErrInvalidStatus))
		assert.True(t, generic.IsClientError(err))
	}
}

func TestParseKind(t *testing.T) {
	k, err := obligation.ParseKind("Invoice")
	require.NoError(t, err)
	assert.Equal(t, obligation.KindInvoice, k)

	_, err = obligation.ParseKind("bill")
	assert.ErrorIs(t, err, generic.ErrInvalidKind)
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, obligation.StatusSent, obligation.InitialStatus(obligation.KindInvoice))
	assert.Equal(t, obligation.StatusUnpaid, obligation.InitialStatus(obligation.KindExpense))
}

// =============================================================================
// RECORDS
// =============================================================================

func TestTemplateRecord_RoundTrip(t *testing.T) {
	tpl := sampleTemplate()
	tpl.EndDate = ptr(generic.MustParseDate("2024-12-31"))
	tpl.LastGeneratedDate = ptr(generic.MustParseDate("2024-03-01"))

	parsed, err := tpl.Record().Parse()
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, parsed.ID)
	assert.True(t, tpl.Amount.Equal(parsed.Amount))
	assert.Equal(t, "2024-12-31", parsed.EndDate.String())
	assert.Equal(t, "2024-03-01", parsed.LastGeneratedDate.String())
}

func TestTemplateRecord_ReportsEveryBadField(t *testing.T) {
	rec := obligation.TemplateRecord{
		ID:        "tpl-broken",
		Kind:      "invoice",
		Amount:    "10",
		Frequency: "weekly",
		StartDate: "2024-02-31",
	}

	_, err := rec.Parse()

	require.Error(t, err)
	var recErr *obligation.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "tpl-broken", recErr.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidFrequency)
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestInstanceRecord_UnknownStatus(t *testing.T) {
	rec := obligation.InstanceRecord{ID: "inv-1", Kind: "invoice", Amount: "5", Status: "settled"}

	_, err := rec.Parse()

	assert.ErrorIs(t, err, generic.ErrInvalidStatus)
}

// =============================================================================
// PATCHES
// =============================================================================

func TestTemplatePatch_Apply(t *testing.T) {
	tpl := sampleTemplate()
	tpl.EndDate = ptr(generic.MustParseDate("2024-06-30"))

	patched, err := obligation.TemplatePatch{
		Amount:       ptr(decimal.RequireFromString("1300")),
		Frequency:    ptr(generic.Quarterly),
		ClearEndDate: true,
	}.Apply(tpl)

	require.NoError(t, err)
	assert.Equal(t, "1300", patched.Amount.String())
	assert.Equal(t, generic.Quarterly, patched.Frequency)
	assert.Nil(t, patched.EndDate)
	assert.NotNil(t, tpl.EndDate, "source template is untouched")
}

func TestTemplatePatch_RejectsInvalidResult(t *testing.T) {
	tpl := sampleTemplate()

	_, err := obligation.TemplatePatch{Frequency: ptr(generic.Frequency("weekly"))}.Apply(tpl)
	assert.ErrorIs(t, err, generic.ErrInvalidFrequency)

	_, err = obligation.TemplatePatch{EndDate: ptr(generic.MustParseDate("2023-12-01"))}.Apply(tpl)
	assert.ErrorIs(t, err, generic.ErrInvalidDate)

	_, err = obligation.TemplatePatch{
		EndDate:      ptr(generic.MustParseDate("2025-01-01")),
		ClearEndDate: true,
	}.Apply(tpl)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestInstancePatch_KeepsIdentity(t *testing.T) {
	inst := obligation.Instance{
		ID:                "inv-9",
		TenantID:          "acme",
		Kind:              obligation.KindInvoice,
		Amount:            decimal.RequireFromString("50"),
		Status:            obligation.StatusSent,
		RecurringSourceID: "tpl-1",
	}

	patched, err := obligation.InstancePatch{
		Status:  ptr(obligation.StatusPartiallyPaid),
		DueDate: ptr(generic.MustParseDate("2024-05-01")),
	}.Apply(inst)

	require.NoError(t, err)
	assert.Equal(t, "inv-9", patched.ID)
	assert.Equal(t, "tpl-1", patched.RecurringSourceID)
	assert.Equal(t, obligation.StatusPartiallyPaid, patched.Status)

	_, err = obligation.InstancePatch{Status: ptr(obligation.StatusUnpaid)}.Apply(inst)
	assert.ErrorIs(t, err, generic.ErrInvalidStatus, "unpaid is an expense status")
}

func TestSplitByKind(t *testing.T) {
	in := []obligation.Instance{
		{ID: "a", Kind: obligation.KindExpense},
		{ID: "b", Kind: obligation.KindInvoice},
		{ID: "c", Kind: obligation.KindExpense},
	}
	inv, exp := obligation.SplitByKind(in)
	require.Len(t, inv, 1)
	require.Len(t, exp, 2)
	assert.Equal(t, "a", exp[0].ID)
	assert.Equal(t, "c", exp[1].ID)
}
