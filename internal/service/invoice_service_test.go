package service

import (
	"context"
	"testing"
	"time"

	"invoice-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoiceService(repo *fakeInvoiceRepo) *invoiceService {
	svc := NewInvoiceService(repo).(*invoiceService)
	svc.now = func() time.Time { return time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestGetInvoice_NotFound(t *testing.T) {
	svc := newTestInvoiceService(newFakeInvoiceRepo())

	_, err := svc.GetInvoice(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestGetInvoice_ProjectsOutstandingAmount(t *testing.T) {
	repo := newFakeInvoiceRepo()
	repo.seed(model.Invoice{
		InvoiceNumber:  "1",
		IssueDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		PaymentDueDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:    d("1000"),
		Status:         model.StatusPartial,
		PaymentStatus:  model.PaymentPending,
		IsConsistent:   true,
		CreditNotes: []model.CreditNote{
			{InvoiceNumber: "1", CreditNoteNumber: "9001", Amount: d("250")},
		},
	})
	svc := newTestInvoiceService(repo)

	resp, err := svc.GetInvoice(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "750.0000", resp.OutstandingAmount)
	assert.Equal(t, "1000.0000", resp.TotalAmount)
}

func TestOverdueUnpaidReport_Filters(t *testing.T) {
	repo := newFakeInvoiceRepo()
	base := model.Invoice{
		IssueDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:   d("1000"),
		Status:        model.StatusIssued,
		PaymentStatus: model.PaymentOverdue,
		IsConsistent:  true,
	}

	// Matches: overdue >30 days, consistent, untouched balance.
	match := base
	match.InvoiceNumber = "10"
	match.PaymentDueDate = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	// Overdue but within the 30-day window.
	recent := base
	recent.InvoiceNumber = "11"
	recent.PaymentDueDate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	// Old enough but has a credit note.
	credited := base
	credited.InvoiceNumber = "12"
	credited.PaymentDueDate = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	credited.Status = model.StatusPartial
	credited.CreditNotes = []model.CreditNote{{InvoiceNumber: "12", CreditNoteNumber: "9100", Amount: d("100")}}

	// Old enough but inconsistent.
	inconsistent := base
	inconsistent.InvoiceNumber = "13"
	inconsistent.PaymentDueDate = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	inconsistent.IsConsistent = false

	// Not overdue at all.
	pending := base
	pending.InvoiceNumber = "14"
	pending.PaymentDueDate = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	pending.PaymentStatus = model.PaymentPending

	repo.seed(match, recent, credited, inconsistent, pending)
	svc := newTestInvoiceService(repo)

	report, err := svc.OverdueUnpaidReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "10", report[0].InvoiceNumber)
}

func TestInconsistentReport(t *testing.T) {
	repo := newFakeInvoiceRepo()
	repo.seed(
		model.Invoice{InvoiceNumber: "20", TotalAmount: d("100"), IsConsistent: true},
		model.Invoice{InvoiceNumber: "21", TotalAmount: d("200"), IsConsistent: false},
	)
	svc := newTestInvoiceService(repo)

	report, err := svc.InconsistentReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "21", report[0].InvoiceNumber)
}

func TestPaymentSummary(t *testing.T) {
	repo := newFakeInvoiceRepo()
	repo.seed(
		model.Invoice{InvoiceNumber: "30", TotalAmount: d("1"), PaymentStatus: model.PaymentPaid},
		model.Invoice{InvoiceNumber: "31", TotalAmount: d("1"), PaymentStatus: model.PaymentPaid},
		model.Invoice{InvoiceNumber: "32", TotalAmount: d("1"), PaymentStatus: model.PaymentPending},
		model.Invoice{InvoiceNumber: "33", TotalAmount: d("1"), PaymentStatus: model.PaymentOverdue},
	)
	svc := newTestInvoiceService(repo)

	summary, err := svc.PaymentSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalInvoices)
	require.Len(t, summary.Summaries, 3)

	byStatus := map[string]PaymentStatusSummary{}
	for _, s := range summary.Summaries {
		byStatus[s.Status] = s
	}
	assert.Equal(t, 2, byStatus[model.PaymentPaid].Count)
	assert.Equal(t, "50.00", byStatus[model.PaymentPaid].Percentage)
	assert.Equal(t, "25.00", byStatus[model.PaymentPending].Percentage)
	assert.Equal(t, "25.00", byStatus[model.PaymentOverdue].Percentage)
}

func TestPaymentSummary_Empty(t *testing.T) {
	svc := newTestInvoiceService(newFakeInvoiceRepo())

	summary, err := svc.PaymentSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalInvoices)
	assert.Empty(t, summary.Summaries)
}

func TestSearchInvoices_PassesFilters(t *testing.T) {
	repo := newFakeInvoiceRepo()
	repo.seed(
		model.Invoice{InvoiceNumber: "40", TotalAmount: d("1"), Status: model.StatusIssued, PaymentStatus: model.PaymentPending},
		model.Invoice{InvoiceNumber: "41", TotalAmount: d("1"), Status: model.StatusCancelled, PaymentStatus: model.PaymentPaid},
	)
	svc := newTestInvoiceService(repo)

	result, err := svc.SearchInvoices(context.Background(), model.StatusCancelled, "")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "41", result[0].InvoiceNumber)
}
