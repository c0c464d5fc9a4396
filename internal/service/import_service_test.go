package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"invoice-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var importNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func newTestImportService(repo *fakeInvoiceRepo, events EventBroadcaster) *importService {
	svc := NewImportService(repo, fakeTxManager{}, events).(*importService)
	svc.now = func() time.Time { return importNow }
	return svc
}

func batchDoc(records ...string) []byte {
	doc := `{"invoices": [`
	for i, r := range records {
		if i > 0 {
			doc += ","
		}
		doc += r
	}
	return []byte(doc + `]}`)
}

// simpleRecord is a consistent invoice: 2 x 500 = 1000.
func simpleRecord(number int, dueDate string) string {
	return fmt.Sprintf(`{
		"invoice_number": %d,
		"invoice_date": "2025-06-01",
		"payment_due_date": "%s",
		"total_amount": 1000,
		"invoice_detail": [
			{"product_name": "Widget", "unit_price": 500, "quantity": 2, "subtotal": 1000}
		],
		"invoice_credit_note": []
	}`, number, dueDate)
}

func TestImportBatch_BuildsAggregates(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	doc := batchDoc(`{
		"invoice_number": 101,
		"invoice_date": "2025-06-01",
		"payment_due_date": "2025-08-01",
		"total_amount": 1000,
		"invoice_detail": [
			{"product_name": "Widget", "unit_price": 250, "quantity": 2, "subtotal": 500},
			{"product_name": "Gadget", "unit_price": 500, "quantity": 1, "subtotal": 500}
		],
		"invoice_credit_note": [
			{"credit_note_number": 9001, "credit_note_date": "2025-06-10", "credit_note_amount": 400}
		]
	}`)

	result, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{TotalInFile: 1, Imported: 1}, result)

	inv, err := repo.FindByNumber(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, inv.Status)
	assert.Equal(t, model.PaymentPending, inv.PaymentStatus)
	assert.True(t, inv.IsConsistent)
	assert.Len(t, inv.LineItems, 2)
	require.Len(t, inv.CreditNotes, 1)
	assert.Equal(t, "9001", inv.CreditNotes[0].CreditNoteNumber)
	assert.True(t, inv.OutstandingAmount().Equal(d("600")))
}

func TestImportBatch_ConsistencyFlaggedNotRejected(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	doc := batchDoc(`{
		"invoice_number": 102,
		"invoice_date": "2025-06-01",
		"payment_due_date": "2025-08-01",
		"total_amount": 1000,
		"invoice_detail": [
			{"product_name": "Widget", "unit_price": 300, "quantity": 3, "subtotal": 900}
		],
		"invoice_credit_note": []
	}`)

	result, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.InconsistentCount)

	inv, err := repo.FindByNumber(context.Background(), "102")
	require.NoError(t, err)
	assert.False(t, inv.IsConsistent)
}

func TestImportBatch_SkipsStoreAndInFileDuplicates(t *testing.T) {
	repo := newFakeInvoiceRepo()
	repo.seed(model.Invoice{InvoiceNumber: "100", TotalAmount: d("50")})
	svc := newTestImportService(repo, nil)

	doc := batchDoc(
		simpleRecord(100, "2025-08-01"), // already in store
		simpleRecord(200, "2025-08-01"),
		simpleRecord(200, "2025-08-01"), // duplicated within the file
	)

	result, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalInFile)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.DuplicatesSkipped)

	// The pre-existing invoice is never mutated.
	existing, err := repo.FindByNumber(context.Background(), "100")
	require.NoError(t, err)
	assert.True(t, existing.TotalAmount.Equal(d("50")))
}

func TestImportBatch_SecondRunIsIdempotent(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	doc := batchDoc(simpleRecord(300, "2025-08-01"), simpleRecord(301, "2025-08-01"))

	first, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Imported)

	second, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, second.TotalInFile, second.DuplicatesSkipped)
}

func TestImportBatch_PaymentRecordWinsOverDueDate(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	doc := batchDoc(`{
		"invoice_number": 400,
		"invoice_date": "2025-01-01",
		"payment_due_date": "2025-02-01",
		"total_amount": 1000,
		"invoice_detail": [
			{"product_name": "Widget", "unit_price": 1000, "quantity": 1, "subtotal": 1000}
		],
		"invoice_payment": {"payment_method": "transfer", "payment_date": "2025-01-20"},
		"invoice_credit_note": []
	}`)

	_, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)

	inv, err := repo.FindByNumber(context.Background(), "400")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, inv.PaymentStatus)
}

func TestImportBatch_OverdueWithoutPaymentRecord(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	// Due date strictly before the injected "now" (2025-07-15).
	doc := batchDoc(simpleRecord(401, "2025-07-14"))

	_, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)

	inv, err := repo.FindByNumber(context.Background(), "401")
	require.NoError(t, err)
	assert.Equal(t, model.StatusIssued, inv.Status)
	assert.Equal(t, model.PaymentOverdue, inv.PaymentStatus)
}

func TestImportBatch_CancellationViaImportDoesNotForcePaid(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	doc := batchDoc(`{
		"invoice_number": 402,
		"invoice_date": "2025-01-01",
		"payment_due_date": "2025-08-01",
		"total_amount": 1000,
		"invoice_detail": [
			{"product_name": "Widget", "unit_price": 1000, "quantity": 1, "subtotal": 1000}
		],
		"invoice_credit_note": [
			{"credit_note_number": 9002, "credit_note_date": "2025-02-01", "credit_note_amount": 1000}
		]
	}`)

	_, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	require.NoError(t, err)

	inv, err := repo.FindByNumber(context.Background(), "402")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, inv.Status)
	// Paid is driven only by a source payment record on this path.
	assert.Equal(t, model.PaymentPending, inv.PaymentStatus)
}

func TestImportBatch_MalformedDocumentAborts(t *testing.T) {
	svc := newTestImportService(newFakeInvoiceRepo(), nil)

	_, err := svc.ImportBatch(context.Background(), []byte(`{"invoices": [`), ImportOptions{})
	assert.ErrorIs(t, err, ErrMalformedBatch)
}

func TestImportBatch_BadDateStrictModeAbortsWholeRun(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	doc := batchDoc(
		simpleRecord(500, "2025-08-01"),
		simpleRecord(501, "not-a-date"),
	)

	_, err := svc.ImportBatch(context.Background(), doc, ImportOptions{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	// Nothing is committed, including the valid record seen first.
	assert.Equal(t, 0, repo.createBatchN)
	assert.Empty(t, repo.invoices)
}

func TestImportBatch_BadDateSkipModeContinues(t *testing.T) {
	repo := newFakeInvoiceRepo()
	svc := newTestImportService(repo, nil)

	doc := batchDoc(
		simpleRecord(500, "2025-08-01"),
		simpleRecord(501, "not-a-date"),
		simpleRecord(502, "2025-08-01"),
	)

	result, err := svc.ImportBatch(context.Background(), doc, ImportOptions{SkipInvalid: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.InvalidSkipped)
	assert.Len(t, repo.invoices, 2)
}

func TestImportBatch_CommitFailureAppliesNothing(t *testing.T) {
	repo := newFakeInvoiceRepo()
	repo.failCreate = errors.New("connection lost")
	svc := newTestImportService(repo, nil)

	_, err := svc.ImportBatch(context.Background(), batchDoc(simpleRecord(600, "2025-08-01")), ImportOptions{})
	require.Error(t, err)
	assert.Empty(t, repo.invoices)
}

func TestImportBatch_BroadcastsCompletionEvent(t *testing.T) {
	events := &recordingBroadcaster{}
	svc := newTestImportService(newFakeInvoiceRepo(), events)

	_, err := svc.ImportBatch(context.Background(), batchDoc(simpleRecord(700, "2025-08-01")), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"import_completed"}, events.events)
}

func TestImportFromFile_MissingFile(t *testing.T) {
	svc := newTestImportService(newFakeInvoiceRepo(), nil)

	_, err := svc.ImportFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.json"), ImportOptions{})
	assert.ErrorIs(t, err, ErrImportFileNotFound)
}
