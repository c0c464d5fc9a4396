package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"invoice-backend/internal/model"
	"invoice-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// Import failure taxonomy. ErrImportFileNotFound and ErrMalformedBatch
// abort before any record is processed; ErrInvalidRecord aborts the run in
// strict mode and is counted per record in skip mode.
var (
	ErrImportFileNotFound = errors.New("import file not found")
	ErrMalformedBatch     = errors.New("malformed batch document")
	ErrInvalidRecord      = errors.New("invalid invoice record")
)

// --- Feed DTOs (consumed, not produced) ---

type invoiceBatchDocument struct {
	Invoices []invoiceRecord `json:"invoices"`
}

type invoiceRecord struct {
	InvoiceNumber     int                `json:"invoice_number"`
	InvoiceDate       string             `json:"invoice_date"`
	InvoiceStatus     string             `json:"invoice_status"`
	TotalAmount       decimal.Decimal    `json:"total_amount"`
	DaysToDue         int                `json:"days_to_due"`
	PaymentDueDate    string             `json:"payment_due_date"`
	PaymentStatus     string             `json:"payment_status"`
	InvoiceDetail     []detailRecord     `json:"invoice_detail"`
	InvoicePayment    *paymentRecord     `json:"invoice_payment"`
	InvoiceCreditNote []creditNoteRecord `json:"invoice_credit_note"`
	Customer          *customerRecord    `json:"customer"`
}

type detailRecord struct {
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type paymentRecord struct {
	PaymentMethod string `json:"payment_method"`
	PaymentDate   string `json:"payment_date"`
}

type creditNoteRecord struct {
	CreditNoteNumber int             `json:"credit_note_number"`
	CreditNoteDate   string          `json:"credit_note_date"`
	CreditNoteAmount decimal.Decimal `json:"credit_note_amount"`
}

// customerRecord is present in the feed but not persisted.
type customerRecord struct {
	CustomerRun   string `json:"customer_run"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
}

// --- Outcome ---

type ImportResult struct {
	TotalInFile       int `json:"total_in_file"`
	Imported          int `json:"imported"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	InconsistentCount int `json:"inconsistent_count"`
	// InvalidSkipped is only populated when SkipInvalid is set; in strict
	// mode a bad record aborts the whole run instead.
	InvalidSkipped int `json:"invalid_skipped"`
}

type ImportOptions struct {
	// SkipInvalid switches per-record error handling from abort-whole-batch
	// (the default policy) to skip-and-count.
	SkipInvalid bool
}

// --- Interface ---

type ImportService interface {
	// ImportFromFile runs one reconciliation over the batch document at
	// path. Existing invoices are never mutated; duplicates are skipped.
	ImportFromFile(ctx context.Context, path string, opts ImportOptions) (ImportResult, error)
	// ImportBatch runs one reconciliation over an already-read document.
	ImportBatch(ctx context.Context, data []byte, opts ImportOptions) (ImportResult, error)
}

type importService struct {
	invoiceRepo repository.InvoiceRepository
	txManager   repository.TransactionManager
	events      EventBroadcaster
	now         func() time.Time
}

func NewImportService(
	invoiceRepo repository.InvoiceRepository,
	txManager repository.TransactionManager,
	events EventBroadcaster,
) ImportService {
	return &importService{
		invoiceRepo: invoiceRepo,
		txManager:   txManager,
		events:      events,
		now:         time.Now,
	}
}

// --- Implementation ---

func (s *importService) ImportFromFile(ctx context.Context, path string, opts ImportOptions) (ImportResult, error) {
	if _, err := os.Stat(path); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %s", ErrImportFileNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read import file: %w", err)
	}

	return s.ImportBatch(ctx, data, opts)
}

func (s *importService) ImportBatch(ctx context.Context, data []byte, opts ImportOptions) (ImportResult, error) {
	log := importLogger()

	var doc invoiceBatchDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	result := ImportResult{TotalInFile: len(doc.Invoices)}
	if len(doc.Invoices) == 0 {
		log.Warn().Msg("batch document contains no invoices")
		return result, nil
	}

	// Duplicate detection spans the store snapshot taken here plus records
	// accepted within this run.
	existingNumbers, err := s.invoiceRepo.FindAllNumbers(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to load existing invoice numbers: %w", err)
	}
	seen := make(map[string]struct{}, len(existingNumbers))
	for _, n := range existingNumbers {
		seen[n] = struct{}{}
	}

	now := s.now()
	pending := make([]model.Invoice, 0, len(doc.Invoices))

	for _, record := range doc.Invoices {
		number := strconv.Itoa(record.InvoiceNumber)

		if _, dup := seen[number]; dup {
			log.Warn().Str("invoice_number", number).Msg("duplicate invoice skipped")
			result.DuplicatesSkipped++
			continue
		}

		invoice, consistent, err := buildInvoice(record, number, now)
		if err != nil {
			if opts.SkipInvalid {
				log.Warn().Str("invoice_number", number).Err(err).Msg("invalid record skipped")
				result.InvalidSkipped++
				continue
			}
			return ImportResult{}, err
		}
		if !consistent {
			log.Warn().
				Str("invoice_number", number).
				Str("declared_total", record.TotalAmount.String()).
				Msg("invoice is inconsistent, importing flagged")
			result.InconsistentCount++
		}

		pending = append(pending, invoice)
		seen[number] = struct{}{}
		result.Imported++
	}

	// All-or-nothing commit for the whole batch.
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return s.invoiceRepo.CreateBatch(txCtx, pending)
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to commit import batch: %w", err)
	}

	log.Info().
		Int("total_in_file", result.TotalInFile).
		Int("imported", result.Imported).
		Int("duplicates_skipped", result.DuplicatesSkipped).
		Int("inconsistent", result.InconsistentCount).
		Int("invalid_skipped", result.InvalidSkipped).
		Msg("import run finished")

	if s.events != nil {
		s.events.BroadcastEvent("import_completed", result)
	}

	return result, nil
}

// buildInvoice maps one feed record to a fully formed aggregate, deriving
// status and payment status. The returned bool reports consistency.
func buildInvoice(record invoiceRecord, number string, now time.Time) (model.Invoice, bool, error) {
	issueDate, err := parseFeedDate(record.InvoiceDate)
	if err != nil {
		return model.Invoice{}, false, fmt.Errorf("%w %s: invoice_date: %v", ErrInvalidRecord, number, err)
	}
	dueDate, err := parseFeedDate(record.PaymentDueDate)
	if err != nil {
		return model.Invoice{}, false, fmt.Errorf("%w %s: payment_due_date: %v", ErrInvalidRecord, number, err)
	}

	// Declared subtotals are trusted verbatim; the consistency check is the
	// only place they are compared against the declared total.
	calculatedTotal := decimal.Zero
	lineItems := make([]model.InvoiceLineItem, 0, len(record.InvoiceDetail))
	for _, detail := range record.InvoiceDetail {
		calculatedTotal = calculatedTotal.Add(detail.Subtotal)
		lineItems = append(lineItems, model.InvoiceLineItem{
			Description: detail.ProductName,
			Quantity:    detail.Quantity,
			UnitPrice:   detail.UnitPrice,
			Subtotal:    detail.Subtotal,
		})
	}
	consistent := calculatedTotal.Equal(record.TotalAmount)

	creditNoteTotal := decimal.Zero
	creditNotes := make([]model.CreditNote, 0, len(record.InvoiceCreditNote))
	for _, note := range record.InvoiceCreditNote {
		noteDate, err := parseFeedDate(note.CreditNoteDate)
		if err != nil {
			return model.Invoice{}, false, fmt.Errorf("%w %s: credit_note_date: %v", ErrInvalidRecord, number, err)
		}
		creditNotes = append(creditNotes, model.CreditNote{
			CreditNoteNumber: strconv.Itoa(note.CreditNoteNumber),
			IssueDate:        noteDate,
			Amount:           note.CreditNoteAmount,
		})
		creditNoteTotal = creditNoteTotal.Add(note.CreditNoteAmount)
	}

	hasPayment := record.InvoicePayment != nil &&
		record.InvoicePayment.PaymentMethod != "" &&
		record.InvoicePayment.PaymentDate != ""

	invoice := model.Invoice{
		InvoiceNumber:  number,
		IssueDate:      issueDate,
		PaymentDueDate: dueDate,
		TotalAmount:    record.TotalAmount,
		IsConsistent:   consistent,
		LineItems:      lineItems,
		CreditNotes:    creditNotes,
		Status:         DeriveInvoiceStatus(record.TotalAmount, creditNoteTotal),
		// Cancellation assembled during import does not force Paid; only a
		// source-declared payment record does.
		PaymentStatus: DerivePaymentStatus(hasPayment, dueDate, now),
	}

	return invoice, consistent, nil
}

var feedDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

func parseFeedDate(value string) (time.Time, error) {
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}
