package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-backend/internal/model"
	"invoice-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Domain rule violations of the credit-note application. Handlers map them
// to HTTP status codes; none of them leaves a partial mutation behind.
var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrInvoiceCancelled   = errors.New("invoice is already cancelled")
	ErrExceedsOutstanding = errors.New("credit note amount exceeds outstanding amount")
	ErrAmountNotPositive  = errors.New("credit note amount must be greater than zero")
)

type ApplyCreditNoteRequest struct {
	InvoiceNumber string `json:"invoice_number" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
}

type CreditNoteService interface {
	// ApplyCreditNote adds a credit note to an invoice and re-derives its
	// status. This is the only operation that mutates an existing invoice
	// after import.
	ApplyCreditNote(ctx context.Context, invoiceNumber string, amount decimal.Decimal) (*InvoiceResponse, error)
}

type creditNoteService struct {
	invoiceRepo repository.InvoiceRepository
	txManager   repository.TransactionManager
	events      EventBroadcaster
	now         func() time.Time
}

func NewCreditNoteService(
	invoiceRepo repository.InvoiceRepository,
	txManager repository.TransactionManager,
	events EventBroadcaster,
) CreditNoteService {
	return &creditNoteService{
		invoiceRepo: invoiceRepo,
		txManager:   txManager,
		events:      events,
		now:         time.Now,
	}
}

func (s *creditNoteService) ApplyCreditNote(ctx context.Context, invoiceNumber string, amount decimal.Decimal) (*InvoiceResponse, error) {
	log := creditNoteLogger()

	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Row lock on the invoice serializes concurrent applications on
		// the same number, so the outstanding amount read here cannot be
		// stale when the balance check passes.
		invoice, err := s.invoiceRepo.FindByNumberForUpdate(txCtx, invoiceNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return fmt.Errorf("failed to load invoice: %w", err)
		}

		if invoice.Status == model.StatusCancelled {
			return ErrInvoiceCancelled
		}

		outstanding := invoice.OutstandingAmount()
		if amount.GreaterThan(outstanding) {
			return ErrExceedsOutstanding
		}

		note := model.CreditNote{
			InvoiceNumber:    invoice.InvoiceNumber,
			CreditNoteNumber: uuid.NewString(),
			IssueDate:        s.now(),
			Amount:           amount,
		}
		if err := s.invoiceRepo.AddCreditNote(txCtx, &note); err != nil {
			return fmt.Errorf("failed to persist credit note: %w", err)
		}

		invoice.CreditNotes = append(invoice.CreditNotes, note)
		invoice.Status = DeriveInvoiceStatus(invoice.TotalAmount, invoice.CreditNoteTotal())
		if invoice.Status == model.StatusCancelled {
			// A fully offset invoice is treated as settled regardless of
			// due date. This override exists only on this path, not during
			// import.
			invoice.PaymentStatus = model.PaymentPaid
		}

		if err := s.invoiceRepo.Save(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload with children outside the transaction for the response.
	reloaded, err := s.invoiceRepo.FindByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to reload invoice: %w", err)
	}

	log.Info().
		Str("invoice_number", invoiceNumber).
		Str("amount", amount.String()).
		Str("status", reloaded.Status).
		Str("outstanding", reloaded.OutstandingAmount().String()).
		Msg("credit note applied")

	resp := toInvoiceResponse(reloaded)
	if s.events != nil {
		s.events.BroadcastEvent("credit_note_applied", resp)
	}

	return &resp, nil
}
