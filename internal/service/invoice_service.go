package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-backend/internal/model"
	"invoice-backend/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- Response DTOs ---

// InvoiceResponse is the child-free projection returned across the API
// boundary. Children never carry back-references to the invoice.
type InvoiceResponse struct {
	InvoiceNumber     string               `json:"invoice_number"`
	IssueDate         string               `json:"issue_date"`
	PaymentDueDate    string               `json:"payment_due_date"`
	TotalAmount       string               `json:"total_amount"`
	Status            string               `json:"status"`
	PaymentStatus     string               `json:"payment_status"`
	IsConsistent      bool                 `json:"is_consistent"`
	OutstandingAmount string               `json:"outstanding_amount"`
	LineItems         []LineItemResponse   `json:"line_items"`
	CreditNotes       []CreditNoteResponse `json:"credit_notes"`
}

type LineItemResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type CreditNoteResponse struct {
	ID               string `json:"id"`
	CreditNoteNumber string `json:"credit_note_number"`
	IssueDate        string `json:"issue_date"`
	Amount           string `json:"amount"`
}

type PaymentStatusSummary struct {
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type PaymentSummaryResponse struct {
	TotalInvoices int                    `json:"total_invoices"`
	Summaries     []PaymentStatusSummary `json:"summaries"`
}

// --- Interface ---

type InvoiceService interface {
	GetInvoice(ctx context.Context, invoiceNumber string) (*InvoiceResponse, error)
	ListInvoices(ctx context.Context, page, limit int) ([]InvoiceResponse, int64, error)
	SearchInvoices(ctx context.Context, status, paymentStatus string) ([]InvoiceResponse, error)
	// OverdueUnpaidReport returns consistent invoices overdue by more than
	// 30 days with no credit notes and an untouched balance.
	OverdueUnpaidReport(ctx context.Context) ([]InvoiceResponse, error)
	InconsistentReport(ctx context.Context) ([]InvoiceResponse, error)
	PaymentSummary(ctx context.Context) (PaymentSummaryResponse, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	now         func() time.Time
}

func NewInvoiceService(invoiceRepo repository.InvoiceRepository) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		now:         time.Now,
	}
}

// --- Implementation ---

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceNumber string) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByNumber(ctx, invoiceNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	resp := toInvoiceResponse(invoice)
	return &resp, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, page, limit int) ([]InvoiceResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	invoices, total, err := s.invoiceRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	return toInvoiceResponses(invoices), total, nil
}

func (s *invoiceService) SearchInvoices(ctx context.Context, status, paymentStatus string) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.Search(ctx, status, paymentStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to search invoices: %w", err)
	}
	return toInvoiceResponses(invoices), nil
}

func (s *invoiceService) OverdueUnpaidReport(ctx context.Context) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.FindConsistent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	today := calendarDate(s.now())
	matched := make([]InvoiceResponse, 0)
	for i := range invoices {
		inv := &invoices[i]
		if inv.PaymentStatus != model.PaymentOverdue {
			continue
		}
		if today.Sub(calendarDate(inv.PaymentDueDate)).Hours() <= 30*24 {
			continue
		}
		if len(inv.CreditNotes) > 0 || !inv.OutstandingAmount().Equal(inv.TotalAmount) {
			continue
		}
		matched = append(matched, toInvoiceResponse(inv))
	}

	return matched, nil
}

func (s *invoiceService) InconsistentReport(ctx context.Context) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.FindInconsistent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), nil
}

func (s *invoiceService) PaymentSummary(ctx context.Context) (PaymentSummaryResponse, error) {
	invoices, err := s.invoiceRepo.FindAll(ctx)
	if err != nil {
		return PaymentSummaryResponse{}, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	total := len(invoices)
	summary := PaymentSummaryResponse{
		TotalInvoices: total,
		Summaries:     []PaymentStatusSummary{},
	}
	if total == 0 {
		return summary, nil
	}

	counts := map[string]int{}
	for _, inv := range invoices {
		counts[inv.PaymentStatus]++
	}

	// Fixed order keeps the report stable across runs.
	for _, status := range []string{model.PaymentPaid, model.PaymentPending, model.PaymentOverdue} {
		count, ok := counts[status]
		if !ok {
			continue
		}
		percentage := decimal.NewFromInt(int64(count)).
			Div(decimal.NewFromInt(int64(total))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		summary.Summaries = append(summary.Summaries, PaymentStatusSummary{
			Status:     status,
			Count:      count,
			Percentage: percentage.StringFixed(2),
		})
	}

	return summary, nil
}

// --- Mapping ---

func toInvoiceResponse(inv *model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		InvoiceNumber:     inv.InvoiceNumber,
		IssueDate:         inv.IssueDate.Format("2006-01-02"),
		PaymentDueDate:    inv.PaymentDueDate.Format("2006-01-02"),
		TotalAmount:       inv.TotalAmount.StringFixed(4),
		Status:            inv.Status,
		PaymentStatus:     inv.PaymentStatus,
		IsConsistent:      inv.IsConsistent,
		OutstandingAmount: inv.OutstandingAmount().StringFixed(4),
		LineItems:         make([]LineItemResponse, 0, len(inv.LineItems)),
		CreditNotes:       make([]CreditNoteResponse, 0, len(inv.CreditNotes)),
	}

	for _, item := range inv.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(4),
			Subtotal:    item.Subtotal.StringFixed(4),
		})
	}
	for _, note := range inv.CreditNotes {
		resp.CreditNotes = append(resp.CreditNotes, CreditNoteResponse{
			ID:               note.ID.String(),
			CreditNoteNumber: note.CreditNoteNumber,
			IssueDate:        note.IssueDate.Format("2006-01-02"),
			Amount:           note.Amount.StringFixed(4),
		})
	}

	return resp
}

func toInvoiceResponses(invoices []model.Invoice) []InvoiceResponse {
	result := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		result = append(result, toInvoiceResponse(&invoices[i]))
	}
	return result
}
