package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus enum constants
const (
	StatusIssued    = "Issued"
	StatusPartial   = "Partial"
	StatusCancelled = "Cancelled"
)

// PaymentStatus enum constants
const (
	PaymentPending = "Pending"
	PaymentOverdue = "Overdue"
	PaymentPaid    = "Paid"
)

// Invoice is the aggregate root. The invoice number comes from the external
// feed and is the primary key; it never changes after import.
// Status and PaymentStatus are derived via service.DeriveInvoiceStatus and
// service.DerivePaymentStatus at the point of state change; nothing else
// may write them.
type Invoice struct {
	InvoiceNumber  string            `gorm:"type:varchar(50);primaryKey" json:"invoice_number"`
	IssueDate      time.Time         `gorm:"not null" json:"issue_date"`
	PaymentDueDate time.Time         `gorm:"not null" json:"payment_due_date"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Status         string            `gorm:"type:varchar(20);not null;default:'Issued';index" json:"status"`
	PaymentStatus  string            `gorm:"type:varchar(20);not null;default:'Pending';index" json:"payment_status"`
	IsConsistent   bool              `gorm:"not null;default:true;index" json:"is_consistent"` // fixed at import, never recomputed
	LineItems      []InvoiceLineItem `gorm:"foreignKey:InvoiceNumber;constraint:OnDelete:CASCADE" json:"line_items"`
	CreditNotes    []CreditNote      `gorm:"foreignKey:InvoiceNumber;constraint:OnDelete:CASCADE" json:"credit_notes"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// OutstandingAmount is TotalAmount minus the sum of attached credit notes.
// Always computed from the loaded credit notes, never stored.
func (i *Invoice) OutstandingAmount() decimal.Decimal {
	return i.TotalAmount.Sub(i.CreditNoteTotal())
}

// CreditNoteTotal sums the amounts of the currently attached credit notes.
func (i *Invoice) CreditNoteTotal() decimal.Decimal {
	total := decimal.Zero
	for _, cn := range i.CreditNotes {
		total = total.Add(cn.Amount)
	}
	return total
}

// InvoiceLineItem is one detail row of an invoice. The subtotal is taken
// verbatim from the feed; the consistency check compares the sum of these
// subtotals against the declared total exactly once, at import.
type InvoiceLineItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNumber string          `gorm:"type:varchar(50);not null;index" json:"invoice_number"`
	Description   string          `gorm:"type:varchar(255)" json:"description"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"subtotal"`
}

// CreditNote offsets part or all of an invoice's balance. Imported notes
// carry the number and date the feed declared; notes created through the
// application path get a generated number and the transaction time.
type CreditNote struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNumber    string          `gorm:"type:varchar(50);not null;index" json:"invoice_number"`
	CreditNoteNumber string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"credit_note_number"`
	IssueDate        time.Time       `gorm:"not null" json:"issue_date"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
}
