package repository

import (
	"context"

	"invoice-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceRepository interface {
	// FindAllNumbers returns every invoice number in the store. The import
	// engine calls it once per run to seed duplicate detection.
	FindAllNumbers(ctx context.Context) ([]string, error)
	FindByNumber(ctx context.Context, number string) (*model.Invoice, error)
	// FindByNumberForUpdate loads the invoice and its credit notes while
	// holding a row lock on the invoice. Callers must be inside a
	// transaction; the lock serializes concurrent credit-note applications
	// on the same invoice number.
	FindByNumberForUpdate(ctx context.Context, number string) (*model.Invoice, error)
	CreateBatch(ctx context.Context, invoices []model.Invoice) error
	Save(ctx context.Context, invoice *model.Invoice) error
	AddCreditNote(ctx context.Context, note *model.CreditNote) error
	List(ctx context.Context, page, limit int) ([]model.Invoice, int64, error)
	Search(ctx context.Context, status, paymentStatus string) ([]model.Invoice, error)
	FindInconsistent(ctx context.Context) ([]model.Invoice, error)
	FindConsistent(ctx context.Context) ([]model.Invoice, error)
	FindAll(ctx context.Context) ([]model.Invoice, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) FindAllNumbers(ctx context.Context) ([]string, error) {
	var numbers []string
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).Pluck("invoice_number", &numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *invoiceRepository) FindByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).
		Preload("LineItems").
		Preload("CreditNotes").
		First(&invoice, "invoice_number = ?", number).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByNumberForUpdate(ctx context.Context, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&invoice, "invoice_number = ?", number).Error; err != nil {
		return nil, err
	}
	// Children are loaded after the row lock is held, so the credit-note
	// sum cannot be stale relative to a concurrent application.
	if err := GetDB(ctx, r.db).
		Where("invoice_number = ?", number).
		Find(&invoice.CreditNotes).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) CreateBatch(ctx context.Context, invoices []model.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	// gorm cascades LineItems and CreditNotes in the same insert.
	return GetDB(ctx, r.db).Create(&invoices).Error
}

func (r *invoiceRepository) Save(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Omit("LineItems", "CreditNotes").Save(invoice).Error
}

func (r *invoiceRepository) AddCreditNote(ctx context.Context, note *model.CreditNote) error {
	return GetDB(ctx, r.db).Create(note).Error
}

func (r *invoiceRepository) List(ctx context.Context, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Invoice{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("LineItems").
		Preload("CreditNotes").
		Order("invoice_number").
		Offset(offset).Limit(limit).
		Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) Search(ctx context.Context, status, paymentStatus string) ([]model.Invoice, error) {
	query := GetDB(ctx, r.db).
		Preload("LineItems").
		Preload("CreditNotes")
	if status != "" {
		query = query.Where("LOWER(status) = LOWER(?)", status)
	}
	if paymentStatus != "" {
		query = query.Where("LOWER(payment_status) = LOWER(?)", paymentStatus)
	}

	var invoices []model.Invoice
	if err := query.Order("invoice_number").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) FindInconsistent(ctx context.Context) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if err := GetDB(ctx, r.db).
		Preload("LineItems").
		Preload("CreditNotes").
		Where("is_consistent = ?", false).
		Order("invoice_number").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) FindConsistent(ctx context.Context) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if err := GetDB(ctx, r.db).
		Preload("LineItems").
		Preload("CreditNotes").
		Where("is_consistent = ?", true).
		Order("invoice_number").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) FindAll(ctx context.Context) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if err := GetDB(ctx, r.db).Order("invoice_number").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
