package service

import (
	"context"
	"sort"

	"invoice-backend/internal/model"

	"gorm.io/gorm"
)

// fakeInvoiceRepo is an in-memory InvoiceRepository for unit tests.
type fakeInvoiceRepo struct {
	invoices     map[string]*model.Invoice
	createBatchN int
	failCreate   error
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[string]*model.Invoice)}
}

func (f *fakeInvoiceRepo) seed(invoices ...model.Invoice) {
	for i := range invoices {
		inv := invoices[i]
		f.invoices[inv.InvoiceNumber] = &inv
	}
}

func (f *fakeInvoiceRepo) sorted() []model.Invoice {
	numbers := make([]string, 0, len(f.invoices))
	for n := range f.invoices {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	result := make([]model.Invoice, 0, len(numbers))
	for _, n := range numbers {
		result = append(result, *f.invoices[n])
	}
	return result
}

func (f *fakeInvoiceRepo) FindAllNumbers(ctx context.Context) ([]string, error) {
	numbers := make([]string, 0, len(f.invoices))
	for n := range f.invoices {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers, nil
}

func (f *fakeInvoiceRepo) FindByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	inv, ok := f.invoices[number]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyInvoice(inv), nil
}

func (f *fakeInvoiceRepo) FindByNumberForUpdate(ctx context.Context, number string) (*model.Invoice, error) {
	return f.FindByNumber(ctx, number)
}

func (f *fakeInvoiceRepo) CreateBatch(ctx context.Context, invoices []model.Invoice) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.createBatchN++
	for i := range invoices {
		inv := invoices[i]
		f.invoices[inv.InvoiceNumber] = &inv
	}
	return nil
}

func (f *fakeInvoiceRepo) Save(ctx context.Context, invoice *model.Invoice) error {
	stored, ok := f.invoices[invoice.InvoiceNumber]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = invoice.Status
	stored.PaymentStatus = invoice.PaymentStatus
	return nil
}

func (f *fakeInvoiceRepo) AddCreditNote(ctx context.Context, note *model.CreditNote) error {
	stored, ok := f.invoices[note.InvoiceNumber]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.CreditNotes = append(stored.CreditNotes, *note)
	return nil
}

func (f *fakeInvoiceRepo) List(ctx context.Context, page, limit int) ([]model.Invoice, int64, error) {
	all := f.sorted()
	return all, int64(len(all)), nil
}

func (f *fakeInvoiceRepo) Search(ctx context.Context, status, paymentStatus string) ([]model.Invoice, error) {
	var matched []model.Invoice
	for _, inv := range f.sorted() {
		if status != "" && inv.Status != status {
			continue
		}
		if paymentStatus != "" && inv.PaymentStatus != paymentStatus {
			continue
		}
		matched = append(matched, inv)
	}
	return matched, nil
}

func (f *fakeInvoiceRepo) FindInconsistent(ctx context.Context) ([]model.Invoice, error) {
	var matched []model.Invoice
	for _, inv := range f.sorted() {
		if !inv.IsConsistent {
			matched = append(matched, inv)
		}
	}
	return matched, nil
}

func (f *fakeInvoiceRepo) FindConsistent(ctx context.Context) ([]model.Invoice, error) {
	var matched []model.Invoice
	for _, inv := range f.sorted() {
		if inv.IsConsistent {
			matched = append(matched, inv)
		}
	}
	return matched, nil
}

func (f *fakeInvoiceRepo) FindAll(ctx context.Context) ([]model.Invoice, error) {
	return f.sorted(), nil
}

func copyInvoice(inv *model.Invoice) *model.Invoice {
	dup := *inv
	dup.LineItems = append([]model.InvoiceLineItem(nil), inv.LineItems...)
	dup.CreditNotes = append([]model.CreditNote(nil), inv.CreditNotes...)
	return &dup
}

// fakeTxManager runs the callback without a real transaction.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// recordingBroadcaster captures broadcast events.
type recordingBroadcaster struct {
	events []string
}

func (r *recordingBroadcaster) BroadcastEvent(eventType string, payload interface{}) {
	r.events = append(r.events, eventType)
}
