package service

import (
	"time"

	"invoice-backend/internal/model"

	"github.com/shopspring/decimal"
)

// DeriveInvoiceStatus computes the invoice status from the declared total
// and the sum of attached credit notes. A credit-note total equal to the
// invoice total counts as full cancellation, not Partial.
func DeriveInvoiceStatus(totalAmount, creditNoteTotal decimal.Decimal) string {
	if creditNoteTotal.IsZero() {
		return model.StatusIssued
	}
	if creditNoteTotal.GreaterThanOrEqual(totalAmount) {
		return model.StatusCancelled
	}
	return model.StatusPartial
}

// DerivePaymentStatus computes the payment status. A recorded payment
// always wins; otherwise the due date is compared against now by calendar
// date, time-of-day truncated.
func DerivePaymentStatus(hasPayment bool, dueDate, now time.Time) string {
	if hasPayment {
		return model.PaymentPaid
	}
	if calendarDate(now).After(calendarDate(dueDate)) {
		return model.PaymentOverdue
	}
	return model.PaymentPending
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
