// Package report joins FreshBooks invoices with their card payments and
// writes the result as CSV.
package report

import (
	"fmt"
	"iter"
	"time"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"github.com/Sternrassler/freshbooks-report/pkg/freshbooks"
)

// DateLayout is the layout of every date read from and written to the report.
const DateLayout = "2006-01-02"

// Payment type values of a Row.
const (
	PaymentTypeCard  = "credit card"
	PaymentTypeOther = "other"
)

// CardBrands are the payment type labels counted as card payments. Matching
// is exact and case-sensitive.
var CardBrands = map[string]struct{}{
	"VISA":        {},
	"MASTERCARD":  {},
	"AMEX":        {},
	"Credit Card": {},
}

// IsCardPayment reports whether p was made with a card.
func IsCardPayment(p freshbooks.Payment) bool {
	_, ok := CardBrands[p.Type]
	return ok
}

// CardIndex holds the ids of invoices with at least one card payment.
type CardIndex map[int64]bool

// Has reports whether invoiceID has a card payment.
func (idx CardIndex) Has(invoiceID int64) bool {
	return idx[invoiceID]
}

// IndexCardPayments consumes payments to the end and indexes the invoices
// that received a card payment. Invoices without one are absent.
func IndexCardPayments(payments iter.Seq2[freshbooks.Payment, error]) (CardIndex, error) {
	idx := make(CardIndex)
	for p, err := range payments {
		if err != nil {
			return nil, fmt.Errorf("index card payments: %w", err)
		}
		if IsCardPayment(p) {
			idx[p.InvoiceID] = true
		}
	}
	return idx, nil
}

// Row is an invoice flattened for the report.
type Row struct {
	InvoiceID    int64
	ClientID     int64
	Organization string
	Created      time.Time
	Closed       *time.Time
	Amount       freshbooks.Amount
	Paid         bool
	PaymentType  string
	Description  string
}

// Enrich builds the report row of inv. The invoice is paid when it carries a
// paid date.
func Enrich(inv freshbooks.Invoice, cards CardIndex) (Row, error) {
	op := fmt.Sprintf("enrich invoice %d", inv.ID)

	created, err := time.Parse(DateLayout, inv.CreateDate)
	if err != nil {
		return Row{}, apperr.Errorf(apperr.ErrFormat, op, "create_date %q: %v", inv.CreateDate, err)
	}
	if err := inv.Amount.Validate(); err != nil {
		return Row{}, fmt.Errorf("%s: %w", op, err)
	}

	row := Row{
		InvoiceID:    inv.ID,
		ClientID:     inv.ClientID,
		Organization: inv.Organization,
		Created:      created,
		Amount:       inv.Amount,
		PaymentType:  PaymentTypeOther,
		Description:  inv.Description,
	}

	if inv.DatePaid != "" {
		closed, err := time.Parse(DateLayout, inv.DatePaid)
		if err != nil {
			return Row{}, apperr.Errorf(apperr.ErrFormat, op, "date_paid %q: %v", inv.DatePaid, err)
		}
		row.Closed = &closed
		row.Paid = true
	}

	if cards.Has(inv.ID) {
		row.PaymentType = PaymentTypeCard
	}
	return row, nil
}
