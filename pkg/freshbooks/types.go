// Package freshbooks holds the FreshBooks resource types used by the report
// and the collection endpoints they are read from.
package freshbooks

import (
	"math"
	"strconv"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"golang.org/x/text/currency"
)

// Amount is a currency-tagged decimal. The decimal is kept as the string the
// API sent so no precision is lost on the way to the report.
type Amount struct {
	Amount string `json:"amount"`
	Code   string `json:"code"`
}

// Validate checks that Amount is a finite decimal and Code, when present, an
// ISO 4217 currency.
func (a Amount) Validate() error {
	const op = "validate amount"

	f, err := strconv.ParseFloat(a.Amount, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return apperr.Errorf(apperr.ErrFormat, op, "amount %q is not a decimal", a.Amount)
	}
	if a.Code != "" {
		if _, err := currency.ParseISO(a.Code); err != nil {
			return apperr.Errorf(apperr.ErrFormat, op, "currency %q: %v", a.Code, err)
		}
	}
	return nil
}

// Invoice is an accounting invoice. CreateDate and DatePaid are YYYY-MM-DD;
// DatePaid is empty (or null on the wire) while the invoice is open.
type Invoice struct {
	ID           int64  `json:"id"`
	InvoiceID    int64  `json:"invoiceid"`
	ClientID     int64  `json:"customerid"`
	Organization string `json:"organization"`
	Description  string `json:"description"`
	Amount       Amount `json:"amount"`
	CreateDate   string `json:"create_date"`
	DatePaid     string `json:"date_paid"`
}

// Payment is an accounting payment. Type is the payment method label, for
// card payments the card brand.
type Payment struct {
	ID        int64  `json:"id"`
	InvoiceID int64  `json:"invoiceid"`
	Type      string `json:"type"`
	Amount    Amount `json:"amount"`
	Date      string `json:"date"`
}

// Project is a project record from the projects service.
type Project struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ClientID    int64  `json:"client_id"`
	Active      bool   `json:"active"`
	Complete    bool   `json:"complete"`
	CreatedAt   string `json:"created_at"`
}
