package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/Sternrassler/freshbooks-report/pkg/freshbooks"
)

// Header is the column order of the invoice report.
var Header = []string{
	"invoice_id",
	"client_id",
	"organization",
	"invoice_created",
	"invoice_closed",
	"amount",
	"paid",
	"payment_type",
	"description",
}

// ProjectHeader is the column order of the project listing.
var ProjectHeader = []string{"project_id", "title", "client_id", "active"}

// Writer writes report rows as CSV. Nothing reaches the underlying writer
// before Flush, however many rows are written.
type Writer struct {
	out io.Writer
	buf bytes.Buffer
	w   *csv.Writer
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{out: w}
	cw.w = csv.NewWriter(&cw.buf)
	return cw
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.w.Write(Header)
}

// Write writes one row.
func (w *Writer) Write(row Row) error {
	closed := ""
	if row.Closed != nil {
		closed = row.Closed.Format(DateLayout)
	}

	return w.w.Write([]string{
		strconv.FormatInt(row.InvoiceID, 10),
		strconv.FormatInt(row.ClientID, 10),
		row.Organization,
		row.Created.Format(DateLayout),
		closed,
		row.Amount.Amount,
		strconv.FormatBool(row.Paid),
		row.PaymentType,
		row.Description,
	})
}

// Flush writes the buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	return flush(w.w, &w.buf, w.out)
}

// ProjectWriter writes projects as CSV. Like Writer it holds every row
// until Flush.
type ProjectWriter struct {
	out io.Writer
	buf bytes.Buffer
	w   *csv.Writer
}

// NewProjectWriter returns a ProjectWriter writing to w.
func NewProjectWriter(w io.Writer) *ProjectWriter {
	pw := &ProjectWriter{out: w}
	pw.w = csv.NewWriter(&pw.buf)
	return pw
}

// WriteHeader writes the header row.
func (w *ProjectWriter) WriteHeader() error {
	return w.w.Write(ProjectHeader)
}

// Write writes one project.
func (w *ProjectWriter) Write(p freshbooks.Project) error {
	return w.w.Write([]string{
		strconv.FormatInt(p.ID, 10),
		p.Title,
		strconv.FormatInt(p.ClientID, 10),
		strconv.FormatBool(p.Active),
	})
}

// Flush writes the buffered rows to the underlying writer.
func (w *ProjectWriter) Flush() error {
	return flush(w.w, &w.buf, w.out)
}

func flush(cw *csv.Writer, buf *bytes.Buffer, out io.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := buf.WriteTo(out)
	return err
}
