package report

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/Sternrassler/freshbooks-report/pkg/freshbooks"
	"github.com/Sternrassler/freshbooks-report/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "freshbooks_report_rows_total",
	Help: "Total report rows written by payment type",
}, []string{"payment_type"})

// Source supplies the two collections the report is built from.
// *freshbooks.Service implements it.
type Source interface {
	Invoices(ctx context.Context) iter.Seq2[freshbooks.Invoice, error]
	Payments(ctx context.Context) iter.Seq2[freshbooks.Payment, error]
}

// Stats summarizes a finished report.
type Stats struct {
	Rows         int
	CardInvoices int
	Paid         int
}

// Build writes the invoice report to w. Payments are indexed in full before
// the first invoice is requested; invoices are then written in server order.
// w is flushed only when every row was written, so a failed run leaves its
// output untouched.
func Build(ctx context.Context, src Source, w *Writer) (Stats, error) {
	logger := logging.NewLogger("report")
	start := time.Now()

	cards, err := IndexCardPayments(src.Payments(ctx))
	if err != nil {
		return Stats{}, err
	}
	logger.Debug().Int("card_invoices", len(cards)).Msg("Indexed card payments")

	if err := w.WriteHeader(); err != nil {
		return Stats{}, fmt.Errorf("write header: %w", err)
	}

	var stats Stats
	for inv, err := range src.Invoices(ctx) {
		if err != nil {
			return stats, fmt.Errorf("list invoices: %w", err)
		}

		row, err := Enrich(inv, cards)
		if err != nil {
			return stats, err
		}
		if err := w.Write(row); err != nil {
			return stats, fmt.Errorf("write invoice %d: %w", row.InvoiceID, err)
		}

		stats.Rows++
		if row.PaymentType == PaymentTypeCard {
			stats.CardInvoices++
		}
		if row.Paid {
			stats.Paid++
		}
		rowsWrittenTotal.WithLabelValues(row.PaymentType).Inc()
	}

	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("flush report: %w", err)
	}

	logger.Info().
		Int("rows", stats.Rows).
		Int("card_invoices", stats.CardInvoices).
		Int("paid", stats.Paid).
		Dur("duration", time.Since(start)).
		Msg("Report written")

	return stats, nil
}

// ListProjects writes every project to w.
func ListProjects(projects iter.Seq2[freshbooks.Project, error], w *ProjectWriter) (int, error) {
	if err := w.WriteHeader(); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	n := 0
	for p, err := range projects {
		if err != nil {
			return n, fmt.Errorf("list projects: %w", err)
		}
		if err := w.Write(p); err != nil {
			return n, fmt.Errorf("write project %d: %w", p.ID, err)
		}
		n++
	}

	if err := w.Flush(); err != nil {
		return n, fmt.Errorf("flush projects: %w", err)
	}
	logger := logging.NewLogger("report")
	logger.Info().Int("projects", n).Msg("Projects written")
	return n, nil
}
