// Package metrics exports the Prometheus metrics of the FreshBooks report.
// All metrics are defined in their respective packages (client, pagination, report)
// and registered with the default registry via promauto.
//
// A report run is a short-lived process, so metrics are not scraped. They are
// written once at exit in the textfile collector format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer collects the metrics registered with the default registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes every gathered metric to path in the text exposition
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	return writeTextfile(path, Gatherer)
}

func writeTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return fmt.Errorf("metrics file path is empty")
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics file %s: %w", path, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - freshbooks_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - freshbooks_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - freshbooks_errors_total{class} (Counter): Errors by class (auth, client, server, network)
//   - freshbooks_token_refreshes_total{result} (Counter): Refresh grants by result
//
// Pagination Metrics (pkg/pagination):
//   - freshbooks_pages_fetched_total{variant} (Counter): Envelope pages fetched by variant (accounting, projects)
//
// Report Metrics (pkg/report):
//   - freshbooks_report_rows_total{payment_type} (Counter): Rows written by payment type (credit card, other)
//
// Example Prometheus Queries:
//
//   # Share of invoices paid by card
//   freshbooks_report_rows_total{payment_type="credit card"} / ignoring(payment_type) sum(freshbooks_report_rows_total)
//
//   # Refreshes per run
//   increase(freshbooks_token_refreshes_total[1d])
//
//   # Request Error Rate
//   rate(freshbooks_errors_total[1d])
