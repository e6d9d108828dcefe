package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "freshbooks_pages_fetched_total",
	Help: "Total envelope pages fetched by variant",
}, []string{"variant"})

// Fetcher performs a single GET and returns the response body.
// *client.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Paginate returns the items of every page of path, in page order and
// server order within a page.
//
// Each range over the sequence starts again from the first page. A page is
// fetched only when the consumer has taken every item of the previous one.
// On failure the sequence yields a single non-nil error and stops; no item of
// a page that failed validation is yielded.
func Paginate[T any](ctx context.Context, fetcher Fetcher, variant Variant, path, focus string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		start := time.Now()
		logger := log.With().
			Str("component", "paginator").
			Str("endpoint", path).
			Str("variant", variant.Name()).
			Logger()

		requested := 1
		fetched := 0
		total := 1
		for requested <= total {
			var query url.Values
			if requested > 1 {
				query = url.Values{"page": []string{strconv.Itoa(requested)}}
			}

			page, items, err := fetchPage[T](ctx, fetcher, variant, path, focus, query)
			if err != nil {
				yield(zero, fmt.Errorf("fetch %s page %d: %w", path, requested, err))
				return
			}
			if page.Number != requested {
				yield(zero, apperr.Errorf(apperr.ErrProtocol, "fetch "+path,
					"requested page %d, envelope reports page %d", requested, page.Number))
				return
			}

			fetched++
			total = page.Total
			pagesFetchedTotal.WithLabelValues(variant.Name()).Inc()
			logger.Debug().
				Int("page", page.Number).
				Int("pages", page.Total).
				Int("items", len(items)).
				Msg("Fetched page")

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			requested++
		}

		logger.Info().
			Int("pages", fetched).
			Dur("duration", time.Since(start)).
			Msg("Pagination complete")
	}
}

// fetchPage requests one page and decodes all of its items.
func fetchPage[T any](ctx context.Context, fetcher Fetcher, variant Variant, path, focus string, query url.Values) (Page, []T, error) {
	body, err := fetcher.Get(ctx, path, query)
	if err != nil {
		return Page{}, nil, err
	}

	page, err := variant.Decode(body, focus)
	if err != nil {
		return Page{}, nil, err
	}

	items := make([]T, 0, len(page.Items))
	for i, raw := range page.Items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return Page{}, nil, apperr.Errorf(apperr.ErrFormat, "decode "+focus, "item %d: %v", i, err)
		}
		items = append(items, item)
	}

	return page, items, nil
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
