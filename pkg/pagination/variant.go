package pagination

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
)

// Page is one decoded envelope.
type Page struct {
	// Number is the page the server says it returned.
	Number int
	// Total is the page count the server reports.
	Total int
	// Items holds the raw entries found under the focus key, in server order.
	Items []json.RawMessage
}

// Variant decodes one envelope shape.
type Variant interface {
	// Name identifies the variant in logs and metrics.
	Name() string
	// Decode extracts page metadata and the items stored under focus.
	Decode(body []byte, focus string) (Page, error)
}

// Envelope variants used by the FreshBooks API.
var (
	// Accounting is the response.result envelope of the accounting endpoints.
	Accounting Variant = accountingVariant{}

	// Projects is the top-level meta envelope of the project endpoints.
	Projects Variant = projectsVariant{}
)

// accountingMetaKeys are the fixed keys next to the focus key in response.result.
var accountingMetaKeys = map[string]bool{"page": true, "pages": true, "per_page": true, "total": true}

// projectsMetaKeys are the fixed top-level keys next to the focus key.
var projectsMetaKeys = map[string]bool{"meta": true}

// pageMeta is the page counter pair shared by both variants.
type pageMeta struct {
	Page  *int `json:"page"`
	Pages *int `json:"pages"`
}

type accountingVariant struct{}

func (accountingVariant) Name() string { return "accounting" }

func (v accountingVariant) Decode(body []byte, focus string) (Page, error) {
	const op = "decode accounting envelope"

	var envelope struct {
		Response *struct {
			Result json.RawMessage `json:"result"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page{}, apperr.New(apperr.ErrProtocol, op, err)
	}
	if envelope.Response == nil || len(envelope.Response.Result) == 0 {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "missing response.result")
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Response.Result, &result); err != nil {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "response.result: %v", err)
	}
	var meta pageMeta
	if err := json.Unmarshal(envelope.Response.Result, &meta); err != nil {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "page metadata: %v", err)
	}

	return buildPage(op, meta, result, accountingMetaKeys, focus)
}

type projectsVariant struct{}

func (projectsVariant) Name() string { return "projects" }

func (v projectsVariant) Decode(body []byte, focus string) (Page, error) {
	const op = "decode projects envelope"

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return Page{}, apperr.New(apperr.ErrProtocol, op, err)
	}

	rawMeta, ok := top["meta"]
	if !ok {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "missing meta")
	}
	var meta pageMeta
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "meta: %v", err)
	}

	return buildPage(op, meta, top, projectsMetaKeys, focus)
}

// buildPage validates the key set and page counters and pulls out the items.
func buildPage(op string, meta pageMeta, fields map[string]json.RawMessage, metaKeys map[string]bool, focus string) (Page, error) {
	if meta.Page == nil || meta.Pages == nil {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "missing page or pages")
	}

	var extra []string
	for key := range fields {
		if key != focus && !metaKeys[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "ambiguous envelope: unexpected keys %v besides %q", extra, focus)
	}

	rawItems, ok := fields[focus]
	if !ok {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "focus key %q not found", focus)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "focus key %q is not a list: %v", focus, err)
	}

	page := Page{Number: *meta.Page, Total: *meta.Pages, Items: items}

	// An empty collection may report zero pages.
	if page.Total == 0 && page.Number == 1 && len(items) == 0 {
		page.Total = 1
	}

	if page.Number < 1 || page.Number > page.Total {
		return Page{}, apperr.Errorf(apperr.ErrProtocol, op, "page %d outside 1..%d", page.Number, page.Total)
	}

	return page, nil
}

// String implements fmt.Stringer for debug output.
func (p Page) String() string {
	return fmt.Sprintf("page %d/%d (%d items)", p.Number, p.Total, len(p.Items))
}
