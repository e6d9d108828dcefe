// Package pagination walks paginated FreshBooks collections one page at a time.
//
// FreshBooks uses two envelope shapes. Accounting endpoints (invoices,
// payments) nest page metadata and the item list under response.result:
//
//	{"response": {"result": {"page": 1, "pages": 3, "per_page": 15, "total": 40,
//	                         "invoices": [...]}}}
//
// Project endpoints keep the metadata under a top-level meta key:
//
//	{"meta": {"page": 1, "pages": 2, "per_page": 15, "total": 20}, "projects": [...]}
//
// Each envelope carries exactly one item list, the focus key, next to its
// fixed metadata keys. Callers name the focus key; any other unknown key makes
// the envelope ambiguous and is rejected.
//
// Example usage:
//
//	invoices := pagination.Paginate[freshbooks.Invoice](ctx, client, pagination.Accounting,
//		"/accounting/account/abc123/invoices/invoices", "invoices")
//	for invoice, err := range invoices {
//		if err != nil {
//			return err
//		}
//		...
//	}
//
// The first page is requested without a page parameter. Every following page
// is requested as page=N and the envelope must report page N back. Pages are
// fetched only when the consumer reaches them; nothing is read ahead.
package pagination
