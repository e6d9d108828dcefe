package freshbooks

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/Sternrassler/freshbooks-report/pkg/pagination"
)

// Focus keys of the collections read by the report.
const (
	FocusInvoices = "invoices"
	FocusPayments = "payments"
	FocusProjects = "projects"
)

// InvoicesPath returns the invoice collection path of an account.
func InvoicesPath(accountID string) string {
	return fmt.Sprintf("/accounting/account/%s/invoices/invoices", url.PathEscape(accountID))
}

// PaymentsPath returns the payment collection path of an account.
func PaymentsPath(accountID string) string {
	return fmt.Sprintf("/accounting/account/%s/payments/payments", url.PathEscape(accountID))
}

// ProjectsPath returns the project collection path of a business.
func ProjectsPath(businessID string) string {
	return fmt.Sprintf("/projects/business/%s/projects", url.PathEscape(businessID))
}

// Service reads FreshBooks collections for one account and business.
type Service struct {
	fetcher    pagination.Fetcher
	accountID  string
	businessID string
}

// NewService creates a service reading through fetcher.
func NewService(fetcher pagination.Fetcher, accountID, businessID string) *Service {
	return &Service{
		fetcher:    fetcher,
		accountID:  accountID,
		businessID: businessID,
	}
}

// Invoices returns every invoice of the account, in server order.
func (s *Service) Invoices(ctx context.Context) iter.Seq2[Invoice, error] {
	return pagination.Paginate[Invoice](ctx, s.fetcher, pagination.Accounting, InvoicesPath(s.accountID), FocusInvoices)
}

// Payments returns every payment of the account, in server order.
func (s *Service) Payments(ctx context.Context) iter.Seq2[Payment, error] {
	return pagination.Paginate[Payment](ctx, s.fetcher, pagination.Accounting, PaymentsPath(s.accountID), FocusPayments)
}

// Projects returns every project of the business, in server order.
func (s *Service) Projects(ctx context.Context) iter.Seq2[Project, error] {
	if s.businessID == "" {
		return func(yield func(Project, error) bool) {
			yield(Project{}, fmt.Errorf("business id is required to list projects"))
		}
	}
	return pagination.Paginate[Project](ctx, s.fetcher, pagination.Projects, ProjectsPath(s.businessID), FocusProjects)
}
