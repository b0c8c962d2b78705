package casereport

import "context"

// PostSubmitListener is notified synchronously after a case report has been
// durably submitted. Implementations no-op on normal skip conditions (e.g.
// nothing configured to deliver to) instead of returning an error.
type PostSubmitListener interface {
	AfterSubmit(ctx context.Context, form *CaseReportForm) error
}

// NoopListener discards submissions.
type NoopListener struct{}

func (NoopListener) AfterSubmit(context.Context, *CaseReportForm) error { return nil }
