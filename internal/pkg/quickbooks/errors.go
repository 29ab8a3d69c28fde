package quickbooks

import "errors"

var (
	// ErrNotConnected means no stored credential exists for the user.
	ErrNotConnected = errors.New("QuickBooks integration not found. Please connect your QuickBooks account.")
	// ErrRefreshFailed means the refresh exchange was rejected; the stored
	// credential is left untouched.
	ErrRefreshFailed = errors.New("failed to refresh QuickBooks access token")
	// ErrInvoiceNotFound means the invoice does not exist or belongs to
	// another user.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrAlreadySynced short-circuits a sync for an invoice that is already
	// in the synced state; no ledger entry is written for it.
	ErrAlreadySynced = errors.New("invoice is already synced to QuickBooks")
)

// RemoteError wraps any downstream failure from the accounting system. The
// provider's detail message is preserved for operators; tokens never are.
type RemoteError struct {
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	return "quickbooks: " + e.Detail
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteErr(err error, detail string) *RemoteError {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &RemoteError{Detail: detail, Err: err}
}
