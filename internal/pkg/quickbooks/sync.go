package quickbooks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/invobee/invobee/app/models"
	"gorm.io/gorm"
)

// SyncService orchestrates exporting one invoice to the accounting system:
// resolve-or-create the remote customer, submit the invoice, record the
// attempt in the sync ledger and move the invoice's sync status. It is the
// only component that writes SyncRecords or transitions sync_status.
type SyncService struct {
	repo   Repository
	tokens *TokenManager
	client *Client

	mu       sync.Mutex
	inFlight map[uint]*sync.Mutex
}

// SyncResult is returned on a successful export.
type SyncResult struct {
	QuickBooksID string `json:"quickbooks_id"`
	Message      string `json:"message"`
}

func NewSyncService(repo Repository, tokens *TokenManager, client *Client) *SyncService {
	return &SyncService{
		repo:     repo,
		tokens:   tokens,
		client:   client,
		inFlight: make(map[uint]*sync.Mutex),
	}
}

// SyncInvoice exports the invoice scoped to (userID, invoiceID). At most one
// sync per invoice is in flight at a time; concurrent callers queue on a
// per-invoice lock and the second one short-circuits with ErrAlreadySynced
// once the first succeeds. Every attempt that reaches the remote path leaves
// exactly one ledger record, success or failure.
func (s *SyncService) SyncInvoice(ctx context.Context, userID, invoiceID uint) (*SyncResult, error) {
	unlock := s.lockInvoice(invoiceID)
	defer unlock()

	invoice, err := s.repo.GetInvoiceForUser(userID, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	if invoice.SyncStatus == models.SyncStatusSynced {
		return nil, ErrAlreadySynced
	}

	accessToken, err := s.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, s.fail(invoice, remoteErr(err, err.Error()))
	}

	customerID, err := s.ensureCustomer(ctx, accessToken, invoice.CustomerName)
	if err != nil {
		return nil, s.fail(invoice, remoteErr(err, err.Error()))
	}

	remoteID, err := s.client.CreateInvoice(ctx, accessToken, invoice, customerID)
	if err != nil {
		return nil, s.fail(invoice, remoteErr(err, err.Error()))
	}

	message := fmt.Sprintf("Invoice synced to QuickBooks with ID: %s", remoteID)
	s.recordOutcome(invoice, models.SyncOutcomeSuccess, models.SyncStatusSynced, message)

	return &SyncResult{
		QuickBooksID: remoteID,
		Message:      "Invoice synced successfully to QuickBooks",
	}, nil
}

// SyncHistory lists the user's ledger entries, newest first, joined with
// invoice summaries.
func (s *SyncService) SyncHistory(userID uint, page, limit int) ([]models.SyncRecord, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.repo.ListSyncHistory(userID, (page-1)*limit, limit)
}

// ensureCustomer resolves the remote customer by exact name, creating one
// when absent. Two concurrent syncs for a brand-new name can still race into
// duplicate remote customers; the remote system has no uniqueness constraint
// to lean on.
func (s *SyncService) ensureCustomer(ctx context.Context, accessToken, customerName string) (string, error) {
	customerID, err := s.client.FindCustomerByName(ctx, accessToken, customerName)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}
	return s.client.CreateCustomer(ctx, accessToken, customerName)
}

func (s *SyncService) fail(invoice *models.Invoice, rerr *RemoteError) error {
	s.recordOutcome(invoice, models.SyncOutcomeFailed, models.SyncStatusFailed, rerr.Detail)
	return rerr
}

// recordOutcome appends the ledger entry and then writes the matching sync
// status. Attempts are never silently dropped: persistence failures here are
// logged loudly because there is no caller that could retry them.
func (s *SyncService) recordOutcome(invoice *models.Invoice, outcome, status, message string) {
	if err := s.repo.AppendSyncRecord(&models.SyncRecord{
		UserID:    invoice.UserID,
		InvoiceID: invoice.ID,
		Status:    outcome,
		Message:   message,
	}); err != nil {
		log.Printf("sync ledger append failed for invoice %d: %v", invoice.ID, err)
	}
	if err := s.repo.UpdateInvoiceSyncStatus(invoice.ID, status); err != nil {
		log.Printf("sync status update failed for invoice %d: %v", invoice.ID, err)
	}
	invoice.SyncStatus = status
}

func (s *SyncService) lockInvoice(invoiceID uint) func() {
	s.mu.Lock()
	lock, ok := s.inFlight[invoiceID]
	if !ok {
		lock = &sync.Mutex{}
		s.inFlight[invoiceID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
