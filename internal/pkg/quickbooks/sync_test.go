package quickbooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invobee/invobee/app/models"
)

type remoteState struct {
	mu            sync.Mutex
	customers     map[string]string
	nextCustomer  int
	invoiceID     string
	invoiceFault  string
	customerCalls int
	invoiceCalls  int
}

func newRemoteServer(t *testing.T, state *remoteState) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.Contains(r.URL.Path, "/query"):
			query := r.URL.Query().Get("query")
			for name, id := range state.customers {
				if strings.Contains(query, "'"+name+"'") {
					fmt.Fprintf(w, `{"QueryResponse":{"Customer":[{"Id":"%s","Name":"%s"}]}}`, id, name)
					return
				}
			}
			w.Write([]byte(`{"QueryResponse":{}}`))

		case strings.HasSuffix(r.URL.Path, "/customer"):
			state.customerCalls++
			state.nextCustomer++
			id := fmt.Sprintf("cust-%d", state.nextCustomer)
			fmt.Fprintf(w, `{"QueryResponse":{"Customer":[{"Id":"%s"}]}}`, id)

		case strings.HasSuffix(r.URL.Path, "/invoice"):
			state.invoiceCalls++
			if state.invoiceFault != "" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, `{"Fault":{"Error":[{"Message":"ValidationFault","Detail":"%s"}]}}`, state.invoiceFault)
				return
			}
			fmt.Fprintf(w, `{"QueryResponse":{"Invoice":[{"Id":"%s"}]}}`, state.invoiceID)

		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func connectedRepo(invoice *models.Invoice) *fakeRepo {
	repo := newFakeRepo()
	repo.integration = &models.Integration{
		ID:              1,
		UserID:          invoice.UserID,
		IntegrationName: models.IntegrationQuickBooks,
		AccessToken:     "access-token",
		RefreshToken:    "refresh-token",
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	repo.invoices[invoice.ID] = invoice
	return repo
}

func newSyncService(repo *fakeRepo, serverURL string) *SyncService {
	client := testClient(serverURL)
	return NewSyncService(repo, NewTokenManager(repo, client), client)
}

func TestSyncInvoice_CreatesCustomerAndInvoice(t *testing.T) {
	state := &remoteState{customers: map[string]string{}, invoiceID: "inv-77"}
	srv := newRemoteServer(t, state)
	defer srv.Close()

	invoice := &models.Invoice{
		ID:            10,
		UserID:        1,
		InvoiceNumber: "INV-100",
		CustomerName:  "Acme Corp",
		Total:         150,
		SyncStatus:    models.SyncStatusPending,
	}
	repo := connectedRepo(invoice)
	svc := newSyncService(repo, srv.URL)

	result, err := svc.SyncInvoice(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.QuickBooksID != "inv-77" {
		t.Fatalf("quickbooks id = %q", result.QuickBooksID)
	}
	if state.customerCalls != 1 {
		t.Fatalf("expected one customer create, got %d", state.customerCalls)
	}
	if invoice.SyncStatus != models.SyncStatusSynced {
		t.Fatalf("invoice status = %q", invoice.SyncStatus)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected one ledger record, got %d", len(repo.records))
	}
	record := repo.records[0]
	if record.Status != models.SyncOutcomeSuccess {
		t.Fatalf("record status = %q", record.Status)
	}
	if want := "Invoice synced to QuickBooks with ID: inv-77"; record.Message != want {
		t.Fatalf("record message = %q, want %q", record.Message, want)
	}
}

func TestSyncInvoice_ReusesExistingCustomer(t *testing.T) {
	state := &remoteState{customers: map[string]string{"Acme Corp": "cust-1"}, invoiceID: "inv-78"}
	srv := newRemoteServer(t, state)
	defer srv.Close()

	invoice := &models.Invoice{
		ID:            11,
		UserID:        1,
		InvoiceNumber: "INV-101",
		CustomerName:  "Acme Corp",
		Total:         99.5,
		SyncStatus:    models.SyncStatusPending,
	}
	svc := newSyncService(connectedRepo(invoice), srv.URL)

	if _, err := svc.SyncInvoice(context.Background(), 1, 11); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.customerCalls != 0 {
		t.Fatalf("expected no customer create for known customer, got %d", state.customerCalls)
	}
	if state.invoiceCalls != 1 {
		t.Fatalf("expected one invoice create, got %d", state.invoiceCalls)
	}
}

func TestSyncInvoice_AlreadySyncedWritesNoRecord(t *testing.T) {
	invoice := &models.Invoice{
		ID:           12,
		UserID:       1,
		CustomerName: "Acme Corp",
		SyncStatus:   models.SyncStatusSynced,
	}
	repo := connectedRepo(invoice)
	svc := newSyncService(repo, "http://unused")

	_, err := svc.SyncInvoice(context.Background(), 1, 12)
	if !errors.Is(err, ErrAlreadySynced) {
		t.Fatalf("expected ErrAlreadySynced, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatalf("already-synced short-circuit must not write a record, got %d", len(repo.records))
	}
}

func TestSyncInvoice_InvoiceNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newSyncService(repo, "http://unused")

	_, err := svc.SyncInvoice(context.Background(), 1, 99)
	if !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestSyncInvoice_OtherUsersInvoiceNotFound(t *testing.T) {
	invoice := &models.Invoice{ID: 13, UserID: 2, CustomerName: "Acme Corp", SyncStatus: models.SyncStatusPending}
	repo := connectedRepo(invoice)
	svc := newSyncService(repo, "http://unused")

	_, err := svc.SyncInvoice(context.Background(), 1, 13)
	if !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound for foreign invoice, got %v", err)
	}
}

func TestSyncInvoice_NotConnectedRecordsFailure(t *testing.T) {
	invoice := &models.Invoice{
		ID:           14,
		UserID:       1,
		CustomerName: "Acme Corp",
		SyncStatus:   models.SyncStatusPending,
	}
	repo := newFakeRepo()
	repo.invoices[invoice.ID] = invoice
	svc := newSyncService(repo, "http://unused")

	_, err := svc.SyncInvoice(context.Background(), 1, 14)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Detail != ErrNotConnected.Error() {
		t.Fatalf("detail = %q", remoteErr.Detail)
	}
	if invoice.SyncStatus != models.SyncStatusFailed {
		t.Fatalf("invoice status = %q", invoice.SyncStatus)
	}
	if len(repo.records) != 1 || repo.records[0].Status != models.SyncOutcomeFailed {
		t.Fatalf("expected one failed ledger record, got %+v", repo.records)
	}
	if repo.records[0].Message != ErrNotConnected.Error() {
		t.Fatalf("record message = %q", repo.records[0].Message)
	}
}

func TestSyncInvoice_RemoteFaultRecordsFailure(t *testing.T) {
	state := &remoteState{customers: map[string]string{"Acme Corp": "cust-1"}, invoiceFault: "Duplicate Document Number Error"}
	srv := newRemoteServer(t, state)
	defer srv.Close()

	invoice := &models.Invoice{
		ID:            15,
		UserID:        1,
		InvoiceNumber: "INV-102",
		CustomerName:  "Acme Corp",
		Total:         10,
		SyncStatus:    models.SyncStatusPending,
	}
	repo := connectedRepo(invoice)
	svc := newSyncService(repo, srv.URL)

	_, err := svc.SyncInvoice(context.Background(), 1, 15)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if !strings.Contains(remoteErr.Detail, "Duplicate Document Number") {
		t.Fatalf("detail = %q", remoteErr.Detail)
	}
	if invoice.SyncStatus != models.SyncStatusFailed {
		t.Fatalf("invoice status = %q", invoice.SyncStatus)
	}
	if len(repo.records) != 1 || repo.records[0].Status != models.SyncOutcomeFailed {
		t.Fatalf("expected one failed ledger record, got %+v", repo.records)
	}
}

func TestSyncHistory_NormalizesPaging(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 3; i++ {
		repo.records = append(repo.records, &models.SyncRecord{UserID: 1, InvoiceID: uint(i + 1), Status: models.SyncOutcomeSuccess})
	}
	svc := newSyncService(repo, "http://unused")

	records, err := svc.SyncHistory(1, 0, -5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records with normalized paging, got %d", len(records))
	}
}
