package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/invobee/invobee/app/models"
)

func testService(serverURL string) *Service {
	return &Service{
		AccountSID:         "AC123",
		AuthToken:          "token",
		FromNumber:         "+14155238886",
		APIBaseURL:         serverURL,
		DefaultCountryCode: "1",
		HTTPClient:         &http.Client{Timeout: 5 * time.Second},
	}
}

func TestFormatPhoneNumber(t *testing.T) {
	svc := testService("http://unused")

	tests := []struct {
		in   string
		want string
	}{
		{in: "5551234567", want: "+15551234567"},
		{in: "(555) 123-4567", want: "+15551234567"},
		{in: "+1 555 123 4567", want: "+15551234567"},
		{in: "15551234567", want: "+15551234567"},
		{in: "+49 170 1234567", want: "+491701234567"},
	}
	for _, tt := range tests {
		got, err := svc.FormatPhoneNumber(tt.in)
		if err != nil {
			t.Fatalf("FormatPhoneNumber(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("FormatPhoneNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPhoneNumber_NoDigits(t *testing.T) {
	svc := testService("http://unused")
	if _, err := svc.FormatPhoneNumber("call me"); err == nil {
		t.Fatal("expected error for number without digits")
	}
}

func TestFormatPhoneNumber_NoCountryCode(t *testing.T) {
	svc := testService("http://unused")
	svc.DefaultCountryCode = ""

	got, err := svc.FormatPhoneNumber("5551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+5551234567" {
		t.Fatalf("expected no prefixing without a country code, got %q", got)
	}
}

func TestInvoiceMessage(t *testing.T) {
	due := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	invoice := &models.Invoice{
		InvoiceNumber: "INV-100",
		CustomerName:  "Acme Corp",
		Total:         150,
		DueAt:         &due,
		SyncStatus:    models.SyncStatusPending,
	}

	msg := InvoiceMessage(invoice)
	for _, want := range []string{"*Invoice INV-100*", "Acme Corp", "$150.00", "07/15/2025", "_Sent via Invobee_"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestInvoiceMessage_NoDueDate(t *testing.T) {
	invoice := &models.Invoice{InvoiceNumber: "INV-100", CustomerName: "Acme Corp", Total: 99.5}
	if msg := InvoiceMessage(invoice); !strings.Contains(msg, "Not specified") {
		t.Fatalf("expected placeholder due date:\n%s", msg)
	}
}

func TestQuoteMessage(t *testing.T) {
	quote := &Quote{
		QuoteNumber:  "Q-200",
		CustomerName: "Acme Corp",
		Total:        499.99,
		CreatedAt:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	msg := QuoteMessage(quote)
	for _, want := range []string{"*Quote Q-200*", "Acme Corp", "$499.99", "07/01/2025", "valid for 30 days"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestReminderMessage(t *testing.T) {
	now := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	upcoming := now.Add(72 * time.Hour)
	past := now.Add(-72 * time.Hour)

	invoice := &models.Invoice{InvoiceNumber: "INV-100", CustomerName: "Acme Corp", Total: 150, DueAt: &upcoming}
	if msg := ReminderMessage(invoice, now); !strings.Contains(msg, "*Payment Reminder*") {
		t.Fatalf("expected reminder heading:\n%s", msg)
	}

	invoice.DueAt = &past
	msg := ReminderMessage(invoice, now)
	if !strings.Contains(msg, "*Payment Overdue*") || !strings.Contains(msg, "overdue") {
		t.Fatalf("expected overdue wording:\n%s", msg)
	}
}

func TestSendInvoiceMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "token" {
			t.Errorf("missing or wrong basic auth: %q/%q", user, pass)
		}
		if got := r.FormValue("From"); got != "whatsapp:+14155238886" {
			t.Errorf("From = %q", got)
		}
		if got := r.FormValue("To"); got != "whatsapp:+15551234567" {
			t.Errorf("To = %q", got)
		}
		if body := r.FormValue("Body"); !strings.Contains(body, "INV-100") {
			t.Errorf("Body missing invoice number: %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	svc := testService(srv.URL)
	invoice := &models.Invoice{InvoiceNumber: "INV-100", CustomerName: "Acme Corp", Total: 150}

	result, err := svc.SendInvoiceMessage(context.Background(), "(555) 123-4567", invoice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MessageID != "SM123" || result.Status != "queued" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSend_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"The 'To' number is not a valid phone number."}`))
	}))
	defer srv.Close()

	svc := testService(srv.URL)
	invoice := &models.Invoice{InvoiceNumber: "INV-100", CustomerName: "Acme Corp", Total: 150}

	_, err := svc.SendInvoiceMessage(context.Background(), "5551234567", invoice)
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !strings.Contains(deliveryErr.Detail, "not a valid phone number") {
		t.Fatalf("detail = %q", deliveryErr.Detail)
	}
}

func TestSend_InvalidNumberFailsBeforeRequest(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	svc := testService(srv.URL)
	invoice := &models.Invoice{InvoiceNumber: "INV-100", CustomerName: "Acme Corp", Total: 150}

	_, err := svc.SendInvoiceMessage(context.Background(), "no digits here", invoice)
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if hit {
		t.Fatal("gateway must not be called for an unusable number")
	}
}
