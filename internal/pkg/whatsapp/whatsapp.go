package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/invobee/invobee/app/models"
	"github.com/invobee/invobee/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.twilio.com"

// Service sends WhatsApp messages through the messaging gateway. Stateless
// aside from construction-time configuration and the injected HTTP client.
type Service struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	APIBaseURL string

	// Country code prepended to bare 10-digit numbers. Locale-specific,
	// hence configurable rather than hardwired.
	DefaultCountryCode string

	HTTPClient *http.Client
}

// SendResult carries the gateway's message id and delivery status.
type SendResult struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// DeliveryError wraps a gateway failure. The caller decides whether to
// surface it to the end user; there is no retry.
type DeliveryError struct {
	Detail string
	Err    error
}

func (e *DeliveryError) Error() string {
	return "whatsapp delivery failed: " + e.Detail
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type gatewayError struct {
	Message string `json:"message"`
}

func NewServiceFromEnv() *Service {
	return &Service{
		AccountSID:         strings.TrimSpace(env.GetEnv("WHATSAPP_ACCOUNT_SID", "")),
		AuthToken:          strings.TrimSpace(env.GetEnv("WHATSAPP_AUTH_TOKEN", "")),
		FromNumber:         strings.TrimSpace(env.GetEnv("WHATSAPP_FROM_NUMBER", "+14155238886")),
		APIBaseURL:         strings.TrimSpace(env.GetEnv("WHATSAPP_API_BASE_URL", defaultAPIBaseURL)),
		DefaultCountryCode: strings.TrimSpace(env.GetEnv("WHATSAPP_DEFAULT_COUNTRY_CODE", "1")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendInvoiceMessage renders the invoice template and transmits it to the
// given phone number.
func (s *Service) SendInvoiceMessage(ctx context.Context, phoneNumber string, invoice *models.Invoice) (*SendResult, error) {
	return s.send(ctx, phoneNumber, InvoiceMessage(invoice))
}

// SendPaymentReminder renders the reminder template, switching wording when
// the invoice is overdue.
func (s *Service) SendPaymentReminder(ctx context.Context, phoneNumber string, invoice *models.Invoice) (*SendResult, error) {
	return s.send(ctx, phoneNumber, ReminderMessage(invoice, time.Now()))
}

// Quote is the subset of a draft quote a message needs. Quotes live outside
// the sync core, so the dispatcher takes the fields directly instead of a
// model.
type Quote struct {
	QuoteNumber  string
	CustomerName string
	Total        float64
	CreatedAt    time.Time
}

// SendQuote renders the quote template and transmits it.
func (s *Service) SendQuote(ctx context.Context, phoneNumber string, quote *Quote) (*SendResult, error) {
	return s.send(ctx, phoneNumber, QuoteMessage(quote))
}

func (s *Service) send(ctx context.Context, phoneNumber, body string) (*SendResult, error) {
	to, err := s.FormatPhoneNumber(phoneNumber)
	if err != nil {
		return nil, &DeliveryError{Detail: err.Error(), Err: err}
	}

	form := url.Values{}
	form.Set("From", "whatsapp:"+s.FromNumber)
	form.Set("To", "whatsapp:"+to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(s.APIBaseURL, "/"), s.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &DeliveryError{Detail: err.Error(), Err: err}
	}
	req.SetBasicAuth(s.AccountSID, s.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		var gwErr gatewayError
		if json.Unmarshal(raw, &gwErr) == nil && gwErr.Message != "" {
			detail = gwErr.Message
		}
		return nil, &DeliveryError{Detail: detail}
	}

	var out messageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &DeliveryError{Detail: err.Error(), Err: err}
	}
	return &SendResult{MessageID: out.SID, Status: out.Status}, nil
}

// FormatPhoneNumber normalizes a destination to E.164-like form: strip
// everything but digits, prepend the default country code only when the
// input is exactly 10 digits without one, and prefix "+".
func (s *Service) FormatPhoneNumber(phoneNumber string) (string, error) {
	var digits strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cleaned := digits.String()
	if cleaned == "" {
		return "", errors.New("phone number has no digits")
	}

	cc := s.DefaultCountryCode
	if cc != "" && len(cleaned) == 10 && !strings.HasPrefix(cleaned, cc) {
		cleaned = cc + cleaned
	}
	return "+" + cleaned, nil
}

// QuoteMessage renders the fixed quote template.
func QuoteMessage(quote *Quote) string {
	return fmt.Sprintf(`*Quote %s*

*Customer:* %s
*Amount:* $%.2f
*Created:* %s

This quote is valid for 30 days.

_Sent via Invobee_`,
		quote.QuoteNumber,
		quote.CustomerName,
		quote.Total,
		quote.CreatedAt.Format("01/02/2006"),
	)
}

// InvoiceMessage renders the fixed invoice template.
func InvoiceMessage(invoice *models.Invoice) string {
	return fmt.Sprintf(`*Invoice %s*

*Customer:* %s
*Amount:* $%.2f
*Due Date:* %s
*Status:* %s

Thank you for your business!

_Sent via Invobee_`,
		invoice.InvoiceNumber,
		invoice.CustomerName,
		invoice.Total,
		formatDueDate(invoice.DueAt),
		invoice.SyncStatus,
	)
}

// ReminderMessage renders the payment reminder template relative to now.
func ReminderMessage(invoice *models.Invoice, now time.Time) string {
	heading := "Reminder"
	note := "Friendly reminder that this payment is due soon."
	if invoice.DueAt != nil && invoice.DueAt.Before(now) {
		heading = "Overdue"
		note = "This payment is overdue. Please settle as soon as possible."
	}

	return fmt.Sprintf(`*Payment %s*

*Invoice:* %s
*Customer:* %s
*Amount:* $%.2f
*Due Date:* %s

%s

Thank you for your prompt attention.

_Sent via Invobee_`,
		heading,
		invoice.InvoiceNumber,
		invoice.CustomerName,
		invoice.Total,
		formatDueDate(invoice.DueAt),
		note,
	)
}

func formatDueDate(dueAt *time.Time) string {
	if dueAt == nil {
		return "Not specified"
	}
	return dueAt.Format("01/02/2006")
}
