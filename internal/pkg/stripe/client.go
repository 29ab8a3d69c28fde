package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/invobee/invobee/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.stripe.com/v1"

// Subscription price for the paid plan, in minor currency units.
const proPlanUnitAmount = 2900

// Client talks to the Stripe-style payments API. Configuration is fixed at
// construction; the only mutable state is the injected HTTP client.
type Client struct {
	SecretKey  string
	APIBaseURL string
	SuccessURL string
	CancelURL  string

	HTTPClient *http.Client
}

// CheckoutSession is the hosted payment page handed to the browser.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Subscription mirrors the provider's subscription object, reduced to the
// fields reconciliation needs.
type Subscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

type customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type customerList struct {
	Data []customer `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClientFromEnv() *Client {
	clientURL := strings.TrimRight(env.GetEnv("CLIENT_URL", "http://localhost:3000"), "/")
	return &Client{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultAPIBaseURL)),
		SuccessURL: clientURL + "/dashboard?success=true",
		CancelURL:  clientURL + "/subscription?canceled=true",
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession builds a hosted checkout session for the monthly
// paid plan, reusing the customer record when one exists for the email.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID uint, email string) (*CheckoutSession, error) {
	customerID, err := c.GetOrCreateCustomer(ctx, userID, email)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("mode", "subscription")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][product_data][name]", "Invobee Pro")
	form.Set("line_items[0][price_data][product_data][description]", "Unlimited invoices, QuickBooks sync, and premium features")
	form.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(proPlanUnitAmount))
	form.Set("line_items[0][price_data][recurring][interval]", "month")
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("metadata[userId]", strconv.FormatUint(uint64(userID), 10))

	var session CheckoutSession
	if err := c.postForm(ctx, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetOrCreateCustomer resolves the provider customer for the email, creating
// one tagged with the local user id when none exists.
func (c *Client) GetOrCreateCustomer(ctx context.Context, userID uint, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("email is required")
	}

	q := url.Values{}
	q.Set("email", email)
	q.Set("limit", "1")

	var list customerList
	if err := c.get(ctx, "/customers?"+q.Encode(), &list); err != nil {
		return "", err
	}
	if len(list.Data) > 0 {
		return list.Data[0].ID, nil
	}

	form := url.Values{}
	form.Set("email", email)
	form.Set("metadata[userId]", strconv.FormatUint(uint64(userID), 10))

	var created customer
	if err := c.postForm(ctx, "/customers", form, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// RetrieveSubscription fetches the current subscription state by id.
func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, errors.New("subscription id is required")
	}
	var sub Subscription
	if err := c.get(ctx, "/subscriptions/"+url.PathEscape(subscriptionID), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelAtPeriodEnd flags the subscription to end at the close of the
// current billing period instead of immediately.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	if strings.TrimSpace(subscriptionID) == "" {
		return errors.New("subscription id is required")
	}
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")
	return c.postForm(ctx, "/subscriptions/"+url.PathEscape(subscriptionID), form, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.SecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return errors.New(apiErr.Error.Message)
		}
		return fmt.Errorf("stripe request failed: status=%d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
