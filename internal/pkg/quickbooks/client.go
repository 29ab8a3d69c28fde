package quickbooks

import (
	"bytes"
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

const (
	defaultAPIBaseURL = "https://sandbox-quickbooks.api.intuit.com"
	defaultTokenURL   = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
)

// Client talks to the QuickBooks-style accounting API. All state is
// constructor-time configuration plus an injected HTTP client.
type Client struct {
	ClientID     string
	ClientSecret string
	CompanyID    string

	APIBaseURL string
	TokenURL   string

	HTTPClient *http.Client
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type entityRef struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type queryResponse struct {
	QueryResponse struct {
		Customer []entityRef `json:"Customer"`
		Invoice  []entityRef `json:"Invoice"`
	} `json:"QueryResponse"`
}

type faultResponse struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
		} `json:"Error"`
	} `json:"Fault"`
}

func NewClientFromEnv() *Client {
	return &Client{
		ClientID:     strings.TrimSpace(env.GetEnv("QUICKBOOKS_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("QUICKBOOKS_CLIENT_SECRET", "")),
		CompanyID:    strings.TrimSpace(env.GetEnv("QUICKBOOKS_COMPANY_ID", "")),
		APIBaseURL:   strings.TrimSpace(env.GetEnv("QUICKBOOKS_API_BASE_URL", defaultAPIBaseURL)),
		TokenURL:     strings.TrimSpace(env.GetEnv("QUICKBOOKS_TOKEN_URL", defaultTokenURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// RefreshToken performs the refresh exchange against the provider's token
// endpoint using Basic auth of client id/secret.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, errors.New("QUICKBOOKS_CLIENT_ID/QUICKBOOKS_CLIENT_SECRET are not configured")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(refreshToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token refresh failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("token refresh returned empty access_token")
	}
	return &out, nil
}

// FindCustomerByName queries the remote system for a customer with the exact
// given name. Returns an empty id when none exists.
func (c *Client) FindCustomerByName(ctx context.Context, accessToken, name string) (string, error) {
	query := fmt.Sprintf("SELECT * FROM Customer WHERE Name = '%s'", strings.ReplaceAll(name, "'", "\\'"))
	u := fmt.Sprintf("%s/v3/company/%s/query?query=%s", strings.TrimRight(c.APIBaseURL, "/"), c.CompanyID, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	var out queryResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if len(out.QueryResponse.Customer) == 0 {
		return "", nil
	}
	return out.QueryResponse.Customer[0].ID, nil
}

// CreateCustomer creates a customer with the given name and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, accessToken, name string) (string, error) {
	payload := map[string]string{
		"Name":        name,
		"CompanyName": name,
	}
	var out queryResponse
	if err := c.postJSON(ctx, accessToken, "customer", payload, &out); err != nil {
		return "", err
	}
	if len(out.QueryResponse.Customer) == 0 {
		return "", errors.New("customer create returned no customer")
	}
	return out.QueryResponse.Customer[0].ID, nil
}

// CreateInvoice submits the invoice payload and returns the remote invoice id.
func (c *Client) CreateInvoice(ctx context.Context, accessToken string, invoice *models.Invoice, customerID string) (string, error) {
	line := map[string]interface{}{
		"Amount":     invoice.Total,
		"DetailType": "SalesItemLineDetail",
		"SalesItemLineDetail": map[string]interface{}{
			"ItemRef": map[string]string{
				"value": "1",
				"name":  "Services",
			},
		},
	}
	payload := map[string]interface{}{
		"Line":        []interface{}{line},
		"CustomerRef": map[string]string{"value": customerID},
		"DocNumber":   invoice.InvoiceNumber,
	}
	if invoice.DueAt != nil {
		payload["DueDate"] = invoice.DueAt.UTC().Format("2006-01-02")
	}

	var out queryResponse
	if err := c.postJSON(ctx, accessToken, "invoice", payload, &out); err != nil {
		return "", err
	}
	if len(out.QueryResponse.Invoice) == 0 {
		return "", errors.New("invoice create returned no invoice")
	}
	return out.QueryResponse.Invoice[0].ID, nil
}

func (c *Client) postJSON(ctx context.Context, accessToken, resource string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/v3/company/%s/%s", strings.TrimRight(c.APIBaseURL, "/"), c.CompanyID, resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if detail := faultDetail(body); detail != "" {
			return errors.New(detail)
		}
		return fmt.Errorf("quickbooks request failed: status=%d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// faultDetail extracts the provider's detail message from an error response.
func faultDetail(body []byte) string {
	var f faultResponse
	if err := json.Unmarshal(body, &f); err != nil {
		return ""
	}
	if len(f.Fault.Error) == 0 {
		return ""
	}
	if d := strings.TrimSpace(f.Fault.Error[0].Detail); d != "" {
		return d
	}
	return strings.TrimSpace(f.Fault.Error[0].Message)
}
