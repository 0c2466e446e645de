package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warp/billing-engine/billing"
)

// Client calls a billing server over HTTP. It implements
// billing.InvoiceCreator and billing.BreakupCreator so editing sessions can
// submit to a remote server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

var (
	_ billing.InvoiceCreator = (*Client)(nil)
	_ billing.BreakupCreator = (*Client)(nil)
)

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response. It unwraps to the billing sentinel its
// code names, so errors.Is works the same as in-process.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("billing api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("billing api: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return errorForCode(e.Code)
}

// CreateInvoice posts the unrounded totals to create-from-quotation.
func (c *Client) CreateInvoice(ctx context.Context, payload billing.CreateInvoicePayload) (billing.InvoiceRef, error) {
	req := CreateInvoiceRequest{
		QuotationID:   string(payload.QuotationID),
		TCSPercent:    payload.SurchargePercent,
		Subtotal:      payload.Subtotal.Value,
		TaxAmount:     payload.TaxAmount.Value,
		TCSAmount:     payload.SurchargeAmount.Value,
		TotalAmount:   payload.TotalAmount.Value,
		AdvanceAmount: payload.AdvanceAmount.Value,
	}

	var inv InvoiceDTO
	if err := c.do(ctx, http.MethodPost, "/api/invoices/create-from-quotation", req, &inv); err != nil {
		return billing.InvoiceRef{}, err
	}
	return billing.InvoiceRef{ID: billing.InvoiceID(inv.ID), InvoiceNumber: inv.InvoiceNumber}, nil
}

// CreatePaymentBreakup posts the installments of an invoice.
func (c *Client) CreatePaymentBreakup(ctx context.Context, invoiceID billing.InvoiceID, payload billing.CreateBreakupPayload) error {
	path := "/api/invoices/" + url.PathEscape(string(invoiceID)) + "/payment-breakup"
	return c.do(ctx, http.MethodPost, path, newBreakupRequest(payload), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error   string          `json:"error"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       body.Code,
		Message:    body.Error,
		Details:    body.Details,
	}
}
