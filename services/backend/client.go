package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the HTTP client for the analytics backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. A zero timeout uses 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateCheckoutSession asks the backend for a subscription checkout URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	var out CheckoutResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/subscriptions/checkout-session", "", req, &out); err != nil {
		return nil, fmt.Errorf("backend.CreateCheckoutSession: %w", err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("backend.CreateCheckoutSession: response has no redirect url")
	}
	return &out, nil
}

// SetPassword activates the invited account identified by the verification token.
func (c *Client) SetPassword(ctx context.Context, verificationToken string, req SetPasswordRequest) (*SetPasswordResponse, error) {
	var out SetPasswordResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/set-password", verificationToken, req, &out); err != nil {
		return nil, fmt.Errorf("backend.SetPassword: %w", err)
	}
	return &out, nil
}

// Categories lists product categories.
func (c *Client) Categories(ctx context.Context) ([]RawRecord, error) {
	records, err := c.list(ctx, "/api/categories")
	if err != nil {
		return nil, fmt.Errorf("backend.Categories: %w", err)
	}
	return records, nil
}

// ExperienceLevels lists seller experience levels.
func (c *Client) ExperienceLevels(ctx context.Context) ([]RawRecord, error) {
	records, err := c.list(ctx, "/api/experience-levels")
	if err != nil {
		return nil, fmt.Errorf("backend.ExperienceLevels: %w", err)
	}
	return records, nil
}

// Countries lists marketplace countries.
func (c *Client) Countries(ctx context.Context) ([]RawRecord, error) {
	records, err := c.list(ctx, "/api/countries")
	if err != nil {
		return nil, fmt.Errorf("backend.Countries: %w", err)
	}
	return records, nil
}

// UpdateProfile saves the categories, experience level and country of the user.
func (c *Client) UpdateProfile(ctx context.Context, authToken string, req ProfileUpdateRequest) error {
	if err := c.doRequest(ctx, http.MethodPut, "/api/profile", authToken, req, nil); err != nil {
		return fmt.Errorf("backend.UpdateProfile: %w", err)
	}
	return nil
}

// list accepts both a bare array and an object wrapping the array in "data".
func (c *Client) list(ctx context.Context, path string) ([]RawRecord, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &raw); err != nil {
		return nil, err
	}
	var records []RawRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Data []RawRecord `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return wrapped.Data, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return &APIError{Status: resp.StatusCode}
		}
		return &APIError{Status: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts "message" or "error" from a JSON error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
