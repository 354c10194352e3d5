/**
 * @description
 * This package provides a client for the mobile-money payment gateway. It
 * encapsulates authenticated HTTP requests for initiating wallet charges and
 * querying the status of a previously issued payment reference.
 *
 * A gateway "business" rejection (insufficient funds, wrong PIN) comes back
 * as a typed *BusinessError so callers can distinguish it from transport
 * failures, which stay ordinary errors.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, log, net/http, time: Standard Go libraries.
 */
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the mobile-money gateway API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new gateway client with a bounded request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ChargeRequest is the payload for initiating a wallet charge.
type ChargeRequest struct {
	Reference string `json:"reference"`
	Phone     string `json:"phone"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"` // centavos
}

// ChargeResponse is the gateway's synchronous answer to a charge attempt.
// Status carries the gateway's own vocabulary; callers normalize it.
type ChargeResponse struct {
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

// StatusResponse is the answer to a status query for an existing reference.
type StatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// BusinessError is a definitive gateway-side rejection of a charge, as
// opposed to a transport or availability failure.
type BusinessError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("gateway rejected charge: %s - %s", e.Code, e.Message)
}

// Charge asks the gateway to debit the customer's wallet. The customer
// confirms on their handset, so a pending status here is the common case and
// the webhook settles the outcome later.
func (c *Client) Charge(ctx context.Context, chargeReq ChargeRequest) (*ChargeResponse, error) {
	body, err := json.Marshal(chargeReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/charges", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create charge request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute charge request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read charge response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusPaymentRequired {
		var bizErr BusinessError
		if err := json.Unmarshal(bodyBytes, &bizErr); err != nil {
			return nil, fmt.Errorf("failed to decode rejection response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=gateway_client op=charge reference=%s status=%d code=%q msg=%q", chargeReq.Reference, resp.StatusCode, bizErr.Code, bizErr.Message)
		return nil, &bizErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=gateway_client op=charge reference=%s status=%d msg=\"non-2xx response\"", chargeReq.Reference, resp.StatusCode)
		return nil, fmt.Errorf("gateway charge request failed with status %d", resp.StatusCode)
	}

	var chargeResp ChargeResponse
	if err := json.Unmarshal(bodyBytes, &chargeResp); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}

	return &chargeResp, nil
}

// QueryStatus fetches the gateway's current view of a payment reference.
func (c *Client) QueryStatus(ctx context.Context, reference string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/v1/charges/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute status request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=gateway_client op=query_status reference=%s status=%d msg=\"non-2xx response\"", reference, resp.StatusCode)
		return nil, fmt.Errorf("gateway status request failed with status %d", resp.StatusCode)
	}

	var statusResp StatusResponse
	if err := json.Unmarshal(bodyBytes, &statusResp); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &statusResp, nil
}
