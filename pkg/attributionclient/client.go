/**
 * @description
 * This package provides a client for the marketing attribution pipeline. When
 * a primary sale is approved, its captured UTM parameters are forwarded once
 * so ad-platform conversion tracking can close the loop.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package attributionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a client for the attribution pipeline's ingest API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new attribution pipeline client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Conversion is the payload forwarded for an approved primary sale.
type Conversion struct {
	SaleID      string  `json:"sale_id"`
	Amount      int64   `json:"amount"` // centavos
	UTMSource   *string `json:"utm_source,omitempty"`
	UTMMedium   *string `json:"utm_medium,omitempty"`
	UTMCampaign *string `json:"utm_campaign,omitempty"`
	UTMContent  *string `json:"utm_content,omitempty"`
	UTMTerm     *string `json:"utm_term,omitempty"`
	Src         *string `json:"src,omitempty"`
	Sck         *string `json:"sck,omitempty"`
	IP          *string `json:"ip,omitempty"`
}

// Forward sends a conversion event to the attribution pipeline.
func (c *Client) Forward(ctx context.Context, conversion Conversion) error {
	body, err := json.Marshal(conversion)
	if err != nil {
		return fmt.Errorf("failed to marshal conversion: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/conversions", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create conversion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute conversion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("attribution pipeline returned status %d", resp.StatusCode)
	}
	return nil
}
