/**
 * @description
 * This package provides a client for the internal notification service, which
 * owns customer-facing delivery (transactional email and WhatsApp). The
 * checkout-service calls it for order confirmations after an approved payment
 * and for re-engagement messages when draining the remarketing queue.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package notifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a client for the notification service's internal API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new notification service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// OrderConfirmation is the payload for a post-purchase confirmation message.
type OrderConfirmation struct {
	SaleID        string `json:"sale_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
	ProductName   string `json:"product_name"`
	Amount        int64  `json:"amount"` // centavos
}

// Reengagement is the payload for a remarketing message about an abandoned
// checkout.
type Reengagement struct {
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	ProductName   string `json:"product_name"`
	CheckoutLink  string `json:"checkout_link"`
}

// SendOrderConfirmation asks the notification service to deliver a purchase
// confirmation to the customer.
func (c *Client) SendOrderConfirmation(ctx context.Context, confirmation OrderConfirmation) error {
	return c.post(ctx, "/internal/notifications/order-confirmation", confirmation)
}

// SendReengagementEmail delivers a remarketing message over email.
func (c *Client) SendReengagementEmail(ctx context.Context, msg Reengagement) error {
	return c.post(ctx, "/internal/notifications/reengagement/email", msg)
}

// SendReengagementWhatsApp delivers a remarketing message over WhatsApp.
func (c *Client) SendReengagementWhatsApp(ctx context.Context, msg Reengagement) error {
	return c.post(ctx, "/internal/notifications/reengagement/whatsapp", msg)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-API-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute notification request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned status %d for %s", resp.StatusCode, path)
	}
	return nil
}
