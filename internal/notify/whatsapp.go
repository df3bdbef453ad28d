// Package notify implements the outbound messaging boundary. The only
// production implementation is an HTTP client for a WhatsApp-style gateway.
// The dispatcher never retries: a failed send is logged by the runner and the
// customer becomes eligible again on the next pass if their condition holds.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/murillocortez/klyver-engine/internal/config"
	"github.com/murillocortez/klyver-engine/internal/pkg/logger"
)

// GatewayClient is a WhatsApp gateway API client.
type GatewayClient struct {
	baseURL       string
	apiKey        string
	countryPrefix string
	httpClient    *http.Client
}

// NewGatewayClient creates a gateway client. The per-send timeout comes from
// config; there is deliberately no retry wrapper here.
func NewGatewayClient(cfg config.WhatsAppConfig) *GatewayClient {
	return &GatewayClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		countryPrefix: cfg.CountryPrefix,
		httpClient:    &http.Client{Timeout: cfg.Timeout()},
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send delivers one message to one phone number. The number is normalized to
// digits with the country prefix before hitting the gateway.
func (c *GatewayClient) Send(ctx context.Context, phone, message string) error {
	normalized := NormalizePhone(phone, c.countryPrefix)
	if normalized == "" {
		return fmt.Errorf("invalid phone number %q", phone)
	}

	payload, err := json.Marshal(sendRequest{Phone: normalized, Message: message})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(body))
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		// Some gateways answer 200 with a non-JSON body; treat 2xx as sent.
		return nil
	}
	if !out.Success && out.Error != "" {
		return fmt.Errorf("gateway rejected message: %s", out.Error)
	}
	logger.Debug("message dispatched", "phone", normalized)
	return nil
}

// NormalizePhone strips formatting down to digits and prefixes the country
// code when the number looks local (10-11 digits, Brazilian convention).
// Returns "" when too few digits remain to be a phone number.
func NormalizePhone(raw, countryPrefix string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return ""
	}
	if len(digits) == 10 || len(digits) == 11 {
		return countryPrefix + digits
	}
	return digits
}
