package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/finshield/finshield/internal/domain"
)

// AlertClient posts blocked transactions to the alert service.
type AlertClient struct {
	baseURL string
	client  *http.Client
}

// NewAlertSink creates a client for the given base URL.
func NewAlertSink(baseURL string, timeout time.Duration) *AlertClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AlertClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Alert delivers the blocked transaction and its verdict. Callers
// invoke it fire-and-forget; the error is for logging only.
func (c *AlertClient) Alert(ctx context.Context, tx *domain.Transaction, p *domain.Prediction) error {
	body, _ := json.Marshal(domain.Alert{Transaction: tx, Prediction: p})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/alerts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert service returned %d", resp.StatusCode)
	}
	return nil
}

// NopAlertSink discards alerts. Used when no alert endpoint is
// configured.
type NopAlertSink struct{}

func (NopAlertSink) Alert(ctx context.Context, tx *domain.Transaction, p *domain.Prediction) error {
	return nil
}
