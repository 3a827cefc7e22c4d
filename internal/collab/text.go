// Package collab implements HTTP clients for the external scoring
// collaborators: the text classifier, the rule/partner fraud service,
// and the alert sink. Every client degrades to a stated default on
// failure so the blender never depends on collaborator uptime.
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

const defaultTimeout = 5 * time.Second

// TextClassifierClient calls the external text-classification service.
type TextClassifierClient struct {
	baseURL string
	client  *http.Client
}

// NewTextClassifier creates a client for the given base URL.
func NewTextClassifier(baseURL string, timeout time.Duration) *TextClassifierClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TextClassifierClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify posts the transaction text and returns the 3-way vector.
// Any transport or decode failure returns the uniform default along
// with the error, so callers can log and keep scoring.
func (c *TextClassifierClient) Classify(ctx context.Context, text string) (domain.RiskScores, error) {
	body, _ := json.Marshal(classifyRequest{Text: text})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return domain.UniformScores(), fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.UniformScores(), fmt.Errorf("text classifier unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.UniformScores(), fmt.Errorf("text classifier returned %d", resp.StatusCode)
	}

	var scores domain.RiskScores
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return domain.UniformScores(), fmt.Errorf("decode classify response: %w", err)
	}
	return scores, nil
}

// UniformTextClassifier always answers the uniform default. Used when
// no classifier endpoint is configured.
type UniformTextClassifier struct{}

func (UniformTextClassifier) Classify(ctx context.Context, text string) (domain.RiskScores, error) {
	return domain.UniformScores(), nil
}
