package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/finshield/finshield/internal/domain"
)

// RuleServiceClient calls the external rule/partner fraud service for a
// fraud probability in [0, 1].
type RuleServiceClient struct {
	baseURL string
	client  *http.Client
}

// NewRuleService creates a client for the given base URL.
func NewRuleService(baseURL string, timeout time.Duration) *RuleServiceClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RuleServiceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type ruleResponse struct {
	FraudProbability float64 `json:"fraud_probability"`
	RiskLevel        string  `json:"risk_level"`
}

// Score posts the transaction and returns the service's fraud
// probability. On any failure it returns the deterministic fallback
// along with the error.
func (c *RuleServiceClient) Score(ctx context.Context, tx *domain.Transaction) (float64, error) {
	body, _ := json.Marshal(tx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return RuleFallbackScore(tx), fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return RuleFallbackScore(tx), fmt.Errorf("rule service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RuleFallbackScore(tx), fmt.Errorf("rule service returned %d", resp.StatusCode)
	}

	var out ruleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RuleFallbackScore(tx), fmt.Errorf("decode score response: %w", err)
	}
	if out.FraudProbability < 0 || out.FraudProbability > 1 {
		return RuleFallbackScore(tx), fmt.Errorf("rule service probability out of range: %v", out.FraudProbability)
	}
	return out.FraudProbability, nil
}

// RuleFallbackScore is the deterministic stand-in for an unavailable
// rule service: an FNV-1a hash of the transaction identity mapped to
// [0, 1). Stable across restarts.
func RuleFallbackScore(tx *domain.Transaction) float64 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s|%.2f", tx.ID, tx.UserID, tx.Merchant, tx.Amount)
	return float64(h.Sum32()%100) / 100.0
}

// RuleRiskLevel buckets a fraud probability the way the partner service
// reports it.
func RuleRiskLevel(score float64) domain.RiskLevel {
	switch {
	case score > 0.7:
		return domain.RiskLevelHigh
	case score > 0.3:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}
