package domain

import (
	"time"
)

// RiskProfile is the proxy label attached to historical transactions.
// It stands in for verified fraud outcomes during training.
type RiskProfile string

const (
	RiskProfileNormal     RiskProfile = "normal"
	RiskProfileSuspicious RiskProfile = "suspicious"
	RiskProfileFraudulent RiskProfile = "fraudulent"
)

// Label maps a risk profile to its class index for training.
// Unknown profiles map to the normal class.
func (p RiskProfile) Label() int {
	switch p {
	case RiskProfileSuspicious:
		return 1
	case RiskProfileFraudulent:
		return 2
	default:
		return 0
	}
}

// Transaction represents an incoming transaction to be scored.
// RiskProfile is only present on historical records used for training;
// it is empty at inference time.
type Transaction struct {
	ID         string  `json:"id"`
	Amount     float64 `json:"amount"`
	Merchant   string  `json:"merchant"`
	Location   string  `json:"location"`
	UserID     string  `json:"user_id"`
	DeviceInfo string  `json:"device_info"`
	IPAddress  string  `json:"ip_address"`

	// Timestamp is kept as the raw ISO-8601 string from the producer.
	// Feature extraction tolerates malformed values.
	Timestamp string `json:"timestamp"`

	RiskProfile RiskProfile `json:"risk_profile,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// TransactionRequest is the API request payload for scoring.
type TransactionRequest struct {
	ID         string  `json:"id,omitempty"`
	Amount     float64 `json:"amount"`
	Merchant   string  `json:"merchant"`
	Location   string  `json:"location"`
	UserID     string  `json:"user_id"`
	DeviceInfo string  `json:"device_info,omitempty"`
	IPAddress  string  `json:"ip_address,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction() *Transaction {
	ts := r.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	return &Transaction{
		ID:         r.ID,
		Amount:     r.Amount,
		Merchant:   r.Merchant,
		Location:   r.Location,
		UserID:     r.UserID,
		DeviceInfo: r.DeviceInfo,
		IPAddress:  r.IPAddress,
		Timestamp:  ts,
		CreatedAt:  time.Now().UTC(),
	}
}

// Text renders the transaction as a single line for the text classifier.
func (t *Transaction) Text() string {
	return t.Merchant + " " + t.Location + " " + t.DeviceInfo
}
