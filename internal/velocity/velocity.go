// Package velocity provides transaction velocity calculation.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/rules"
)

// Service counts a user's recent transactions. The count feeds the
// velocity_count variable of the rule engine.
type Service struct {
	store domain.Store
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(store domain.Store, cache domain.Cache) *Service {
	return &Service{
		store: store,
		cache: cache,
	}
}

// GetTransactionCount returns the number of transactions for a user
// within a time window.
func (s *Service) GetTransactionCount(ctx context.Context, userID string, windowSecs int) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID is required")
	}

	if s.store == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	count, err := s.store.CountByUser(ctx, userID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// Observe bumps the rolling counter for a user. The counter gives a
// cheap per-window signal without a database round trip.
func (s *Service) Observe(ctx context.Context, userID string, windowSecs int) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	window := time.Duration(windowSecs) * time.Second
	return s.cache.IncrementCounter(ctx, "velocity:"+userID, window)
}

// Getter returns a VelocityGetter function for the rule engine.
func (s *Service) Getter() rules.VelocityGetter {
	return s.GetTransactionCount
}
