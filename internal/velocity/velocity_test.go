package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/finshield/finshield/internal/cache"
	"github.com/finshield/finshield/internal/domain"
)

type countingStore struct {
	domain.Store

	count     int64
	lastUser  string
	lastSince time.Time
}

func (c *countingStore) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	c.lastUser = userID
	c.lastSince = since
	return c.count, nil
}

func TestGetTransactionCount(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{count: 7}
	svc := NewService(store, nil)

	count, err := svc.GetTransactionCount(ctx, "user_1", 3600)
	if err != nil {
		t.Fatalf("GetTransactionCount failed: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
	if store.lastUser != "user_1" {
		t.Errorf("queried user %s, want user_1", store.lastUser)
	}

	// The window should start roughly an hour ago.
	elapsed := time.Since(store.lastSince)
	if elapsed < 59*time.Minute || elapsed > 61*time.Minute {
		t.Errorf("window start %v ago, want ~1h", elapsed)
	}
}

func TestGetTransactionCountRequiresUser(t *testing.T) {
	svc := NewService(&countingStore{}, nil)
	if _, err := svc.GetTransactionCount(context.Background(), "", 3600); err == nil {
		t.Error("expected error for empty user")
	}
}

func TestGetTransactionCountNoStore(t *testing.T) {
	svc := NewService(nil, nil)
	if _, err := svc.GetTransactionCount(context.Background(), "user_1", 3600); err == nil {
		t.Error("expected error without a data source")
	}
}

func TestObserve(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, cache.NewLRUCache(100))

	for want := int64(1); want <= 3; want++ {
		got, err := svc.Observe(ctx, "user_1", 60)
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if got != want {
			t.Errorf("counter = %d, want %d", got, want)
		}
	}

	// No cache configured degrades to zero, not an error.
	bare := NewService(nil, nil)
	got, err := bare.Observe(ctx, "user_1", 60)
	if err != nil || got != 0 {
		t.Errorf("Observe without cache = (%d, %v), want (0, nil)", got, err)
	}
}

func TestGetter(t *testing.T) {
	store := &countingStore{count: 3}
	svc := NewService(store, nil)

	getter := svc.Getter()
	count, err := getter(context.Background(), "user_2", 600)
	if err != nil {
		t.Fatalf("getter failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
