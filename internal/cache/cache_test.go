package cache

import (
	"context"
	"testing"
	"time"

	"github.com/finshield/finshield/internal/domain"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := c.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected value1, got %s", val)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		val, err := c.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for missing key, got %s", val)
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "ephemeral", []byte("x"), 10*time.Millisecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		time.Sleep(30 * time.Millisecond)

		val, err := c.Get(ctx, "ephemeral")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Error("expected expired entry to be gone")
		}
	})

	t.Run("EvictsOldest", func(t *testing.T) {
		c := NewLRUCache(2)
		defer c.Close()

		c.Set(ctx, "a", []byte("1"), time.Minute)
		c.Set(ctx, "b", []byte("2"), time.Minute)
		c.Get(ctx, "a") // promote "a"
		c.Set(ctx, "c", []byte("3"), time.Minute)

		if val, _ := c.Get(ctx, "b"); val != nil {
			t.Error("expected b to be evicted")
		}
		if val, _ := c.Get(ctx, "a"); val == nil {
			t.Error("expected a to survive eviction")
		}

		size, capacity := c.Stats()
		if size != 2 || capacity != 2 {
			t.Errorf("stats = %d/%d, want 2/2", size, capacity)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		c.Set(ctx, "key1", []byte("value1"), time.Minute)
		if err := c.Delete(ctx, "key1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if val, _ := c.Get(ctx, "key1"); val != nil {
			t.Error("expected deleted key to be gone")
		}
	})
}

func TestLRUCachePredictions(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(10)
	defer c.Close()

	p := &domain.Prediction{
		TransactionID: "tx-55",
		RiskScores:    domain.RiskScores{Normal: 0.2, Suspicious: 0.3, Fraudulent: 0.5},
		Prediction:    domain.RiskProfileFraudulent,
		RiskLevel:     domain.RiskLevelMedium,
		ModelVersion:  "v7",
	}

	if err := c.SetPrediction(ctx, p, domain.DefaultPredictionTTL); err != nil {
		t.Fatalf("SetPrediction failed: %v", err)
	}

	got, err := c.GetPrediction(ctx, "tx-55")
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached prediction")
	}
	if got.RiskScores.Fraudulent != 0.5 || got.ModelVersion != "v7" {
		t.Errorf("prediction not round-tripped: %+v", got)
	}

	// Unknown transaction is a miss, not an error.
	got, err = c.GetPrediction(ctx, "tx-none")
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown tx, got %+v", got)
	}
}

func TestLRUCacheCounters(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(10)
	defer c.Close()

	t.Run("Increments", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := c.IncrementCounter(ctx, "velocity:user_1", time.Minute)
			if err != nil {
				t.Fatalf("IncrementCounter failed: %v", err)
			}
			if got != want {
				t.Errorf("count = %d, want %d", got, want)
			}
		}
	})

	t.Run("WindowResets", func(t *testing.T) {
		if _, err := c.IncrementCounter(ctx, "velocity:user_2", 10*time.Millisecond); err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		time.Sleep(30 * time.Millisecond)

		got, err := c.IncrementCounter(ctx, "velocity:user_2", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if got != 1 {
			t.Errorf("count after window expiry = %d, want 1", got)
		}
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		first, _ := c.IncrementCounter(ctx, "velocity:a", time.Minute)
		second, _ := c.IncrementCounter(ctx, "velocity:b", time.Minute)
		if first != 1 || second != 1 {
			t.Errorf("counters not independent: %d, %d", first, second)
		}
	})
}

func TestNewFactory(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected *LRUCache, got %T", c)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
