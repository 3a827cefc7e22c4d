package graph

import (
	"math/rand"
	"testing"

	"github.com/finshield/finshield/internal/domain"
)

func tx(user, merchant, location string, amount float64) *domain.Transaction {
	return &domain.Transaction{
		UserID:   user,
		Merchant: merchant,
		Location: location,
		Amount:   amount,
	}
}

func TestBuild(t *testing.T) {
	g := Build([]*domain.Transaction{
		tx("u1", "m1", "l1", 100),
		tx("u1", "m2", "l1", 50),
	})

	// Nodes: u1, m1, m2, l1
	if got := g.NodeCount(); got != 4 {
		t.Fatalf("NodeCount = %d, want 4", got)
	}

	user := NodeID{Type: NodeUser, Key: "u1"}
	if got := g.Degree(user); got != 3 {
		t.Errorf("user degree = %d, want 3 (m1, m2, l1)", got)
	}

	// user-merchant edge accumulates amount
	if w := g.Adjacency[user][NodeID{Type: NodeMerchant, Key: "m1"}]; w != 100 {
		t.Errorf("user-merchant weight = %v, want 100", w)
	}
	// user-location edge accumulates 1 per transaction
	if w := g.Adjacency[user][NodeID{Type: NodeLocation, Key: "l1"}]; w != 2 {
		t.Errorf("user-location weight = %v, want 2", w)
	}
}

func TestBuildOrderIndependent(t *testing.T) {
	txs := []*domain.Transaction{
		tx("u1", "m1", "l1", 100),
		tx("u2", "m1", "l2", 25),
		tx("u1", "m2", "l2", 10),
		tx("u3", "m3", "l1", 999),
	}

	a := Build(txs)

	shuffled := make([]*domain.Transaction, len(txs))
	copy(shuffled, txs)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	b := Build(shuffled)

	if a.NodeCount() != b.NodeCount() {
		t.Fatalf("node counts differ: %d vs %d", a.NodeCount(), b.NodeCount())
	}
	for node, edges := range a.Adjacency {
		for peer, w := range edges {
			if b.Adjacency[node][peer] != w {
				t.Errorf("edge %v-%v weight %v vs %v", node, peer, w, b.Adjacency[node][peer])
			}
		}
	}
}

func TestFeaturesAbsentNode(t *testing.T) {
	g := Build([]*domain.Transaction{tx("u1", "m1", "l1", 10)})

	f := g.FeaturesFor(tx("ghost", "phantom", "nowhere", 1))
	if f.UserDegree != 0 || f.MerchantDegree != 0 {
		t.Errorf("absent node degrees = %+v, want zeros", f)
	}
	if f.UserCentrality != 0 || f.MerchantCentrality != 0 {
		t.Errorf("absent node centralities = %+v, want zeros", f)
	}
	if r := g.Risk(f); r != 0 {
		t.Errorf("risk for absent nodes = %v, want 0", r)
	}
}

func TestCentralitySmallGraph(t *testing.T) {
	g := New()
	if c := g.Centrality(NodeID{Type: NodeUser, Key: "u1"}); c != 0 {
		t.Errorf("centrality on empty graph = %v, want 0", c)
	}
}

func TestRiskBounded(t *testing.T) {
	// A dense hub: one user seen with many merchants and locations.
	var txs []*domain.Transaction
	for i := 0; i < 20; i++ {
		txs = append(txs, tx("hub", "m"+string(rune('a'+i)), "l"+string(rune('a'+i)), 100))
	}
	g := Build(txs)

	f := g.FeaturesFor(tx("hub", "ma", "la", 1))
	r := g.Risk(f)
	if r < 0 || r > 1 {
		t.Errorf("risk = %v, want in [0,1]", r)
	}
	if f.UserDegree != 40 {
		t.Errorf("hub degree = %d, want 40", f.UserDegree)
	}
}
