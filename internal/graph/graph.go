// Package graph maintains the user/merchant/location relationship graph
// used to derive structural risk features.
package graph

import (
	"github.com/finshield/finshield/internal/domain"
)

// NodeType distinguishes the three entity kinds in the graph.
type NodeType string

const (
	NodeUser     NodeType = "user"
	NodeMerchant NodeType = "merchant"
	NodeLocation NodeType = "location"
)

// NodeID identifies a graph node.
type NodeID struct {
	Type NodeType `json:"type"`
	Key  string   `json:"key"`
}

// Graph is an undirected multi-typed graph built from historical
// transactions. It is append-only during a training cycle and fully
// rebuilt each cycle; after publication it is shared read-only by all
// prediction calls, so it carries no locking.
type Graph struct {
	Adjacency map[NodeID]map[NodeID]float64 `json:"adjacency"`
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Adjacency: make(map[NodeID]map[NodeID]float64)}
}

// Build constructs a fresh graph from a set of transactions. Each
// transaction contributes three nodes and three edges: user-merchant
// weighted by amount, user-location and merchant-location weighted 1.
// Weights accumulate commutatively, so transaction order does not affect
// the result.
func Build(txs []*domain.Transaction) *Graph {
	g := New()
	for _, tx := range txs {
		user := NodeID{Type: NodeUser, Key: tx.UserID}
		merchant := NodeID{Type: NodeMerchant, Key: tx.Merchant}
		location := NodeID{Type: NodeLocation, Key: tx.Location}

		g.addEdge(user, merchant, tx.Amount)
		g.addEdge(user, location, 1)
		g.addEdge(merchant, location, 1)
	}
	return g
}

func (g *Graph) addEdge(a, b NodeID, weight float64) {
	if g.Adjacency[a] == nil {
		g.Adjacency[a] = make(map[NodeID]float64)
	}
	if g.Adjacency[b] == nil {
		g.Adjacency[b] = make(map[NodeID]float64)
	}
	g.Adjacency[a][b] += weight
	g.Adjacency[b][a] += weight
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Adjacency)
}

// Degree returns the number of distinct edges incident to a node,
// 0 if the node is absent.
func (g *Graph) Degree(id NodeID) int {
	return len(g.Adjacency[id])
}

// Centrality returns the degree of a node normalized by (nodeCount - 1),
// 0 if the graph has fewer than 2 nodes or the node is absent.
func (g *Graph) Centrality(id NodeID) float64 {
	n := g.NodeCount()
	if n < 2 {
		return 0
	}
	return float64(g.Degree(id)) / float64(n-1)
}

// Features holds the structural risk features for one transaction.
type Features struct {
	UserDegree         int     `json:"user_degree"`
	MerchantDegree     int     `json:"merchant_degree"`
	UserCentrality     float64 `json:"user_centrality"`
	MerchantCentrality float64 `json:"merchant_centrality"`
}

// FeaturesFor derives the structural features for a transaction's user
// and merchant nodes.
func (g *Graph) FeaturesFor(tx *domain.Transaction) Features {
	user := NodeID{Type: NodeUser, Key: tx.UserID}
	merchant := NodeID{Type: NodeMerchant, Key: tx.Merchant}
	return Features{
		UserDegree:         g.Degree(user),
		MerchantDegree:     g.Degree(merchant),
		UserCentrality:     g.Centrality(user),
		MerchantCentrality: g.Centrality(merchant),
	}
}

// Risk is the arithmetic mean of the four structural features with the
// degree terms normalized by (nodeCount - 1), keeping the result in
// [0, 1]. Raw degrees would dominate the mean and push it past 1 as soon
// as an entity had a handful of edges.
func (g *Graph) Risk(f Features) float64 {
	n := g.NodeCount()
	if n < 2 {
		return 0
	}
	scale := float64(n - 1)
	risk := (float64(f.UserDegree)/scale +
		float64(f.MerchantDegree)/scale +
		f.UserCentrality +
		f.MerchantCentrality) / 4
	if risk > 1 {
		risk = 1
	}
	return risk
}

// RiskFor is a convenience combining FeaturesFor and Risk.
func (g *Graph) RiskFor(tx *domain.Transaction) float64 {
	return g.Risk(g.FeaturesFor(tx))
}
