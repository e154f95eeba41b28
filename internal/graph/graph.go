// Package graph accumulates correlated entities found during an analyst session.
package graph

import (
	"sync"
	"time"
)

// Node types produced by investigations.
const (
	TypeDomain   = "domain"
	TypeIP       = "ip"
	TypeLocation = "location"
	TypeEmail    = "email"
	TypeUsername = "username"
	TypePhone    = "phone"
	TypePerson   = "person"
	TypeIMEI     = "imei"
	TypeBreach   = "breach"
	TypeSocial   = "social"
	TypeImage    = "image"
	TypeAlert    = "alert"
	TypeDevice   = "device"
	TypeCarrier  = "carrier"
)

// Display buckets.
const (
	CategoryInfrastructure = "Infrastructure"
	CategoryIdentity       = "Identity"
	CategoryEvidence       = "Evidence"
	CategoryOther          = "Other"
)

// Categories in display order.
var Categories = []string{CategoryInfrastructure, CategoryIdentity, CategoryEvidence, CategoryOther}

var categoryOf = map[string]string{
	TypeDomain:   CategoryInfrastructure,
	TypeIP:       CategoryInfrastructure,
	TypeLocation: CategoryInfrastructure,
	TypeEmail:    CategoryIdentity,
	TypeUsername: CategoryIdentity,
	TypePhone:    CategoryIdentity,
	TypePerson:   CategoryIdentity,
	TypeIMEI:     CategoryIdentity,
	TypeBreach:   CategoryEvidence,
	TypeSocial:   CategoryEvidence,
	TypeImage:    CategoryEvidence,
	TypeAlert:    CategoryEvidence,
}

var icons = map[string]string{
	TypeDomain:   "globe",
	TypeIP:       "map-pin",
	TypeLocation: "map",
	TypeEmail:    "mail",
	TypeUsername: "at-sign",
	TypePhone:    "phone",
	TypePerson:   "user",
	TypeIMEI:     "smartphone",
	TypeBreach:   "shield-alert",
	TypeSocial:   "users",
	TypeImage:    "image",
	TypeAlert:    "triangle-alert",
	TypeDevice:   "smartphone",
	TypeCarrier:  "radio-tower",
}

// CategoryOf maps a node type to its display bucket.
func CategoryOf(nodeType string) string {
	if c, ok := categoryOf[nodeType]; ok {
		return c
	}
	return CategoryOther
}

// IconFor returns the icon name of a node type.
func IconFor(nodeType string) string {
	if i, ok := icons[nodeType]; ok {
		return i
	}
	return "circle"
}

type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

type edgeKey struct{ source, target string }

// Graph is safe for concurrent use. Insertion order is preserved.
type Graph struct {
	mu      sync.RWMutex
	nodes   []Node
	nodeIdx map[string]int
	edges   []Edge
	edgeSet map[edgeKey]struct{}
	touched time.Time
}

func New() *Graph {
	return &Graph{nodeIdx: map[string]int{}, edgeSet: map[edgeKey]struct{}{}, touched: time.Now()}
}

// AddNode inserts n unless a node with the same id exists. It reports whether n was added.
// An empty icon is filled from the type table.
func (g *Graph) AddNode(n Node) bool {
	if n.ID == "" {
		return false
	}
	if n.Icon == "" {
		n.Icon = IconFor(n.Type)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.touched = time.Now()
	if _, ok := g.nodeIdx[n.ID]; ok {
		return false
	}
	g.nodeIdx[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return true
}

// AddEdge links two known nodes. The (source, target) pair is the dedup key; a second
// edge between the same pair with another label is dropped.
func (g *Graph) AddEdge(source, target, label string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.touched = time.Now()
	if _, ok := g.nodeIdx[source]; !ok {
		return false
	}
	if _, ok := g.nodeIdx[target]; !ok {
		return false
	}
	k := edgeKey{source, target}
	if _, ok := g.edgeSet[k]; ok {
		return false
	}
	g.edgeSet[k] = struct{}{}
	g.edges = append(g.edges, Edge{Source: source, Target: target, Label: label})
	return true
}

// Link adds both nodes and the edge between them.
func (g *Graph) Link(from, to Node, label string) {
	g.AddNode(from)
	g.AddNode(to)
	g.AddEdge(from.ID, to.ID, label)
}

// Clear drops every node and edge.
func (g *Graph) Clear() {
	g.mu.Lock()
	g.nodes = nil
	g.edges = nil
	g.nodeIdx = map[string]int{}
	g.edgeSet = map[edgeKey]struct{}{}
	g.touched = time.Now()
	g.mu.Unlock()
}

func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodesByCategory groups nodes into the four display buckets. Every bucket is present.
func (g *Graph) NodesByCategory() map[string][]Node {
	out := make(map[string][]Node, len(Categories))
	for _, c := range Categories {
		out[c] = []Node{}
	}
	for _, n := range g.Nodes() {
		c := CategoryOf(n.Type)
		out[c] = append(out[c], n)
	}
	return out
}

// Snapshot is the serializable view of a graph.
type Snapshot struct {
	Nodes      []Node            `json:"nodes"`
	Edges      []Edge            `json:"edges"`
	Categories map[string][]Node `json:"categories"`
}

func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Nodes: g.Nodes(), Edges: g.Edges(), Categories: g.NodesByCategory()}
}
