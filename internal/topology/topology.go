// Package topology tracks the dependency graph formed by every Source,
// Digest, LinkedSource, and Indicator as they subscribe to one another. It
// is a pure diagnostics layer: nothing in the core event/refresh path reads
// from it, it only mirrors the wiring for introspection and as a defensive
// cycle check.
package topology

import (
	"fmt"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"candlegraph/internal/tserr"
)

// Graph mirrors the live node graph: one vertex per node, one directed edge
// per producer -> subscriber subscription.
type Graph struct {
	g *core.Graph
}

// New builds an empty directed topology graph.
func New() *Graph {
	return &Graph{g: core.NewGraph(core.WithDirected(true))}
}

// AddNode registers a node (Source, Digest, LinkedSource, Indicator) under a
// stable ID. Idempotent.
func (t *Graph) AddNode(id string) error {
	return t.g.AddVertex(id)
}

// AddEdge records a subscription from producer to subscriber, then runs the
// defensive cycle assertion: edges are only ever added from an
// already-existing producer to a new node, so a detected cycle means the
// host program wired the graph incorrectly, not a data condition.
func (t *Graph) AddEdge(producerID, subscriberID string) error {
	if _, err := t.g.AddEdge(producerID, subscriberID, 0); err != nil {
		return fmt.Errorf("topology: add edge %s->%s: %w", producerID, subscriberID, err)
	}
	hasCycle, cycles, err := dfs.DetectCycles(t.g)
	if err != nil {
		return fmt.Errorf("topology: cycle detection failed: %w", err)
	}
	if hasCycle {
		return fmt.Errorf("topology: cycle detected after %s->%s: %v: %w", producerID, subscriberID, cycles, tserr.ErrGraphCycle)
	}
	return nil
}

// Edge is one producer->subscriber link, for Describe.
type Edge struct {
	Producer   string
	Subscriber string
}

// Describe returns the current vertex and edge lists for diagnostics.
func (t *Graph) Describe() (vertices []string, edges []Edge) {
	vertices = t.g.Vertices()
	for _, e := range t.g.Edges() {
		edges = append(edges, Edge{Producer: e.From, Subscriber: e.To})
	}
	return vertices, edges
}
