// SPDX-License-Identifier: MPL-2.0

// Package dag records the import edges discovered while resolving a program.
// Nodes are module names; an edge from A to B means "A imports B". The
// resolver's dependency set stays the source of truth for what gets packaged;
// the graph answers who imports what, orders local modules dependencies
// first, and reports import cycles.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle holds the nodes left with unresolved in-degree, in insertion order.
		// It covers every cycle plus anything reachable only through one.
		Cycle []string
	}

	// Graph is a directed graph of import edges.
	Graph struct {
		// successors maps each node to the nodes it imports.
		successors map[string][]string
		// predecessors maps each node to the nodes importing it.
		predecessors map[string][]string
		// edges deduplicates AddEdge calls.
		edges map[[2]string]bool
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("import cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
		edges:        make(map[[2]string]bool),
		nodeSet:      make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from imports to. Both nodes are implicitly added.
// Repeated edges are stored once.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	key := [2]string{from, to}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.successors[from] = append(g.successors[from], to)
	g.predecessors[to] = append(g.predecessors[to], from)
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool { return g.nodeSet[name] }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []string { return slices.Clone(g.nodes) }

// Imports returns the nodes name imports, in the order they were recorded.
func (g *Graph) Imports(name string) []string { return slices.Clone(g.successors[name]) }

// ImportedBy returns the nodes importing name, in the order they were recorded.
func (g *Graph) ImportedBy(name string) []string { return slices.Clone(g.predecessors[name]) }

// Edges returns every edge as a (from, to) pair, grouped by source in node order.
func (g *Graph) Edges() [][2]string {
	out := make([][2]string, 0, len(g.edges))
	for _, from := range g.nodes {
		for _, to := range g.successors[from] {
			out = append(out, [2]string{from, to})
		}
	}
	return out
}

// Subgraph returns the graph restricted to nodes for which keep returns true.
func (g *Graph) Subgraph(keep func(string) bool) *Graph {
	sub := New()
	for _, n := range g.nodes {
		if keep(n) {
			sub.AddNode(n)
		}
	}
	for _, e := range g.Edges() {
		if keep(e[0]) && keep(e[1]) {
			sub.AddEdge(e[0], e[1])
		}
	}
	return sub
}

// TopologicalSort returns the nodes ordered so that every importer precedes
// the modules it imports, using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = len(g.predecessors[node])
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, next := range g.successors[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}

// DependencyOrder returns the reverse of TopologicalSort: every module
// appears after the modules it imports.
func (g *Graph) DependencyOrder() ([]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	return order, nil
}
