// SPDX-License-Identifier: MPL-2.0

// Package dag orders module dependencies. Nodes are module names; an edge
// from A to B means A must be initialised before B.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports one cycle found in the graph, as a closed path whose
	// first and last nodes are the same.
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph with deterministic ordering: nodes keep the
	// order they were first added in, and duplicate edges are ignored.
	Graph struct {
		// edges maps each node to the nodes that must come after it.
		edges map[string][]string
		nodes []string
		index map[string]int
	}
)

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle so callers can use errors.Is for programmatic detection.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{edges: make(map[string][]string), index: make(map[string]int)}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from must come before to, adding both nodes.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Successors returns the nodes that must come after name, in insertion order.
func (g *Graph) Successors(name string) []string { return slices.Clone(g.edges[name]) }

// TopologicalSort returns the nodes in dependency order using Kahn's
// algorithm. Nodes that become ready together keep their insertion order.
// A cycle yields a *CycleError naming one closed path.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, succ := range g.edges {
		for _, n := range succ {
			inDegree[n]++
		}
	}
	var queue []string
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, succ := range g.edges[n] {
			if inDegree[succ]--; inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, &CycleError{Cycle: g.findCycle(inDegree)}
	}
	return order, nil
}

// findCycle walks backwards from the first node left with incoming edges.
// Every such node has a predecessor that is also left, so the walk must
// revisit a node; the revisited stretch, reversed, is a cycle.
func (g *Graph) findCycle(inDegree map[string]int) []string {
	left := func(n string) bool { return inDegree[n] > 0 }
	var n string
	for _, cand := range g.nodes {
		if left(cand) {
			n = cand
			break
		}
	}

	seen := make(map[string]int)
	var path []string
	for {
		if at, ok := seen[n]; ok {
			cycle := append(path[at:], n)
			slices.Reverse(cycle)
			return cycle
		}
		seen[n] = len(path)
		path = append(path, n)
		n = g.leftPredecessor(n, left)
	}
}

func (g *Graph) leftPredecessor(n string, left func(string) bool) string {
	for _, p := range g.nodes {
		if left(p) && slices.Contains(g.edges[p], n) {
			return p
		}
	}
	panic("dag: node left after sorting has no remaining predecessor")
}
