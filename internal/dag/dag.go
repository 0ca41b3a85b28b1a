// Package dag provides a small dependency graph with cycle detection and a
// deterministic topological sort.
//
// It orders explore joins: a table is joined only after the tables its join
// condition depends on. Ties between independent nodes are broken by
// insertion order, so identical input always yields identical output.
package dag

import "fmt"

// Graph is a directed dependency graph keyed by string ids.
type Graph struct {
	order []string
	nodes map[string]struct{}
	deps  map[string][]string // node -> its dependencies
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		deps:  make(map[string][]string),
	}
}

// AddNode adds a node. Re-adding an existing node is a no-op that preserves
// its original insertion position.
func (g *Graph) AddNode(id string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = struct{}{}
	g.order = append(g.order, id)
}

// AddDependency records that id depends on dependsOn. Both nodes must exist.
func (g *Graph) AddDependency(id, dependsOn string) error {
	if _, exists := g.nodes[id]; !exists {
		return fmt.Errorf("node %q does not exist", id)
	}
	if _, exists := g.nodes[dependsOn]; !exists {
		return fmt.Errorf("dependency %q does not exist", dependsOn)
	}
	if id == dependsOn {
		return fmt.Errorf("self-dependency detected: %s", id)
	}
	for _, d := range g.deps[id] {
		if d == dependsOn {
			return nil
		}
	}
	g.deps[id] = append(g.deps[id], dependsOn)
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Dependencies returns the direct dependencies of a node.
func (g *Graph) Dependencies(id string) []string { return g.deps[id] }

// Cycle returns a dependency cycle if one exists, nil otherwise.
func (g *Graph) Cycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))
	parent := make(map[string]string)

	var cycle []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = inStack
		for _, dep := range g.deps[id] {
			switch state[dep] {
			case unvisited:
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			case inStack:
				// Reconstruct the cycle path from dep back to itself.
				cycle = []string{dep}
				for curr := id; curr != dep; curr = parent[curr] {
					cycle = append(cycle, curr)
				}
				cycle = append(cycle, dep)
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			if dfs(id) {
				return cycle
			}
		}
	}
	return nil
}

// Sort returns the nodes with every dependency ordered before its dependents.
// Nodes that do not depend on each other keep their insertion order.
// Returns an error naming the cycle if the graph is not acyclic.
func (g *Graph) Sort() ([]string, error) {
	if cycle := g.Cycle(); cycle != nil {
		return nil, fmt.Errorf("dependency cycle detected: %v", cycle)
	}

	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, id := range g.order {
		indegree[id] = len(g.deps[id])
		for _, dep := range g.deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	result := make([]string, 0, len(g.nodes))
	emitted := make(map[string]bool, len(g.nodes))

	// Kahn's algorithm with a stable frontier: scan insertion order for the
	// first ready node each round. Quadratic, but graphs here are tiny
	// (joins in an explore, calculations in a query).
	for len(result) < len(g.order) {
		progress := false
		for _, id := range g.order {
			if emitted[id] || indegree[id] > 0 {
				continue
			}
			emitted[id] = true
			result = append(result, id)
			for _, dep := range dependents[id] {
				indegree[dep]--
			}
			progress = true
			break
		}
		if !progress {
			return nil, fmt.Errorf("dependency cycle detected")
		}
	}
	return result, nil
}
