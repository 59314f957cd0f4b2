package plan

import (
	"fmt"
	"strings"
)

// depGraph is a directed dependency graph over invocation ids used by
// the resolver for cycle detection. An edge from A to B means A
// depends on B.
//
// Cycle detection adapted from TaskWing
// (https://github.com/josephgoksu/TaskWing) under MIT License.
type depGraph struct {
	nodes map[string]bool
	edges map[string][]string
}

func newDepGraph() *depGraph {
	return &depGraph{
		nodes: make(map[string]bool),
		edges: make(map[string][]string),
	}
}

func (g *depGraph) addNode(id string) {
	g.nodes[id] = true
	if _, exists := g.edges[id]; !exists {
		g.edges[id] = []string{}
	}
}

func (g *depGraph) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	g.edges[from] = append(g.edges[from], to)
}

// hasCycle performs DFS-based cycle detection and, when a cycle is
// found, reconstructs the path for the diagnostic.
func (g *depGraph) hasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(node string) (bool, []string)
	dfs = func(node string) (bool, []string) {
		visited[node] = true
		recStack[node] = true

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				parent[neighbor] = node
				if found, path := dfs(neighbor); found {
					return true, path
				}
			} else if recStack[neighbor] {
				// Found a back edge - reconstruct the cycle path.
				cycle := []string{neighbor}
				current := node
				for current != neighbor {
					cycle = append([]string{current}, cycle...)
					current = parent[current]
				}
				cycle = append([]string{neighbor}, cycle...)
				return true, cycle
			}
		}

		recStack[node] = false
		return false, nil
	}

	for node := range g.nodes {
		if !visited[node] {
			if found, path := dfs(node); found {
				return true, path
			}
		}
	}
	return false, nil
}

// CycleError reports a circular dependency between invocations.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "circular dependency detected"
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// IsCycleError checks if an error is a CycleError.
func IsCycleError(err error) bool {
	_, ok := err.(*CycleError)
	return ok
}
