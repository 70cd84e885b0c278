package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fieldop/internal/ir"
)

// CycleWarning represents a cycle between operators.
//
// Operators defined from source can only capture operators that already
// exist, so a cycle means the program was built or edited by hand. Kernels
// inline nested calls, so Validate turns every warning into an error.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis over the nested-operator
// graph of p.
//
// The algorithm:
//  1. Build operator → nested operator graph from Deps, by operator name
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(p *ir.Program) []CycleWarning {
	if p == nil || len(p.Deps) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(p)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dependencyGraph maps operator name → names of the operators it calls.
type dependencyGraph map[string][]string

// buildDependencyGraph walks the Deps tree once per program pointer and
// merges every edge by name.
func buildDependencyGraph(root *ir.Program) dependencyGraph {
	graph := make(dependencyGraph)
	visited := make(map[*ir.Program]bool)

	var walk func(*ir.Program)
	walk = func(p *ir.Program) {
		if visited[p] {
			return
		}
		visited[p] = true

		// Ensure the node exists even without edges
		if graph[p.Name] == nil {
			graph[p.Name] = []string{}
		}
		for _, name := range sortedKeys(p.Deps) {
			dep := p.Deps[name]
			if dep == nil {
				continue
			}
			if !slices.Contains(graph[p.Name], dep.Name) {
				graph[p.Name] = append(graph[p.Name], dep.Name)
			}
			walk(dep)
		}
	}
	walk(root)
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order so the reported cycles are stable.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedKeys(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("operator calls itself: %s → %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("operator cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until the walk returns to it.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
