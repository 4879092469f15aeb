package strategy

import (
	"slices"
	"strings"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// orderGraph maps strategy name → names it must precede.
type orderGraph map[string][]string

// orderCategory computes one category's application order: a topological
// sort of the declared runs-before/runs-after edges, with name order
// breaking whatever ties the edges leave. Node and neighbor lists are
// kept sorted so both the order and any cycle report are reproducible.
func orderCategory(strategies []Strategy) ([]Strategy, error) {
	if len(strategies) == 0 {
		return nil, nil
	}

	byName := make(map[string]Strategy, len(strategies))
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
		names = append(names, s.Name())
	}
	slices.Sort(names)

	graph := buildOrderGraph(strategies, byName)

	for _, scc := range tarjanSCC(names, graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			path := reconstructCyclePath(scc, graph)
			return nil, &pipeline.ConstructionError{
				Site:   "strategy registry",
				Reason: "ordering cycle: " + strings.Join(path, " → "),
			}
		}
	}

	// Kahn's algorithm. The ready list stays sorted, so strategies the
	// edges leave unranked apply in name order.
	indegree := make(map[string]int, len(names))
	for _, targets := range graph {
		for _, to := range targets {
			indegree[to]++
		}
	}
	var ready []string
	for _, name := range names {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	ordered := make([]Strategy, 0, len(strategies))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])
		for _, to := range graph[name] {
			indegree[to]--
			if indegree[to] == 0 {
				at, _ := slices.BinarySearch(ready, to)
				ready = slices.Insert(ready, at, to)
			}
		}
	}
	return ordered, nil
}

// buildOrderGraph collects must-precede edges. RunsBefore contributes an
// edge as declared; RunsAfter contributes it reversed. Names not
// registered in this category are ignored.
func buildOrderGraph(strategies []Strategy, byName map[string]Strategy) orderGraph {
	edges := make(map[string]map[string]bool, len(strategies))
	add := func(from, to string) {
		if edges[from] == nil {
			edges[from] = make(map[string]bool)
		}
		edges[from][to] = true
	}
	for _, s := range strategies {
		for _, other := range s.RunsBefore() {
			if _, known := byName[other]; known {
				add(s.Name(), other)
			}
		}
		for _, other := range s.RunsAfter() {
			if _, known := byName[other]; known {
				add(other, s.Name())
			}
		}
	}
	graph := make(orderGraph, len(edges))
	for from, targets := range edges {
		list := make([]string, 0, len(targets))
		for to := range targets {
			list = append(list, to)
		}
		slices.Sort(list)
		graph[from] = list
	}
	return graph
}

func hasSelfLoop(name string, graph orderGraph) bool {
	return slices.Contains(graph[name], name)
}

// tarjanSCC finds strongly connected components. Single-member
// components without a self-loop are not cycles; the caller filters
// them out.
func tarjanSCC(names []string, graph orderGraph) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int, len(names))
		lowlink = make(map[string]int, len(names))
		onStack = make(map[string]bool, len(names))
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
			sccs = append(sccs, scc)
		}
	}

	for _, name := range names {
		if _, visited := indices[name]; !visited {
			strongConnect(name)
		}
	}
	return sccs
}

// reconstructCyclePath walks a strongly connected component from its
// first member back around to itself, producing the a → b → a sequence
// the seal error reports.
func reconstructCyclePath(scc []string, graph orderGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}
	inSCC := make(map[string]bool, len(scc))
	for _, name := range scc {
		inSCC[name] = true
	}
	start := scc[0]
	current := start
	path := []string{start}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		next := ""
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
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
