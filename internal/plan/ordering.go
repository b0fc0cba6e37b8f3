package plan

import (
	"sort"
	"strings"

	"github.com/stacksjs/qb/internal/qerr"
)

// dependencyGraph tracks FK dependencies between tables. An edge a -> b
// means a has a foreign key into b, so b must be created first.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string // table -> tables it depends on
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{edges: make(map[string][]string)}
}

func (g *dependencyGraph) addNode(table string) {
	if _, ok := g.edges[table]; ok {
		return
	}
	g.nodes = append(g.nodes, table)
	g.edges[table] = nil
}

func (g *dependencyGraph) addEdge(from, to string) {
	if from == to {
		// Self-referencing FKs impose no ordering constraint.
		return
	}
	for _, dep := range g.edges[from] {
		if dep == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// topologicalSort returns tables ordered so that every FK target precedes
// its source, with alphabetical tie-break. Cycles are an InvalidModel error
// naming the tables involved.
func (g *dependencyGraph) topologicalSort() ([]string, error) {
	// Kahn's algorithm over a sorted ready set gives a deterministic order
	// with the alphabetical tie-break the plan format requires.
	inDegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, table := range g.nodes {
		inDegree[table] += 0
		for _, dep := range g.edges[table] {
			inDegree[table]++
			dependents[dep] = append(dependents[dep], table)
		}
	}

	var ready []string
	for _, table := range g.nodes {
		if inDegree[table] == 0 {
			ready = append(ready, table)
		}
	}
	sort.Strings(ready)

	var sorted []string
	for len(ready) > 0 {
		table := ready[0]
		ready = ready[1:]
		sorted = append(sorted, table)

		var unlocked []string
		for _, dependent := range dependents[table] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}

	if len(sorted) != len(g.nodes) {
		var cyclic []string
		for _, table := range g.nodes {
			if inDegree[table] > 0 {
				cyclic = append(cyclic, table)
			}
		}
		sort.Strings(cyclic)
		return nil, qerr.InvalidModel("cyclic required FKs between %s", strings.Join(cyclic, " and "))
	}

	return sorted, nil
}
