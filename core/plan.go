package core

import (
	"fmt"
	"slices"

	"github.com/huangsam/strata/schema"
)

// levelGraph holds level dependencies for one logger. Edges point from a
// level to the levels that read it.
type levelGraph struct {
	logger string
	names  []string // chain order
	pos    map[string]int
	edges  map[string][]string
}

func newLevelGraph(logger string, chain []schema.LevelSpec) *levelGraph {
	g := &levelGraph{
		logger: logger,
		pos:    make(map[string]int, len(chain)),
		edges:  make(map[string][]string, len(chain)),
	}
	for i, l := range chain {
		g.names = append(g.names, l.Name)
		g.pos[l.Name] = i
		if i > 0 {
			g.addEdge(chain[i-1].Name, l.Name)
		}
	}
	return g
}

func (g *levelGraph) addEdge(from, to string) {
	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
}

// sort orders the levels with Kahn's algorithm. Ties go to chain order,
// so an acyclic graph always sorts back into the chain.
func (g *levelGraph) sort() ([]string, error) {
	indegree := make(map[string]int, len(g.names))
	for _, targets := range g.edges {
		for _, t := range targets {
			indegree[t]++
		}
	}
	var ready []string
	for _, n := range g.names {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.names))
	for len(ready) > 0 {
		slices.SortFunc(ready, func(a, b string) int { return g.pos[a] - g.pos[b] })
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, t := range g.edges[n] {
			indegree[t]--
			if indegree[t] == 0 {
				ready = append(ready, t)
			}
		}
	}

	if len(order) < len(g.names) {
		var stuck []string
		for _, n := range g.names {
			if indegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, &schema.LevelCycleError{Logger: g.logger, Levels: stuck, Reason: "levels depend on each other"}
	}
	return order, nil
}

// Plan validates the level dependencies of one logger and returns the
// order in which its levels are produced. Nothing is read or written.
//
// Besides the chain itself, every gap-fill rule that names a source level
// adds an edge from that level to each gap-fill level of the chain.
func (p *Pipeline) Plan(logger string) ([]string, error) {
	g := newLevelGraph(logger, p.chain)

	for _, level := range p.chain {
		if level.Stage != schema.GapFillStage {
			continue
		}
		for _, varname := range p.rules.GapFillVariables(logger) {
			for _, rule := range p.rules.GapFillRules(logger, varname) {
				if rule.SrcLevel == "" {
					continue
				}
				if _, ok := g.pos[rule.SrcLevel]; !ok {
					return nil, &schema.LevelCycleError{
						Logger: logger,
						Levels: []string{rule.SrcLevel, level.Name},
						Reason: fmt.Sprintf("gap-fill rule %s reads unknown level %q", rule.Key(), rule.SrcLevel),
					}
				}
				if rule.SrcLevel == level.Name {
					return nil, &schema.LevelCycleError{
						Logger: logger,
						Levels: []string{level.Name, level.Name},
						Reason: fmt.Sprintf("gap-fill rule %s reads the level it produces", rule.Key()),
					}
				}
				g.addEdge(rule.SrcLevel, level.Name)
			}
		}
	}
	return g.sort()
}
