package reactor

import (
	"fmt"
	"sort"
	"strings"
)

// CheckAcyclic fails when any rule can, directly or through other rules,
// re-trigger itself. Nodes are rules; an edge a -> b exists when a emits an
// event b reacts to.
func CheckAcyclic(rules []Rule) error {
	graph := buildRuleGraph(rules)
	var cycles []string
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			sort.Strings(scc)
			cycles = append(cycles, strings.Join(scc, ", "))
		}
	}
	if len(cycles) > 0 {
		sort.Strings(cycles)
		return fmt.Errorf("reactor rules form a cycle: [%s]", strings.Join(cycles, "]; ["))
	}
	return nil
}

type ruleGraph map[string][]string

func buildRuleGraph(rules []Rule) ruleGraph {
	listeners := make(map[EventType][]string)
	for _, rule := range rules {
		for _, on := range rule.On {
			listeners[on] = append(listeners[on], rule.Name)
		}
	}
	graph := make(ruleGraph, len(rules))
	for _, rule := range rules {
		if graph[rule.Name] == nil {
			graph[rule.Name] = []string{}
		}
		for _, emitted := range rule.Emits {
			graph[rule.Name] = append(graph[rule.Name], listeners[emitted]...)
		}
	}
	return graph
}

func hasSelfLoop(node string, graph ruleGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

func tarjanSCC(graph ruleGraph) [][]string {
	var (
		index = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

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

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}
