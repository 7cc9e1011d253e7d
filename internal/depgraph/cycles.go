package depgraph

import "sort"

// cycleMembers returns the sorted union of all strongly connected components
// of size two or more within the stuck subgraph. Nodes that merely depend on
// a cycle without being part of one are excluded.
func cycleMembers(stuck map[string]bool, deps func(id string) []string) []string {
	// Tarjan's algorithm, restricted to edges between stuck nodes.
	index := 0
	indices := make(map[string]int, len(stuck))
	lowlink := make(map[string]int, len(stuck))
	onStack := make(map[string]bool, len(stuck))
	var stack []string
	var members []string

	var strongconnect func(id string)
	strongconnect = func(id string) {
		indices[id] = index
		lowlink[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, dep := range deps(id) {
			if !stuck[dep] {
				continue
			}
			if _, seen := indices[dep]; !seen {
				strongconnect(dep)
				if lowlink[dep] < lowlink[id] {
					lowlink[id] = lowlink[dep]
				}
			} else if onStack[dep] {
				if indices[dep] < lowlink[id] {
					lowlink[id] = indices[dep]
				}
			}
		}

		if lowlink[id] == indices[id] {
			var component []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				component = append(component, top)
				if top == id {
					break
				}
			}
			if len(component) > 1 {
				members = append(members, component...)
			}
		}
	}

	for id := range stuck {
		if _, seen := indices[id]; !seen {
			strongconnect(id)
		}
	}

	sort.Strings(members)
	return members
}
