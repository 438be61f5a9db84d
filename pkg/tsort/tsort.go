// Package tsort provides a stable topological sort over a DAG expressed as
// a mapping from node to predecessors, used by seed inheritance expansion
// (spec.md §4.3). Grounded on germinate/tsort.topo_sort, referenced from
// the Python germinate/seeds.py's SeedStructure._expand_inheritance.
package tsort

import "fmt"

// CycleError reports that the input graph is not acyclic. The seed
// structure loader treats this as fatal (spec.md §4.9).
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving %q", e.Node)
}

// Sort returns the nodes of order, together with every node reachable from
// them through predecessor lists, in an order such that every node
// appears after all nodes in its predecessor list, stable with respect to
// the order nodes and predecessor lists are given in. Nodes of inherit
// that are not reachable from order are not returned. inherit need not
// contain an entry for every node reachable from another node's
// predecessor list; missing entries are treated as having no predecessors.
func Sort(order []string, inherit map[string][]string) ([]string, error) {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	state := make(map[string]int, len(order))
	result := make([]string, 0, len(order))

	var visit func(node string, stack []string) error
	visit = func(node string, stack []string) error {
		switch state[node] {
		case black:
			return nil
		case grey:
			return &CycleError{Node: node}
		}
		state[node] = grey
		for _, pred := range inherit[node] {
			if err := visit(pred, append(stack, node)); err != nil {
				return err
			}
		}
		state[node] = black
		result = append(result, node)
		return nil
	}

	for _, node := range order {
		if err := visit(node, nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}
