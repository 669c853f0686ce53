package domain

import "sort"

// AssignExecutionOrder numbers every node of g. Nodes are layered by their
// breadth-first distance from the Start node; within a layer they are ordered
// by horizontal position and then by authored order. Unreachable nodes are
// numbered after all reachable ones.
func AssignExecutionOrder(g *Graph) {
	if g == nil {
		return
	}
	const unreached = -1
	layer := make(map[GUID]int, len(g.Nodes))
	for _, n := range g.Nodes {
		layer[n.GUID] = unreached
	}

	maxLayer := 0
	if start := g.Start(); start != nil {
		layer[start.GUID] = 0
		queue := []*Node{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, child := range g.Children(cur) {
				if layer[child.GUID] != unreached {
					continue
				}
				layer[child.GUID] = layer[cur.GUID] + 1
				if layer[child.GUID] > maxLayer {
					maxLayer = layer[child.GUID]
				}
				queue = append(queue, child)
			}
		}
	}

	authored := make(map[GUID]int, len(g.Nodes))
	ordered := make([]*Node, len(g.Nodes))
	for i, n := range g.Nodes {
		authored[n.GUID] = i
		ordered[i] = n
		if layer[n.GUID] == unreached {
			layer[n.GUID] = maxLayer + 1
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if layer[a.GUID] != layer[b.GUID] {
			return layer[a.GUID] < layer[b.GUID]
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return authored[a.GUID] < authored[b.GUID]
	})
	for i, n := range ordered {
		n.ExecutionOrder = i
	}
}

// SortByExecutionOrder orders nodes in place by ExecutionOrder, keeping the
// incoming order for equal values.
func SortByExecutionOrder(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].ExecutionOrder < nodes[j].ExecutionOrder
	})
}
