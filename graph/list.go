package graph

import "strings"

// Listing is one page of the graph: the filtered, paginated node window
// plus the edges whose endpoints both fall inside it. Totals reflect the
// filtered set before pagination.
type Listing struct {
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
	Stats      Stats  `json:"stats"`
	TotalNodes int    `json:"total_nodes"`
	TotalEdges int    `json:"total_edges"`
	Truncated  bool   `json:"truncated"`
}

// List filters then paginates, never the other way around, so pages stay
// stable across identical calls. Base order is ascending object id. A
// typeFilter matches type or subtype, case-insensitively. limit <= 0
// means no limit.
func (g *Graph) List(limit, offset int, typeFilter string) Listing {
	nodes := g.Nodes
	if typeFilter = strings.TrimSpace(typeFilter); typeFilter != "" {
		filtered := make([]Node, 0, len(nodes))
		for _, n := range nodes {
			if strings.EqualFold(n.Type, typeFilter) || strings.EqualFold(n.Subtype, typeFilter) {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	total := len(nodes)

	if offset < 0 {
		offset = 0
	}
	if offset > len(nodes) {
		offset = len(nodes)
	}
	nodes = nodes[offset:]
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}

	window := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		window[n.ID] = true
	}
	edges := make([]Edge, 0)
	for _, e := range g.Edges {
		if window[e.From] && window[e.To] {
			edges = append(edges, e)
		}
	}

	return Listing{
		Nodes:      nodes,
		Edges:      edges,
		Stats:      g.Stats,
		TotalNodes: total,
		TotalEdges: len(edges),
		Truncated:  len(nodes) < total,
	}
}
