// Package graph derives the reference graph from a parsed document: one
// node per indirect object, one edge per reference found inside an
// object's own value tree. Reference-following recursion never happens at
// build time; cycles are a traversal-time concern.
package graph

import (
	"fmt"
	"sort"

	"github.com/idrisr/pepys/ir/raw"
)

// maxValueDepth bounds recursion into a single object's nested value
// tree while collecting edges. References nested deeper than this are
// not reported as edges.
const maxValueDepth = 6

type Node struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	Size      *int64 `json:"size"`
	HasStream bool   `json:"has_stream"`
}

// Edge records one reference. ViaKey is the dotted access path through
// the source object's value tree, e.g. "Resources.Font.F1" or "Annots.2".
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	ViaKey string `json:"via_key"`
}

type Stats struct {
	TypeCounts   map[string]int `json:"type_counts"`
	StreamCount  int            `json:"stream_count"`
	MaxOutDegree int            `json:"max_out_degree"`
	MaxInDegree  int            `json:"max_in_degree"`
}

// Graph is immutable once built. Nodes are in ascending object-id order;
// Edges are sorted by (from, to, via_key). The adjacency kept for
// traversal preserves each object's edge-declaration order instead.
type Graph struct {
	Nodes    []Node `json:"nodes"`
	Edges    []Edge `json:"edges"`
	Dangling []Edge `json:"dangling_refs"`
	Stats    Stats  `json:"stats"`

	byID map[string]*Node
	out  map[string][]Edge
}

// Build walks every object once and assembles nodes, edges, dangling
// references and aggregate stats.
func Build(doc *raw.Document) *Graph {
	refs := doc.Refs()
	g := &Graph{
		Nodes: make([]Node, 0, len(refs)),
		byID:  make(map[string]*Node, len(refs)),
		out:   make(map[string][]Edge),
		Stats: Stats{TypeCounts: make(map[string]int)},
	}

	present := make(map[string]bool, len(refs))
	for _, ref := range refs {
		present[ref.String()] = true
	}

	seen := make(map[Edge]bool)
	for _, ref := range refs {
		obj, _ := doc.Get(ref)
		id := ref.String()
		node := describe(id, obj)
		g.Nodes = append(g.Nodes, node)
		g.Stats.TypeCounts[node.Type]++
		if node.HasStream {
			g.Stats.StreamCount++
		}

		collectEdges(obj, id, "", maxValueDepth, func(e Edge) {
			if seen[e] {
				return
			}
			seen[e] = true
			if present[e.To] {
				g.Edges = append(g.Edges, e)
				g.out[e.From] = append(g.out[e.From], e)
			} else {
				g.Dangling = append(g.Dangling, e)
			}
		})
	}

	for i := range g.Nodes {
		g.byID[g.Nodes[i].ID] = &g.Nodes[i]
	}

	inDeg := make(map[string]int)
	for _, e := range g.Edges {
		inDeg[e.To]++
	}
	for _, edges := range g.out {
		if len(edges) > g.Stats.MaxOutDegree {
			g.Stats.MaxOutDegree = len(edges)
		}
	}
	for _, n := range inDeg {
		if n > g.Stats.MaxInDegree {
			g.Stats.MaxInDegree = n
		}
	}

	sort.Slice(g.Edges, func(i, j int) bool { return edgeLess(g.Edges[i], g.Edges[j]) })
	sort.Slice(g.Dangling, func(i, j int) bool { return edgeLess(g.Dangling[i], g.Dangling[j]) })
	return g
}

func edgeLess(a, b Edge) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	if a.To != b.To {
		return a.To < b.To
	}
	return a.ViaKey < b.ViaKey
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.byID[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Out returns the outgoing edges of id in declaration order.
func (g *Graph) Out(id string) []Edge { return g.out[id] }

// collectEdges walks one object's own value tree, never across
// references, and emits an edge for every reference found.
func collectEdges(value raw.Object, sourceID, path string, depth int, emit func(Edge)) {
	if depth < 0 || value == nil {
		return
	}
	switch v := value.(type) {
	case raw.Ref:
		targetID := v.R.String()
		if targetID == sourceID {
			return
		}
		via := path
		if via == "" {
			via = "ref"
		}
		emit(Edge{From: sourceID, To: targetID, ViaKey: via})
	case *raw.Stream:
		collectEdges(v.Dict, sourceID, path, depth-1, emit)
	case *raw.Dict:
		for _, key := range v.Keys() {
			item, _ := v.Get(key)
			collectEdges(item, sourceID, joinPath(path, key), depth-1, emit)
		}
	case *raw.Array:
		for i, item := range v.Items {
			collectEdges(item, sourceID, joinPath(path, fmt.Sprintf("%d", i)), depth-1, emit)
		}
	}
}

func joinPath(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + "." + seg
}

// describe projects one object into its graph-facing node.
func describe(id string, obj raw.Object) Node {
	n := Node{ID: id, Kind: "Object"}

	var dict *raw.Dict
	switch v := obj.(type) {
	case *raw.Stream:
		n.Kind = "Stream"
		n.HasStream = true
		dict = v.Dict
		if dict != nil {
			if length, ok := dict.Int("Length"); ok {
				n.Size = &length
			}
		}
		if n.Size == nil {
			size := int64(len(v.Raw))
			n.Size = &size
		}
	case *raw.Dict:
		n.Kind = "Dictionary"
		dict = v
		size := int64(v.Len())
		n.Size = &size
	case *raw.Array:
		size := int64(v.Len())
		n.Size = &size
	}

	if dict != nil {
		if t, ok := dict.Name("Type"); ok {
			n.Type = t
		}
		if s, ok := dict.Name("Subtype"); ok {
			n.Subtype = s
		}
	}
	if n.Type == "" {
		n.Type = n.Kind
	}
	n.Label = n.Type
	if n.Subtype != "" {
		n.Label = n.Type + "/" + n.Subtype
	}
	return n
}
