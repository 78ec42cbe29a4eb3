package graph

// Budgets bounds one traversal call. All three must be positive; callers
// clamp user input before handing them over.
type Budgets struct {
	MaxDepth    int // root is depth 0; nodes at MaxDepth are not expanded
	MaxNodes    int // global across the whole call, shared by all roots
	MaxChildren int // children expanded per node; the rest drop silently
}

// TreeNode is one placed node in the traversal forest. ViaKey is the
// edge that led here; empty for roots.
type TreeNode struct {
	Node
	ViaKey   string      `json:"via_key,omitempty"`
	Depth    int         `json:"depth"`
	Children []*TreeNode `json:"children"`
}

// Forest is the result of one bounded traversal. Truncated reports only
// global node-budget exhaustion; children dropped by the per-node cap and
// subtrees cut by the depth limit are not signalled.
type Forest struct {
	Roots     []*TreeNode `json:"roots"`
	NodeCount int         `json:"node_count"`
	Truncated bool        `json:"truncated"`
}

// Traverse expands the given roots depth-first, in root-list order, then
// per node in edge-declaration order. A single visited set spans the
// whole call, so diamonds collapse and cycles terminate without special
// cases; no object id appears twice in the forest. Unknown root ids are
// skipped.
func (g *Graph) Traverse(roots []string, b Budgets) Forest {
	t := &traversal{g: g, budget: b.MaxNodes, b: b, visited: make(map[string]bool)}
	forest := Forest{Roots: []*TreeNode{}}
	for _, id := range roots {
		if t.visited[id] {
			continue
		}
		if _, ok := g.Node(id); !ok {
			continue
		}
		node := t.expand(id, "", 0)
		if node == nil {
			break
		}
		forest.Roots = append(forest.Roots, node)
	}
	forest.NodeCount = b.MaxNodes - t.budget
	forest.Truncated = t.truncated
	return forest
}

type traversal struct {
	g         *Graph
	b         Budgets
	budget    int
	visited   map[string]bool
	truncated bool
}

// expand places id in the forest and recurses into its children. A nil
// return means the node budget ran out before id could be placed; the
// caller stops immediately, leaving the flag set.
func (t *traversal) expand(id, via string, depth int) *TreeNode {
	if t.budget == 0 {
		t.truncated = true
		return nil
	}
	t.budget--
	t.visited[id] = true

	node, _ := t.g.Node(id)
	tn := &TreeNode{Node: node, ViaKey: via, Depth: depth, Children: []*TreeNode{}}
	if depth >= t.b.MaxDepth {
		return tn
	}

	placed := 0
	for _, edge := range t.g.Out(id) {
		if placed == t.b.MaxChildren {
			break
		}
		if t.visited[edge.To] {
			continue
		}
		child := t.expand(edge.To, edge.ViaKey, depth+1)
		if child == nil {
			break
		}
		tn.Children = append(tn.Children, child)
		placed++
	}
	return tn
}
