package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/idrisr/pepys/internal/pdftest"
	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/parser"
)

func minimalGraph(t *testing.T) (*Graph, *raw.Document) {
	t.Helper()
	doc, err := parser.New(parser.Config{}).Parse(context.Background(), pdftest.MinimalDoc())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return Build(doc), doc
}

func mkRef(num int) raw.Ref { return raw.Ref{R: raw.ObjectRef{Num: num}} }

func mkDict(pairs ...any) *raw.Dict {
	d := raw.NewDict()
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1].(raw.Object))
	}
	return d
}

func mkDoc(objects map[int]raw.Object) *raw.Document {
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object, len(objects))}
	for num, obj := range objects {
		doc.Objects[raw.ObjectRef{Num: num}] = obj
	}
	return doc
}

func TestBuildNodesAndEdges(t *testing.T) {
	g, _ := minimalGraph(t)
	if len(g.Nodes) != 6 {
		t.Fatalf("nodes: %d", len(g.Nodes))
	}
	for i := 1; i < len(g.Nodes); i++ {
		if g.Nodes[i].ID <= g.Nodes[i-1].ID {
			t.Fatalf("nodes out of order: %q then %q", g.Nodes[i-1].ID, g.Nodes[i].ID)
		}
	}

	wantEdges := map[Edge]bool{
		{From: "1 0 R", To: "2 0 R", ViaKey: "Pages"}:              true,
		{From: "2 0 R", To: "3 0 R", ViaKey: "Kids.0"}:             true,
		{From: "3 0 R", To: "2 0 R", ViaKey: "Parent"}:             true,
		{From: "3 0 R", To: "4 0 R", ViaKey: "Contents"}:           true,
		{From: "3 0 R", To: "5 0 R", ViaKey: "Resources.Font.F1"}: true,
		{From: "3 0 R", To: "6 0 R", ViaKey: "Annots.0"}:           true,
	}
	if len(g.Edges) != len(wantEdges) {
		t.Fatalf("edges: %+v", g.Edges)
	}
	for _, e := range g.Edges {
		if !wantEdges[e] {
			t.Fatalf("unexpected edge %+v", e)
		}
	}
}

func TestBuildDangling(t *testing.T) {
	g, _ := minimalGraph(t)
	if len(g.Dangling) != 1 {
		t.Fatalf("dangling: %+v", g.Dangling)
	}
	want := Edge{From: "3 0 R", To: "9 0 R", ViaKey: "Annots.1"}
	if g.Dangling[0] != want {
		t.Fatalf("dangling edge: %+v", g.Dangling[0])
	}
}

func TestBuildStats(t *testing.T) {
	g, _ := minimalGraph(t)
	if g.Stats.StreamCount != 1 {
		t.Fatalf("stream count: %d", g.Stats.StreamCount)
	}
	if g.Stats.TypeCounts["Page"] != 1 || g.Stats.TypeCounts["Font"] != 1 {
		t.Fatalf("type counts: %v", g.Stats.TypeCounts)
	}
	// Page has 4 resolvable out-edges; the dangling annot does not count.
	if g.Stats.MaxOutDegree != 4 {
		t.Fatalf("max out degree: %d", g.Stats.MaxOutDegree)
	}
}

func TestBuildNodeShapes(t *testing.T) {
	g, _ := minimalGraph(t)
	page, ok := g.Node("3 0 R")
	if !ok {
		t.Fatal("page node missing")
	}
	if page.Kind != "Dictionary" || page.Type != "Page" {
		t.Fatalf("page node: %+v", page)
	}
	content, _ := g.Node("4 0 R")
	if content.Kind != "Stream" || !content.HasStream {
		t.Fatalf("content node: %+v", content)
	}
	if content.Size == nil || *content.Size == 0 {
		t.Fatalf("content size: %v", content.Size)
	}
	annot, _ := g.Node("6 0 R")
	if annot.Label != "Annot/Link" {
		t.Fatalf("annot label: %q", annot.Label)
	}
}

func TestBuildSelfReferenceSkipped(t *testing.T) {
	g := Build(mkDoc(map[int]raw.Object{
		1: mkDict("Self", mkRef(1), "Other", mkRef(2)),
		2: mkDict(),
	}))
	if len(g.Edges) != 1 || g.Edges[0].To != "2 0 R" {
		t.Fatalf("edges: %+v", g.Edges)
	}
}

func TestBuildDeduplicatesEdges(t *testing.T) {
	// The same (from, to, via_key) triple collapses; distinct paths to the
	// same target survive as separate edges.
	arr := &raw.Array{}
	arr.Append(mkRef(2))
	g := Build(mkDoc(map[int]raw.Object{
		1: mkDict("A", mkRef(2), "B", arr),
		2: mkDict(),
	}))
	if len(g.Edges) != 2 {
		t.Fatalf("edges: %+v", g.Edges)
	}
}

func TestBuildDepthLimit(t *testing.T) {
	// A reference nested deeper than the value-tree bound is not reported.
	inner := mkDict("R", mkRef(2))
	for i := 0; i < 8; i++ {
		inner = mkDict("D", inner)
	}
	g := Build(mkDoc(map[int]raw.Object{1: inner, 2: mkDict()}))
	if len(g.Edges) != 0 || len(g.Dangling) != 0 {
		t.Fatalf("edges %+v dangling %+v", g.Edges, g.Dangling)
	}
}

func TestSearchTiers(t *testing.T) {
	g, doc := minimalGraph(t)
	ix := NewSearchIndex(g, doc)

	got := ix.Search("5 0 R")
	if len(got) != 1 || got[0].ID != "5 0 R" {
		t.Fatalf("exact id: %+v", got)
	}

	// Loose id spellings resolve too.
	got = ix.Search("5 0")
	if len(got) == 0 || got[0].ID != "5 0 R" {
		t.Fatalf("loose id: %+v", got)
	}

	// "font": the font object matches on type (tier 2); the page matches
	// on its Resources.Font key (tier 3) and sorts after it.
	got = ix.Search("font")
	if len(got) < 2 {
		t.Fatalf("font: %+v", got)
	}
	if got[0].ID != "5 0 R" {
		t.Fatalf("type match should rank first: %+v", got)
	}
	if got[1].ID != "3 0 R" {
		t.Fatalf("key match should rank second: %+v", got)
	}

	// Value substring: the font's /BaseFont name.
	got = ix.Search("helvetica")
	if len(got) != 1 || got[0].ID != "5 0 R" {
		t.Fatalf("value match: %+v", got)
	}

	if got := ix.Search("zzz-no-such-term"); len(got) != 0 {
		t.Fatalf("miss: %+v", got)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	g, doc := minimalGraph(t)
	ix := NewSearchIndex(g, doc)
	if got := ix.Search("   "); len(got) != 0 {
		t.Fatalf("empty query: %+v", got)
	}
}

func TestSearchCap(t *testing.T) {
	objects := make(map[int]raw.Object, 250)
	for i := 1; i <= 250; i++ {
		objects[i] = mkDict("Type", raw.Name{Val: "Widget"})
	}
	doc := mkDoc(objects)
	g := Build(doc)
	ix := NewSearchIndex(g, doc)
	if got := ix.Search("widget"); len(got) != 200 {
		t.Fatalf("capped results: %d", len(got))
	}
}

func TestListFilterThenPaginate(t *testing.T) {
	objects := make(map[int]raw.Object, 10)
	for i := 1; i <= 10; i++ {
		typ := "Odd"
		if i%2 == 0 {
			typ = "Even"
		}
		objects[i] = mkDict("Type", raw.Name{Val: typ})
	}
	g := Build(mkDoc(objects))

	l := g.List(2, 1, "even")
	if l.TotalNodes != 5 {
		t.Fatalf("total: %d", l.TotalNodes)
	}
	if len(l.Nodes) != 2 || l.Nodes[0].ID != "4 0 R" || l.Nodes[1].ID != "6 0 R" {
		t.Fatalf("window: %+v", l.Nodes)
	}
	if !l.Truncated {
		t.Fatal("truncated flag not set")
	}

	full := g.List(0, 0, "")
	if len(full.Nodes) != 10 || full.Truncated {
		t.Fatalf("unfiltered: %d truncated=%v", len(full.Nodes), full.Truncated)
	}
}

func TestListEdgesWithinWindow(t *testing.T) {
	g, _ := minimalGraph(t)
	l := g.List(0, 0, "")
	if len(l.Edges) != len(g.Edges) {
		t.Fatalf("edges: %d want %d", len(l.Edges), len(g.Edges))
	}
	// A window holding only the catalog has no intra-window edges.
	l = g.List(1, 0, "catalog")
	if len(l.Edges) != 0 {
		t.Fatalf("edges: %+v", l.Edges)
	}
}

func TestListOffsetPastEnd(t *testing.T) {
	g, _ := minimalGraph(t)
	l := g.List(5, 100, "")
	if len(l.Nodes) != 0 || l.TotalNodes != 6 {
		t.Fatalf("listing: %+v", l)
	}
}

func TestTraverseDiamond(t *testing.T) {
	g := Build(mkDoc(map[int]raw.Object{
		1: mkDict("A", mkRef(2), "B", mkRef(3)),
		2: mkDict("C", mkRef(4)),
		3: mkDict("C", mkRef(4)),
		4: mkDict(),
	}))
	f := g.Traverse([]string{"1 0 R"}, Budgets{MaxDepth: 4, MaxNodes: 100, MaxChildren: 10})
	if f.NodeCount != 4 || f.Truncated {
		t.Fatalf("forest: count=%d truncated=%v", f.NodeCount, f.Truncated)
	}
	root := f.Roots[0]
	if len(root.Children) != 2 {
		t.Fatalf("root children: %d", len(root.Children))
	}
	// Node 4 appears under whichever branch reached it first, and only there.
	if len(root.Children[0].Children) != 1 || len(root.Children[1].Children) != 0 {
		t.Fatalf("diamond not collapsed: %+v", root)
	}
}

func TestTraverseCycle(t *testing.T) {
	g := Build(mkDoc(map[int]raw.Object{
		1: mkDict("Next", mkRef(2)),
		2: mkDict("Next", mkRef(1)),
	}))
	f := g.Traverse([]string{"1 0 R"}, Budgets{MaxDepth: 10, MaxNodes: 100, MaxChildren: 10})
	if f.NodeCount != 2 || f.Truncated {
		t.Fatalf("forest: count=%d truncated=%v", f.NodeCount, f.Truncated)
	}
}

func TestTraverseNodeBudget(t *testing.T) {
	objects := make(map[int]raw.Object, 5)
	for i := 1; i < 5; i++ {
		objects[i] = mkDict("Next", mkRef(i+1))
	}
	objects[5] = mkDict()
	g := Build(mkDoc(objects))

	f := g.Traverse([]string{"1 0 R"}, Budgets{MaxDepth: 10, MaxNodes: 3, MaxChildren: 10})
	if f.NodeCount != 3 {
		t.Fatalf("node count: %d", f.NodeCount)
	}
	if !f.Truncated {
		t.Fatal("truncated flag not set on budget exhaustion")
	}
}

func TestTraverseDepthLimitSilent(t *testing.T) {
	g := Build(mkDoc(map[int]raw.Object{
		1: mkDict("Next", mkRef(2)),
		2: mkDict("Next", mkRef(3)),
		3: mkDict(),
	}))
	f := g.Traverse([]string{"1 0 R"}, Budgets{MaxDepth: 1, MaxNodes: 100, MaxChildren: 10})
	if f.NodeCount != 2 {
		t.Fatalf("node count: %d", f.NodeCount)
	}
	if f.Truncated {
		t.Fatal("depth cut must not set truncated")
	}
	leaf := f.Roots[0].Children[0]
	if leaf.Depth != 1 || len(leaf.Children) != 0 {
		t.Fatalf("leaf: %+v", leaf)
	}
}

func TestTraverseChildCapSilent(t *testing.T) {
	arr := &raw.Array{}
	objects := map[int]raw.Object{}
	for i := 2; i <= 6; i++ {
		arr.Append(mkRef(i))
		objects[i] = mkDict()
	}
	objects[1] = mkDict("Kids", arr)
	g := Build(mkDoc(objects))

	f := g.Traverse([]string{"1 0 R"}, Budgets{MaxDepth: 4, MaxNodes: 100, MaxChildren: 2})
	if len(f.Roots[0].Children) != 2 {
		t.Fatalf("children: %d", len(f.Roots[0].Children))
	}
	if f.Truncated {
		t.Fatal("child cap must not set truncated")
	}
}

func TestTraverseUnknownAndDuplicateRoots(t *testing.T) {
	g := Build(mkDoc(map[int]raw.Object{1: mkDict()}))
	f := g.Traverse([]string{"99 0 R", "1 0 R", "1 0 R"}, Budgets{MaxDepth: 4, MaxNodes: 100, MaxChildren: 10})
	if len(f.Roots) != 1 || f.NodeCount != 1 {
		t.Fatalf("forest: %+v", f)
	}
}

func TestTraverseDeterministic(t *testing.T) {
	g, _ := minimalGraph(t)
	b := Budgets{MaxDepth: 4, MaxNodes: 50, MaxChildren: 10}
	a := g.Traverse([]string{"1 0 R"}, b)
	for i := 0; i < 5; i++ {
		c := g.Traverse([]string{"1 0 R"}, b)
		if fmt.Sprintf("%v", c) != fmt.Sprintf("%v", a) {
			t.Fatal("traversal is not deterministic")
		}
	}
}
