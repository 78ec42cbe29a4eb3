package graph

import (
	"strings"

	"github.com/idrisr/pepys/ir/raw"
)

// searchCap bounds the result list regardless of how broad the query is.
const searchCap = 200

// indexDepth bounds how deep key and name collection descends into one
// object's value tree.
const indexDepth = 3

type indexEntry struct {
	id      string
	ref     raw.ObjectRef
	typ     string   // lowered
	subtype string   // lowered
	keys    []string // lowered dictionary keys
	values  []string // lowered type-like values: names, label, kind
}

// SearchIndex is the per-document inverted lookup structure, built once
// alongside the graph and immutable afterwards.
type SearchIndex struct {
	entries []indexEntry // ascending object id, mirrors g.Nodes
	g       *Graph
}

func NewSearchIndex(g *Graph, doc *raw.Document) *SearchIndex {
	ix := &SearchIndex{entries: make([]indexEntry, 0, len(g.Nodes)), g: g}
	for _, node := range g.Nodes {
		ref, err := raw.ParseRef(node.ID)
		if err != nil {
			continue
		}
		entry := indexEntry{
			id:      node.ID,
			ref:     ref,
			typ:     strings.ToLower(node.Type),
			subtype: strings.ToLower(node.Subtype),
			values:  []string{strings.ToLower(node.Label), strings.ToLower(node.Kind)},
		}
		if obj, ok := doc.Get(ref); ok {
			collectIndexTerms(obj, indexDepth, &entry)
		}
		ix.entries = append(ix.entries, entry)
	}
	return ix
}

func collectIndexTerms(value raw.Object, depth int, entry *indexEntry) {
	if depth < 0 || value == nil {
		return
	}
	switch v := value.(type) {
	case raw.Name:
		entry.values = append(entry.values, strings.ToLower(v.Val))
	case *raw.Stream:
		collectIndexTerms(v.Dict, depth-1, entry)
	case *raw.Dict:
		for _, key := range v.Keys() {
			entry.keys = append(entry.keys, strings.ToLower(key))
			item, _ := v.Get(key)
			collectIndexTerms(item, depth-1, entry)
		}
	case *raw.Array:
		for _, item := range v.Items {
			collectIndexTerms(item, depth-1, entry)
		}
	}
}

// Search ranks matches in four tiers: exact id, exact type or subtype,
// substring over dictionary keys, substring over type-like values. Within
// a tier order is ascending object id. An empty query yields an empty
// result, not an error.
func (ix *SearchIndex) Search(query string) []Node {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	lower := strings.ToLower(query)
	queryRef, refErr := raw.ParseRef(query)

	var tiers [4][]Node
	for _, entry := range ix.entries {
		node, ok := ix.g.Node(entry.id)
		if !ok {
			continue
		}
		switch {
		case refErr == nil && entry.ref == queryRef,
			strings.EqualFold(query, entry.id):
			tiers[0] = append(tiers[0], node)
		case lower == entry.typ || (entry.subtype != "" && lower == entry.subtype):
			tiers[1] = append(tiers[1], node)
		case anyContains(entry.keys, lower):
			tiers[2] = append(tiers[2], node)
		case anyContains(entry.values, lower):
			tiers[3] = append(tiers[3], node)
		}
	}

	out := make([]Node, 0, searchCap)
	for _, tier := range tiers {
		for _, node := range tier {
			if len(out) == searchCap {
				return out
			}
			out = append(out, node)
		}
	}
	return out
}

func anyContains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
