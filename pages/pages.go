// Package pages walks the page tree in logical order and projects each
// page into the descriptors the API serves: content streams with their
// statically counted text operators, resource and annotation references,
// and XObject entries.
package pages

import (
	"context"
	"sort"

	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/ir/raw"
)

// maxTreeDepth bounds page-tree recursion. Real trees are shallow; a
// corrupted /Kids cycle must not recurse forever even with the visited
// set in place.
const maxTreeDepth = 64

// refListDepth matches the depth used when flattening Resources,
// Contents and Annots values into reference lists.
const refListDepth = 3

type ContentStream struct {
	ID      string `json:"id"`
	Length  *int64 `json:"length"`
	Decoded bool   `json:"decoded"`
	TextOps int    `json:"text_ops"`
}

type XObject struct {
	Name      string `json:"name"`
	ObjID     string `json:"obj_id,omitempty"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	Kind      string `json:"kind"`
	HasStream bool   `json:"has_stream"`
}

type Page struct {
	Index          int             `json:"index"`
	Number         int             `json:"page"`
	ObjID          string          `json:"obj_id"`
	Resources      []string        `json:"resources"`
	Contents       []string        `json:"contents"`
	ContentStreams []ContentStream `json:"content_streams"`
	XObjects       []XObject       `json:"xobjects"`
	Annots         []string        `json:"annots"`
}

// Collect walks the page tree rooted at the catalog and returns pages in
// logical order, which is the in-order walk of /Kids, not ascending
// object id.
func Collect(ctx context.Context, doc *raw.Document, pipeline *filters.Pipeline) []Page {
	pages := []Page{}
	root, ok := pagesRoot(doc)
	if !ok {
		return pages
	}
	w := &walker{ctx: ctx, doc: doc, pipeline: pipeline, visited: make(map[raw.ObjectRef]bool)}
	w.walk(root, 0)
	return w.pages
}

// pagesRoot finds the page-tree root: trailer /Root → catalog /Pages,
// falling back to a scan for a /Type /Catalog object when the trailer is
// missing or broken.
func pagesRoot(doc *raw.Document) (raw.ObjectRef, bool) {
	var catalog *raw.Dict
	if doc.Trailer != nil {
		if rootVal, ok := doc.Trailer.Get("Root"); ok {
			catalog, _ = doc.ResolveDict(rootVal)
		}
	}
	if catalog == nil {
		for _, ref := range doc.Refs() {
			obj, _ := doc.Get(ref)
			if d, ok := doc.ResolveDict(obj); ok {
				if t, _ := d.Name("Type"); t == "Catalog" {
					catalog = d
					break
				}
			}
		}
	}
	if catalog == nil {
		return raw.ObjectRef{}, false
	}
	pagesVal, ok := catalog.Get("Pages")
	if !ok {
		return raw.ObjectRef{}, false
	}
	ref, ok := pagesVal.(raw.Ref)
	if !ok {
		return raw.ObjectRef{}, false
	}
	return ref.R, true
}

type walker struct {
	ctx      context.Context
	doc      *raw.Document
	pipeline *filters.Pipeline
	visited  map[raw.ObjectRef]bool
	pages    []Page
}

func (w *walker) walk(ref raw.ObjectRef, depth int) {
	if depth > maxTreeDepth || w.visited[ref] {
		return
	}
	w.visited[ref] = true

	obj, ok := w.doc.Get(ref)
	if !ok {
		return
	}
	dict, ok := w.doc.ResolveDict(obj)
	if !ok {
		return
	}

	kids, hasKids := w.doc.ResolveArray(kidsValue(dict))
	nodeType, _ := dict.Name("Type")
	// Intermediate nodes sometimes omit /Type; infer from /Kids.
	if nodeType == "Pages" || (nodeType == "" && hasKids) {
		if hasKids {
			for _, kid := range kids.Items {
				if kidRef, ok := kid.(raw.Ref); ok {
					w.walk(kidRef.R, depth+1)
				}
			}
		}
		return
	}

	w.pages = append(w.pages, w.describePage(ref, dict))
}

func kidsValue(dict *raw.Dict) raw.Object {
	v, ok := dict.Get("Kids")
	if !ok {
		return nil
	}
	return v
}

func (w *walker) describePage(ref raw.ObjectRef, dict *raw.Dict) Page {
	idx := len(w.pages)
	p := Page{
		Index:          idx,
		Number:         idx + 1,
		ObjID:          ref.String(),
		Resources:      listRefs(w.doc, dictValue(dict, "Resources")),
		Contents:       listRefs(w.doc, dictValue(dict, "Contents")),
		Annots:         listRefs(w.doc, dictValue(dict, "Annots")),
		ContentStreams: []ContentStream{},
		XObjects:       []XObject{},
	}

	p.ContentStreams = append(p.ContentStreams, w.contentStreams(dict)...)
	p.XObjects = append(p.XObjects, w.xobjects(dict)...)
	return p
}

func dictValue(dict *raw.Dict, key string) raw.Object {
	v, ok := dict.Get(key)
	if !ok {
		return nil
	}
	return v
}

// contentStreams resolves /Contents (single ref or array) into stream
// descriptors. Text operators are counted on decoded bytes when the
// filter chain decodes cleanly, on whatever bytes came back otherwise.
func (w *walker) contentStreams(page *raw.Dict) []ContentStream {
	contents := dictValue(page, "Contents")
	if contents == nil {
		return nil
	}
	items := []raw.Object{contents}
	if arr, ok := contents.(*raw.Array); ok {
		items = arr.Items
	}

	var out []ContentStream
	for _, item := range items {
		var id string
		if ref, ok := item.(raw.Ref); ok {
			id = ref.R.String()
		}
		stream, ok := w.doc.Resolve(item).(*raw.Stream)
		if !ok {
			continue
		}
		entry := ContentStream{ID: id, Decoded: true}
		if stream.Dict != nil {
			if n, ok := stream.Dict.Int("Length"); ok {
				entry.Length = &n
			}
		}

		data := stream.Raw
		names, params := filters.ExtractFilters(stream.Dict)
		if len(names) > 0 {
			decoded, err := w.pipeline.Decode(w.ctx, data, names, params)
			if err != nil {
				entry.Decoded = false
			}
			if decoded != nil {
				data = decoded
			}
		}
		entry.TextOps = CountTextOps(data)
		out = append(out, entry)
	}
	return out
}

// xobjects lists the page's /Resources /XObject entries in the order the
// resource dictionary declares them.
func (w *walker) xobjects(page *raw.Dict) []XObject {
	resources, ok := w.doc.ResolveDict(dictValue(page, "Resources"))
	if !ok {
		return nil
	}
	xo, ok := w.doc.ResolveDict(dictValue(resources, "XObject"))
	if !ok {
		return nil
	}

	var out []XObject
	for _, name := range xo.Keys() {
		val, _ := xo.Get(name)
		entry := XObject{Name: name, Kind: "Object"}
		if ref, ok := val.(raw.Ref); ok {
			entry.ObjID = ref.R.String()
		}
		resolved := w.doc.Resolve(val)
		var d *raw.Dict
		switch v := resolved.(type) {
		case *raw.Stream:
			entry.Kind = "Stream"
			entry.HasStream = true
			d = v.Dict
		case *raw.Dict:
			entry.Kind = "Dictionary"
			d = v
		}
		if d != nil {
			entry.Type, _ = d.Name("Type")
			entry.Subtype, _ = d.Name("Subtype")
		}
		if entry.Type == "" {
			entry.Type = entry.Kind
		}
		out = append(out, entry)
	}
	return out
}

// listRefs flattens a value into the sorted set of reference ids found
// within it, descending a few levels but never following references.
func listRefs(doc *raw.Document, value raw.Object) []string {
	seen := make(map[raw.ObjectRef]bool)
	var walk func(v raw.Object, depth int)
	walk = func(v raw.Object, depth int) {
		if depth < 0 || v == nil {
			return
		}
		switch x := v.(type) {
		case raw.Ref:
			seen[x.R] = true
		case *raw.Stream:
			walk(x.Dict, depth-1)
		case *raw.Dict:
			for _, key := range x.Keys() {
				item, _ := x.Get(key)
				walk(item, depth-1)
			}
		case *raw.Array:
			for _, item := range x.Items {
				walk(item, depth-1)
			}
		}
	}
	walk(value, refListDepth)

	refs := make([]raw.ObjectRef, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
