package store

import (
	"context"
	"sort"

	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/graph"
	"github.com/idrisr/pepys/ir/raw"
)

// RefEntry is one outgoing reference in an object-detail response.
type RefEntry struct {
	ObjID string `json:"obj_id"`
	Path  string `json:"path"`
}

// Detail is the object-detail payload: node projection, a depth-limited
// rendering of the dictionary, outgoing references, and the stream
// preview when the object carries one. A broken stream never fails the
// detail request; the failure rides along inside Stream.
type Detail struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Subtype   string           `json:"subtype,omitempty"`
	Kind      string           `json:"kind"`
	Label     string           `json:"label"`
	Size      *int64           `json:"size"`
	HasStream bool             `json:"has_stream"`
	Dict      any              `json:"dict"`
	Refs      []RefEntry       `json:"refs"`
	Stream    *filters.Preview `json:"stream,omitempty"`
}

// ObjectDetail accepts any id spelling ParseRef understands ("12 0",
// "12-0", "12 0 R", ...).
func (d *Document) ObjectDetail(ctx context.Context, objID string) (Detail, error) {
	ref, err := raw.ParseRef(objID)
	if err != nil {
		return Detail{}, ErrObjectNotFound
	}
	obj, ok := d.Doc.Get(ref)
	if !ok {
		return Detail{}, ErrObjectNotFound
	}
	id := ref.String()
	node, ok := d.Graph.Node(id)
	if !ok {
		return Detail{}, ErrObjectNotFound
	}

	detail := Detail{
		ID:        node.ID,
		Type:      node.Type,
		Subtype:   node.Subtype,
		Kind:      node.Kind,
		Label:     node.Label,
		Size:      node.Size,
		HasStream: node.HasStream,
		Refs:      []RefEntry{},
	}

	edges := append([]graph.Edge{}, d.Graph.Out(id)...)
	for _, e := range d.Graph.Dangling {
		if e.From == id {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].ViaKey < edges[j].ViaKey
	})
	for _, e := range edges {
		detail.Refs = append(detail.Refs, RefEntry{ObjID: e.To, Path: e.ViaKey})
	}

	switch v := obj.(type) {
	case *raw.Stream:
		detail.Dict = simplify(v.Dict, simplifyDepth)
		pv := d.preview(ctx, id, v)
		detail.Stream = &pv
	case *raw.Dict:
		detail.Dict = simplify(v, simplifyDepth)
	}
	return detail, nil
}

// StreamPreview returns the decoded preview for a stream object, or
// ErrNoStream when the object has no stream payload.
func (d *Document) StreamPreview(ctx context.Context, objID string) (filters.Preview, error) {
	ref, err := raw.ParseRef(objID)
	if err != nil {
		return filters.Preview{}, ErrObjectNotFound
	}
	obj, ok := d.Doc.Get(ref)
	if !ok {
		return filters.Preview{}, ErrObjectNotFound
	}
	stream, ok := obj.(*raw.Stream)
	if !ok {
		return filters.Preview{}, ErrNoStream
	}
	return d.preview(ctx, ref.String(), stream), nil
}

func (d *Document) preview(ctx context.Context, id string, stream *raw.Stream) filters.Preview {
	if pv, ok := d.previews.Get(id); ok {
		return pv
	}
	pv := filters.PreviewStream(ctx, d.pipeline, stream, d.previewCap)
	d.previews.Add(id, pv)
	return pv
}

// NormalizeID canonicalizes a caller-supplied object id spelling into
// the "N G R" form used as graph node ids.
func (d *Document) NormalizeID(s string) (string, bool) {
	ref, err := raw.ParseRef(s)
	if err != nil {
		return "", false
	}
	return ref.String(), true
}

// XrefListing returns the resolved location of every object, ascending
// by object id.
func (d *Document) XrefListing() []raw.XrefEntry {
	out := append([]raw.XrefEntry{}, d.Doc.Xref...)
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Less(out[j].Ref) })
	return out
}
