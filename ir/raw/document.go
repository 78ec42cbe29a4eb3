package raw

import "sort"

// Document is the object store built once per parsed document. It is
// immutable after the parser returns it; every later read (graph derivation,
// stream decoding, traversal) works against this frozen structure.
type Document struct {
	// Objects maps each indirect object identity to its value.
	Objects map[ObjectRef]Object
	// Trailer is the document trailer dictionary, nil when the document was
	// rebuilt by the recovery scan and no trailer survived.
	Trailer *Dict
	// Version is the header version, e.g. "1.7".
	Version string
	// Recovered counts objects reconstructed by the linear fallback scan.
	// Zero when structured xref resolution succeeded.
	Recovered int
	// Malformed records per-object parse failures. These identities stay out
	// of Objects and out of the derived graph.
	Malformed map[ObjectRef]string
	// Xref lists where each object came from, for the listing endpoint.
	Xref []XrefEntry
}

// XrefEntry describes the resolved location of one object: a direct byte
// offset or a slot in an object stream, and which resolution path
// produced it ("table", "stream" or "recovered").
type XrefEntry struct {
	Ref         ObjectRef `json:"-"`
	ID          string    `json:"id"`
	Offset      int64     `json:"offset"`
	InObjStream bool      `json:"in_obj_stream"`
	StreamNum   int       `json:"stream_num,omitempty"`
	Source      string    `json:"source"`
}

// Get looks up an object by reference.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	o, ok := d.Objects[ref]
	return o, ok
}

// Refs returns all object identities in ascending (num, gen) order.
func (d *Document) Refs() []ObjectRef {
	out := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Resolve follows a reference to its stored object. Non-reference objects
// are returned as-is. A dangling reference resolves to Null.
func (d *Document) Resolve(obj Object) Object {
	ref, ok := obj.(Ref)
	if !ok {
		return obj
	}
	target, ok := d.Objects[ref.R]
	if !ok {
		return Null{}
	}
	return target
}

// ResolveDict resolves obj (directly or through one reference) to a
// dictionary. Streams resolve to their stream dictionary.
func (d *Document) ResolveDict(obj Object) (*Dict, bool) {
	switch v := d.Resolve(obj).(type) {
	case *Dict:
		return v, true
	case *Stream:
		return v.Dict, true
	default:
		return nil, false
	}
}

// ResolveArray resolves obj (directly or through one reference) to an array.
func (d *Document) ResolveArray(obj Object) (*Array, bool) {
	arr, ok := d.Resolve(obj).(*Array)
	return arr, ok
}
