package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/scanner"
	"github.com/idrisr/pepys/xref"
)

// maxNestDepth bounds dict/array nesting inside a single object so a
// pathological file cannot blow the stack.
const maxNestDepth = 128

// loader materializes objects from the raw bytes using a resolved xref
// table. Object streams are decoded once and their members cached.
type loader struct {
	data     []byte
	table    *xref.Table
	pipeline *filters.Pipeline
	objstm   map[int]map[int]raw.Object
	// lengthChase holds object numbers currently being loaded to resolve
	// an indirect /Length, so a reference cycle bottoms out instead of
	// recursing between loadAt and resolveLength forever.
	lengthChase map[int]bool
}

func newLoader(data []byte, table *xref.Table, pipeline *filters.Pipeline) *loader {
	return &loader{
		data:        data,
		table:       table,
		pipeline:    pipeline,
		objstm:      make(map[int]map[int]raw.Object),
		lengthChase: make(map[int]bool),
	}
}

func (l *loader) load(ctx context.Context, num int) (raw.Object, int, error) {
	entry, ok := l.table.Lookup(num)
	if !ok {
		return nil, 0, fmt.Errorf("object %d not in xref", num)
	}
	if entry.InObjStream {
		obj, err := l.loadFromObjStream(ctx, num, entry.StreamNum)
		return obj, 0, err
	}
	return l.loadAt(ctx, num, entry.Offset)
}

// loadAt parses "num gen obj ... endobj" at offset. The header object
// number must match; the generation is taken from the header itself since
// stale xref sections routinely disagree with the bytes on disk.
func (l *loader) loadAt(ctx context.Context, num int, offset int64) (raw.Object, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	sc := scanner.New(l.data)
	if err := sc.Seek(offset); err != nil {
		return nil, 0, err
	}
	tr := &tokenReader{sc: sc}

	tok, err := tr.next()
	if err != nil {
		return nil, 0, fmt.Errorf("object %d header: %w", num, err)
	}
	if tok.Type != scanner.TokenNumber || !tok.IsInt || int(tok.Int) != num {
		return nil, 0, fmt.Errorf("object header at %d does not belong to object %d", offset, num)
	}
	tok, err = tr.next()
	if err != nil {
		return nil, 0, fmt.Errorf("object %d header: %w", num, err)
	}
	if tok.Type != scanner.TokenNumber || !tok.IsInt {
		return nil, 0, fmt.Errorf("object %d: bad generation in header", num)
	}
	gen := int(tok.Int)
	tok, err = tr.next()
	if err != nil {
		return nil, 0, fmt.Errorf("object %d header: %w", num, err)
	}
	if tok.Type != scanner.TokenKeyword || tok.Str != "obj" {
		return nil, 0, fmt.Errorf("object %d: expected obj keyword, got %q", num, tok.Str)
	}

	obj, err := parseObject(tr, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("object %d: %w", num, err)
	}

	if dict, ok := obj.(*raw.Dict); ok {
		sc.SetNextStreamLength(l.resolveLength(ctx, dict))
		next, err := tr.next()
		switch {
		case err == nil && next.Type == scanner.TokenStream:
			obj = &raw.Stream{Dict: dict, Raw: next.Bytes}
		case err == nil:
			sc.SetNextStreamLength(-1)
			tr.unread(next)
		default:
			// Dict at EOF with no endobj. Keep what we parsed.
			sc.SetNextStreamLength(-1)
		}
	}
	return obj, gen, nil
}

// resolveLength returns the declared /Length, chasing one level of
// indirection. A missing, non-numeric or cyclic length returns -1 so the
// scanner falls back to searching for endstream.
func (l *loader) resolveLength(ctx context.Context, dict *raw.Dict) int64 {
	val, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch v := val.(type) {
	case raw.Number:
		if v.IsInt && v.I >= 0 {
			return v.I
		}
	case raw.Ref:
		if l.lengthChase[v.R.Num] {
			return -1
		}
		entry, ok := l.table.Lookup(v.R.Num)
		if !ok || entry.InObjStream {
			return -1
		}
		l.lengthChase[v.R.Num] = true
		obj, _, err := l.loadAt(ctx, v.R.Num, entry.Offset)
		delete(l.lengthChase, v.R.Num)
		if err != nil {
			return -1
		}
		if n, ok := obj.(raw.Number); ok && n.IsInt && n.I >= 0 {
			return n.I
		}
	}
	return -1
}

// loadFromObjStream extracts an object from a /Type /ObjStm container,
// decoding and indexing the container on first touch.
func (l *loader) loadFromObjStream(ctx context.Context, num, containerNum int) (raw.Object, error) {
	if members, ok := l.objstm[containerNum]; ok {
		if obj, ok := members[num]; ok {
			return obj, nil
		}
		return nil, fmt.Errorf("object %d not present in object stream %d", num, containerNum)
	}

	entry, ok := l.table.Lookup(containerNum)
	if !ok || entry.InObjStream {
		return nil, fmt.Errorf("object stream %d unavailable", containerNum)
	}
	obj, _, err := l.loadAt(ctx, containerNum, entry.Offset)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", containerNum, err)
	}
	st, ok := obj.(*raw.Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is not a stream", containerNum)
	}

	names, params := filters.ExtractFilters(st.Dict)
	data := st.Raw
	if len(names) > 0 {
		data, err = l.pipeline.Decode(ctx, data, names, params)
		if err != nil {
			return nil, fmt.Errorf("object stream %d decode: %w", containerNum, err)
		}
	}

	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	if n <= 0 || first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("object stream %d: bad N/First", containerNum)
	}

	// The header region is N pairs of "objnum offset", offsets relative
	// to First.
	sc := scanner.New(data[:first])
	pairs := make([]int64, 0, 2*n)
	for int64(len(pairs)) < 2*n {
		tok, err := sc.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream %d header: %w", containerNum, err)
		}
		if tok.Type == scanner.TokenNumber && tok.IsInt {
			pairs = append(pairs, tok.Int)
		}
	}

	body := data[first:]
	members := make(map[int]raw.Object, n)
	for i := int64(0); i < n; i++ {
		memberNum := int(pairs[2*i])
		off := pairs[2*i+1]
		if off < 0 || off > int64(len(body)) {
			continue
		}
		msc := scanner.New(body[off:])
		memberObj, err := parseObject(&tokenReader{sc: msc}, 0)
		if err != nil {
			continue
		}
		members[memberNum] = memberObj
	}
	l.objstm[containerNum] = members

	if obj, ok := members[num]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %d not present in object stream %d", num, containerNum)
}

// tokenReader adds one-token pushback on top of the scanner, needed when
// a dict turns out not to be a stream dict.
type tokenReader struct {
	sc  *scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if n := len(r.buf); n > 0 {
		tok := r.buf[n-1]
		r.buf = r.buf[:n-1]
		return tok, nil
	}
	return r.sc.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func parseObject(tr *tokenReader, depth int) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	return objectFromToken(tr, tok, depth)
}

func objectFromToken(tr *tokenReader, tok scanner.Token, depth int) (raw.Object, error) {
	if depth > maxNestDepth {
		return nil, errors.New("value nesting too deep")
	}
	switch tok.Type {
	case scanner.TokenNull:
		return raw.Null{}, nil
	case scanner.TokenBoolean:
		return raw.Boolean{V: tok.Bool}, nil
	case scanner.TokenNumber:
		return raw.Number{I: tok.Int, F: tok.Float, IsInt: tok.IsInt}, nil
	case scanner.TokenString:
		return raw.String{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenName:
		return raw.Name{Val: tok.Str}, nil
	case scanner.TokenRef:
		return raw.Ref{R: raw.ObjectRef{Num: tok.Num, Gen: tok.Gen}}, nil
	case scanner.TokenArrayOpen:
		return parseArray(tr, depth+1)
	case scanner.TokenDictOpen:
		return parseDict(tr, depth+1)
	}
	return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
}

func parseArray(tr *tokenReader, depth int) (raw.Object, error) {
	arr := &raw.Array{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenArrayClose {
			return arr, nil
		}
		item, err := objectFromToken(tr, tok, depth)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenReader, depth int) (raw.Object, error) {
	d := raw.NewDict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenDictClose {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			// Tolerate a missing >> when the object body just ends.
			if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
				tr.unread(tok)
				return d, nil
			}
			return nil, fmt.Errorf("expected name key in dict at offset %d", tok.Pos)
		}
		val, err := parseObject(tr, depth)
		if err != nil {
			return nil, err
		}
		d.Set(tok.Str, val)
	}
}
